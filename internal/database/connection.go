package database

import (
	"errors"
	"time"

	"github.com/thereayou/rylac/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect открывает Postgres по DSN и накатывает схему
func Connect(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return Open(postgres.Open(dsn))
}

// Open принимает любой диалект gorm (в тестах sqlite)
func Open(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.User{}, &models.Message{}, &models.RefreshToken{}); err != nil {
		return nil, err
	}

	// присутствие живёт только в памяти процесса: после рестарта онлайн никого нет
	if err := db.Model(&models.User{}).Where("is_online = ?", true).Update("is_online", false).Error; err != nil {
		return nil, err
	}

	return NewDatabase(db), nil
}
