// Package dbtest поднимает изолированную in-memory SQLite базу для тестов.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/rylac/internal/database"
	"gorm.io/driver/sqlite"
)

func New(t testing.TB) *database.Database {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// shared cache sqlite отвечает "database is locked" на параллельные записи
	if err := db.SetMaxOpenConns(1); err != nil {
		t.Fatalf("configure sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
