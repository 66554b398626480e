package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/thereayou/rylac/internal/models"
	"gorm.io/gorm"
)

// SaveRefreshToken добавляет токен в активный набор и оставляет не больше keep самых новых
func (d *Database) SaveRefreshToken(ctx context.Context, token *models.RefreshToken, keep int) error {
	return d.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(token).Error; err != nil {
			return errors.Wrap(err, "save refresh token")
		}

		var active []models.RefreshToken
		err := tx.Select("id").
			Where("user_id = ?", token.UserID).
			Order("created_at DESC").
			Order("id DESC").
			Find(&active).Error
		if err != nil {
			return errors.Wrap(err, "find active refresh tokens")
		}
		if len(active) <= keep {
			return nil
		}

		ids := make([]interface{}, 0, len(active)-keep)
		for _, t := range active[keep:] {
			ids = append(ids, t.ID)
		}
		return errors.Wrap(tx.Where("id IN ?", ids).Delete(&models.RefreshToken{}).Error, "evict refresh tokens")
	})
}

// RefreshTokenActive проверяет, что хеш токена есть в активном наборе пользователя
func (d *Database) RefreshTokenActive(ctx context.Context, userID, tokenHash string) (bool, error) {
	var count int64
	err := d.conn(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND token_hash = ? AND expires_at > ?", userID, tokenHash, time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check refresh token")
	}
	return count > 0, nil
}

func (d *Database) DeleteRefreshToken(ctx context.Context, userID, tokenHash string) error {
	err := d.conn(ctx).
		Where("user_id = ? AND token_hash = ?", userID, tokenHash).
		Delete(&models.RefreshToken{}).Error
	return errors.Wrap(err, "delete refresh token")
}
