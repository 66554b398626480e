package database

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/thereayou/rylac/internal/models"
	"gorm.io/gorm"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return errors.Wrap(d.conn(ctx).Create(user).Error, "save user")
}

func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := models.User{}
	if err := d.conn(ctx).First(&user, "user_id = ?", id).Error; err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &user, nil
}

func (d *Database) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := models.User{}
	if err := d.conn(ctx).Where("username = ?", strings.ToLower(username)).First(&user).Error; err != nil {
		return nil, errors.Wrap(err, "find user by username")
	}
	return &user, nil
}

// FindUser ищет по userId или по username
func (d *Database) FindUser(ctx context.Context, identifier string) (*models.User, error) {
	user := models.User{}
	err := d.conn(ctx).
		Where("user_id = ? OR username = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

func (d *Database) UserExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := d.conn(ctx).Model(&models.User{}).Where("user_id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "user exists")
	}
	return count > 0, nil
}

func (d *Database) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := d.conn(ctx).Model(&models.User{}).Where("username = ?", strings.ToLower(username)).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "username taken")
	}
	return count > 0, nil
}

// profileColumns поля, которые пользователь может менять сам; presence сюда не входит
var profileColumns = []string{"display_name", "bio", "avatar", "theme"}

// UpdateProfile обновляет только разрешённые колонки профиля
func (d *Database) UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) (*models.User, error) {
	res := d.conn(ctx).Model(&models.User{}).
		Where("user_id = ?", id).
		Select(profileColumns).
		Updates(updates)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrap(gorm.ErrRecordNotFound, "update profile")
	}
	return d.GetUser(ctx, id)
}

// SetRole меняет только колонку role
func (d *Database) SetRole(ctx context.Context, id, role string) (*models.User, error) {
	res := d.conn(ctx).Model(&models.User{}).
		Where("user_id = ?", id).
		Update("role", role)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "set role")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrap(gorm.ErrRecordNotFound, "set role")
	}
	return d.GetUser(ctx, id)
}

// SetPresence пишет isOnline/lastSeen; вызывается только трекером присутствия
func (d *Database) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	err := d.conn(ctx).Model(&models.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": lastSeen}).Error
	return errors.Wrap(err, "set presence")
}

// SearchUsers точное совпадение по userId или подстрока username / displayName
func (d *Database) SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]models.User, error) {
	var users []models.User
	like := "%" + strings.ToLower(query) + "%"
	err := d.conn(ctx).
		Where("user_id <> ?", excludeID).
		Where("user_id = ? OR username LIKE ? OR LOWER(display_name) LIKE ?", query, like, like).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "search users")
	}
	return users, nil
}

func (d *Database) GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := d.conn(ctx).Where("user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "get users by ids")
	}
	for _, u := range users {
		out[u.UserID] = u
	}
	return out, nil
}

// ListUsers постраничный список для админки, новые первыми
func (d *Database) ListUsers(ctx context.Context, search string, offset, limit int) ([]models.User, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if search == "" {
			return db
		}
		like := "%" + strings.ToLower(search) + "%"
		return db.Where("user_id = ? OR username LIKE ? OR LOWER(display_name) LIKE ?", search, like, like)
	}

	var total int64
	if err := d.conn(ctx).Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}

	var users []models.User
	err := d.conn(ctx).Scopes(filter).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	return users, total, nil
}

// DeleteUser удаляет пользователя вместе с его сообщениями и refresh-токенами
func (d *Database) DeleteUser(ctx context.Context, id string) error {
	return d.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, "sender_id = ? OR receiver_id = ?", id, id).Error; err != nil {
			return errors.Wrap(err, "delete user messages")
		}
		if err := tx.Delete(&models.RefreshToken{}, "user_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "delete user tokens")
		}
		res := tx.Delete(&models.User{}, "user_id = ?", id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete user")
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(gorm.ErrRecordNotFound, "delete user")
		}
		return nil
	})
}
