package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/rylac/internal/models"
	"gorm.io/gorm"
)

func (d *Database) SaveMessage(ctx context.Context, message *models.Message) error {
	return errors.Wrap(d.conn(ctx).Create(message).Error, "save message")
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := d.conn(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(err, "get message")
	}
	return &message, nil
}

// GetConversationMessages возвращает страницу диалога от новых к старым.
// before — id самого старого сообщения, которое уже есть у клиента.
func (d *Database) GetConversationMessages(ctx context.Context, conversationID string, limit int, before *uuid.UUID) ([]models.Message, error) {
	var messages []models.Message

	query := d.conn(ctx).Where("conversation_id = ?", conversationID)

	if before != nil {
		var cursor models.Message
		err := d.conn(ctx).
			Select("id", "created_at").
			Where("id = ? AND conversation_id = ?", *before, conversationID).
			First(&cursor).Error
		if err != nil {
			return nil, errors.Wrap(err, "get cursor message")
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "get conversation messages")
	}
	return messages, nil
}

// MarkConversationRead одним UPDATE помечает прочитанными все входящие читателю
func (d *Database) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res := d.conn(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "mark conversation read")
	}
	return res.RowsAffected, nil
}

// SoftDeleteMessage переводит сообщение в удалённое только если оно ещё не удалено
// и принадлежит отправителю. true — переход выполнил именно этот вызов.
func (d *Database) SoftDeleteMessage(ctx context.Context, id uuid.UUID, senderID string) (bool, error) {
	res := d.conn(ctx).Model(&models.Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", id, senderID, false).
		Updates(map[string]interface{}{
			"is_deleted":      true,
			"content":         models.Tombstone,
			"media_url":       "",
			"media_name":      "",
			"media_mime_type": "",
			"media_size":      0,
			"gif_url":         "",
			"gif_title":       "",
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "soft delete message")
	}
	return res.RowsAffected == 1, nil
}

func (d *Database) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := d.conn(ctx).Model(&models.Message{}).Where("is_deleted = ?", false).Count(&count).Error
	return count, errors.Wrap(err, "count messages")
}

// IsNotFound проверяет, что причина ошибки — отсутствие записи
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
