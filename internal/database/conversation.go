package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/thereayou/rylac/internal/models"
)

// Contact последний диалог пользователя со счётчиком непрочитанных
type Contact struct {
	User        models.User
	LastMessage models.Message
	UnreadCount int64
}

type conversationRow struct {
	ConversationID string
	UnreadCount    int64
}

// RecentContacts собирает диалоги пользователя, отсортированные по последнему сообщению
func (d *Database) RecentContacts(ctx context.Context, userID string, limit int) ([]Contact, error) {
	var rows []conversationRow
	err := d.conn(ctx).Model(&models.Message{}).
		Select("conversation_id, SUM(CASE WHEN receiver_id = ? AND is_read = ? THEN 1 ELSE 0 END) AS unread_count", userID, false).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("conversation_id").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "recent conversations")
	}

	contacts := make([]Contact, 0, len(rows))
	counterparts := make([]string, 0, len(rows))
	for _, row := range rows {
		var last models.Message
		err := d.conn(ctx).
			Where("conversation_id = ?", row.ConversationID).
			Order("created_at DESC").
			Order("id DESC").
			First(&last).Error
		if err != nil {
			return nil, errors.Wrap(err, "last conversation message")
		}
		contacts = append(contacts, Contact{LastMessage: last, UnreadCount: row.UnreadCount})
		counterparts = append(counterparts, last.Counterpart(userID))
	}

	users, err := d.GetUsersByIDs(ctx, counterparts)
	if err != nil {
		return nil, err
	}

	// собеседник мог быть удалён администратором между запросами
	out := contacts[:0]
	for i, c := range contacts {
		u, ok := users[counterparts[i]]
		if !ok {
			continue
		}
		c.User = u
		out = append(out, c)
	}
	return out, nil
}

// Stats сводка для админки
type Stats struct {
	TotalUsers    int64
	OnlineUsers   int64
	TotalMessages int64
	MessagesToday int64
	NewUsersToday int64
	RecentUsers   []models.User
}

func (d *Database) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UTC()
	stats := &Stats{}

	db := d.conn(ctx)
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, errors.Wrap(err, "count users")
	}
	if err := db.Model(&models.User{}).Where("is_online = ?", true).Count(&stats.OnlineUsers).Error; err != nil {
		return nil, errors.Wrap(err, "count online users")
	}
	total, err := d.CountMessages(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalMessages = total
	if err := db.Model(&models.Message{}).Where("created_at >= ?", startOfDay).Count(&stats.MessagesToday).Error; err != nil {
		return nil, errors.Wrap(err, "count messages today")
	}
	if err := db.Model(&models.User{}).Where("created_at >= ?", startOfDay).Count(&stats.NewUsersToday).Error; err != nil {
		return nil, errors.Wrap(err, "count new users")
	}
	if err := db.Order("created_at DESC").Limit(5).Find(&stats.RecentUsers).Error; err != nil {
		return nil, errors.Wrap(err, "recent users")
	}
	return stats, nil
}
