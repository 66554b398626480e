package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/database"
	"github.com/thereayou/rylac/internal/models"
)

// UserStore операции над пользователями, которые нужны сервисам
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUser(ctx context.Context, identifier string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, id string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) (*models.User, error)
	SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]models.User, error)
	RecentContacts(ctx context.Context, userID string, limit int) ([]database.Contact, error)
}

// TokenStore активные refresh-токены
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken, keep int) error
	RefreshTokenActive(ctx context.Context, userID, tokenHash string) (bool, error)
	DeleteRefreshToken(ctx context.Context, userID, tokenHash string) error
}

// MessageStore хранилище диалогов
type MessageStore interface {
	UserExists(ctx context.Context, id string) (bool, error)
	SaveMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetConversationMessages(ctx context.Context, conversationID string, limit int, before *uuid.UUID) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
	SoftDeleteMessage(ctx context.Context, id uuid.UUID, senderID string) (bool, error)
}

// AdminStore выборки для админки
type AdminStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, search string, offset, limit int) ([]models.User, int64, error)
	Stats(ctx context.Context, now time.Time) (*database.Stats, error)
	DeleteUser(ctx context.Context, id string) error
	SetRole(ctx context.Context, id, role string) (*models.User, error)
}

// storeError переводит ошибку хранилища в ошибку для клиента
func storeError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if database.IsNotFound(err) {
		return apperrors.NotFound(notFound)
	}
	return apperrors.Unavailable(err)
}
