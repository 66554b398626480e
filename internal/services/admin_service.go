package services

import (
	"context"
	"time"

	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/models"
	"go.uber.org/zap"
)

const (
	defaultAdminPageSize = 20
	maxAdminPageSize     = 100
)

// Disconnector закрывает живые соединения удалённого пользователя
type Disconnector interface {
	DisconnectUser(userID string) int
}

type StatsView struct {
	TotalUsers    int64                  `json:"totalUsers"`
	OnlineUsers   int64                  `json:"onlineUsers"`
	TotalMessages int64                  `json:"totalMessages"`
	MessagesToday int64                  `json:"messagesToday"`
	NewUsersToday int64                  `json:"newUsersToday"`
	RecentUsers   []models.PublicProfile `json:"recentUsers"`
}

type UserPage struct {
	Users []models.PublicProfile `json:"users"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Pages int                    `json:"pages"`
}

type AdminService struct {
	store AdminStore
	hub   Disconnector
	log   *zap.SugaredLogger
}

func NewAdminService(store AdminStore, hub Disconnector, log *zap.SugaredLogger) *AdminService {
	return &AdminService{store: store, hub: hub, log: log}
}

func (s *AdminService) Stats(ctx context.Context) (*StatsView, error) {
	stats, err := s.store.Stats(ctx, time.Now())
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &StatsView{
		TotalUsers:    stats.TotalUsers,
		OnlineUsers:   stats.OnlineUsers,
		TotalMessages: stats.TotalMessages,
		MessagesToday: stats.MessagesToday,
		NewUsersToday: stats.NewUsersToday,
		RecentUsers:   publicProfiles(stats.RecentUsers),
	}, nil
}

func (s *AdminService) ListUsers(ctx context.Context, page, limit int, search string) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultAdminPageSize
	}
	if limit > maxAdminPageSize {
		limit = maxAdminPageSize
	}

	users, total, err := s.store.ListUsers(ctx, search, (page-1)*limit, limit)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &UserPage{
		Users: publicProfiles(users),
		Total: total,
		Page:  page,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// DeleteUser: нельзя удалить себя и другого администратора
func (s *AdminService) DeleteUser(ctx context.Context, adminID, targetID string) error {
	if adminID == targetID {
		return apperrors.Forbidden("cannot delete your own account")
	}

	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return storeError(err, "user not found")
	}
	if target.IsAdmin() {
		return apperrors.Forbidden("cannot delete another admin")
	}

	if err := s.store.DeleteUser(ctx, targetID); err != nil {
		return storeError(err, "user not found")
	}

	closed := 0
	if s.hub != nil {
		closed = s.hub.DisconnectUser(targetID)
	}
	s.log.Infow("user deleted by admin", "admin_id", adminID, "user_id", targetID, "connections_closed", closed)
	return nil
}

// SetRole назначает роль user|admin; свою роль администратор не меняет
func (s *AdminService) SetRole(ctx context.Context, adminID, targetID, role string) (*models.PublicProfile, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperrors.Validation("invalid role")
	}
	if adminID == targetID {
		return nil, apperrors.Forbidden("cannot change your own role")
	}

	user, err := s.store.SetRole(ctx, targetID, role)
	if err != nil {
		return nil, storeError(err, "user not found")
	}

	s.log.Infow("user role changed", "admin_id", adminID, "user_id", targetID, "role", role)
	profile := user.Public()
	return &profile, nil
}
