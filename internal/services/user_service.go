package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/models"
)

const (
	searchLimit   = 20
	contactsLimit = 50
	maxBioLength  = 200
)

// UpdateProfileRequest nil-поля не меняются
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	Avatar      *string `json:"avatar"`
	Theme       *string `json:"theme"`
}

// ContactView строка списка диалогов
type ContactView struct {
	User        models.PublicProfile `json:"user"`
	LastMessage models.Message       `json:"lastMessage"`
	UnreadCount int64                `json:"unreadCount"`
}

type UserService struct {
	store UserStore
}

func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Search(ctx context.Context, userID, query string) ([]models.PublicProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PublicProfile{}, nil
	}
	users, err := s.store.SearchUsers(ctx, query, userID, searchLimit)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return publicProfiles(users), nil
}

func (s *UserService) Contacts(ctx context.Context, userID string) ([]ContactView, error) {
	contacts, err := s.store.RecentContacts(ctx, userID, contactsLimit)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	out := make([]ContactView, 0, len(contacts))
	for i := range contacts {
		out = append(out, ContactView{
			User:        contacts[i].User.Public(),
			LastMessage: contacts[i].LastMessage,
			UnreadCount: contacts[i].UnreadCount,
		})
	}
	return out, nil
}

// Profile по userId или username
func (s *UserService) Profile(ctx context.Context, identifier string) (*models.PublicProfile, error) {
	user, err := s.store.FindUser(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	p := user.Public()
	return &p, nil
}

// UpdateProfile меняет только поля профиля; presence и роль сюда не попадают
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.PublicProfile, error) {
	updates := map[string]interface{}{}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, apperrors.Validation("display name must be 1-50 characters")
		}
		updates["display_name"] = name
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, apperrors.Validation("bio must be 200 characters or less")
		}
		updates["bio"] = bio
	}
	if req.Avatar != nil {
		avatar := strings.TrimSpace(*req.Avatar)
		if avatar != "" && !isHTTPURL(avatar) && !strings.HasPrefix(avatar, "data:image/") {
			return nil, apperrors.Validation("avatar must be an http(s) or data URL")
		}
		updates["avatar"] = avatar
	}
	if req.Theme != nil {
		if *req.Theme != models.ThemeLight && *req.Theme != models.ThemeDark {
			return nil, apperrors.Validation("theme must be light or dark")
		}
		updates["theme"] = *req.Theme
	}
	if len(updates) == 0 {
		return nil, apperrors.Validation("nothing to update")
	}

	user, err := s.store.UpdateProfile(ctx, userID, updates)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	p := user.Public()
	return &p, nil
}

func publicProfiles(users []models.User) []models.PublicProfile {
	out := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}
