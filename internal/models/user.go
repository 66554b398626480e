package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

type User struct {
	UserID       string `gorm:"primaryKey;size:16"`
	Username     string `gorm:"uniqueIndex;size:30;not null"`
	DisplayName  string `gorm:"size:50;not null"`
	PasswordHash string `gorm:"not null" json:"-"`
	PasswordSalt string `gorm:"not null" json:"-"`
	Avatar       string
	Bio          string `gorm:"size:200"`
	Role         string `gorm:"size:10;default:'user';check:role IN ('user','admin')"`
	IsOnline     bool   `gorm:"default:false;index"`
	LastSeen     time.Time
	Theme        string    `gorm:"size:10;default:'light'"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// PublicProfile поля пользователя, которые можно отдавать клиентам
type PublicProfile struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar"`
	Bio         string    `json:"bio"`
	IsOnline    bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen"`
	Role        string    `json:"role"`
	Theme       string    `json:"theme"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		UserID:      u.UserID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Bio:         u.Bio,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
		Role:        u.Role,
		Theme:       u.Theme,
		CreatedAt:   u.CreatedAt,
	}
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken активный refresh-токен пользователя; храним только sha256
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"size:16;not null;index"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (t *RefreshToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
