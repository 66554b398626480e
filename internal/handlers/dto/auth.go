package dto

import (
	"time"

	"github.com/thereayou/rylac/internal/models"
)

// AuthResponse тело ответа register/login/refresh; токены дублируются для не-браузерных клиентов
type AuthResponse struct {
	Success        bool                  `json:"success"`
	User           *models.PublicProfile `json:"user,omitempty"`
	AccessToken    string                `json:"accessToken,omitempty"`
	AccessExpires  time.Time             `json:"accessExpiresAt"`
	RefreshToken   string                `json:"refreshToken,omitempty"`
	RefreshExpires *time.Time            `json:"refreshExpiresAt,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RoleRequest тело PUT /api/admin/users/:userId/role
type RoleRequest struct {
	Role string `json:"role"`
}
