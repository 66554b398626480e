package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thereayou/rylac/internal/apperrors"
	"github.com/thereayou/rylac/internal/database"
	"github.com/thereayou/rylac/internal/models"
	"github.com/thereayou/rylac/pkg/auth"
	"go.uber.org/zap"
)

const (
	maxActiveRefreshTokens = 5
	userIDAttempts         = 10
	minPasswordLength      = 6
	maxPasswordLength      = 100
	maxDisplayNameLength   = 50
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Session выданная пара токенов; RefreshToken пуст, когда обновлялся только access
type Session struct {
	User           *models.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// Identity кто стоит за запросом или соединением
type Identity struct {
	UserID string
	Role   string
	// ViaRefresh: access не подошёл, личность подтверждена refresh-токеном
	ViaRefresh bool
}

// TokenCache чёрный список access токенов после logout
type TokenCache interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

type AuthService struct {
	users  UserStore
	tokens TokenStore
	jwt    *auth.JWTManager
	cache  TokenCache
	log    *zap.SugaredLogger
	newID  func() (string, error)
}

func NewAuthService(users UserStore, tokens TokenStore, jwt *auth.JWTManager, cache TokenCache, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		jwt:    jwt,
		cache:  cache,
		log:    log,
		newID:  numericID,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	displayName := strings.TrimSpace(req.DisplayName)

	if !usernamePattern.MatchString(username) {
		return nil, apperrors.Validation("username must be 3-30 characters: letters, digits, underscores")
	}
	if displayName == "" || utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return nil, apperrors.Validation("display name must be 1-50 characters")
	}
	if n := len(req.Password); n < minPasswordLength || n > maxPasswordLength {
		return nil, apperrors.Validation("password must be 6-100 characters")
	}

	taken, err := s.users.UsernameTaken(ctx, username)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if taken {
		return nil, apperrors.Conflict("username already taken")
	}

	userID, err := s.uniqueUserID(ctx)
	if err != nil {
		return nil, err
	}

	hash, salt, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}

	user := &models.User{
		UserID:       userID,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         models.RoleUser,
		Theme:        models.ThemeLight,
		LastSeen:     time.Now().UTC(),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, apperrors.Unavailable(err)
	}

	s.log.Infow("user registered", "user_id", user.UserID, "username", user.Username)
	return s.issueSession(ctx, user)
}

func (s *AuthService) uniqueUserID(ctx context.Context) (string, error) {
	for i := 0; i < userIDAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return "", apperrors.Unavailable(err)
		}
		exists, err := s.users.UserExists(ctx, id)
		if err != nil {
			return "", apperrors.Unavailable(err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", apperrors.Unavailable(errors.New("could not generate unique user id"))
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.Authentication("invalid username or password")
		}
		return nil, apperrors.Unavailable(err)
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash, user.PasswordSalt) {
		return nil, apperrors.Authentication("invalid username or password")
	}

	s.log.Infow("user logged in", "user_id", user.UserID)
	return s.issueSession(ctx, user)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*Session, error) {
	access, accessExp, err := s.jwt.GenerateAccess(user.UserID, user.Role)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	refresh, refreshExp, err := s.jwt.GenerateRefresh(user.UserID, user.Role)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}

	record := &models.RefreshToken{
		UserID:    user.UserID,
		TokenHash: hashToken(refresh),
		ExpiresAt: refreshExp.UTC(),
	}
	if err := s.tokens.SaveRefreshToken(ctx, record, maxActiveRefreshTokens); err != nil {
		return nil, apperrors.Unavailable(err)
	}

	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Authenticate сначала пробует access, затем refresh с проверкой отзыва
func (s *AuthService) Authenticate(ctx context.Context, accessToken, refreshToken string) (*Identity, error) {
	if accessToken != "" {
		if id, ok := s.checkAccess(ctx, accessToken); ok {
			return id, nil
		}
	}
	if refreshToken == "" {
		return nil, apperrors.Authentication("authentication required")
	}

	user, err := s.resolveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: user.UserID, Role: user.Role, ViaRefresh: true}, nil
}

func (s *AuthService) checkAccess(ctx context.Context, token string) (*Identity, bool) {
	claims, err := s.jwt.VerifyAccess(token)
	if err != nil {
		return nil, false
	}
	blacklisted, err := s.cache.IsBlacklisted(ctx, token)
	if err != nil {
		s.log.Warnw("blacklist lookup failed", "error", err)
		return nil, false
	}
	if blacklisted {
		return nil, false
	}
	return &Identity{UserID: claims.UserID(), Role: claims.Role}, true
}

// resolveRefresh: подпись, срок и наличие хеша в активном наборе пользователя
func (s *AuthService) resolveRefresh(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.VerifyRefresh(token)
	if err != nil {
		return nil, apperrors.Authentication("invalid or expired session")
	}

	active, err := s.tokens.RefreshTokenActive(ctx, claims.UserID(), hashToken(token))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if !active {
		return nil, apperrors.Authentication("session has been revoked")
	}

	user, err := s.users.GetUser(ctx, claims.UserID())
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.Authentication("user no longer exists")
		}
		return nil, apperrors.Unavailable(err)
	}
	return user, nil
}

// Refresh выдаёт новый access токен; refresh не ротируется
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperrors.Authentication("refresh token required")
	}
	user, err := s.resolveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	access, exp, err := s.jwt.GenerateAccess(user.UserID, user.Role)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &Session{User: user, AccessToken: access, AccessExpires: exp}, nil
}

// IssueAccess новый access для уже подтверждённой личности
func (s *AuthService) IssueAccess(id *Identity) (string, time.Time, error) {
	return s.jwt.GenerateAccess(id.UserID, id.Role)
}

// Logout отзывает refresh и блокирует access до истечения; присутствие меняет только закрытие сокетов
func (s *AuthService) Logout(ctx context.Context, userID, accessToken, refreshToken string) error {
	if refreshToken != "" {
		if err := s.tokens.DeleteRefreshToken(ctx, userID, hashToken(refreshToken)); err != nil {
			return apperrors.Unavailable(err)
		}
	}

	if accessToken != "" {
		if exp, err := s.jwt.Expiry(accessToken); err == nil {
			if err := s.cache.Blacklist(ctx, accessToken, time.Until(exp)); err != nil {
				s.log.Warnw("blacklist access token", "user_id", userID, "error", err)
			}
		}
	}

	s.log.Infow("user logged out", "user_id", userID)
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	return user, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// numericID восьмизначный id без ведущего нуля
func numericID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000000))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(10000000)).String(), nil
}
