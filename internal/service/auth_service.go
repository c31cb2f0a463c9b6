package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"driveshare/internal/config"
	"driveshare/internal/ids"
	"driveshare/internal/models"
	"driveshare/internal/repository"
	"driveshare/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
)

const minPasswordLength = 8

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, phoneNumber string) (models.User, error)
}

type SessionStore interface {
	Upsert(ctx context.Context, session models.Session) error
	Trim(ctx context.Context, userID string, keepLatest int) error
	FindByRefreshHash(ctx context.Context, userID string, refreshHash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByDevice(ctx context.Context, userID string, deviceID string) error
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	cfg      config.SecurityConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(users UserStore, sessions SessionStore, cfg config.SecurityConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		log:      log.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	PhoneNumber string
	Role        models.UserRole
	DeviceName  string
	IPAddress   string
	UserAgent   string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
	DeviceID     string
}

// Register creates a renter or owner account and signs it in. Accounts start
// unverified until an administrator reviews their licence.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)
	if input.Role == "" {
		input.Role = models.UserRoleRenter
	}

	switch {
	case input.Email == "":
		return AuthResult{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	case !validEmail(input.Email):
		return AuthResult{}, fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	case len(input.Password) < minPasswordLength:
		return AuthResult{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	case input.FullName == "":
		return AuthResult{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	case input.Role != models.UserRoleRenter && input.Role != models.UserRoleOwner:
		return AuthResult{}, fmt.Errorf("%w: role must be RENTER or OWNER", ErrInvalidInput)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:                 ids.New(),
		Email:              input.Email,
		PasswordHash:       passwordHash,
		FullName:           input.FullName,
		PhoneNumber:        strings.TrimSpace(input.PhoneNumber),
		Role:               input.Role,
		VerificationStatus: models.VerificationPending,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")

	return s.createSession(ctx, user, ids.New(), orDefault(input.DeviceName, "New Device"), input.IPAddress, input.UserAgent)
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	deviceID := input.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	return s.createSession(ctx, user, deviceID, orDefault(input.DeviceName, "Unknown Device"), input.IPAddress, input.UserAgent)
}

type RefreshInput struct {
	UserID       string
	RefreshToken string
	DeviceID     string
}

// Refresh rotates the refresh token of an existing device session.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	session, err := s.sessions.FindByRefreshHash(ctx, input.UserID, security.HashRefreshToken(input.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if session.DeviceID != input.DeviceID {
		return AuthResult{}, ErrInvalidCredentials
	}
	if session.ExpiresAt.Before(s.now()) {
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("delete expired session failed")
		}
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.createSession(ctx, user, session.DeviceID, session.DeviceName, session.IPAddress, session.UserAgent)
}

func (s *AuthService) Logout(ctx context.Context, userID string, deviceID string) error {
	return s.sessions.DeleteByDevice(ctx, userID, deviceID)
}

func (s *AuthService) createSession(
	ctx context.Context,
	user models.User,
	deviceID string,
	deviceName string,
	ipAddress string,
	userAgent string,
) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        s.now().Add(s.cfg.JWTRefreshTTL),
	}

	accessToken, err := security.GenerateAccessToken(s.cfg.JWTAccessSecret, security.AccessTokenInput{
		UserID:    user.ID,
		SessionID: session.ID,
		DeviceID:  deviceID,
		Role:      string(user.Role),
	}, s.cfg.JWTAccessTTL)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.sessions.Upsert(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if s.cfg.MaxSessions > 0 {
		if err := s.sessions.Trim(ctx, user.ID, s.cfg.MaxSessions); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
		}
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     deviceID,
	}, nil
}

type ProfileInput struct {
	FullName    *string
	PhoneNumber *string
}

// UpdateProfile edits contact details. Email and role are not editable here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*input.PhoneNumber)
	}
	if user.FullName == "" {
		return models.User{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}

	updated, err := s.users.UpdateProfile(ctx, userID, user.FullName, user.PhoneNumber)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", userID).Msg("profile updated")
	return updated, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
