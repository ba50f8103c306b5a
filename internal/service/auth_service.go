package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/auth"
	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/queue"
	"ticketing/internal/repository"

	"github.com/google/uuid"
)

var (
	// ErrEmailTaken is returned when trying to register an existing email.
	ErrEmailTaken = apperrors.InvalidOperation("Email already registered")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = apperrors.Unauthorized("Invalid credentials")
	// ErrAccountInactive is returned when a deactivated user authenticates.
	ErrAccountInactive = apperrors.Forbidden("Account is deactivated")
	// ErrInvalidRefreshToken is returned when a refresh token is invalid, expired or superseded.
	ErrInvalidRefreshToken = apperrors.Unauthorized("Invalid refresh token")
	// ErrInvalidAccessToken is returned when an access token cannot be resolved to a user.
	ErrInvalidAccessToken = apperrors.Unauthorized("Invalid or expired token")
)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by credential-issuing operations.
type AuthResult struct {
	User         *model.User `json:"user,omitempty"`
	AccessToken  string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	Profile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	// Authenticate resolves an access token to an active user.
	Authenticate(ctx context.Context, accessToken string) (*model.User, *auth.Claims, error)
}

type authService struct {
	users      repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	publisher  queue.Publisher
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	publisher queue.Publisher,
	bcryptCost int,
	log *zap.Logger,
) AuthService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &authService{
		users:      users,
		jwtService: jwtService,
		tokenStore: tokenStore,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		log:        orNop(log),
		now:        time.Now,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a hashed password and signs them in.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err, "check user existence")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, internal(err, "hash password")
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hashed),
		Role:         model.RoleUser,
		Active:       true,
	}
	access, refresh, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	user.RefreshTokenID = refresh.ID

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, internal(err, "create user")
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))

	welcome := queue.Message{
		Type:       queue.UserRegistered,
		UserID:     user.ID,
		UserName:   user.Name,
		UserEmail:  user.Email,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, welcome); err != nil {
		s.log.Warn("publish welcome message failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return &AuthResult{User: user, AccessToken: access.Value, RefreshToken: refresh.Value}, nil
}

// Login verifies credentials and replaces the user's refresh token.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internal(err, "load user")
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, refresh, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.StartSession(ctx, user.ID, refresh.ID, now); err != nil {
		return nil, internal(err, "store session")
	}
	user.RefreshTokenID = refresh.ID
	user.LastLogin = &now

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	return &AuthResult{User: user, AccessToken: access.Value, RefreshToken: refresh.Value}, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token stops
// being valid as soon as the new one is stored.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, internal(err, "load user")
	}
	if user.RefreshTokenID == "" || user.RefreshTokenID != claims.ID {
		return nil, ErrInvalidRefreshToken
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}

	access, refresh, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.RotateRefreshToken(ctx, user.ID, claims.ID, refresh.ID); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, internal(err, "rotate refresh token")
	}
	return &AuthResult{AccessToken: access.Value, RefreshToken: refresh.Value}, nil
}

// Logout clears the refresh token and revokes the presented access token.
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return ErrInvalidAccessToken
	}
	if err := s.users.ClearRefreshToken(ctx, claims.UserID); err != nil {
		return internal(err, "clear session")
	}
	if claims.ExpiresAt != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if err := s.tokenStore.BlacklistAccessToken(ctx, claims.ID, ttl); err != nil {
			s.log.Warn("blacklist access token failed", zap.Error(err))
		}
	}
	s.log.Info("user logged out", zap.String("user_id", claims.UserID.String()))
	return nil
}

// Profile returns the user record.
func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, internal(err, "load user")
	}
	return user, nil
}

// Authenticate validates an access token, rejects revoked ones and loads the user.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*model.User, *auth.Claims, error) {
	claims, err := s.jwtService.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, nil, ErrInvalidAccessToken
	}
	revoked, err := s.tokenStore.IsAccessTokenBlacklisted(ctx, claims.ID)
	if err == nil && revoked {
		return nil, nil, apperrors.Unauthorized("Token has been revoked")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("User not found")
		}
		return nil, nil, internal(err, "load user")
	}
	if !user.Active {
		return nil, nil, ErrAccountInactive
	}
	return user, claims, nil
}

func (s *authService) issue(user *model.User) (access, refresh auth.Token, err error) {
	access, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return auth.Token{}, auth.Token{}, internal(err, "generate access token")
	}
	refresh, err = s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return auth.Token{}, auth.Token{}, internal(err, "generate refresh token")
	}
	return access, refresh, nil
}
