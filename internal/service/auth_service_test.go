package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/auth"
	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/queue"
	"ticketing/internal/repository"
	"ticketing/internal/repository/memory"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter repository.UserFilter, page repository.Page) ([]model.User, int64, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockUserRepository) SetRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockUserRepository) StartSession(ctx context.Context, id uuid.UUID, tokenID string, at time.Time) error {
	args := m.Called(ctx, id, tokenID, at)
	return args.Error(0)
}

func (m *MockUserRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	args := m.Called(ctx, id, current, next)
	return args.Error(0)
}

func (m *MockUserRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		nameField     string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:      "successful registration",
			email:     "  Test@Example.com ",
			password:  "password123",
			nameField: "Test User",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(nil, repository.ErrNotFound)
				m.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
					return u.Email == "test@example.com" && u.Role == model.RoleUser && u.Active && u.RefreshTokenID != ""
				})).Return(nil)
			},
		},
		{
			name:      "email already registered",
			email:     "existing@example.com",
			password:  "password123",
			nameField: "Existing User",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{Email: "existing@example.com"}, nil)
			},
			expectedError: ErrEmailTaken,
		},
		{
			name:      "unique index race",
			email:     "race@example.com",
			password:  "password123",
			nameField: "Racer",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, repository.ErrNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(repository.ErrDuplicate)
			},
			expectedError: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)

			service := NewAuthService(mockRepo, newTestJWT(), new(MockTokenStore), nil, bcrypt.MinCost, nil)
			result, err := service.Register(context.Background(), RegisterInput{
				Name:     tt.nameField,
				Email:    tt.email,
				Password: tt.password,
			})

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "test@example.com", result.User.Email)
				assert.Equal(t, tt.nameField, result.User.Name)
				assert.NotEqual(t, tt.password, result.User.PasswordHash)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte(tt.password)))
				assert.NotEmpty(t, result.AccessToken)
				assert.NotEmpty(t, result.RefreshToken)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_RegisterPublishesWelcome(t *testing.T) {
	store := memory.NewStore()
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(m queue.Message) bool {
		return m.Type == queue.UserRegistered &&
			m.UserEmail == "cleo@example.com" &&
			m.UserName == "Cleo" &&
			m.UserID != uuid.Nil &&
			m.BookingID == uuid.Nil
	})).Return(nil).Once()
	service := NewAuthService(store.Users(), newTestJWT(), new(MockTokenStore), publisher, bcrypt.MinCost, nil)

	result, err := service.Register(context.Background(), RegisterInput{Name: "Cleo", Email: " Cleo@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "cleo@example.com", result.User.Email)
	publisher.AssertExpectations(t)
}

func TestAuthService_RegisterSucceedsWhenPublishFails(t *testing.T) {
	store := memory.NewStore()
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(queue.ErrPublishBufferFull)
	service := NewAuthService(store.Users(), newTestJWT(), new(MockTokenStore), publisher, bcrypt.MinCost, nil)

	result, err := service.Register(context.Background(), RegisterInput{Name: "Dev", Email: "dev@example.com", Password: "password123"})
	require.NoError(t, err)

	stored, err := store.Users().FindByID(context.Background(), result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", stored.Email)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestAuthService_Login(t *testing.T) {
	userID := uuid.New()
	hashed := hashPassword(t, "password123")

	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "test@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&model.User{
					ID: userID, Email: "test@example.com", PasswordHash: hashed, Role: model.RoleUser, Active: true,
				}, nil)
				m.On("StartSession", mock.Anything, userID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
			},
		},
		{
			name:     "unknown email",
			email:    "notfound@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			email:    "test@example.com",
			password: "wrong-password",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&model.User{
					ID: userID, Email: "test@example.com", PasswordHash: hashed, Active: true,
				}, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:     "deactivated account",
			email:    "test@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&model.User{
					ID: userID, Email: "test@example.com", PasswordHash: hashed, Active: false,
				}, nil)
			},
			expectedError: ErrAccountInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)

			service := NewAuthService(mockRepo, newTestJWT(), new(MockTokenStore), nil, bcrypt.MinCost, nil)
			result, err := service.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, result.AccessToken)
				assert.NotEmpty(t, result.RefreshToken)
				assert.NotNil(t, result.User.LastLogin)
				assert.NotEmpty(t, result.User.RefreshTokenID)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshRotatesToken(t *testing.T) {
	store := memory.NewStore()
	service := NewAuthService(store.Users(), newTestJWT(), new(MockTokenStore), nil, bcrypt.MinCost, nil)
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := service.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	_, err = service.Refresh(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = service.Refresh(ctx, refreshed.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = service.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	loggedIn, err := service.Login(ctx, "ANN@example.com", "password123")
	require.NoError(t, err)
	_, err = service.Refresh(ctx, refreshed.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = service.Refresh(ctx, loggedIn.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_RefreshRejectsDeactivatedUser(t *testing.T) {
	store := memory.NewStore()
	service := NewAuthService(store.Users(), newTestJWT(), new(MockTokenStore), nil, bcrypt.MinCost, nil)
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, store.Users().SetActive(ctx, registered.User.ID, false))

	_, err = service.Refresh(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAuthService_LogoutRevokesTokens(t *testing.T) {
	store := memory.NewStore()
	tokens := new(MockTokenStore)
	service := NewAuthService(store.Users(), newTestJWT(), tokens, nil, bcrypt.MinCost, nil)
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Name: "Cy", Email: "cy@example.com", Password: "password123"})
	require.NoError(t, err)

	tokens.On("IsAccessTokenBlacklisted", mock.Anything, mock.Anything).Return(false, nil).Once()
	user, claims, err := service.Authenticate(ctx, registered.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, user.ID)

	tokens.On("BlacklistAccessToken", mock.Anything, claims.ID, mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 0 && ttl <= 15*time.Minute
	})).Return(nil).Once()
	require.NoError(t, service.Logout(ctx, claims))

	_, err = service.Refresh(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	tokens.On("IsAccessTokenBlacklisted", mock.Anything, claims.ID).Return(true, nil).Once()
	_, _, err = service.Authenticate(ctx, registered.AccessToken)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	assert.Equal(t, "Token has been revoked", apperrors.MapErrorToHTTP(err).Message)

	tokens.AssertExpectations(t)
}

func TestAuthService_Authenticate(t *testing.T) {
	store := memory.NewStore()
	tokens := new(MockTokenStore)
	tokens.On("IsAccessTokenBlacklisted", mock.Anything, mock.Anything).Return(false, nil)
	jwtService := newTestJWT()
	service := NewAuthService(store.Users(), jwtService, tokens, nil, bcrypt.MinCost, nil)
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Name: "Di", Email: "di@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = service.Authenticate(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	ghost, err := jwtService.GenerateAccessToken(&model.User{ID: uuid.New(), Email: "ghost@example.com", Role: model.RoleUser})
	require.NoError(t, err)
	_, _, err = service.Authenticate(ctx, ghost.Value)
	assert.Equal(t, "User not found", apperrors.MapErrorToHTTP(err).Message)

	require.NoError(t, store.Users().SetActive(ctx, registered.User.ID, false))
	_, _, err = service.Authenticate(ctx, registered.AccessToken)
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestAuthService_Profile(t *testing.T) {
	mockRepo := new(MockUserRepository)
	id := uuid.New()
	mockRepo.On("FindByID", mock.Anything, id).Return(nil, repository.ErrNotFound)

	service := NewAuthService(mockRepo, newTestJWT(), new(MockTokenStore), nil, bcrypt.MinCost, nil)
	_, err := service.Profile(context.Background(), id)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	mockRepo.AssertExpectations(t)
}
