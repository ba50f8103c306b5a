package router

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/auth"
	"ticketing/internal/config"
	"ticketing/internal/handler"
	"ticketing/internal/repository/memory"
	"ticketing/internal/seed"
	"ticketing/internal/service"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
)

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type testApp struct {
	t     *testing.T
	e     *echo.Echo
	store *memory.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := &config.Config{
		CORSOrigins:       []string{"*"},
		BookingMaxRetries: 5,
		RateLimit:         config.RateLimitConfig{Enabled: false},
	}
	store := memory.NewStore()
	_, err := seed.Admin(context.Background(), store, config.AdminConfig{
		Name:     "Admin",
		Email:    adminEmail,
		Password: adminPassword,
	}, bcrypt.MinCost, zap.NewNop())
	require.NoError(t, err)

	jwtService := auth.NewJWTService("router-test-secret", 15*time.Minute, time.Hour)
	authService := service.NewAuthService(store.Users(), jwtService, auth.NewTokenStore(nil), nil, bcrypt.MinCost, nil)
	events := service.NewEventService(store, nil, nil, cfg.BookingMaxRetries)
	bookings := service.NewBookingService(store, nil, nil, nil, cfg.BookingMaxRetries)
	admin := service.NewAdminService(store, nil)

	e := New(Dependencies{
		Config:      cfg,
		AuthService: authService,
		Auth:        handler.NewAuthHandler(authService, bookings),
		Events:      handler.NewEventHandler(events),
		Bookings:    handler.NewBookingHandler(bookings),
		Admin:       handler.NewAdminHandler(admin, bookings),
		Health:      handler.NewHealthHandler(),
	})
	return &testApp{t: t, e: e, store: store}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func (a *testApp) login(email, password string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.AuthResult
	require.NoError(a.t, json.Unmarshal(decode(a.t, rec).Data, &result))
	return result.AccessToken
}

func (a *testApp) register(name, email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123", "confirmPassword": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var result service.AuthResult
	require.NoError(a.t, json.Unmarshal(decode(a.t, rec).Data, &result))
	return result.AccessToken
}

func (a *testApp) createEvent(token string, capacity int) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/events", token, map[string]interface{}{
		"name":     "Harbour Lights Festival",
		"date":     time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"capacity": capacity,
		"price":    20,
		"category": "concert",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var data struct {
		Event struct {
			ID string `json:"id"`
		} `json:"event"`
	}
	require.NoError(a.t, json.Unmarshal(decode(a.t, rec).Data, &data))
	return data.Event.ID
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body handler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.NotEmpty(t, body.Timestamp)
}

func TestRegister_ValidationEnvelope(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "A", "email": "not-an-email", "password": "secret123", "confirmPassword": "different",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Validation failed", env.Message)
	messages := map[string]string{}
	for _, f := range env.Errors {
		messages[f.Field] = f.Message
	}
	assert.Contains(t, messages, "name")
	assert.Equal(t, "email must be a valid email", messages["email"])
	assert.Equal(t, "Passwords do not match", messages["confirmPassword"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	app.register("Dana", "dana@example.com")

	rec := app.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Dana Again", "email": "DANA@example.com", "password": "secret123", "confirmPassword": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decode(t, rec).Message)
}

func TestAuthentication(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing token", "", "No token provided"},
		{"malformed token", "Bearer not-a-jwt", "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			app.e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec).Message)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": adminEmail, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec).Message)
}

func TestRefresh_MissingToken(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token required", decode(t, rec).Message)
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	app := newTestApp(t)
	userToken := app.register("Riley", "riley@example.com")

	for _, path := range []string{"/api/v1/admin/users", "/api/v1/admin/stats", "/api/v1/bookings/export"} {
		rec := app.do(http.MethodGet, path, userToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "Access denied. Insufficient permissions", decode(t, rec).Message, path)
	}

	rec := app.do(http.MethodPost, "/api/v1/events", userToken, map[string]interface{}{
		"name": "Not Allowed", "date": time.Now().Add(72 * time.Hour).Format(time.RFC3339), "capacity": 10,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := app.login(adminEmail, adminPassword)
	rec = app.do(http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminListings_DefaultPageSize(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 21; i++ {
		app.register(fmt.Sprintf("Member %02d", i), fmt.Sprintf("member%02d@example.com", i))
	}
	adminToken := app.login(adminEmail, adminPassword)

	rec := app.do(http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users service.UserList
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &users))
	assert.Len(t, users.Users, 20)
	assert.Equal(t, 20, users.Pagination.Limit)
	assert.Equal(t, int64(22), users.Pagination.Total)
	assert.True(t, users.Pagination.HasNext)

	rec = app.do(http.MethodGet, "/api/v1/admin/users?limit=5", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &users))
	assert.Len(t, users.Users, 5)

	rec = app.do(http.MethodGet, "/api/v1/admin/bookings", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bookings service.BookingList
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &bookings))
	assert.Equal(t, 20, bookings.Pagination.Limit)

	rec = app.do(http.MethodGet, "/api/v1/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events service.EventList
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &events))
	assert.Equal(t, 10, events.Pagination.Limit)
}

func TestEvents_PublicListing(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.login(adminEmail, adminPassword)
	eventID := app.createEvent(adminToken, 50)

	rec := app.do(http.MethodGet, "/api/v1/events?category=concert", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), eventID)

	rec = app.do(http.MethodGet, "/api/v1/events/"+eventID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/api/v1/events?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/api/v1/events/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.login(adminEmail, adminPassword)
	eventID := app.createEvent(adminToken, 5)
	userToken := app.register("Morgan", "morgan@example.com")

	rec := app.do(http.MethodPost, "/api/v1/bookings", userToken, map[string]interface{}{
		"eventId": eventID, "tickets": 6,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only 5 seats available", decode(t, rec).Message)

	rec = app.do(http.MethodPost, "/api/v1/bookings", userToken, map[string]interface{}{
		"eventId": eventID, "tickets": 2, "paymentMethod": "paypal",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Booking struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			TotalAmount string `json:"totalAmount"`
		} `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	assert.Equal(t, "confirmed", created.Booking.Status)
	assert.Equal(t, "40", created.Booking.TotalAmount)

	rec = app.do(http.MethodPost, "/api/v1/bookings", userToken, map[string]interface{}{
		"eventId": eventID, "tickets": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/api/v1/auth/profile", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Booking.ID)

	// another user can neither see nor cancel it
	otherToken := app.register("Quinn", "quinn@example.com")
	rec = app.do(http.MethodGet, "/api/v1/bookings/"+created.Booking.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(http.MethodPut, "/api/v1/bookings/"+created.Booking.ID+"/cancel", otherToken, map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodGet, "/api/v1/bookings/export", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentDisposition), "attachment; filename=bookings_"))
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Booking ID", rows[0][0])
	assert.Equal(t, created.Booking.ID, rows[1][0])
	assert.Equal(t, "morgan@example.com", rows[1][4])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, rows[1][2])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, rows[1][7])
	assert.Equal(t, "paypal", rows[1][8])

	rec = app.do(http.MethodPut, "/api/v1/bookings/"+created.Booking.ID+"/cancel", userToken, map[string]string{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = app.do(http.MethodGet, "/api/v1/events/"+eventID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"availableSeats":5`)

	rec = app.do(http.MethodGet, "/api/v1/bookings/export", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_ToggleStatusBlocksLogin(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.login(adminEmail, adminPassword)
	userToken := app.register("Sam", "sam@example.com")

	rec := app.do(http.MethodGet, "/api/v1/auth/profile", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &profile))

	rec = app.do(http.MethodPut, "/api/v1/admin/users/"+profile.User.ID+"/toggle-status", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User deactivated successfully", decode(t, rec).Message)

	rec = app.do(http.MethodGet, "/api/v1/auth/profile", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "sam@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Account is deactivated", decode(t, rec).Message)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)
}
