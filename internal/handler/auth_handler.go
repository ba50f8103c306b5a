package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "ticketing/internal/errors"
	"ticketing/internal/middleware"
	"ticketing/internal/model"
	"ticketing/internal/repository"
	"ticketing/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService    service.AuthService
	bookingService service.BookingService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, bookingService service.BookingService) *AuthHandler {
	return &AuthHandler{authService: authService, bookingService: bookingService}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ProfileResponse is the authenticated user with their bookings.
type ProfileResponse struct {
	User     *model.User         `json:"user"`
	Bookings []model.BookingView `json:"bookings"`
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} Response{data=service.AuthResult}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully", result)
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} Response{data=service.AuthResult}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful", result)
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} Response{data=service.AuthResult}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return apperrors.Validation("Refresh token required")
	}

	result, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Token refreshed", result)
}

// Profile godoc
// @Summary Current user with their bookings
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=ProfileResponse}
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	ctx := c.Request().Context()

	user, err := h.authService.Profile(ctx, actor.UserID)
	if err != nil {
		return err
	}
	bookings, err := h.bookingService.ListUserBookings(ctx, actor, service.BookingQuery{Page: repository.Page{}})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile retrieved", ProfileResponse{User: user, Bookings: bookings.Bookings})
}

// Logout godoc
// @Summary Logout user
// @Description Revokes the presented access token and the stored refresh token.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperrors.Unauthorized("No token provided")
	}
	if err := h.authService.Logout(c.Request().Context(), principal.Claims); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logged out successfully", nil)
}
