package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ticketing/internal/middleware"
	"ticketing/internal/model"
	"ticketing/internal/service"
)

// AdminHandler serves account management and system statistics.
type AdminHandler struct {
	admin    service.AdminService
	bookings service.BookingService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin service.AdminService, bookings service.BookingService) *AdminHandler {
	return &AdminHandler{admin: admin, bookings: bookings}
}

// UserResponse wraps a single user.
type UserResponse struct {
	User *model.User `json:"user"`
}

// StatsResponse wraps the system statistics.
type StatsResponse struct {
	Stats *service.SystemStats `json:"stats"`
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search in name and email"
// @Param role query string false "user or admin"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} Response{data=service.UserList}
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	q := newQuery(c)
	in := service.UserQuery{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Role:   model.Role(q.oneOf("role", "user", "admin")),
		Page:   q.page(adminPageLimit),
	}
	if err := q.err(); err != nil {
		return err
	}

	list, err := h.admin.ListUsers(c.Request().Context(), middleware.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Users retrieved", list)
}

// ToggleUserStatus godoc
// @Summary Activate or deactivate a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id}/toggle-status [put]
func (h *AdminHandler) ToggleUserStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.admin.ToggleUserStatus(c.Request().Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	state := "deactivated"
	if user.Active {
		state = "activated"
	}
	return respond(c, http.StatusOK, "User "+state+" successfully", UserResponse{User: user})
}

// PromoteToAdmin godoc
// @Summary Grant the admin role
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id}/promote [put]
func (h *AdminHandler) PromoteToAdmin(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.admin.PromoteToAdmin(c.Request().Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User promoted to admin successfully", UserResponse{User: user})
}

// ListBookings godoc
// @Summary List bookings of every user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, confirmed or cancelled"
// @Param start query string false "Earliest booking date"
// @Param end query string false "Latest booking date"
// @Param eventId query string false "Event id"
// @Param userId query string false "User id"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} Response{data=service.BookingList}
// @Router /admin/bookings [get]
func (h *AdminHandler) ListBookings(c echo.Context) error {
	q := newQuery(c)
	in := service.BookingQuery{
		Status:  model.BookingStatus(q.oneOf("status", "pending", "confirmed", "cancelled")),
		Start:   q.date("start"),
		End:     q.date("end"),
		EventID: q.id("eventId"),
		UserID:  q.id("userId"),
		Page:    q.page(adminPageLimit),
	}
	if err := q.err(); err != nil {
		return err
	}

	list, err := h.bookings.ListAll(c.Request().Context(), middleware.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "All bookings retrieved", list)
}

// Stats godoc
// @Summary System statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=StatsResponse}
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.admin.SystemStats(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "System statistics retrieved", StatsResponse{Stats: stats})
}
