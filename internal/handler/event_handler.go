package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"ticketing/internal/middleware"
	"ticketing/internal/model"
	"ticketing/internal/service"
)

// EventHandler serves the event inventory.
type EventHandler struct {
	events service.EventService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(events service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// CreateEventRequest is the body of POST /events.
type CreateEventRequest struct {
	Name        string           `json:"name" validate:"required,min=3,max=100"`
	Description string           `json:"description" validate:"max=500"`
	Date        time.Time        `json:"date" validate:"required,future"`
	Capacity    int              `json:"capacity" validate:"required,min=1,max=10000"`
	Location    string           `json:"location" validate:"max=200"`
	Price       *decimal.Decimal `json:"price" swaggertype:"number"`
	Category    model.Category   `json:"category" validate:"omitempty,oneof=concert conference workshop sports other"`
}

// UpdateEventRequest is the body of PUT /events/:id. Absent fields are left unchanged.
type UpdateEventRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Date        *time.Time       `json:"date" validate:"omitempty,future"`
	Capacity    *int             `json:"capacity" validate:"omitempty,min=1,max=10000"`
	Location    *string          `json:"location" validate:"omitempty,max=200"`
	Price       *decimal.Decimal `json:"price" swaggertype:"number"`
	Category    *model.Category  `json:"category" validate:"omitempty,oneof=concert conference workshop sports other"`
	IsActive    *bool            `json:"isActive"`
}

// EventResponse wraps a single event.
type EventResponse struct {
	Event interface{} `json:"event"`
}

// Create godoc
// @Summary Create an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateEventRequest true "Event"
// @Success 201 {object} Response{data=EventResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	price := decimal.Zero
	if req.Price != nil {
		price = *req.Price
	}

	event, err := h.events.Create(c.Request().Context(), middleware.ActorFrom(c), service.EventInput{
		Name:        req.Name,
		Description: req.Description,
		Date:        req.Date,
		Capacity:    req.Capacity,
		Location:    req.Location,
		Price:       price,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Event created successfully", EventResponse{Event: event})
}

// List godoc
// @Summary List active events
// @Tags events
// @Produce json
// @Param start query string false "Earliest event date"
// @Param end query string false "Latest event date"
// @Param category query string false "Category"
// @Param organizer query string false "Organizer id"
// @Param search query string false "Search in name, description and location"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} Response{data=service.EventList}
// @Failure 400 {object} errors.ErrorResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	q := newQuery(c)
	in := service.EventQuery{
		Start:       q.date("start"),
		End:         q.date("end"),
		Category:    model.Category(strings.TrimSpace(c.QueryParam("category"))),
		OrganizerID: q.id("organizer"),
		Search:      strings.TrimSpace(c.QueryParam("search")),
		Page:        q.page(defaultPageLimit),
	}
	if err := q.err(); err != nil {
		return err
	}

	list, err := h.events.List(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Events retrieved", list)
}

// Get godoc
// @Summary Event detail with organizer and bookings
// @Tags events
// @Produce json
// @Param id path string true "Event id"
// @Success 200 {object} Response{data=EventResponse}
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	event, err := h.events.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Event retrieved", EventResponse{Event: event})
}

// Update godoc
// @Summary Update an event
// @Description Capacity may not drop below the seats already booked.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Param request body UpdateEventRequest true "Fields to change"
// @Success 200 {object} Response{data=EventResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	event, err := h.events.Update(c.Request().Context(), middleware.ActorFrom(c), id, service.EventPatch{
		Name:        req.Name,
		Description: req.Description,
		Date:        req.Date,
		Capacity:    req.Capacity,
		Location:    req.Location,
		Price:       req.Price,
		Category:    req.Category,
		Active:      req.IsActive,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Event updated successfully", EventResponse{Event: event})
}

// Delete godoc
// @Summary Delete an event
// @Description Events with bookings are deactivated instead of removed.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} Response
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.events.Delete(c.Request().Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	if result.Deactivated {
		return respond(c, http.StatusOK, result.Message, EventResponse{Event: result.Event})
	}
	return respond(c, http.StatusOK, result.Message, nil)
}

// Stats godoc
// @Summary Booking statistics of an event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} Response{data=service.EventStats}
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id}/stats [get]
func (h *EventHandler) Stats(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.events.Stats(c.Request().Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Event statistics retrieved", stats)
}
