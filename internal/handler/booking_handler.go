package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"ticketing/internal/middleware"
	"ticketing/internal/model"
	"ticketing/internal/service"
)

// BookingHandler serves the booking lifecycle.
type BookingHandler struct {
	bookings service.BookingService
	now      func() time.Time
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(bookings service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings, now: time.Now}
}

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	EventID       string              `json:"eventId" validate:"required,uuid"`
	Tickets       int                 `json:"tickets" validate:"required,min=1,max=10"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" validate:"omitempty,oneof=card paypal bank_transfer cash"`
	PaymentID     string              `json:"paymentId" validate:"max=100"`
}

// CancelBookingRequest is the optional body of PUT /bookings/:id/cancel.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// BookingResponse wraps a single booking.
type BookingResponse struct {
	Booking *model.BookingView `json:"booking"`
}

var exportHeader = []string{
	"Booking ID", "Event Name", "Event Date", "User Name", "User Email",
	"Tickets", "Total Amount", "Booking Date", "Payment Method",
}

// Create godoc
// @Summary Book tickets for an event
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBookingRequest true "Booking"
// @Success 201 {object} Response{data=BookingResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req CreateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	booking, err := h.bookings.Create(c.Request().Context(), middleware.ActorFrom(c), service.CreateBookingInput{
		EventID:       uuid.MustParse(req.EventID),
		Tickets:       req.Tickets,
		PaymentMethod: req.PaymentMethod,
		PaymentID:     req.PaymentID,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Booking created successfully", BookingResponse{Booking: booking})
}

// MyBookings godoc
// @Summary Bookings of the current user
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, confirmed or cancelled"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} Response{data=service.BookingList}
// @Router /bookings/my-bookings [get]
func (h *BookingHandler) MyBookings(c echo.Context) error {
	q := newQuery(c)
	in := service.BookingQuery{
		Status: model.BookingStatus(q.oneOf("status", "pending", "confirmed", "cancelled")),
		Page:   q.page(defaultPageLimit),
	}
	if err := q.err(); err != nil {
		return err
	}

	list, err := h.bookings.ListUserBookings(c.Request().Context(), middleware.ActorFrom(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Bookings retrieved", list)
}

// Get godoc
// @Summary Booking detail
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking id"
// @Success 200 {object} Response{data=BookingResponse}
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	booking, err := h.bookings.GetByID(c.Request().Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Booking retrieved", BookingResponse{Booking: booking})
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Not allowed within 24 hours of the event.
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking id"
// @Param request body CancelBookingRequest false "Reason"
// @Success 200 {object} Response{data=BookingResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /bookings/{id}/cancel [put]
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CancelBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	booking, err := h.bookings.Cancel(c.Request().Context(), middleware.ActorFrom(c), id, req.Reason)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Booking cancelled successfully", BookingResponse{Booking: booking})
}

// Export godoc
// @Summary Export confirmed bookings as CSV
// @Tags bookings
// @Produce text/csv
// @Security BearerAuth
// @Param start query string false "Earliest booking date"
// @Param end query string false "Latest booking date"
// @Param eventId query string false "Event id"
// @Success 200 {file} file
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c echo.Context) error {
	q := newQuery(c)
	in := service.BookingQuery{
		Start:   q.date("start"),
		End:     q.date("end"),
		EventID: q.id("eventId"),
	}
	if err := q.err(); err != nil {
		return err
	}

	bookings, err := h.bookings.Export(c.Request().Context(), middleware.ActorFrom(c), in)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=bookings_%d.csv", h.now().UnixMilli()))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, b := range bookings {
		if err := w.Write(exportRow(b)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

const csvDateLayout = "2006-01-02"

func exportRow(b model.BookingView) []string {
	var eventName, eventDate, userName, userEmail string
	if b.Event != nil {
		eventName = b.Event.Name
		eventDate = b.Event.Date.UTC().Format(csvDateLayout)
	}
	if b.User != nil {
		userName = b.User.Name
		userEmail = b.User.Email
	}
	return []string{
		b.ID.String(),
		eventName,
		eventDate,
		userName,
		userEmail,
		strconv.Itoa(b.Tickets),
		b.TotalAmount.StringFixed(2),
		b.BookingDate.UTC().Format(csvDateLayout),
		string(b.PaymentMethod),
	}
}
