package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ticketing/internal/cache"
	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/policy"
	"ticketing/internal/queue"
	"ticketing/internal/repository"
)

const (
	// MaxTicketsPerBooking bounds the ticket count of a single booking.
	MaxTicketsPerBooking = 10
	// CancellationCutoff is the minimum time left before an event for a booking to be cancelled.
	CancellationCutoff = 24 * time.Hour
	// DefaultBookingRetries bounds optimistic concurrency retries when no value is configured.
	DefaultBookingRetries = 5
)

// CreateBookingInput is the payload of a booking request.
type CreateBookingInput struct {
	EventID       uuid.UUID
	Tickets       int
	PaymentMethod model.PaymentMethod
	PaymentID     string
}

// BookingQuery filters booking listings.
type BookingQuery struct {
	Status  model.BookingStatus
	Start   *time.Time
	End     *time.Time
	EventID *uuid.UUID
	UserID  *uuid.UUID
	Page    repository.Page
}

// BookingList is one page of bookings.
type BookingList struct {
	Bookings   []model.BookingView `json:"bookings"`
	Pagination Pagination          `json:"pagination"`
}

// BookingService is the booking lifecycle manager. It couples every booking write
// with the matching seat adjustment in a single unit of work.
type BookingService interface {
	Create(ctx context.Context, actor policy.Actor, in CreateBookingInput) (*model.BookingView, error)
	Cancel(ctx context.Context, actor policy.Actor, bookingID uuid.UUID, reason string) (*model.BookingView, error)
	ListUserBookings(ctx context.Context, actor policy.Actor, q BookingQuery) (*BookingList, error)
	GetByID(ctx context.Context, actor policy.Actor, bookingID uuid.UUID) (*model.BookingView, error)
	Export(ctx context.Context, actor policy.Actor, q BookingQuery) ([]model.BookingView, error)
	ListAll(ctx context.Context, actor policy.Actor, q BookingQuery) (*BookingList, error)
}

type bookingService struct {
	store      repository.Store
	events     eventCache
	publisher  queue.Publisher
	log        *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewBookingService creates a new booking service.
func NewBookingService(
	store repository.Store,
	cacheClient *cache.Client,
	publisher queue.Publisher,
	log *zap.Logger,
	maxRetries int,
) BookingService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if maxRetries <= 0 {
		maxRetries = DefaultBookingRetries
	}
	return &bookingService{
		store:      store,
		events:     eventCache{client: cacheClient},
		publisher:  publisher,
		log:        orNop(log),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Create books tickets for the acting user. Preconditions are evaluated in order against
// a locked read of the event, then the booking row and the seat decrement commit together.
func (s *bookingService) Create(ctx context.Context, actor policy.Actor, in CreateBookingInput) (*model.BookingView, error) {
	if err := policy.Authenticated.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	if in.Tickets < 1 || in.Tickets > MaxTicketsPerBooking {
		return nil, apperrors.Validation("Validation failed", apperrors.FieldError{
			Field: "tickets", Message: "tickets must be between 1 and 10",
		})
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentMethodCard
	}

	user, err := s.store.Users().FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("User not found")
		}
		return nil, internal(err, "load user")
	}

	var booking *model.Booking
	var event *model.Event
	err = s.withRetry(ctx, func() error {
		return s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
			ev, err := tx.Events().FindByIDForUpdate(ctx, in.EventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NotFound("Event not found or inactive")
				}
				return err
			}
			if !ev.Active {
				return apperrors.NotFound("Event not found or inactive")
			}
			now := s.now()
			if !ev.Date.After(now) {
				return apperrors.InvalidOperation("Cannot book past events")
			}
			if ev.AvailableSeats < in.Tickets {
				return apperrors.InvalidOperation("Only %d seats available", ev.AvailableSeats)
			}
			if _, err := tx.Bookings().FindConfirmed(ctx, actor.UserID, ev.ID); err == nil {
				return apperrors.InvalidOperation("You have already booked this event")
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}

			b := &model.Booking{
				UserID:        actor.UserID,
				EventID:       ev.ID,
				Tickets:       in.Tickets,
				TotalAmount:   ev.Price.Mul(decimal.NewFromInt(int64(in.Tickets))),
				Status:        model.BookingStatusConfirmed,
				PaymentMethod: in.PaymentMethod,
				PaymentID:     in.PaymentID,
				BookingDate:   now,
			}
			if err := tx.Bookings().Create(ctx, b); err != nil {
				return err
			}
			if err := tx.Events().AdjustSeats(ctx, ev.ID, ev.Version, -in.Tickets); err != nil {
				return err
			}
			ev.AvailableSeats -= in.Tickets
			ev.Version++
			booking, event = b, ev
			return nil
		})
	})
	if err != nil {
		return nil, passthrough(err, "create booking")
	}

	s.events.invalidate(ctx, event.ID)
	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("user", user.Email),
		zap.Int("tickets", booking.Tickets),
		zap.Int("available_seats", event.AvailableSeats),
	)
	s.publish(ctx, queue.BookingConfirmed, booking, event, user)

	return &model.BookingView{Booking: *booking, Event: event.Summary(), User: user.Summary()}, nil
}

// Cancel cancels a confirmed booking of the acting user and returns its seats.
func (s *bookingService) Cancel(ctx context.Context, actor policy.Actor, bookingID uuid.UUID, reason string) (*model.BookingView, error) {
	if err := policy.Authenticated.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}

	var booking *model.Booking
	var event *model.Event
	err := s.withRetry(ctx, func() error {
		return s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
			b, err := tx.Bookings().FindByID(ctx, bookingID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if b == nil || b.UserID != actor.UserID || b.Status != model.BookingStatusConfirmed {
				return apperrors.NotFound("Booking not found or already cancelled")
			}
			ev, err := tx.Events().FindByIDForUpdate(ctx, b.EventID)
			if err != nil {
				return err
			}
			now := s.now()
			if ev.Date.Sub(now) < CancellationCutoff {
				return apperrors.InvalidOperation("Cannot cancel booking within 24 hours of event")
			}

			if err := tx.Bookings().MarkCancelled(ctx, b.ID, reason, now); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NotFound("Booking not found or already cancelled")
				}
				return err
			}
			if err := tx.Events().AdjustSeats(ctx, ev.ID, ev.Version, b.Tickets); err != nil {
				return err
			}
			b.Status = model.BookingStatusCancelled
			b.CancellationReason = reason
			b.CancelledAt = &now
			ev.AvailableSeats += b.Tickets
			ev.Version++
			booking, event = b, ev
			return nil
		})
	})
	if err != nil {
		return nil, passthrough(err, "cancel booking")
	}

	s.events.invalidate(ctx, event.ID)
	s.log.Info("booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("user", actor.Email),
		zap.Int("available_seats", event.AvailableSeats),
	)

	user, err := s.store.Users().FindByID(ctx, actor.UserID)
	if err != nil {
		user = &model.User{ID: actor.UserID, Email: actor.Email}
	}
	s.publish(ctx, queue.BookingCancelled, booking, event, user)

	return &model.BookingView{Booking: *booking, Event: event.Summary(), User: user.Summary()}, nil
}

// ListUserBookings lists the acting user's bookings, newest first.
func (s *bookingService) ListUserBookings(ctx context.Context, actor policy.Actor, q BookingQuery) (*BookingList, error) {
	if err := policy.Authenticated.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	q.UserID = &actor.UserID
	return s.list(ctx, q)
}

// GetByID returns a booking visible to its owner or an admin.
func (s *bookingService) GetByID(ctx context.Context, actor policy.Actor, bookingID uuid.UUID) (*model.BookingView, error) {
	b, err := s.store.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Booking not found")
		}
		return nil, internal(err, "load booking")
	}
	if !policy.AdminOrOwner.Allows(actor, b.UserID) {
		return nil, apperrors.Forbidden("Not authorized to view this booking")
	}
	views, err := bookingViews(ctx, s.store, []model.Booking{*b})
	if err != nil {
		return nil, internal(err, "load booking")
	}
	return &views[0], nil
}

// Export returns every confirmed booking matching q for CSV rendering.
func (s *bookingService) Export(ctx context.Context, actor policy.Actor, q BookingQuery) ([]model.BookingView, error) {
	if err := policy.AdminOnly.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	bookings, _, err := s.store.Bookings().List(ctx, repository.BookingFilter{
		EventID: q.EventID,
		Status:  model.BookingStatusConfirmed,
		Start:   q.Start,
		End:     q.End,
	}, repository.Page{})
	if err != nil {
		return nil, internal(err, "export bookings")
	}
	if len(bookings) == 0 {
		return nil, apperrors.NotFound("No bookings found for the given criteria")
	}
	views, err := bookingViews(ctx, s.store, bookings)
	if err != nil {
		return nil, internal(err, "export bookings")
	}
	s.log.Info("bookings exported", zap.String("admin", actor.Email), zap.Int("count", len(views)))
	return views, nil
}

// ListAll lists bookings of every user.
func (s *bookingService) ListAll(ctx context.Context, actor policy.Actor, q BookingQuery) (*BookingList, error) {
	if err := policy.AdminOnly.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	return s.list(ctx, q)
}

func (s *bookingService) list(ctx context.Context, q BookingQuery) (*BookingList, error) {
	bookings, total, err := s.store.Bookings().List(ctx, repository.BookingFilter{
		UserID:  q.UserID,
		EventID: q.EventID,
		Status:  q.Status,
		Start:   q.Start,
		End:     q.End,
	}, q.Page)
	if err != nil {
		return nil, internal(err, "list bookings")
	}
	views, err := bookingViews(ctx, s.store, bookings)
	if err != nil {
		return nil, internal(err, "list bookings")
	}
	return &BookingList{Bookings: views, Pagination: newPagination(q.Page, total)}, nil
}

// withRetry runs op until it stops failing with a version conflict.
func (s *bookingService) withRetry(ctx context.Context, op func() error) error {
	err := retryConflicts(ctx, s.maxRetries, op)
	if errors.Is(err, repository.ErrVersionConflict) {
		s.log.Warn("inventory conflict retries exhausted", zap.Int("attempts", s.maxRetries))
		return apperrors.InvalidOperation("Seats no longer available")
	}
	return err
}

func (s *bookingService) publish(ctx context.Context, typ queue.EventType, b *model.Booking, e *model.Event, u *model.User) {
	msg := queue.Message{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     u.ID,
		UserName:   u.Name,
		UserEmail:  u.Email,
		EventID:    e.ID,
		EventName:  e.Name,
		EventDate:  e.Date,
		Location:   e.Location,
		Tickets:    b.Tickets,
		Total:      b.TotalAmount,
		Reason:     b.CancellationReason,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn("publish booking event failed",
			zap.String("type", string(typ)),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
	}
}
