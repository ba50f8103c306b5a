package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ticketing/internal/cache"
	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/policy"
	"ticketing/internal/repository"
)

const (
	MinCapacity     = 1
	MaxCapacity     = 10000
	DefaultLocation = "Online"
)

// EventInput is the payload of CreateEvent.
type EventInput struct {
	Name        string
	Description string
	Date        time.Time
	Capacity    int
	Location    string
	Price       decimal.Decimal
	Category    model.Category
}

// EventPatch holds the fields UpdateEvent may change. Nil fields are left untouched.
type EventPatch struct {
	Name        *string
	Description *string
	Date        *time.Time
	Capacity    *int
	Location    *string
	Price       *decimal.Decimal
	Category    *model.Category
	Active      *bool
}

// EventQuery filters the public event listing.
type EventQuery struct {
	Start       *time.Time
	End         *time.Time
	Category    model.Category
	OrganizerID *uuid.UUID
	Search      string
	Page        repository.Page
}

// EventList is one page of events.
type EventList struct {
	Events     []model.EventView `json:"events"`
	Pagination Pagination        `json:"pagination"`
}

// DeleteResult reports whether an event was removed or only deactivated.
type DeleteResult struct {
	Event       *model.Event `json:"event,omitempty"`
	Deleted     bool         `json:"deleted,omitempty"`
	Deactivated bool         `json:"deactivated,omitempty"`
	Message     string       `json:"-"`
}

// EventStats aggregates the confirmed bookings of one event.
type EventStats struct {
	Event struct {
		Name           string `json:"name"`
		Capacity       int    `json:"capacity"`
		AvailableSeats int    `json:"availableSeats"`
		BookedSeats    int    `json:"bookedSeats"`
		OccupancyRate  string `json:"occupancyRate"`
	} `json:"event"`
	Bookings struct {
		TotalTickets int64           `json:"totalTickets"`
		TotalRevenue decimal.Decimal `json:"totalRevenue"`
		BookingCount int64           `json:"bookingCount"`
	} `json:"bookings"`
}

// EventService manages the event inventory.
type EventService interface {
	Create(ctx context.Context, actor policy.Actor, in EventInput) (*model.Event, error)
	List(ctx context.Context, q EventQuery) (*EventList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.EventView, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, patch EventPatch) (*model.Event, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) (*DeleteResult, error)
	Stats(ctx context.Context, actor policy.Actor, id uuid.UUID) (*EventStats, error)
}

type eventService struct {
	store      repository.Store
	cache      eventCache
	log        *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewEventService creates a new event service.
func NewEventService(store repository.Store, cacheClient *cache.Client, log *zap.Logger, maxRetries int) EventService {
	if maxRetries <= 0 {
		maxRetries = DefaultBookingRetries
	}
	return &eventService{
		store:      store,
		cache:      eventCache{client: cacheClient},
		log:        orNop(log),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Create persists a new event with every seat available.
func (s *eventService) Create(ctx context.Context, actor policy.Actor, in EventInput) (*model.Event, error) {
	if err := policy.AdminOnly.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	if fields := s.validate(in.Date, in.Capacity, in.Price); len(fields) > 0 {
		return nil, apperrors.Validation("Validation failed", fields...)
	}
	if strings.TrimSpace(in.Location) == "" {
		in.Location = DefaultLocation
	}
	if in.Category == "" {
		in.Category = model.CategoryOther
	}

	event := &model.Event{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Date:           in.Date,
		Capacity:       in.Capacity,
		AvailableSeats: in.Capacity,
		Location:       strings.TrimSpace(in.Location),
		Price:          in.Price,
		Category:       in.Category,
		OrganizerID:    actor.UserID,
		Active:         true,
	}
	if err := s.store.Events().Create(ctx, event); err != nil {
		return nil, internal(err, "create event")
	}

	s.log.Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("name", event.Name),
		zap.String("organizer", actor.Email),
	)
	return event, nil
}

func (s *eventService) validate(date time.Time, capacity int, price decimal.Decimal) []apperrors.FieldError {
	var fields []apperrors.FieldError
	if !date.After(s.now()) {
		fields = append(fields, apperrors.FieldError{Field: "date", Message: "date must be in the future"})
	}
	if capacity < MinCapacity || capacity > MaxCapacity {
		fields = append(fields, apperrors.FieldError{Field: "capacity", Message: "capacity must be between 1 and 10000"})
	}
	if price.IsNegative() {
		fields = append(fields, apperrors.FieldError{Field: "price", Message: "price must be greater than or equal to 0"})
	}
	return fields
}

// List returns active events sorted by date.
func (s *eventService) List(ctx context.Context, q EventQuery) (*EventList, error) {
	events, total, err := s.store.Events().List(ctx, repository.EventFilter{
		ActiveOnly:  true,
		Start:       q.Start,
		End:         q.End,
		Category:    q.Category,
		OrganizerID: q.OrganizerID,
		Search:      q.Search,
	}, q.Page)
	if err != nil {
		return nil, internal(err, "list events")
	}

	organizers, err := s.organizers(ctx, events)
	if err != nil {
		return nil, internal(err, "list events")
	}
	views := make([]model.EventView, 0, len(events))
	for _, e := range events {
		views = append(views, model.EventView{Event: e, Organizer: organizers[e.OrganizerID]})
	}
	return &EventList{Events: views, Pagination: newPagination(q.Page, total)}, nil
}

func (s *eventService) organizers(ctx context.Context, events []model.Event) (map[uuid.UUID]*model.UserSummary, error) {
	ids := make([]uuid.UUID, 0, len(events))
	seen := map[uuid.UUID]bool{}
	for _, e := range events {
		if !seen[e.OrganizerID] {
			seen[e.OrganizerID] = true
			ids = append(ids, e.OrganizerID)
		}
	}
	users, err := s.store.Users().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*model.UserSummary, len(users))
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

// Get returns an active event with its organizer and bookings. The bookings are always
// read from the store.
func (s *eventService) Get(ctx context.Context, id uuid.UUID) (*model.EventView, error) {
	event, ok := s.cache.get(ctx, id)
	if !ok {
		var err error
		event, err = s.store.Events().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound("Event not found")
			}
			return nil, internal(err, "load event")
		}
		s.cache.put(ctx, event)
	}
	if !event.Active {
		return nil, apperrors.NotFound("Event not found")
	}

	bookings, _, err := s.store.Bookings().List(ctx, repository.BookingFilter{EventID: &event.ID}, repository.Page{})
	if err != nil {
		return nil, internal(err, "load event bookings")
	}
	views, err := bookingViews(ctx, s.store, bookings)
	if err != nil {
		return nil, internal(err, "load event bookings")
	}
	organizer, err := s.store.Users().FindByID(ctx, event.OrganizerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err, "load organizer")
	}

	view := &model.EventView{Event: *event, Bookings: make([]model.BookingEntry, 0, len(views))}
	if organizer != nil {
		view.Organizer = organizer.Summary()
	}
	for _, b := range views {
		view.Bookings = append(view.Bookings, model.BookingEntry{
			ID:          b.ID,
			User:        b.User,
			Tickets:     b.Tickets,
			Status:      b.Status,
			BookingDate: b.BookingDate,
		})
	}
	return view, nil
}

// Update applies patch for an admin or the event's organizer. A capacity change may not
// drop below the seats already booked and shifts availableSeats by the same delta.
func (s *eventService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, patch EventPatch) (*model.Event, error) {
	var updated *model.Event
	err := s.retry(ctx, func(ctx context.Context, tx repository.Store) error {
		event, err := s.loadAuthorized(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		expected := event.Version
		if err := s.apply(event, patch); err != nil {
			return err
		}
		if err := tx.Events().Update(ctx, event, expected); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "update event")
	}

	s.cache.invalidate(ctx, id)
	s.log.Info("event updated", zap.String("event_id", id.String()), zap.String("by", actor.Email))
	return updated, nil
}

func (s *eventService) apply(event *model.Event, p EventPatch) error {
	var fields []apperrors.FieldError
	if p.Date != nil && !p.Date.After(s.now()) {
		fields = append(fields, apperrors.FieldError{Field: "date", Message: "date must be in the future"})
	}
	if p.Capacity != nil && (*p.Capacity < MinCapacity || *p.Capacity > MaxCapacity) {
		fields = append(fields, apperrors.FieldError{Field: "capacity", Message: "capacity must be between 1 and 10000"})
	}
	if p.Price != nil && p.Price.IsNegative() {
		fields = append(fields, apperrors.FieldError{Field: "price", Message: "price must be greater than or equal to 0"})
	}
	if len(fields) > 0 {
		return apperrors.Validation("Validation failed", fields...)
	}

	if p.Capacity != nil && *p.Capacity != event.Capacity {
		booked := event.BookedSeats()
		if *p.Capacity < booked {
			return apperrors.InvalidOperation("New capacity cannot be less than booked seats (%d booked)", booked)
		}
		event.AvailableSeats += *p.Capacity - event.Capacity
		event.Capacity = *p.Capacity
	}
	if p.Name != nil {
		event.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		event.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		event.Date = *p.Date
	}
	if p.Location != nil {
		event.Location = strings.TrimSpace(*p.Location)
	}
	if p.Price != nil {
		event.Price = *p.Price
	}
	if p.Category != nil {
		event.Category = *p.Category
	}
	if p.Active != nil {
		event.Active = *p.Active
	}
	return nil
}

// Delete hard-deletes an event without bookings. An event with any booking, cancelled
// ones included, is deactivated instead.
func (s *eventService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) (*DeleteResult, error) {
	var result *DeleteResult
	err := s.retry(ctx, func(ctx context.Context, tx repository.Store) error {
		event, err := s.loadAuthorized(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		count, err := tx.Bookings().CountByEvent(ctx, id)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := tx.Events().Delete(ctx, id); err != nil {
				return err
			}
			result = &DeleteResult{Deleted: true, Message: "Event deleted successfully"}
			return nil
		}

		expected := event.Version
		event.Active = false
		if err := tx.Events().Update(ctx, event, expected); err != nil {
			return err
		}
		result = &DeleteResult{Event: event, Deactivated: true, Message: "Event deactivated (has existing bookings)"}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "delete event")
	}

	s.cache.invalidate(ctx, id)
	s.log.Info("event removed",
		zap.String("event_id", id.String()),
		zap.Bool("deactivated", result.Deactivated),
		zap.String("by", actor.Email),
	)
	return result, nil
}

// Stats aggregates confirmed bookings of an event for an admin or its organizer.
func (s *eventService) Stats(ctx context.Context, actor policy.Actor, id uuid.UUID) (*EventStats, error) {
	event, err := s.loadAuthorized(ctx, s.store, actor, id, false)
	if err != nil {
		return nil, passthrough(err, "load event stats")
	}
	totals, err := s.store.Bookings().Totals(ctx, repository.BookingFilter{
		EventID: &id,
		Status:  model.BookingStatusConfirmed,
	})
	if err != nil {
		return nil, internal(err, "load event stats")
	}

	stats := &EventStats{}
	booked := event.BookedSeats()
	stats.Event.Name = event.Name
	stats.Event.Capacity = event.Capacity
	stats.Event.AvailableSeats = event.AvailableSeats
	stats.Event.BookedSeats = booked
	stats.Event.OccupancyRate = OccupancyRate(booked, event.Capacity)
	stats.Bookings.TotalTickets = totals.Tickets
	stats.Bookings.TotalRevenue = totals.Revenue
	stats.Bookings.BookingCount = totals.Count
	return stats, nil
}

// OccupancyRate formats booked/capacity as a percentage with two decimals.
func OccupancyRate(booked, capacity int) string {
	if capacity <= 0 {
		return "0.00"
	}
	return decimal.NewFromInt(int64(booked)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		StringFixed(2)
}

// loadAuthorized reads an event for an admin or its organizer. Inside a transaction
// the row is locked.
func (s *eventService) loadAuthorized(ctx context.Context, store repository.Store, actor policy.Actor, id uuid.UUID, lock bool) (*model.Event, error) {
	if err := policy.Authenticated.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	find := store.Events().FindByID
	if lock {
		find = store.Events().FindByIDForUpdate
	}
	event, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Event not found")
		}
		return nil, err
	}
	if err := policy.AdminOrOwner.Authorize(actor, event.OrganizerID); err != nil {
		return nil, err
	}
	return event, nil
}

// retry runs fn in a transaction, re-running it while the event version moves underneath.
func (s *eventService) retry(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	err := retryConflicts(ctx, s.maxRetries, func() error {
		return s.store.WithTransaction(ctx, fn)
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperrors.InvalidOperation("Event was modified concurrently, please retry")
	}
	return err
}
