package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ticketing/internal/model"
	"ticketing/internal/policy"
	"ticketing/internal/repository"
	"ticketing/internal/repository/memory"
)

func actorOf(u *model.User) policy.Actor {
	return policy.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func seedUser(t *testing.T, store repository.Store, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.New(),
		Name:         "User " + string(role),
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func seedEvent(t *testing.T, store repository.Store, organizer *model.User, capacity int, price int64, date time.Time) *model.Event {
	t.Helper()
	e := &model.Event{
		Name:           "Event " + uuid.NewString()[:8],
		Date:           date,
		Capacity:       capacity,
		AvailableSeats: capacity,
		Location:       "Online",
		Price:          decimal.NewFromInt(price),
		Category:       model.CategoryOther,
		OrganizerID:    organizer.ID,
		Active:         true,
	}
	require.NoError(t, store.Events().Create(context.Background(), e))
	return e
}

// requireInventoryConsistent checks availableSeats + confirmed tickets == capacity.
func requireInventoryConsistent(t *testing.T, store repository.Store, eventID uuid.UUID) *model.Event {
	t.Helper()
	ctx := context.Background()
	e, err := store.Events().FindByID(ctx, eventID)
	require.NoError(t, err)
	totals, err := store.Bookings().Totals(ctx, repository.BookingFilter{
		EventID: &eventID,
		Status:  model.BookingStatusConfirmed,
	})
	require.NoError(t, err)
	require.Equal(t, e.Capacity, e.AvailableSeats+int(totals.Tickets),
		"availableSeats=%d confirmed=%d capacity=%d", e.AvailableSeats, totals.Tickets, e.Capacity)
	return e
}

type fixture struct {
	store    *memory.Store
	bookings *bookingService
	events   *eventService
	admin    *model.User
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	bookings := NewBookingService(store, nil, nil, nil, 50).(*bookingService)
	bookings.now = clock
	events := NewEventService(store, nil, nil, 5).(*eventService)
	events.now = clock

	return &fixture{
		store:    store,
		bookings: bookings,
		events:   events,
		admin:    seedUser(t, store, model.RoleAdmin),
		now:      now,
	}
}

func pageOf(page, limit int) repository.Page {
	return repository.Page{Page: page, Limit: limit}
}
