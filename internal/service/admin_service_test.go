package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
)

func newTestAdminService(f *fixture) *adminService {
	s := NewAdminService(f.store, nil).(*adminService)
	s.now = func() time.Time { return f.now }
	return s
}

func TestAdminService_ToggleUserStatus(t *testing.T) {
	f := newFixture(t)
	s := newTestAdminService(f)
	ctx := context.Background()
	user := seedUser(t, f.store, model.RoleUser)

	toggled, err := s.ToggleUserStatus(ctx, actorOf(f.admin), user.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	stored, err := f.store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	toggled, err = s.ToggleUserStatus(ctx, actorOf(f.admin), user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Active)

	_, err = s.ToggleUserStatus(ctx, actorOf(f.admin), f.admin.ID)
	assert.Equal(t, apperrors.KindInvalidOperation, apperrors.KindOf(err))
	assert.Equal(t, "Cannot deactivate your own admin account", apperrors.MapErrorToHTTP(err).Message)

	_, err = s.ToggleUserStatus(ctx, actorOf(user), f.admin.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = s.ToggleUserStatus(ctx, actorOf(f.admin), uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdminService_PromoteToAdmin(t *testing.T) {
	f := newFixture(t)
	s := newTestAdminService(f)
	ctx := context.Background()
	user := seedUser(t, f.store, model.RoleUser)

	promoted, err := s.PromoteToAdmin(ctx, actorOf(f.admin), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, promoted.Role)

	_, err = s.PromoteToAdmin(ctx, actorOf(f.admin), user.ID)
	assert.Equal(t, "User is already an admin", apperrors.MapErrorToHTTP(err).Message)
}

func TestAdminService_ListUsers(t *testing.T) {
	f := newFixture(t)
	s := newTestAdminService(f)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedUser(t, f.store, model.RoleUser)
	}

	all, err := s.ListUsers(ctx, actorOf(f.admin), UserQuery{Page: pageOf(1, 10)})
	require.NoError(t, err)
	assert.Len(t, all.Users, 4)
	assert.EqualValues(t, 4, all.Pagination.Total)

	admins, err := s.ListUsers(ctx, actorOf(f.admin), UserQuery{Role: model.RoleAdmin, Page: pageOf(1, 10)})
	require.NoError(t, err)
	require.Len(t, admins.Users, 1)
	assert.Equal(t, f.admin.ID, admins.Users[0].ID)

	search, err := s.ListUsers(ctx, actorOf(f.admin), UserQuery{Search: "ADMIN-", Page: pageOf(1, 10)})
	require.NoError(t, err)
	assert.Len(t, search.Users, 1)
}

func TestAdminService_SystemStats(t *testing.T) {
	f := newFixture(t)
	s := newTestAdminService(f)
	ctx := context.Background()
	alice := seedUser(t, f.store, model.RoleUser)
	bob := seedUser(t, f.store, model.RoleUser)
	require.NoError(t, f.store.Users().SetActive(ctx, bob.ID, false))

	e1 := seedEvent(t, f.store, f.admin, 10, 20, f.now.Add(72*time.Hour))
	seedEvent(t, f.store, f.admin, 10, 20, f.now.Add(-72*time.Hour))

	b, err := f.bookings.Create(ctx, actorOf(alice), CreateBookingInput{EventID: e1.ID, Tickets: 2})
	require.NoError(t, err)
	_, err = f.bookings.Create(ctx, actorOf(f.admin), CreateBookingInput{EventID: e1.ID, Tickets: 1})
	require.NoError(t, err)

	stats, err := s.SystemStats(ctx, actorOf(f.admin))
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalUsers)
	assert.EqualValues(t, 2, stats.ActiveUsers)
	assert.EqualValues(t, 2, stats.TotalEvents)
	assert.EqualValues(t, 2, stats.TotalBookings)
	assert.True(t, decimal.NewFromInt(60).Equal(stats.TotalRevenue))
	assert.EqualValues(t, 1, stats.UpcomingCount)
	require.Len(t, stats.UpcomingEvents, 1)
	assert.Equal(t, e1.ID, stats.UpcomingEvents[0].ID)
	assert.Len(t, stats.RecentBookings, 2)

	_, err = f.bookings.Cancel(ctx, actorOf(alice), b.ID, "")
	require.NoError(t, err)
	stats, err = s.SystemStats(ctx, actorOf(f.admin))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalBookings)
	assert.True(t, decimal.NewFromInt(20).Equal(stats.TotalRevenue))

	_, err = s.SystemStats(ctx, actorOf(alice))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}
