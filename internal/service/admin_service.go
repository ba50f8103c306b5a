package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/policy"
	"ticketing/internal/repository"
)

// UserQuery filters the admin user listing.
type UserQuery struct {
	Search string
	Role   model.Role
	Page   repository.Page
}

// UserList is one page of users.
type UserList struct {
	Users      []model.User `json:"users"`
	Pagination Pagination   `json:"pagination"`
}

// SystemStats is the admin dashboard summary.
type SystemStats struct {
	TotalUsers     int64               `json:"totalUsers"`
	ActiveUsers    int64               `json:"activeUsers"`
	TotalEvents    int64               `json:"totalEvents"`
	TotalBookings  int64               `json:"totalBookings"`
	TotalRevenue   decimal.Decimal     `json:"totalRevenue"`
	UpcomingCount  int64               `json:"upcomingEventsCount"`
	UpcomingEvents []model.Event       `json:"upcomingEvents"`
	RecentBookings []model.BookingView `json:"recentBookings"`
}

// AdminService manages accounts and aggregates.
type AdminService interface {
	ListUsers(ctx context.Context, actor policy.Actor, q UserQuery) (*UserList, error)
	ToggleUserStatus(ctx context.Context, actor policy.Actor, userID uuid.UUID) (*model.User, error)
	PromoteToAdmin(ctx context.Context, actor policy.Actor, userID uuid.UUID) (*model.User, error)
	SystemStats(ctx context.Context, actor policy.Actor) (*SystemStats, error)
}

type adminService struct {
	store repository.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewAdminService creates a new admin service.
func NewAdminService(store repository.Store, log *zap.Logger) AdminService {
	return &adminService{store: store, log: orNop(log), now: time.Now}
}

// ListUsers lists users newest first.
func (s *adminService) ListUsers(ctx context.Context, actor policy.Actor, q UserQuery) (*UserList, error) {
	if err := policy.AdminOnly.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	users, total, err := s.store.Users().List(ctx, repository.UserFilter{Search: q.Search, Role: q.Role}, q.Page)
	if err != nil {
		return nil, internal(err, "list users")
	}
	if users == nil {
		users = []model.User{}
	}
	return &UserList{Users: users, Pagination: newPagination(q.Page, total)}, nil
}

// ToggleUserStatus flips the active flag of a user. An admin cannot deactivate their own account.
func (s *adminService) ToggleUserStatus(ctx context.Context, actor policy.Actor, userID uuid.UUID) (*model.User, error) {
	user, err := s.loadUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if user.ID == actor.UserID && user.Active {
		return nil, apperrors.InvalidOperation("Cannot deactivate your own admin account")
	}

	user.Active = !user.Active
	if err := s.store.Users().SetActive(ctx, user.ID, user.Active); err != nil {
		return nil, internal(err, "update user status")
	}
	s.log.Info("user status toggled",
		zap.String("user_id", user.ID.String()),
		zap.Bool("active", user.Active),
		zap.String("by", actor.Email),
	)
	return user, nil
}

// PromoteToAdmin grants the admin role.
func (s *adminService) PromoteToAdmin(ctx context.Context, actor policy.Actor, userID uuid.UUID) (*model.User, error) {
	user, err := s.loadUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return nil, apperrors.InvalidOperation("User is already an admin")
	}

	user.Role = model.RoleAdmin
	if err := s.store.Users().SetRole(ctx, user.ID, user.Role); err != nil {
		return nil, internal(err, "promote user")
	}
	s.log.Info("user promoted", zap.String("user_id", user.ID.String()), zap.String("by", actor.Email))
	return user, nil
}

// SystemStats aggregates users, active events and confirmed bookings.
func (s *adminService) SystemStats(ctx context.Context, actor policy.Actor) (*SystemStats, error) {
	if err := policy.AdminOnly.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	users := s.store.Users()
	events := s.store.Events()
	bookings := s.store.Bookings()

	stats := &SystemStats{}
	var err error
	if stats.TotalUsers, err = users.Count(ctx, false); err != nil {
		return nil, internal(err, "count users")
	}
	if stats.ActiveUsers, err = users.Count(ctx, true); err != nil {
		return nil, internal(err, "count users")
	}
	if stats.TotalEvents, err = events.Count(ctx, repository.EventFilter{ActiveOnly: true}); err != nil {
		return nil, internal(err, "count events")
	}

	totals, err := bookings.Totals(ctx, repository.BookingFilter{Status: model.BookingStatusConfirmed})
	if err != nil {
		return nil, internal(err, "sum bookings")
	}
	stats.TotalBookings = totals.Count
	stats.TotalRevenue = totals.Revenue

	now := s.now()
	upcoming, upcomingTotal, err := events.List(ctx,
		repository.EventFilter{ActiveOnly: true, Start: &now},
		repository.Page{Page: 1, Limit: 5},
	)
	if err != nil {
		return nil, internal(err, "list upcoming events")
	}
	stats.UpcomingEvents = upcoming
	stats.UpcomingCount = upcomingTotal
	if stats.UpcomingEvents == nil {
		stats.UpcomingEvents = []model.Event{}
	}

	recent, _, err := bookings.List(ctx,
		repository.BookingFilter{Status: model.BookingStatusConfirmed},
		repository.Page{Page: 1, Limit: 10},
	)
	if err != nil {
		return nil, internal(err, "list recent bookings")
	}
	if stats.RecentBookings, err = bookingViews(ctx, s.store, recent); err != nil {
		return nil, internal(err, "list recent bookings")
	}
	return stats, nil
}

func (s *adminService) loadUser(ctx context.Context, actor policy.Actor, userID uuid.UUID) (*model.User, error) {
	if err := policy.AdminOnly.Authorize(actor, uuid.Nil); err != nil {
		return nil, err
	}
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, internal(err, "load user")
	}
	return user, nil
}
