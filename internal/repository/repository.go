package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ticketing/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist or does not match the conditional write.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a guarded write lost a race with another writer.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories that share one unit of work.
type Store interface {
	Users() UserRepository
	Events() EventRepository
	Bookings() BookingRepository
	// WithTransaction runs fn against a Store bound to a single transaction.
	// Any error returned by fn rolls back every write made through tx.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Page selects a slice of an ordered result. A zero Limit disables pagination.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// EventFilter narrows event listings. Zero values are ignored.
type EventFilter struct {
	ActiveOnly  bool
	Start       *time.Time
	End         *time.Time
	Category    model.Category
	OrganizerID *uuid.UUID
	Search      string
}

// BookingFilter narrows booking listings. Start and End bound the booking date.
type BookingFilter struct {
	UserID  *uuid.UUID
	EventID *uuid.UUID
	Status  model.BookingStatus
	Start   *time.Time
	End     *time.Time
}

// UserFilter narrows user listings. Search matches name or email.
type UserFilter struct {
	Search string
	Role   model.Role
}

// BookingTotals aggregates a set of bookings.
type BookingTotals struct {
	Count   int64
	Tickets int64
	Revenue decimal.Decimal
}

type gormStore struct {
	db *gorm.DB
}

// NewStore builds a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *gormStore) Events() EventRepository {
	return NewEventRepository(s.db)
}

func (s *gormStore) Bookings() BookingRepository {
	return NewBookingRepository(s.db)
}

// WithTransaction executes a function within a database transaction.
func (s *gormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormStore{db: tx})
	})
}

// translate maps driver level errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func paginate(q *gorm.DB, p Page) *gorm.DB {
	if p.Limit <= 0 {
		return q
	}
	return q.Offset(p.Offset()).Limit(p.Limit)
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
