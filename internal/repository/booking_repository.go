package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ticketing/internal/model"
)

// BookingRepository defines booking persistence operations.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// FindConfirmed returns the confirmed booking of user for event, or ErrNotFound.
	FindConfirmed(ctx context.Context, userID, eventID uuid.UUID) (*model.Booking, error)
	// MarkCancelled moves a confirmed booking to cancelled. It returns ErrNotFound if the
	// booking is missing or no longer confirmed.
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	// CountByEvent counts bookings of every status for the event.
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
	// List returns bookings newest first. A zero page returns every match.
	List(ctx context.Context, filter BookingFilter, page Page) ([]model.Booking, int64, error)
	Totals(ctx context.Context, filter BookingFilter) (BookingTotals, error)
}

type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository builds a GORM-backed repository.
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return translate(r.db.WithContext(ctx).Create(booking).Error)
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *bookingRepository) FindConfirmed(ctx context.Context, userID, eventID uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND status = ?", userID, eventID, model.BookingStatusConfirmed).
		First(&booking).Error
	if err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *bookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, model.BookingStatusConfirmed).
		Updates(map[string]interface{}{
			"status":              model.BookingStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *bookingRepository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Booking{}).Where("event_id = ?", eventID).Count(&n).Error
	return n, err
}

func (r *bookingRepository) List(ctx context.Context, filter BookingFilter, page Page) ([]model.Booking, int64, error) {
	q := r.filtered(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var bookings []model.Booking
	if err := paginate(q.Order("booking_date DESC"), page).Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *bookingRepository) Totals(ctx context.Context, filter BookingFilter) (BookingTotals, error) {
	var row struct {
		Count   int64
		Tickets int64
		Revenue decimal.Decimal
	}
	err := r.filtered(ctx, filter).
		Select("COUNT(*) AS count, COALESCE(SUM(tickets), 0) AS tickets, COALESCE(SUM(total_amount), 0) AS revenue").
		Scan(&row).Error
	if err != nil {
		return BookingTotals{}, err
	}
	return BookingTotals{Count: row.Count, Tickets: row.Tickets, Revenue: row.Revenue}, nil
}

func (r *bookingRepository) filtered(ctx context.Context, f BookingFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Booking{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.EventID != nil {
		q = q.Where("event_id = ?", *f.EventID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Start != nil {
		q = q.Where("booking_date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("booking_date <= ?", *f.End)
	}
	return q
}
