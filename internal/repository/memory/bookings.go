package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketing/internal/model"
	"ticketing/internal/repository"
)

// bookingRepo implements repository.BookingRepository.
type bookingRepo struct{ s *Store }

func (r *bookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	defer r.s.write()()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if _, ok := r.s.data.bookings[booking.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	r.s.data.bookings[booking.ID] = copyBooking(*booking)
	return nil
}

func (r *bookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	defer r.s.read()()
	b, ok := r.s.data.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b = copyBooking(b)
	return &b, nil
}

func (r *bookingRepo) FindConfirmed(ctx context.Context, userID, eventID uuid.UUID) (*model.Booking, error) {
	defer r.s.read()()
	for _, b := range r.s.data.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Status == model.BookingStatusConfirmed {
			b = copyBooking(b)
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *bookingRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	defer r.s.write()()
	b, ok := r.s.data.bookings[id]
	if !ok || b.Status != model.BookingStatusConfirmed {
		return repository.ErrNotFound
	}
	b.Status = model.BookingStatusCancelled
	b.CancellationReason = reason
	b.CancelledAt = &at
	b.UpdatedAt = time.Now()
	r.s.data.bookings[id] = copyBooking(b)
	return nil
}

func (r *bookingRepo) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	defer r.s.read()()
	var n int64
	for _, b := range r.s.data.bookings {
		if b.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (r *bookingRepo) List(ctx context.Context, filter repository.BookingFilter, page repository.Page) ([]model.Booking, int64, error) {
	defer r.s.read()()
	bookings := r.match(filter)
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].BookingDate.Equal(bookings[j].BookingDate) {
			return bookings[i].BookingDate.After(bookings[j].BookingDate)
		}
		return bookings[i].ID.String() < bookings[j].ID.String()
	})
	return paginate(bookings, page), int64(len(bookings)), nil
}

func (r *bookingRepo) Totals(ctx context.Context, filter repository.BookingFilter) (repository.BookingTotals, error) {
	defer r.s.read()()
	totals := repository.BookingTotals{Revenue: decimal.Zero}
	for _, b := range r.match(filter) {
		totals.Count++
		totals.Tickets += int64(b.Tickets)
		totals.Revenue = totals.Revenue.Add(b.TotalAmount)
	}
	return totals, nil
}

func (r *bookingRepo) match(f repository.BookingFilter) []model.Booking {
	var bookings []model.Booking
	for _, b := range r.s.data.bookings {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.EventID != nil && b.EventID != *f.EventID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !inRange(b.BookingDate, f.Start, f.End) {
			continue
		}
		bookings = append(bookings, copyBooking(b))
	}
	return bookings
}
