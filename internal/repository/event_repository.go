package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ticketing/internal/model"
)

// EventRepository defines event persistence operations.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	// FindByIDForUpdate reads the event with a row-level lock inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Event, error)
	// Update writes every mutable column of event if its stored version still equals
	// expectedVersion, and bumps the version. It returns ErrVersionConflict otherwise.
	Update(ctx context.Context, event *model.Event, expectedVersion int64) error
	// AdjustSeats adds delta to available_seats under the same version guard. The write
	// is also refused when the result would leave [0, capacity].
	AdjustSeats(ctx context.Context, id uuid.UUID, expectedVersion int64, delta int) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter EventFilter, page Page) ([]model.Event, int64, error)
	Count(ctx context.Context, filter EventFilter) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository builds a GORM-backed repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	return translate(r.db.WithContext(ctx).Create(event).Error)
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (r *eventRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&event).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (r *eventRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	if len(ids) == 0 {
		return events, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, event *model.Event, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ? AND version = ?", event.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":            event.Name,
			"description":     event.Description,
			"date":            event.Date,
			"capacity":        event.Capacity,
			"available_seats": event.AvailableSeats,
			"location":        event.Location,
			"price":           event.Price,
			"category":        event.Category,
			"active":          event.Active,
			"version":         expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	event.Version = expectedVersion + 1
	return nil
}

func (r *eventRepository) AdjustSeats(ctx context.Context, id uuid.UUID, expectedVersion int64, delta int) error {
	res := r.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Where("available_seats + ? >= 0 AND available_seats + ? <= capacity", delta, delta).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats + ?", delta),
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Event{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter, page Page) ([]model.Event, int64, error) {
	q := r.filtered(ctx, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []model.Event
	if err := paginate(q.Order("date ASC"), page).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) Count(ctx context.Context, filter EventFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, filter).Count(&n).Error
	return n, err
}

func (r *eventRepository) filtered(ctx context.Context, f EventFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Event{})
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if f.Start != nil {
		q = q.Where("date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date <= ?", *f.End)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.OrganizerID != nil {
		q = q.Where("organizer_id = ?", *f.OrganizerID)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?", pattern, pattern, pattern)
	}
	return q
}
