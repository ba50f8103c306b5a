package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"ticketing/internal/model"
	"ticketing/internal/repository"
)

// eventRepo implements repository.EventRepository.
type eventRepo struct{ s *Store }

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	defer r.s.write()()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, ok := r.s.data.events[event.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	event.CreatedAt, event.UpdatedAt = now, now
	r.s.data.events[event.ID] = *event
	return nil
}

func (r *eventRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	defer r.s.read()()
	e, ok := r.s.data.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

// FindByIDForUpdate is FindByID; the transaction already holds the store lock.
func (r *eventRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	return r.FindByID(ctx, id)
}

func (r *eventRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Event, error) {
	defer r.s.read()()
	events := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.s.data.events[id]; ok {
			events = append(events, e)
		}
	}
	return events, nil
}

func (r *eventRepo) Update(ctx context.Context, event *model.Event, expectedVersion int64) error {
	defer r.s.write()()
	stored, ok := r.s.data.events[event.ID]
	if !ok || stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	updated := *event
	updated.OrganizerID = stored.OrganizerID
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Version = expectedVersion + 1
	r.s.data.events[event.ID] = updated
	event.Version = updated.Version
	return nil
}

func (r *eventRepo) AdjustSeats(ctx context.Context, id uuid.UUID, expectedVersion int64, delta int) error {
	defer r.s.write()()
	e, ok := r.s.data.events[id]
	if !ok || e.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	seats := e.AvailableSeats + delta
	if seats < 0 || seats > e.Capacity {
		return repository.ErrVersionConflict
	}
	e.AvailableSeats = seats
	e.Version++
	e.UpdatedAt = time.Now()
	r.s.data.events[id] = e
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.write()()
	if _, ok := r.s.data.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.events, id)
	return nil
}

func (r *eventRepo) List(ctx context.Context, filter repository.EventFilter, page repository.Page) ([]model.Event, int64, error) {
	defer r.s.read()()
	events := r.match(filter)
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID.String() < events[j].ID.String()
	})
	return paginate(events, page), int64(len(events)), nil
}

func (r *eventRepo) Count(ctx context.Context, filter repository.EventFilter) (int64, error) {
	defer r.s.read()()
	return int64(len(r.match(filter))), nil
}

func (r *eventRepo) match(f repository.EventFilter) []model.Event {
	var events []model.Event
	for _, e := range r.s.data.events {
		if f.ActiveOnly && !e.Active {
			continue
		}
		if !inRange(e.Date, f.Start, f.End) {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.OrganizerID != nil && e.OrganizerID != *f.OrganizerID {
			continue
		}
		if f.Search != "" && !contains(e.Name, f.Search) && !contains(e.Description, f.Search) && !contains(e.Location, f.Search) {
			continue
		}
		events = append(events, e)
	}
	return events
}
