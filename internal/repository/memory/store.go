// Package memory is an in-process repository.Store used by tests and by the
// server when DB_DRIVER=memory. Transactions serialize on a single lock and
// roll back by restoring a snapshot of the tables.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticketing/internal/model"
	"ticketing/internal/repository"
)

type tables struct {
	users    map[uuid.UUID]model.User
	events   map[uuid.UUID]model.Event
	bookings map[uuid.UUID]model.Booking
}

func (t *tables) clone() *tables {
	c := &tables{
		users:    make(map[uuid.UUID]model.User, len(t.users)),
		events:   make(map[uuid.UUID]model.Event, len(t.events)),
		bookings: make(map[uuid.UUID]model.Booking, len(t.bookings)),
	}
	for k, v := range t.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range t.events {
		c.events[k] = v
	}
	for k, v := range t.bookings {
		c.bookings[k] = copyBooking(v)
	}
	return c
}

// Store is an in-memory implementation of repository.Store.
type Store struct {
	mu   *sync.RWMutex
	data *tables
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		mu: &sync.RWMutex{},
		data: &tables{
			users:    make(map[uuid.UUID]model.User),
			events:   make(map[uuid.UUID]model.Event),
			bookings: make(map[uuid.UUID]model.Booking),
		},
	}
}

func (s *Store) Users() repository.UserRepository       { return &userRepo{s: s} }
func (s *Store) Events() repository.EventRepository     { return &eventRepo{s: s} }
func (s *Store) Bookings() repository.BookingRepository { return &bookingRepo{s: s} }

// WithTransaction holds the store lock for the duration of fn. Nested calls reuse
// the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true}
	if err := fn(ctx, tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

func (s *Store) read() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func copyUser(u model.User) model.User {
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func copyBooking(b model.Booking) model.Booking {
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		b.CancelledAt = &t
	}
	return b
}

func paginate[T any](items []T, p repository.Page) []T {
	if p.Limit <= 0 {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func contains(field, search string) bool {
	return strings.Contains(strings.ToLower(field), strings.ToLower(strings.TrimSpace(search)))
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

// userRepo implements repository.UserRepository.
type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.write()()
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := r.s.data.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = copyUser(*user)
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.s.read()()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = copyUser(u)
	return &u, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.s.read()()
	for _, u := range r.s.data.users {
		if u.Email == email {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	defer r.s.read()()
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.data.users[id]; ok {
			users = append(users, copyUser(u))
		}
	}
	return users, nil
}

func (r *userRepo) List(ctx context.Context, filter repository.UserFilter, page repository.Page) ([]model.User, int64, error) {
	defer r.s.read()()
	var users []model.User
	for _, u := range r.s.data.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Search != "" && !contains(u.Name, filter.Search) && !contains(u.Email, filter.Search) {
			continue
		}
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID.String() < users[j].ID.String()
	})
	return paginate(users, page), int64(len(users)), nil
}

func (r *userRepo) Count(ctx context.Context, activeOnly bool) (int64, error) {
	defer r.s.read()()
	var n int64
	for _, u := range r.s.data.users {
		if !activeOnly || u.Active {
			n++
		}
	}
	return n, nil
}

func (r *userRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.update(id, func(u *model.User) { u.Active = active })
}

func (r *userRepo) SetRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return r.update(id, func(u *model.User) { u.Role = role })
}

func (r *userRepo) StartSession(ctx context.Context, id uuid.UUID, tokenID string, at time.Time) error {
	return r.update(id, func(u *model.User) {
		u.RefreshTokenID = tokenID
		u.LastLogin = &at
	})
}

func (r *userRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	defer r.s.write()()
	u, ok := r.s.data.users[id]
	if !ok || u.RefreshTokenID != current {
		return repository.ErrVersionConflict
	}
	u.RefreshTokenID = next
	u.UpdatedAt = time.Now()
	r.s.data.users[id] = u
	return nil
}

func (r *userRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(u *model.User) { u.RefreshTokenID = "" })
}

func (r *userRepo) update(id uuid.UUID, fn func(u *model.User)) error {
	defer r.s.write()()
	u, ok := r.s.data.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.s.data.users[id] = copyUser(u)
	return nil
}
