package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticketing/internal/cache"
	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
	"ticketing/internal/repository"
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func newPagination(p repository.Page, total int64) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func internal(err error, op string) error {
	return apperrors.Internal(err, "failed to %s", op)
}

// passthrough keeps domain errors and wraps everything else as internal.
func passthrough(err error, op string) error {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return err
	}
	return internal(err, op)
}

const eventCacheTTL = time.Minute

// eventCache holds single events by id. Every inventory write invalidates the entry
// after commit; bookings are never cached.
type eventCache struct {
	client *cache.Client
}

func eventKey(id uuid.UUID) string {
	return fmt.Sprintf("event:%s", id)
}

func (c eventCache) get(ctx context.Context, id uuid.UUID) (*model.Event, bool) {
	data, _ := c.client.Get(ctx, eventKey(id))
	if data == nil {
		return nil, false
	}
	var event model.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, false
	}
	return &event, true
}

func (c eventCache) put(ctx context.Context, event *model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, eventKey(event.ID), data, eventCacheTTL)
}

func (c eventCache) invalidate(ctx context.Context, id uuid.UUID) {
	_ = c.client.Delete(ctx, eventKey(id))
}

// bookingViews attaches event and user summaries to bookings.
func bookingViews(ctx context.Context, store repository.Store, bookings []model.Booking) ([]model.BookingView, error) {
	eventIDs := make([]uuid.UUID, 0, len(bookings))
	userIDs := make([]uuid.UUID, 0, len(bookings))
	seenEvents := map[uuid.UUID]bool{}
	seenUsers := map[uuid.UUID]bool{}
	for _, b := range bookings {
		if !seenEvents[b.EventID] {
			seenEvents[b.EventID] = true
			eventIDs = append(eventIDs, b.EventID)
		}
		if !seenUsers[b.UserID] {
			seenUsers[b.UserID] = true
			userIDs = append(userIDs, b.UserID)
		}
	}

	events, err := store.Events().FindByIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	users, err := store.Users().FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	eventByID := make(map[uuid.UUID]*model.EventSummary, len(events))
	for i := range events {
		eventByID[events[i].ID] = events[i].Summary()
	}
	userByID := make(map[uuid.UUID]*model.UserSummary, len(users))
	for i := range users {
		userByID[users[i].ID] = users[i].Summary()
	}

	views := make([]model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, model.BookingView{
			Booking: b,
			Event:   eventByID[b.EventID],
			User:    userByID[b.UserID],
		})
	}
	return views, nil
}

// retryConflicts re-runs op with jittered exponential backoff while it fails with
// repository.ErrVersionConflict, up to attempts tries. Any other error stops at once.
// When attempts run out the last conflict is returned.
func retryConflicts(ctx context.Context, attempts int, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil || errors.Is(err, repository.ErrVersionConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(newConflictBackOff()), backoff.WithMaxTries(uint(attempts)))

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func newConflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	return b
}
