// Package seed creates the bootstrap admin account and optional demo events.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/config"
	"ticketing/internal/model"
	"ticketing/internal/repository"
)

// Admin makes sure an admin account with cfg.Email exists. An existing user with that
// email is promoted and reactivated; its password is left untouched.
func Admin(ctx context.Context, store repository.Store, cfg config.AdminConfig, cost int, log *zap.Logger) (*model.User, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}

	existing, err := store.Users().FindByEmail(ctx, cfg.Email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			if err := store.Users().SetRole(ctx, existing.ID, model.RoleAdmin); err != nil {
				return nil, fmt.Errorf("promote admin: %w", err)
			}
			existing.Role = model.RoleAdmin
		}
		if !existing.Active {
			if err := store.Users().SetActive(ctx, existing.ID, true); err != nil {
				return nil, fmt.Errorf("activate admin: %w", err)
			}
			existing.Active = true
		}
		log.Info("admin account already present", zap.String("email", existing.Email))
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("look up admin: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	admin := &model.User{
		ID:           uuid.New(),
		Name:         cfg.Name,
		Email:        cfg.Email,
		PasswordHash: string(hashed),
		Role:         model.RoleAdmin,
		Active:       true,
	}
	if err := store.Users().Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	log.Info("admin account created", zap.String("email", admin.Email))
	return admin, nil
}

type demoEvent struct {
	name        string
	description string
	inDays      int
	capacity    int
	location    string
	price       string
	category    model.Category
}

var demoEvents = []demoEvent{
	{"Summer Jazz Evening", "Open air jazz with local bands", 14, 250, "City Park Amphitheatre", "35.00", model.CategoryConcert},
	{"Cloud Native Summit", "Two tracks on distributed systems and platform engineering", 30, 600, "Convention Center Hall B", "149.00", model.CategoryConference},
	{"Intro to Pottery", "Hands-on wheel throwing for beginners", 7, 12, "Clay Studio", "45.00", model.CategoryWorkshop},
	{"City Half Marathon", "21k through the old town", 45, 2000, "Main Square", "25.00", model.CategorySports},
	{"Community Meetup", "Monthly get-together", 10, 80, "Online", "0", model.CategoryOther},
}

// DemoEvents creates the demo events owned by organizer unless it already organizes events.
func DemoEvents(ctx context.Context, store repository.Store, organizer *model.User, now time.Time, log *zap.Logger) (int, error) {
	count, err := store.Events().Count(ctx, repository.EventFilter{OrganizerID: &organizer.ID})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	if count > 0 {
		log.Info("demo events skipped", zap.Int64("existing", count))
		return 0, nil
	}

	created := 0
	for _, d := range demoEvents {
		event := &model.Event{
			Name:           d.name,
			Description:    d.description,
			Date:           now.AddDate(0, 0, d.inDays).Truncate(time.Hour),
			Capacity:       d.capacity,
			AvailableSeats: d.capacity,
			Location:       d.location,
			Price:          decimal.RequireFromString(d.price),
			Category:       d.category,
			OrganizerID:    organizer.ID,
			Active:         true,
		}
		if err := store.Events().Create(ctx, event); err != nil {
			return created, fmt.Errorf("create demo event %q: %w", d.name, err)
		}
		created++
	}
	log.Info("demo events created", zap.Int("count", created))
	return created, nil
}
