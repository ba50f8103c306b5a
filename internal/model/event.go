package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category classifies an event.
type Category string

const (
	CategoryConcert    Category = "concert"
	CategoryConference Category = "conference"
	CategoryWorkshop   Category = "workshop"
	CategorySports     Category = "sports"
	CategoryOther      Category = "other"
)

// Event is a bookable listing with a seat inventory.
type Event struct {
	ID             uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Name           string          `json:"name" gorm:"size:100;not null;index"`
	Description    string          `json:"description" gorm:"size:500"`
	Date           time.Time       `json:"date" gorm:"not null;index"`
	Capacity       int             `json:"capacity" gorm:"not null"`
	AvailableSeats int             `json:"availableSeats" gorm:"not null"`
	Location       string          `json:"location" gorm:"size:200;not null;default:'Online'"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(20,2);not null;default:0"`
	Category       Category        `json:"category" gorm:"size:16;not null;default:'other';index"`
	OrganizerID    uuid.UUID       `json:"organizerId" gorm:"type:char(36);not null;index"`
	Active         bool            `json:"isActive" gorm:"not null;default:true;index"`
	// Version is bumped by every inventory write and guards optimistic updates.
	Version   int64     `json:"-" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// BookedSeats is the number of seats held by confirmed bookings.
func (e *Event) BookedSeats() int {
	return e.Capacity - e.AvailableSeats
}

// EventSummary is the projection of an event embedded in bookings.
type EventSummary struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Date           time.Time       `json:"date"`
	Location       string          `json:"location"`
	Price          decimal.Decimal `json:"price"`
	Capacity       int             `json:"capacity"`
	AvailableSeats int             `json:"availableSeats"`
}

// Summary returns the embeddable projection of e.
func (e *Event) Summary() *EventSummary {
	return &EventSummary{
		ID:             e.ID,
		Name:           e.Name,
		Date:           e.Date,
		Location:       e.Location,
		Price:          e.Price,
		Capacity:       e.Capacity,
		AvailableSeats: e.AvailableSeats,
	}
}

// EventView is an event with its organizer and, on detail reads, its bookings.
type EventView struct {
	Event
	Organizer *UserSummary   `json:"organizer,omitempty"`
	Bookings  []BookingEntry `json:"bookings,omitempty"`
}

// BookingEntry is a booking as listed under its event.
type BookingEntry struct {
	ID          uuid.UUID     `json:"id"`
	User        *UserSummary  `json:"user,omitempty"`
	Tickets     int           `json:"tickets"`
	Status      BookingStatus `json:"status"`
	BookingDate time.Time     `json:"bookingDate"`
}
