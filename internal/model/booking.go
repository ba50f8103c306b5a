package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	// BookingStatusPending is reserved; bookings are created confirmed.
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentMethod is recorded with a booking but never charged.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodPaypal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// Booking ties a ticket count of one user to one event.
type Booking struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	UserID             uuid.UUID       `json:"userId" gorm:"type:char(36);not null;index:idx_booking_user_event"`
	EventID            uuid.UUID       `json:"eventId" gorm:"type:char(36);not null;index:idx_booking_user_event;index"`
	Tickets            int             `json:"tickets" gorm:"not null"`
	TotalAmount        decimal.Decimal `json:"totalAmount" gorm:"type:decimal(20,2);not null"`
	Status             BookingStatus   `json:"status" gorm:"size:16;not null;default:'confirmed';index"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod" gorm:"size:16;not null;default:'card'"`
	PaymentID          string          `json:"paymentId,omitempty" gorm:"size:255"`
	BookingDate        time.Time       `json:"bookingDate" gorm:"not null;index"`
	CancellationReason string          `json:"cancellationReason,omitempty" gorm:"size:200"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BookingView is a booking with event and user summaries attached.
type BookingView struct {
	Booking
	Event *EventSummary `json:"event,omitempty"`
	User  *UserSummary  `json:"user,omitempty"`
}
