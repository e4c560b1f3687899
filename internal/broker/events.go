package broker

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoutingBookingCreated = "booking.created"
	RoutingBookingDeleted = "booking.deleted"
)

// BookingEvent is published after a booking is committed or removed.
type BookingEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	UserID     uuid.UUID `json:"user_id"`
	MovieID    uuid.UUID `json:"movie_id"`
	SeatNumber string    `json:"seat_number"`
	Date       time.Time `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}
