package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Bookings     []uuid.UUID `json:"bookings"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type Admin struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	AddedMovies  []uuid.UUID `json:"addedMovies"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type Movie struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Actors      []string    `json:"actors"`
	ReleaseDate time.Time   `json:"releaseDate"`
	PosterURL   string      `json:"posterUrl"`
	Featured    bool        `json:"featured"`
	AdminID     uuid.UUID   `json:"admin"`
	Bookings    []uuid.UUID `json:"bookings"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type MovieFilters struct {
	Featured *bool
	Term     string
	Sort     string
	Limit    int
	Offset   int
}

// Booking is the source of truth for the user and movie back-reference
// indexes.
type Booking struct {
	ID         uuid.UUID `json:"id"`
	MovieID    uuid.UUID `json:"movieId"`
	SeatNumber string    `json:"seatNumber"`
	Date       time.Time `json:"date"`
	UserID     uuid.UUID `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BookingView is a booking enriched with display data of the referenced
// movie and user.
type BookingView struct {
	Booking
	MovieTitle     string `json:"movieTitle"`
	MoviePosterURL string `json:"moviePosterUrl,omitempty"`
	UserName       string `json:"userName,omitempty"`
}

type ReconcileReport struct {
	DanglingRemoved int64 `json:"danglingRemoved"`
	MissingAttached int64 `json:"missingAttached"`
}
