package httpgin

import (
	"time"

	"github.com/kirinyoku/cinebook/internal/domain"
)

type AccountRequest struct {
	Name     string `json:"name" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

type MovieRequest struct {
	Title       string   `json:"title" binding:"required,notblank"`
	Description string   `json:"description" binding:"required,notblank"`
	Actors      []string `json:"actors" binding:"required,min=1,dive,notblank"`
	ReleaseDate string   `json:"releaseDate" binding:"required,notblank"`
	PosterURL   string   `json:"posterUrl" binding:"required,notblank"`
	Featured    bool     `json:"featured"`
}

type MovieListQuery struct {
	Featured *bool  `form:"featured"`
	Q        string `form:"q"`
	Sort     string `form:"sort"`
	Limit    int    `form:"limit" binding:"min=0,max=200"`
	Offset   int    `form:"offset" binding:"min=0"`
}

// CreateBookingRequest is the body of POST /bookings. MovieName holds the
// movie id; User defaults to the authenticated caller.
type CreateBookingRequest struct {
	MovieName  string `json:"movieName" binding:"required,notblank"`
	SeatNumber string `json:"seatNumber" binding:"required,notblank"`
	Date       string `json:"date" binding:"required,notblank"`
	User       string `json:"user"`
}

type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user"`
}

type UsersResponse struct {
	Users []domain.User `json:"users"`
}

type UserLoginResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

type AdminResponse struct {
	Message string        `json:"message"`
	Admin   *domain.Admin `json:"admin"`
}

type AdminsResponse struct {
	Admins []domain.Admin `json:"admins"`
}

type AdminLoginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	ID        string    `json:"id"`
}

type ReconcileResponse struct {
	Report domain.ReconcileReport `json:"report"`
}

type MovieResponse struct {
	Message string        `json:"message,omitempty"`
	Movie   *domain.Movie `json:"movie"`
}

type MoviesResponse struct {
	Movies []domain.Movie `json:"movies"`
}

type BookingViewResponse struct {
	Message string              `json:"message"`
	Booking *domain.BookingView `json:"booking"`
}

type BookingResponse struct {
	Message string          `json:"message,omitempty"`
	Booking *domain.Booking `json:"booking"`
}

type BookingsResponse struct {
	Bookings []domain.BookingView `json:"bookings"`
}
