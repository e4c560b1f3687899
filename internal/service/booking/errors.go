package booking

import "github.com/kirinyoku/cinebook/internal/domain"

var (
	ErrBookingNotFound = domain.NewError(domain.ErrNotFound, "booking not found")
	ErrMovieNotFound   = domain.NewError(domain.ErrNotFound, "movie not found")
	ErrUserNotFound    = domain.NewError(domain.ErrNotFound, "user not found")
	ErrNotOwner        = domain.NewError(domain.ErrForbidden, "booking belongs to another user")
)
