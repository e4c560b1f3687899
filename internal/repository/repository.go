package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/domain"
)

type Users interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// Lock returns the user and holds a share lock on its row until the
	// surrounding transaction ends.
	Lock(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Admins interface {
	Create(ctx context.Context, a *domain.Admin) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Admin, error)
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	List(ctx context.Context) ([]domain.Admin, error)
}

type Movies interface {
	Create(ctx context.Context, m *domain.Movie) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Movie, error)
	Lock(ctx context.Context, id uuid.UUID) (*domain.Movie, error)
	List(ctx context.Context, f domain.MovieFilters) ([]domain.Movie, error)
	Update(ctx context.Context, m *domain.Movie) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Bookings interface {
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// GetForUpdate returns the booking and holds an exclusive row lock until
	// the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByUser returns the user's bookings enriched with movie title and
	// poster, most recent date first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingView, error)
	ListByMovie(ctx context.Context, movieID uuid.UUID) ([]domain.Booking, error)
}

// BookingIndex maintains the user and movie back-references of bookings.
type BookingIndex interface {
	Attach(ctx context.Context, b domain.Booking) error
	Detach(ctx context.Context, b domain.Booking) error
	UserBookingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	MovieBookingIDs(ctx context.Context, movieID uuid.UUID) ([]uuid.UUID, error)
	// RemoveDangling deletes index entries that do not match an existing
	// booking's forward reference.
	RemoveDangling(ctx context.Context) (int64, error)
	// AttachMissing inserts index entries for bookings that lack them.
	AttachMissing(ctx context.Context) (int64, error)
}

// Tx is the set of repositories bound to one transaction.
type Tx interface {
	Users() Users
	Admins() Admins
	Movies() Movies
	Bookings() Bookings
	Index() BookingIndex
}
