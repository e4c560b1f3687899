package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/broker"
	"github.com/kirinyoku/cinebook/internal/domain"
	redisx "github.com/kirinyoku/cinebook/internal/redis"
	"github.com/kirinyoku/cinebook/internal/repository"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/telemetry"
	"github.com/kirinyoku/cinebook/internal/uow"
)

const (
	changeCreated = "booking_created"
	changeDeleted = "booking_deleted"
)

// Reasons a booking is removed, recorded on the deleted counter.
const (
	ReasonCancelled    = "cancelled"
	ReasonUserDeleted  = "user_deleted"
	ReasonMovieDeleted = "movie_deleted"
)

// EventPublisher receives booking lifecycle events after commit.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev broker.BookingEvent) error
	PublishBookingDeleted(ctx context.Context, ev broker.BookingEvent) error
}

// ChangeNotifier tells other instances that cached booking views are stale.
type ChangeNotifier interface {
	PublishBookingsChanged(ctx context.Context, kind string, userID, movieID uuid.UUID) error
}

type Config struct {
	UserBookingsTTL time.Duration
}

type Deps struct {
	UoW      *uow.UoW
	Cache    *redisrepo.Cache
	Notifier ChangeNotifier
	Events   EventPublisher
	Metrics  *telemetry.BookingMetrics
	Log      *slog.Logger
}

// Service keeps bookings and their user and movie back-references
// consistent. Every write runs in one unit of work; side effects run only
// after commit.
type Service struct {
	uow      *uow.UoW
	cache    *redisrepo.Cache
	notifier ChangeNotifier
	events   EventPublisher
	metrics  *telemetry.BookingMetrics
	log      *slog.Logger
	cfg      Config
}

func New(deps Deps, cfg Config) *Service {
	if cfg.UserBookingsTTL <= 0 {
		cfg.UserBookingsTTL = 30 * time.Second
	}

	if deps.Events == nil {
		deps.Events = broker.Nop{}
	}

	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	return &Service{
		uow:      deps.UoW,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		events:   deps.Events,
		metrics:  deps.Metrics,
		log:      deps.Log,
		cfg:      cfg,
	}
}

// Create books a seat of a movie for a user.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: raw request fields; all are required and the date must parse.
//   - actorID: authenticated caller; when set it must equal in.UserID.
//
// Returns:
//   - *domain.BookingView: the booking with the movie title and user name.
//   - error: *domain.ValidationError before any store access,
//     booking.ErrMovieNotFound or booking.ErrUserNotFound with no writes,
//     booking.ErrNotOwner when booking on behalf of another user.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID uuid.UUID) (*domain.BookingView, error) {
	const op = "service.booking.Create"

	b, err := in.validate()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if actorID != uuid.Nil && b.UserID != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotOwner)
	}

	b.ID = uuid.New()

	var view domain.BookingView

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		movie, err := tx.Movies().Lock(ctx, b.MovieID)
		if err != nil {
			return notFoundAs(err, ErrMovieNotFound)
		}

		user, err := tx.Users().Lock(ctx, b.UserID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound)
		}

		created := b
		if err := tx.Bookings().Create(ctx, &created); err != nil {
			return err
		}

		if err := tx.Index().Attach(ctx, created); err != nil {
			return err
		}

		view = domain.BookingView{
			Booking:        created,
			MovieTitle:     movie.Title,
			MoviePosterURL: movie.PosterURL,
			UserName:       user.Name,
		}

		after(func(ctx context.Context) {
			s.afterCreate(ctx, created)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &view, nil
}

// Delete removes a booking. The back-references are detached before the
// booking row is deleted, inside the same transaction.
//
// Parameters:
//   - ctx: request-scoped context.
//   - bookingID: booking to remove.
//   - actorID: authenticated caller; when set it must own the booking.
//
// Returns:
//   - *domain.Booking: the booking as it was before removal.
//   - error: booking.ErrBookingNotFound if it does not exist (including a
//     repeated delete), booking.ErrNotOwner for another user's booking.
func (s *Service) Delete(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Delete"

	var removed domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return notFoundAs(err, ErrBookingNotFound)
		}

		if actorID != uuid.Nil && b.UserID != actorID {
			return ErrNotOwner
		}

		if err := s.remove(ctx, tx, after, *b, ReasonCancelled); err != nil {
			return err
		}

		removed = *b

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &removed, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.uow.Repos().Bookings().Get(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, notFoundAs(err, ErrBookingNotFound))
	}

	return b, nil
}

// ListForUser returns the user's bookings with movie title and poster,
// most recent date first. Results are cached until the next booking write
// for the user.
//
// Returns:
//   - []domain.BookingView: possibly empty, never nil.
//   - error: booking.ErrUserNotFound if the user does not exist.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingView, error) {
	const op = "service.booking.ListForUser"

	views, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyUserBookings(userID),
		s.cfg.UserBookingsTTL,
		func(ctx context.Context) ([]domain.BookingView, error) {
			repos := s.uow.Repos()

			if _, err := repos.Users().Get(ctx, userID); err != nil {
				return nil, notFoundAs(err, ErrUserNotFound)
			}

			return repos.Bookings().ListByUser(ctx, userID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if views == nil {
		views = []domain.BookingView{}
	}

	return views, nil
}

// RemoveAllForUser deletes every booking of userID inside tx, detaching
// each from its movie and from the user.
func (s *Service) RemoveAllForUser(
	ctx context.Context,
	tx repository.Tx,
	after func(uow.AfterCommit),
	userID uuid.UUID,
) (int, error) {
	views, err := tx.Bookings().ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, v := range views {
		if err := s.remove(ctx, tx, after, v.Booking, ReasonUserDeleted); err != nil {
			return 0, err
		}
	}

	return len(views), nil
}

// RemoveAllForMovie deletes every booking of movieID inside tx, detaching
// each from its user and from the movie.
func (s *Service) RemoveAllForMovie(
	ctx context.Context,
	tx repository.Tx,
	after func(uow.AfterCommit),
	movieID uuid.UUID,
) (int, error) {
	bookings, err := tx.Bookings().ListByMovie(ctx, movieID)
	if err != nil {
		return 0, err
	}

	for _, b := range bookings {
		if err := s.remove(ctx, tx, after, b, ReasonMovieDeleted); err != nil {
			return 0, err
		}
	}

	return len(bookings), nil
}

func (s *Service) remove(
	ctx context.Context,
	tx repository.Tx,
	after func(uow.AfterCommit),
	b domain.Booking,
	reason string,
) error {
	if err := tx.Index().Detach(ctx, b); err != nil {
		return err
	}

	if err := tx.Bookings().Delete(ctx, b.ID); err != nil {
		return notFoundAs(err, ErrBookingNotFound)
	}

	after(func(ctx context.Context) {
		s.afterDelete(ctx, b, reason)
	})

	return nil
}

func (s *Service) afterCreate(ctx context.Context, b domain.Booking) {
	s.invalidate(ctx, changeCreated, b)

	if err := s.events.PublishBookingCreated(ctx, eventOf(b)); err != nil {
		s.log.Warn("publish booking created", "booking_id", b.ID, "err", err)
	}

	s.metrics.BookingCreated(ctx)
}

func (s *Service) afterDelete(ctx context.Context, b domain.Booking, reason string) {
	s.invalidate(ctx, changeDeleted, b)

	if err := s.events.PublishBookingDeleted(ctx, eventOf(b)); err != nil {
		s.log.Warn("publish booking deleted", "booking_id", b.ID, "err", err)
	}

	s.metrics.BookingDeleted(ctx, reason)
}

func (s *Service) invalidate(ctx context.Context, kind string, b domain.Booking) {
	if err := s.cache.InvalidateMovie(ctx, b.MovieID); err != nil {
		s.log.Warn("invalidate movie cache", "movie_id", b.MovieID, "err", err)
	}

	if err := s.cache.InvalidateUserBookings(ctx, b.UserID); err != nil {
		s.log.Warn("invalidate user bookings cache", "user_id", b.UserID, "err", err)
	}

	if s.notifier == nil {
		return
	}

	if err := s.notifier.PublishBookingsChanged(ctx, kind, b.UserID, b.MovieID); err != nil {
		s.log.Warn("publish bookings changed", "booking_id", b.ID, "err", err)
	}
}

func eventOf(b domain.Booking) broker.BookingEvent {
	return broker.BookingEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		MovieID:    b.MovieID,
		SeatNumber: b.SeatNumber,
		Date:       b.Date,
		OccurredAt: time.Now().UTC(),
	}
}

func notFoundAs(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}

	return err
}
