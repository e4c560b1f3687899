package movies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/domain"
	redisx "github.com/kirinyoku/cinebook/internal/redis"
	"github.com/kirinyoku/cinebook/internal/repository"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/uow"
)

// BookingRemover deletes every booking of a movie inside a transaction.
type BookingRemover interface {
	RemoveAllForMovie(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit), movieID uuid.UUID) (int, error)
}

type Config struct {
	MovieTTL time.Duration
	ListTTL  time.Duration
}

type Service struct {
	uow      *uow.UoW
	bookings BookingRemover
	cache    *redisrepo.Cache
	log      *slog.Logger
	cfg      Config
}

func New(u *uow.UoW, bookings BookingRemover, cache *redisrepo.Cache, log *slog.Logger, cfg Config) *Service {
	if cfg.MovieTTL <= 0 {
		cfg.MovieTTL = 60 * time.Second
	}

	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 30 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		uow:      u,
		bookings: bookings,
		cache:    cache,
		log:      log,
		cfg:      cfg,
	}
}

// Create adds a movie owned by adminID.
//
// Returns:
//   - *domain.Movie: the stored movie.
//   - error: *domain.ValidationError, movies.ErrAdminNotFound.
func (s *Service) Create(ctx context.Context, adminID uuid.UUID, in MovieInput) (*domain.Movie, error) {
	const op = "service.movies.Create"

	m, err := in.toMovie()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	m.ID = uuid.New()
	m.AdminID = adminID
	m.Bookings = []uuid.UUID{}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		if _, err := tx.Admins().Get(ctx, adminID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAdminNotFound
			}
			return err
		}

		if err := tx.Movies().Create(ctx, &m); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.invalidate(ctx, m.ID) })

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &m, nil
}

// Get returns a movie with its booking ids. Reads go through the cache.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	const op = "service.movies.Get"

	m, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyMovie(id),
		s.cfg.MovieTTL,
		func(ctx context.Context) (domain.Movie, error) {
			m, err := s.uow.Repos().Movies().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Movie{}, ErrMovieNotFound
				}
				return domain.Movie{}, err
			}
			return *m, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &m, nil
}

// List returns movies matching f. Each filter combination is cached
// separately and every movie write drops all of them.
func (s *Service) List(ctx context.Context, f domain.MovieFilters) ([]domain.Movie, error) {
	const op = "service.movies.List"

	if err := validateFilters(f); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	key := redisx.KeyMoviesList(filtersVariant(f))

	movies, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.ListTTL,
		func(ctx context.Context) ([]domain.Movie, error) {
			return s.uow.Repos().Movies().List(ctx, f)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.cache.Track(ctx, redisx.KeyMoviesListIndex(), key, s.cfg.ListTTL); err != nil {
		s.log.Warn("track movie list cache key", "key", key, "err", err)
	}

	if movies == nil {
		movies = []domain.Movie{}
	}

	return movies, nil
}

// Update replaces the movie's fields. Only the owning admin may update it.
func (s *Service) Update(ctx context.Context, id, adminID uuid.UUID, in MovieInput) (*domain.Movie, error) {
	const op = "service.movies.Update"

	m, err := in.toMovie()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var updated *domain.Movie

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		cur, err := s.owned(ctx, tx, id, adminID)
		if err != nil {
			return err
		}

		m.ID = cur.ID
		if err := tx.Movies().Update(ctx, &m); err != nil {
			return err
		}

		if updated, err = tx.Movies().Get(ctx, id); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.invalidate(ctx, id) })

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return updated, nil
}

// Delete removes a movie owned by adminID together with all of its
// bookings, which are also detached from their users.
//
// Returns:
//   - *domain.Movie: the movie as it was before removal.
//   - error: movies.ErrMovieNotFound, movies.ErrNotOwner.
func (s *Service) Delete(ctx context.Context, id, adminID uuid.UUID) (*domain.Movie, error) {
	const op = "service.movies.Delete"

	var removed *domain.Movie

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		m, err := s.owned(ctx, tx, id, adminID)
		if err != nil {
			return err
		}

		if _, err := s.bookings.RemoveAllForMovie(ctx, tx, after, id); err != nil {
			return err
		}

		if err := tx.Movies().Delete(ctx, id); err != nil {
			return err
		}

		removed = m

		after(func(ctx context.Context) { s.invalidate(ctx, id) })

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return removed, nil
}

func (s *Service) owned(ctx context.Context, tx repository.Tx, id, adminID uuid.UUID) (*domain.Movie, error) {
	m, err := tx.Movies().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}

	if m.AdminID != adminID {
		return nil, ErrNotOwner
	}

	return m, nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.InvalidateMovie(ctx, id); err != nil {
		s.log.Warn("invalidate movie cache", "movie_id", id, "err", err)
	}
}

func filtersVariant(f domain.MovieFilters) string {
	featured := "any"
	if f.Featured != nil {
		featured = strconv.FormatBool(*f.Featured)
	}

	return strings.Join([]string{
		featured,
		strings.ToLower(strings.TrimSpace(f.Term)),
		f.Sort,
		strconv.Itoa(f.Limit),
		strconv.Itoa(f.Offset),
	}, "|")
}
