package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/auth"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/uow"
)

// BookingRemover deletes every booking of a user inside a transaction.
type BookingRemover interface {
	RemoveAllForUser(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit), userID uuid.UUID) (int, error)
}

type Config struct {
	BcryptCost int
}

type Service struct {
	uow      *uow.UoW
	bookings BookingRemover
	issuer   *auth.Issuer
	cache    *redisrepo.Cache
	log      *slog.Logger
	cfg      Config
}

func New(
	u *uow.UoW,
	bookings BookingRemover,
	issuer *auth.Issuer,
	cache *redisrepo.Cache,
	log *slog.Logger,
	cfg Config,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		uow:      u,
		bookings: bookings,
		issuer:   issuer,
		cache:    cache,
		log:      log,
		cfg:      cfg,
	}
}

// LoginResult is a signed access token and the account it belongs to.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// SignUp registers a new user.
//
// Returns:
//   - *domain.User: the created user with no bookings.
//   - error: *domain.ValidationError, users.ErrEmailTaken if the email is
//     already registered.
func (s *Service) SignUp(ctx context.Context, in AccountInput) (*domain.User, error) {
	const op = "service.users.SignUp"

	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Bookings:     []uuid.UUID{},
	}

	if err := s.uow.Repos().Users().Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return u, nil
}

// Login checks the credentials and issues a user token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "service.users.Login"

	u, err := s.uow.Repos().Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	token, exp, err := s.issuer.Issue(u.ID, domain.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	const op = "service.users.List"

	users, err := s.uow.Repos().Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return users, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "service.users.Get"

	u, err := s.uow.Repos().Users().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return u, nil
}

// Update replaces the name, email and password of the caller's own account.
//
// Returns:
//   - error: users.ErrNotSelf when actorID differs from id,
//     users.ErrUserNotFound, users.ErrEmailTaken.
func (s *Service) Update(ctx context.Context, id, actorID uuid.UUID, in AccountInput) (*domain.User, error) {
	const op = "service.users.Update"

	if id != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotSelf)
	}

	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var updated *domain.User

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		u := &domain.User{ID: id, Name: in.Name, Email: in.Email, PasswordHash: hash}
		if err := tx.Users().Update(ctx, u); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return ErrUserNotFound
			case errors.Is(err, repository.ErrConflict):
				return ErrEmailTaken
			}
			return err
		}

		var err error
		updated, err = tx.Users().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return updated, nil
}

// Delete removes the caller's own account together with all of its
// bookings, which are also detached from their movies.
//
// Returns:
//   - *domain.User: the account as it was before removal.
//   - error: users.ErrNotSelf, users.ErrUserNotFound.
func (s *Service) Delete(ctx context.Context, id, actorID uuid.UUID) (*domain.User, error) {
	const op = "service.users.Delete"

	if id != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotSelf)
	}

	var removed *domain.User

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		u, err := tx.Users().Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if _, err := s.bookings.RemoveAllForUser(ctx, tx, after, id); err != nil {
			return err
		}

		if err := tx.Users().Delete(ctx, id); err != nil {
			return err
		}

		removed = u

		after(func(ctx context.Context) {
			if err := s.cache.InvalidateUserBookings(ctx, id); err != nil {
				s.log.Warn("invalidate user bookings cache", "user_id", id, "err", err)
			}
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return removed, nil
}
