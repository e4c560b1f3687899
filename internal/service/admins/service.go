package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/auth"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
	"github.com/kirinyoku/cinebook/internal/service/users"
	"github.com/kirinyoku/cinebook/internal/uow"
)

const minPasswordLen = 6

type Config struct {
	BcryptCost int
}

type Service struct {
	uow    *uow.UoW
	issuer *auth.Issuer
	cfg    Config
}

func New(u *uow.UoW, issuer *auth.Issuer, cfg Config) *Service {
	return &Service{uow: u, issuer: issuer, cfg: cfg}
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     *domain.Admin
}

// Add provisions a new admin account.
//
// Returns:
//   - *domain.Admin: the created admin with no movies.
//   - error: *domain.ValidationError, admins.ErrEmailTaken.
func (s *Service) Add(ctx context.Context, email, password string) (*domain.Admin, error) {
	const op = "service.admins.Add"

	email = strings.ToLower(strings.TrimSpace(email))

	verr := domain.NewValidationError()
	users.ValidateEmail(verr, email)
	if utf8.RuneCountInString(password) < minPasswordLen {
		verr.Add("password", "must be at least 6 characters")
	}
	if err := verr.OrNil(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	a := &domain.Admin{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		AddedMovies:  []uuid.UUID{},
	}

	if err := s.uow.Repos().Admins().Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return a, nil
}

// Login checks the credentials and issues an admin token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "service.admins.Login"

	a, err := s.uow.Repos().Admins().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !auth.VerifyPassword(a.PasswordHash, password) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	token, exp, err := s.issuer.Issue(a.ID, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &LoginResult{Token: token, ExpiresAt: exp, Admin: a}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Admin, error) {
	const op = "service.admins.List"

	admins, err := s.uow.Repos().Admins().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return admins, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	const op = "service.admins.Get"

	a, err := s.uow.Repos().Admins().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrAdminNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return a, nil
}
