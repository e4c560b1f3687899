package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
)

const userColumns = `u.id, u.name, u.email, u.password_hash, u.created_at,
	COALESCE((SELECT array_agg(ub.booking_id::text ORDER BY ub.attached_at, ub.booking_id)
		FROM user_bookings ub WHERE ub.user_id = u.id), '{}')`

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO users(id, name, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a user together with its booking back-references.
//
// Returns:
//   - *domain.User: the user when found.
//   - error: repository.ErrNotFound if the user does not exist.
func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.UserRepo.Get"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) Lock(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.UserRepo.Lock"

	var u domain.User
	if err := r.handle().QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE id = $1
		 FOR SHARE`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.UserRepo.GetByEmail"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.email) = lower($1)`, email,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	const op = "postgres.UserRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+userColumns+` FROM users u ORDER BY u.created_at, u.id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Update"

	tag, err := r.handle().Exec(ctx,
		`UPDATE users
		 SET name = $2, email = $3, password_hash = $4
		 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.UserRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u   domain.User
		ids []string
	)

	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &ids); err != nil {
		return nil, err
	}

	bookings, err := parseUUIDs(ids)
	if err != nil {
		return nil, err
	}
	u.Bookings = bookings

	return &u, nil
}
