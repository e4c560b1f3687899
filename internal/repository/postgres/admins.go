package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinebook/internal/domain"
)

const adminColumns = `a.id, a.email, a.password_hash, a.created_at,
	COALESCE((SELECT array_agg(m.id::text ORDER BY m.created_at, m.id)
		FROM movies m WHERE m.admin_id = a.id), '{}')`

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) Create(ctx context.Context, a *domain.Admin) error {
	const op = "postgres.AdminRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO admins(id, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		a.ID, a.Email, a.PasswordHash,
	).Scan(&a.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *AdminRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	const op = "postgres.AdminRepo.Get"

	a, err := scanAdmin(r.handle().QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins a WHERE a.id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	const op = "postgres.AdminRepo.GetByEmail"

	a, err := scanAdmin(r.handle().QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins a WHERE lower(a.email) = lower($1)`, email,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

func (r *AdminRepo) List(ctx context.Context) ([]domain.Admin, error) {
	const op = "postgres.AdminRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+adminColumns+` FROM admins a ORDER BY a.created_at, a.id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := make([]domain.Admin, 0)
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanAdmin(row rowScanner) (*domain.Admin, error) {
	var (
		a   domain.Admin
		ids []string
	)

	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &ids); err != nil {
		return nil, err
	}

	movies, err := parseUUIDs(ids)
	if err != nil {
		return nil, err
	}
	a.AddedMovies = movies

	return &a, nil
}
