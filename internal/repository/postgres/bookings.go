package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO bookings(id, movie_id, seat_number, date, user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		b.ID, b.MovieID, b.SeatNumber, b.Date, b.UserID,
	).Scan(&b.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT id, movie_id, seat_number, date, user_id, created_at
		 FROM bookings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetForUpdate"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT id, movie_id, seat_number, date, user_id, created_at
		 FROM bookings WHERE id = $1
		 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.BookingRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingView, error) {
	const op = "postgres.BookingRepo.ListByUser"

	rows, err := r.handle().Query(ctx,
		`SELECT b.id, b.movie_id, b.seat_number, b.date, b.user_id, b.created_at,
		        COALESCE(m.title, ''), COALESCE(m.poster_url, '')
		 FROM bookings b
		 LEFT JOIN movies m ON m.id = b.movie_id
		 WHERE b.user_id = $1
		 ORDER BY b.date DESC, b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := make([]domain.BookingView, 0)
	for rows.Next() {
		var v domain.BookingView
		if err := rows.Scan(
			&v.ID, &v.MovieID, &v.SeatNumber, &v.Date, &v.UserID, &v.CreatedAt,
			&v.MovieTitle, &v.MoviePosterURL,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *BookingRepo) ListByMovie(ctx context.Context, movieID uuid.UUID) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByMovie"

	rows, err := r.handle().Query(ctx,
		`SELECT id, movie_id, seat_number, date, user_id, created_at
		 FROM bookings
		 WHERE movie_id = $1
		 ORDER BY date DESC, created_at DESC`,
		movieID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.MovieID, &b.SeatNumber, &b.Date, &b.UserID, &b.CreatedAt); err != nil {
		return nil, err
	}

	return &b, nil
}
