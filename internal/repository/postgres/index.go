package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinebook/internal/domain"
)

// IndexRepo stores the user and movie back-references of bookings in the
// user_bookings and movie_bookings tables. The tables carry no foreign keys:
// they mirror the booking's forward references and are kept consistent by
// the booking service, with RemoveDangling and AttachMissing as repair.
type IndexRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *IndexRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Attach records the booking in both back-reference lists. Attaching an
// already attached booking is a no-op.
func (r *IndexRepo) Attach(ctx context.Context, b domain.Booking) error {
	const op = "postgres.IndexRepo.Attach"

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO user_bookings(user_id, booking_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		b.UserID, b.ID,
	)
	batch.Queue(
		`INSERT INTO movie_bookings(movie_id, booking_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		b.MovieID, b.ID,
	)

	return r.sendBatch(ctx, op, batch)
}

// Detach removes every back-reference to the booking, whichever user or
// movie it is listed under.
func (r *IndexRepo) Detach(ctx context.Context, b domain.Booking) error {
	const op = "postgres.IndexRepo.Detach"

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM user_bookings WHERE booking_id = $1`, b.ID)
	batch.Queue(`DELETE FROM movie_bookings WHERE booking_id = $1`, b.ID)

	return r.sendBatch(ctx, op, batch)
}

func (r *IndexRepo) UserBookingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	const op = "postgres.IndexRepo.UserBookingIDs"

	ids, err := r.collectIDs(ctx,
		`SELECT booking_id::text FROM user_bookings
		 WHERE user_id = $1
		 ORDER BY attached_at, booking_id`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

func (r *IndexRepo) MovieBookingIDs(ctx context.Context, movieID uuid.UUID) ([]uuid.UUID, error) {
	const op = "postgres.IndexRepo.MovieBookingIDs"

	ids, err := r.collectIDs(ctx,
		`SELECT booking_id::text FROM movie_bookings
		 WHERE movie_id = $1
		 ORDER BY attached_at, booking_id`,
		movieID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

// RemoveDangling deletes back-references whose booking no longer exists or
// points at a different owner.
//
// Returns:
//   - int64: number of index entries removed across both tables.
func (r *IndexRepo) RemoveDangling(ctx context.Context) (int64, error) {
	const op = "postgres.IndexRepo.RemoveDangling"

	db := r.handle()

	userTag, err := db.Exec(ctx,
		`DELETE FROM user_bookings ub
		 WHERE NOT EXISTS (
		     SELECT 1 FROM bookings b
		     WHERE b.id = ub.booking_id AND b.user_id = ub.user_id
		 )`,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	movieTag, err := db.Exec(ctx,
		`DELETE FROM movie_bookings mb
		 WHERE NOT EXISTS (
		     SELECT 1 FROM bookings b
		     WHERE b.id = mb.booking_id AND b.movie_id = mb.movie_id
		 )`,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return userTag.RowsAffected() + movieTag.RowsAffected(), nil
}

// AttachMissing inserts back-references for bookings that are missing them.
//
// Returns:
//   - int64: number of index entries inserted across both tables.
func (r *IndexRepo) AttachMissing(ctx context.Context) (int64, error) {
	const op = "postgres.IndexRepo.AttachMissing"

	db := r.handle()

	userTag, err := db.Exec(ctx,
		`INSERT INTO user_bookings(user_id, booking_id, attached_at)
		 SELECT b.user_id, b.id, b.created_at FROM bookings b
		 WHERE NOT EXISTS (
		     SELECT 1 FROM user_bookings ub
		     WHERE ub.booking_id = b.id AND ub.user_id = b.user_id
		 )
		 ON CONFLICT DO NOTHING`,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	movieTag, err := db.Exec(ctx,
		`INSERT INTO movie_bookings(movie_id, booking_id, attached_at)
		 SELECT b.movie_id, b.id, b.created_at FROM bookings b
		 WHERE NOT EXISTS (
		     SELECT 1 FROM movie_bookings mb
		     WHERE mb.booking_id = b.id AND mb.movie_id = b.movie_id
		 )
		 ON CONFLICT DO NOTHING`,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return userTag.RowsAffected() + movieTag.RowsAffected(), nil
}

func (r *IndexRepo) sendBatch(ctx context.Context, op string, batch *pgx.Batch) error {
	br := r.handle().SendBatch(ctx, batch)

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return wrapDBErr(op, err)
		}
	}

	if err := br.Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *IndexRepo) collectIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.handle().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	return parseUUIDs(raw)
}
