package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinebook/internal/repository"
)

const defaultTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool     *pgxpool.Pool
	attempts int
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		attempts: defaultTxAttempts,
	}
}

// RunTx runs fn inside a transaction. The transaction is rolled back on
// every exit path that does not reach Commit. Serialization failures and
// deadlocks abort the whole attempt, so fn is re-run from scratch up to
// a bounded number of times.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.runTxOnce(ctx, txOpts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return err
}

func (s *Store) runTxOnce(
	ctx context.Context,
	txOpts pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepos{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Users() repository.Users        { return &UserRepo{pool: s.pool} }
func (s *Store) Admins() repository.Admins      { return &AdminRepo{pool: s.pool} }
func (s *Store) Movies() repository.Movies      { return &MovieRepo{pool: s.pool} }
func (s *Store) Bookings() repository.Bookings  { return &BookingRepo{pool: s.pool} }
func (s *Store) Index() repository.BookingIndex { return &IndexRepo{pool: s.pool} }

// txRepos binds every repository to the same transaction handle.
type txRepos struct {
	db DB
}

func (t txRepos) Users() repository.Users        { return &UserRepo{db: t.db} }
func (t txRepos) Admins() repository.Admins      { return &AdminRepo{db: t.db} }
func (t txRepos) Movies() repository.Movies      { return &MovieRepo{db: t.db} }
func (t txRepos) Bookings() repository.Bookings  { return &BookingRepo{db: t.db} }
func (t txRepos) Index() repository.BookingIndex { return &IndexRepo{db: t.db} }
