package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/cinebook/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// Store runs a function inside a transaction. Implementations may call fn
// more than once when an attempt fails with a retryable error.
type Store interface {
	repository.Tx
	RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

// UoW represents a unit of work.
type UoW struct {
	store Store
}

func NewUoW(store Store) *UoW {
	return &UoW{store: store}
}

// Repos returns repositories bound to the connection pool, for reads that
// do not need a transaction.
func (u *UoW) Repos() repository.Tx {
	return u.store
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. After a successful commit,
// it executes the hooks registered by the attempt that committed. Hooks outlive
// cancellation of ctx.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.RunTx(ctx, opts, func(ctx context.Context, tx repository.Tx) error {
		hooks = hooks[:0]

		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, h := range hooks {
		h(hookCtx)
	}

	return nil
}
