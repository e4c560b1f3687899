// Package mocks holds test doubles for the repository and integration
// interfaces.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
)

type indexEntry struct {
	owner   uuid.UUID
	booking uuid.UUID
}

type state struct {
	users      map[uuid.UUID]domain.User
	admins     map[uuid.UUID]domain.Admin
	movies     map[uuid.UUID]domain.Movie
	bookings   map[uuid.UUID]domain.Booking
	userIndex  []indexEntry
	movieIndex []indexEntry
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]domain.User),
		admins:   make(map[uuid.UUID]domain.Admin),
		movies:   make(map[uuid.UUID]domain.Movie),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	for k, v := range s.movies {
		v.Actors = append([]string(nil), v.Actors...)
		c.movies[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	c.userIndex = append([]indexEntry(nil), s.userIndex...)
	c.movieIndex = append([]indexEntry(nil), s.movieIndex...)

	return c
}

// Store is an in-memory implementation of uow.Store. Transactions run one
// at a time on a private copy of the data that replaces the committed copy
// only when fn succeeds.
type Store struct {
	txMu sync.Mutex

	mu        sync.Mutex
	committed *state
	failures  map[string][]error
	calls     []string
	clock     time.Time

	// RetryIf reports whether a failed attempt is re-run. Nil disables retries.
	RetryIf  func(error) bool
	Attempts int
}

func NewStore() *Store {
	return &Store{
		committed: newState(),
		failures:  make(map[string][]error),
		clock:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Attempts:  3,
	}
}

// FailOn queues err to be returned by the next calls of op, one error per
// call, for example FailOn("Index.Attach", err).
func (s *Store) FailOn(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[op] = append(s.failures[op], errs...)
}

// Calls returns every repository operation invoked so far, in order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
}

func (s *Store) RunTx(
	ctx context.Context,
	_ *pgx.TxOptions,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	attempts := s.Attempts
	if attempts <= 0 || s.RetryIf == nil {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		work := s.committed.clone()
		s.mu.Unlock()

		err = fn(ctx, &repos{store: s, st: work})
		if err == nil {
			s.mu.Lock()
			s.committed = work
			s.mu.Unlock()
			return nil
		}

		if s.RetryIf == nil || !s.RetryIf(err) {
			return err
		}
	}

	return err
}

func (s *Store) Users() repository.Users        { return &userRepo{s.pool()} }
func (s *Store) Admins() repository.Admins      { return &adminRepo{s.pool()} }
func (s *Store) Movies() repository.Movies      { return &movieRepo{s.pool()} }
func (s *Store) Bookings() repository.Bookings  { return &bookingRepo{s.pool()} }
func (s *Store) Index() repository.BookingIndex { return &indexRepo{s.pool()} }

// pool returns repositories that work on the committed data directly.
func (s *Store) pool() *repos {
	return &repos{store: s}
}

// enter records op, returns the injected failure if any and the state the
// call operates on. Calls outside a transaction lock the committed state
// until the returned release func runs.
func (s *Store) enter(r *repos, op string) (*state, func(), error) {
	s.mu.Lock()

	s.calls = append(s.calls, op)

	if q := s.failures[op]; len(q) > 0 {
		err := q[0]
		s.failures[op] = q[1:]
		s.mu.Unlock()
		return nil, func() {}, fmt.Errorf("mocks.%s:%w", op, err)
	}

	if r.st != nil {
		s.mu.Unlock()
		return r.st, func() {}, nil
	}

	return s.committed, s.mu.Unlock, nil
}

func (s *Store) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = s.clock.Add(time.Millisecond)

	return s.clock
}

type repos struct {
	store *Store
	st    *state
}

func (r *repos) Users() repository.Users        { return &userRepo{r} }
func (r *repos) Admins() repository.Admins      { return &adminRepo{r} }
func (r *repos) Movies() repository.Movies      { return &movieRepo{r} }
func (r *repos) Bookings() repository.Bookings  { return &bookingRepo{r} }
func (r *repos) Index() repository.BookingIndex { return &indexRepo{r} }

// Snapshot is a committed view of the store used in assertions.
type Snapshot struct {
	Users      map[uuid.UUID]domain.User
	Movies     map[uuid.UUID]domain.Movie
	Bookings   map[uuid.UUID]domain.Booking
	UserIndex  map[uuid.UUID][]uuid.UUID
	MovieIndex map[uuid.UUID][]uuid.UUID
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.committed.clone()
	snap := Snapshot{
		Users:      st.users,
		Movies:     st.movies,
		Bookings:   st.bookings,
		UserIndex:  make(map[uuid.UUID][]uuid.UUID),
		MovieIndex: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, e := range st.userIndex {
		snap.UserIndex[e.owner] = append(snap.UserIndex[e.owner], e.booking)
	}
	for _, e := range st.movieIndex {
		snap.MovieIndex[e.owner] = append(snap.MovieIndex[e.owner], e.booking)
	}

	return snap
}

// CorruptIndex writes raw index entries outside any transaction, so tests
// can set up states the services never produce.
func (s *Store) CorruptIndex(userEntries, movieEntries map[uuid.UUID]uuid.UUID, dropBooking uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for owner, b := range userEntries {
		s.committed.userIndex = append(s.committed.userIndex, indexEntry{owner: owner, booking: b})
	}
	for owner, b := range movieEntries {
		s.committed.movieIndex = append(s.committed.movieIndex, indexEntry{owner: owner, booking: b})
	}

	if dropBooking != uuid.Nil {
		s.committed.userIndex = removeEntries(s.committed.userIndex, dropBooking)
		s.committed.movieIndex = removeEntries(s.committed.movieIndex, dropBooking)
	}
}

func removeEntries(entries []indexEntry, booking uuid.UUID) []indexEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.booking != booking {
			out = append(out, e)
		}
	}

	return out
}

func idsOf(entries []indexEntry, owner uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0)
	for _, e := range entries {
		if e.owner == owner {
			out = append(out, e.booking)
		}
	}

	return out
}
