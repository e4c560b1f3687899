package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/kirinyoku/cinebook/internal/broker"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/mocks"
	"github.com/kirinyoku/cinebook/internal/repository"
	"github.com/kirinyoku/cinebook/internal/service/booking"
	"github.com/kirinyoku/cinebook/internal/uow"
)

var errSerialization = errors.New("could not serialize access")

type BookingServiceSuite struct {
	suite.Suite

	ctx      context.Context
	store    *mocks.Store
	events   *mocks.MockEventPublisher
	notifier *mocks.MockChangeNotifier
	svc      *booking.Service

	alice domain.User
	dune  domain.Movie
}

func TestBookingServiceSuite(t *testing.T) {
	suite.Run(t, new(BookingServiceSuite))
}

func (s *BookingServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = mocks.NewStore()
	s.store.RetryIf = func(err error) bool { return errors.Is(err, errSerialization) }

	s.events = new(mocks.MockEventPublisher)
	s.events.On("PublishBookingCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	s.events.On("PublishBookingDeleted", mock.Anything, mock.Anything).Return(nil).Maybe()

	s.notifier = new(mocks.MockChangeNotifier)
	s.notifier.On("PublishBookingsChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Maybe()

	s.svc = booking.New(booking.Deps{
		UoW:      uow.NewUoW(s.store),
		Notifier: s.notifier,
		Events:   s.events,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, booking.Config{})

	s.alice = s.seedUser("Alice", "alice@example.com")
	s.dune = s.seedMovie("Dune")
	s.store.ResetCalls()
}

func (s *BookingServiceSuite) seedUser(name, email string) domain.User {
	u := domain.User{ID: uuid.New(), Name: name, Email: email, PasswordHash: "x"}
	s.Require().NoError(s.store.Users().Create(s.ctx, &u))
	return u
}

func (s *BookingServiceSuite) seedMovie(title string) domain.Movie {
	admin := domain.Admin{ID: uuid.New(), Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	s.Require().NoError(s.store.Admins().Create(s.ctx, &admin))

	m := domain.Movie{
		ID:          uuid.New(),
		Title:       title,
		Description: title + " description",
		Actors:      []string{"Timothée Chalamet"},
		ReleaseDate: time.Date(2021, 10, 22, 0, 0, 0, 0, time.UTC),
		PosterURL:   "https://posters.example.com/" + title + ".jpg",
		AdminID:     admin.ID,
	}
	s.Require().NoError(s.store.Movies().Create(s.ctx, &m))
	return m
}

func (s *BookingServiceSuite) input(seat, date string) booking.CreateInput {
	return booking.CreateInput{
		MovieID:    s.dune.ID.String(),
		SeatNumber: seat,
		Date:       date,
		UserID:     s.alice.ID.String(),
	}
}

func (s *BookingServiceSuite) requireUntouched() {
	snap := s.store.Snapshot()
	s.Empty(snap.Bookings)
	s.Empty(snap.UserIndex)
	s.Empty(snap.MovieIndex)
}

func (s *BookingServiceSuite) TestCreateThenDelete_AliceBooksDune() {
	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), s.alice.ID)
	s.Require().NoError(err)

	s.Equal("A5", view.SeatNumber)
	s.Equal(s.dune.ID, view.MovieID)
	s.Equal(s.alice.ID, view.UserID)
	s.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), view.Date)
	s.Equal("Dune", view.MovieTitle)
	s.Equal("Alice", view.UserName)

	got, err := s.svc.Get(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(view.Booking, *got)

	user, err := s.store.Users().Get(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{view.ID}, user.Bookings)

	movie, err := s.store.Movies().Get(s.ctx, s.dune.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{view.ID}, movie.Bookings)

	list, err := s.svc.ListForUser(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(view.ID, list[0].ID)
	s.Equal(s.dune.PosterURL, list[0].MoviePosterURL)

	deleted, err := s.svc.Delete(s.ctx, view.ID, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(view.Booking, *deleted)

	_, err = s.svc.Get(s.ctx, view.ID)
	s.ErrorIs(err, booking.ErrBookingNotFound)
	s.ErrorIs(err, domain.ErrNotFound)

	user, err = s.store.Users().Get(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.NotContains(user.Bookings, view.ID)

	movie, err = s.store.Movies().Get(s.ctx, s.dune.ID)
	s.Require().NoError(err)
	s.NotContains(movie.Bookings, view.ID)

	s.events.AssertNumberOfCalls(s.T(), "PublishBookingCreated", 1)
	s.events.AssertNumberOfCalls(s.T(), "PublishBookingDeleted", 1)
	s.notifier.AssertCalled(s.T(), "PublishBookingsChanged", mock.Anything, "booking_created", s.alice.ID, s.dune.ID)
	s.notifier.AssertCalled(s.T(), "PublishBookingsChanged", mock.Anything, "booking_deleted", s.alice.ID, s.dune.ID)
}

func (s *BookingServiceSuite) TestCreate_UnknownReferences() {
	tests := []struct {
		name    string
		mutate  func(in *booking.CreateInput)
		wantErr error
	}{
		{
			name:    "unknown movie",
			mutate:  func(in *booking.CreateInput) { in.MovieID = uuid.NewString() },
			wantErr: booking.ErrMovieNotFound,
		},
		{
			name:    "unknown user",
			mutate:  func(in *booking.CreateInput) { in.UserID = uuid.NewString() },
			wantErr: booking.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			in := s.input("A5", "2025-01-01")
			tt.mutate(&in)

			_, err := s.svc.Create(s.ctx, in, uuid.Nil)
			s.ErrorIs(err, tt.wantErr)
			s.ErrorIs(err, domain.ErrNotFound)

			s.requireUntouched()
			s.NotContains(s.store.Calls(), "Bookings.Create")
			s.NotContains(s.store.Calls(), "Index.Attach")
		})
	}

	s.events.AssertNotCalled(s.T(), "PublishBookingCreated", mock.Anything, mock.Anything)
}

func (s *BookingServiceSuite) TestCreate_InvalidInputTouchesNothing() {
	tests := []struct {
		name      string
		in        booking.CreateInput
		wantField string
	}{
		{name: "unparseable date", in: s.input("A5", "next tuesday"), wantField: "date"},
		{name: "impossible date", in: s.input("A5", "2025-02-30"), wantField: "date"},
		{name: "missing date", in: s.input("A5", ""), wantField: "date"},
		{name: "missing seat", in: s.input("  ", "2025-01-01"), wantField: "seatNumber"},
		{
			name:      "missing movie",
			in:        booking.CreateInput{SeatNumber: "A5", Date: "2025-01-01", UserID: s.alice.ID.String()},
			wantField: "movieName",
		},
		{
			name:      "malformed user",
			in:        booking.CreateInput{MovieID: s.dune.ID.String(), SeatNumber: "A5", Date: "2025-01-01", UserID: "u1"},
			wantField: "user",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Create(s.ctx, tt.in, uuid.Nil)
			s.Require().ErrorIs(err, domain.ErrValidation)

			var verr *domain.ValidationError
			s.Require().ErrorAs(err, &verr)
			s.Contains(verr.FieldErrors, tt.wantField)

			s.Empty(s.store.Calls())
		})
	}
}

func (s *BookingServiceSuite) TestCreate_StoresDateInUTC() {
	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01T19:30:00+02:00"), uuid.Nil)
	s.Require().NoError(err)

	s.True(time.Date(2025, 1, 1, 17, 30, 0, 0, time.UTC).Equal(view.Date))
	s.Equal(time.UTC, view.Date.Location())
}

func (s *BookingServiceSuite) TestCreate_OnBehalfOfAnotherUser() {
	bob := s.seedUser("Bob", "bob@example.com")
	s.store.ResetCalls()

	_, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), bob.ID)
	s.ErrorIs(err, booking.ErrNotOwner)
	s.ErrorIs(err, domain.ErrForbidden)
	s.Empty(s.store.Calls())
}

func (s *BookingServiceSuite) TestCreate_FailureRollsBackEverything() {
	for _, op := range []string{"Bookings.Create", "Index.Attach"} {
		s.Run(op, func() {
			s.store.FailOn(op, errors.New("connection reset"))

			_, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
			s.Require().Error(err)
			s.NotErrorIs(err, domain.ErrNotFound)
			s.NotErrorIs(err, domain.ErrValidation)

			s.requireUntouched()
		})
	}

	s.events.AssertNotCalled(s.T(), "PublishBookingCreated", mock.Anything, mock.Anything)
	s.notifier.AssertNotCalled(s.T(), "PublishBookingsChanged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *BookingServiceSuite) TestCreate_RetriesSerializationFailure() {
	s.store.FailOn("Index.Attach", errSerialization)

	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)

	snap := s.store.Snapshot()
	s.Len(snap.Bookings, 1)
	s.Equal([]uuid.UUID{view.ID}, snap.UserIndex[s.alice.ID])
	s.Equal([]uuid.UUID{view.ID}, snap.MovieIndex[s.dune.ID])

	s.events.AssertNumberOfCalls(s.T(), "PublishBookingCreated", 1)
}

func (s *BookingServiceSuite) TestCreate_SameSeatTwiceIsAllowed() {
	first, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)

	second, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.Len(s.store.Snapshot().Bookings, 2)
}

func (s *BookingServiceSuite) TestDelete_UnknownPerformsNoWrites() {
	_, err := s.svc.Delete(s.ctx, uuid.New(), uuid.Nil)
	s.ErrorIs(err, booking.ErrBookingNotFound)

	s.Equal([]string{"Bookings.GetForUpdate"}, s.store.Calls())
	s.events.AssertNotCalled(s.T(), "PublishBookingDeleted", mock.Anything, mock.Anything)
}

func (s *BookingServiceSuite) TestDelete_Twice() {
	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)

	_, err = s.svc.Delete(s.ctx, view.ID, uuid.Nil)
	s.Require().NoError(err)

	_, err = s.svc.Delete(s.ctx, view.ID, uuid.Nil)
	s.ErrorIs(err, booking.ErrBookingNotFound)

	s.events.AssertNumberOfCalls(s.T(), "PublishBookingDeleted", 1)
	s.requireUntouched()
}

func (s *BookingServiceSuite) TestDelete_DetachesBeforeDeleting() {
	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)
	s.store.ResetCalls()

	_, err = s.svc.Delete(s.ctx, view.ID, uuid.Nil)
	s.Require().NoError(err)

	s.Equal([]string{"Bookings.GetForUpdate", "Index.Detach", "Bookings.Delete"}, s.store.Calls())
}

func (s *BookingServiceSuite) TestDelete_FailureKeepsBookingAttached() {
	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)

	s.store.FailOn("Bookings.Delete", errors.New("connection reset"))

	_, err = s.svc.Delete(s.ctx, view.ID, uuid.Nil)
	s.Require().Error(err)

	snap := s.store.Snapshot()
	s.Contains(snap.Bookings, view.ID)
	s.Equal([]uuid.UUID{view.ID}, snap.UserIndex[s.alice.ID])
	s.Equal([]uuid.UUID{view.ID}, snap.MovieIndex[s.dune.ID])
	s.events.AssertNotCalled(s.T(), "PublishBookingDeleted", mock.Anything, mock.Anything)
}

func (s *BookingServiceSuite) TestDelete_OtherUsersBooking() {
	view, err := s.svc.Create(s.ctx, s.input("A5", "2025-01-01"), uuid.Nil)
	s.Require().NoError(err)

	_, err = s.svc.Delete(s.ctx, view.ID, uuid.New())
	s.ErrorIs(err, booking.ErrNotOwner)

	s.Contains(s.store.Snapshot().Bookings, view.ID)
}

func (s *BookingServiceSuite) TestListForUser() {
	s.Run("unknown user", func() {
		_, err := s.svc.ListForUser(s.ctx, uuid.New())
		s.ErrorIs(err, booking.ErrUserNotFound)
	})

	s.Run("no bookings", func() {
		list, err := s.svc.ListForUser(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.NotNil(list)
		s.Empty(list)
	})

	s.Run("most recent date first", func() {
		for _, d := range []string{"2025-01-01", "2025-03-01", "2025-02-01"} {
			_, err := s.svc.Create(s.ctx, s.input("B1", d), uuid.Nil)
			s.Require().NoError(err)
		}

		list, err := s.svc.ListForUser(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Require().Len(list, 3)

		s.Equal(time.March, list[0].Date.Month())
		s.Equal(time.February, list[1].Date.Month())
		s.Equal(time.January, list[2].Date.Month())
		for _, v := range list {
			s.Equal("Dune", v.MovieTitle)
		}
	})
}

func (s *BookingServiceSuite) TestRemoveAllForMovie() {
	bob := s.seedUser("Bob", "bob@example.com")
	arrival := s.seedMovie("Arrival")

	for _, u := range []domain.User{s.alice, bob} {
		in := s.input("C3", "2025-01-01")
		in.UserID = u.ID.String()
		_, err := s.svc.Create(s.ctx, in, uuid.Nil)
		s.Require().NoError(err)
	}

	kept, err := s.svc.Create(s.ctx, booking.CreateInput{
		MovieID:    arrival.ID.String(),
		SeatNumber: "D4",
		Date:       "2025-01-02",
		UserID:     s.alice.ID.String(),
	}, uuid.Nil)
	s.Require().NoError(err)

	var removed int
	err = uow.NewUoW(s.store).Do(s.ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		var err error
		removed, err = s.svc.RemoveAllForMovie(ctx, tx, after, s.dune.ID)
		return err
	})
	s.Require().NoError(err)
	s.Equal(2, removed)

	snap := s.store.Snapshot()
	s.Len(snap.Bookings, 1)
	s.Contains(snap.Bookings, kept.ID)
	s.Empty(snap.MovieIndex[s.dune.ID])
	s.Empty(snap.UserIndex[bob.ID])
	s.Equal([]uuid.UUID{kept.ID}, snap.UserIndex[s.alice.ID])

	s.events.AssertCalled(s.T(), "PublishBookingDeleted", mock.Anything, mock.MatchedBy(func(ev broker.BookingEvent) bool {
		return ev.UserID == bob.ID && ev.MovieID == s.dune.ID
	}))
}

func TestCreate_PublisherFailureDoesNotFailBooking(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()

	user := domain.User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, store.Users().Create(ctx, &user))
	admin := domain.Admin{ID: uuid.New(), Email: "root@example.com"}
	require.NoError(t, store.Admins().Create(ctx, &admin))
	movie := domain.Movie{ID: uuid.New(), Title: "Dune", AdminID: admin.ID}
	require.NoError(t, store.Movies().Create(ctx, &movie))

	events := new(mocks.MockEventPublisher)
	events.On("PublishBookingCreated", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	svc := booking.New(booking.Deps{
		UoW:    uow.NewUoW(store),
		Events: events,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, booking.Config{})

	view, err := svc.Create(ctx, booking.CreateInput{
		MovieID:    movie.ID.String(),
		SeatNumber: "A1",
		Date:       "2025-01-01",
		UserID:     user.ID.String(),
	}, user.ID)
	require.NoError(t, err)
	require.Contains(t, store.Snapshot().Bookings, view.ID)
	events.AssertExpectations(t)
}
