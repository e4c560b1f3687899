package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
)

func notFound(op string) error {
	return fmt.Errorf("mocks.%s:%w", op, repository.ErrNotFound)
}

func conflict(op, what string) error {
	return fmt.Errorf("mocks.%s:%w: %s", op, repository.ErrConflict, what)
}

type userRepo struct{ r *repos }

func (u *userRepo) Create(_ context.Context, user *domain.User) error {
	const op = "Users.Create"
	now := u.r.store.now()

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return err
	}
	defer release()

	for _, other := range st.users {
		if strings.EqualFold(other.Email, user.Email) {
			return conflict(op, "users_email_key")
		}
	}

	user.CreatedAt = now
	stored := *user
	stored.Bookings = nil
	st.users[user.ID] = stored

	return nil
}

func (u *userRepo) Get(_ context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "Users.Get"

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	user, ok := st.users[id]
	if !ok {
		return nil, notFound(op)
	}
	user.Bookings = idsOf(st.userIndex, id)

	return &user, nil
}

func (u *userRepo) Lock(_ context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "Users.Lock"

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	user, ok := st.users[id]
	if !ok {
		return nil, notFound(op)
	}

	return &user, nil
}

func (u *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	const op = "Users.GetByEmail"

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, user := range st.users {
		if strings.EqualFold(user.Email, email) {
			user.Bookings = idsOf(st.userIndex, user.ID)
			return &user, nil
		}
	}

	return nil, notFound(op)
}

func (u *userRepo) List(_ context.Context) ([]domain.User, error) {
	const op = "Users.List"

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]domain.User, 0, len(st.users))
	for _, user := range st.users {
		user.Bookings = idsOf(st.userIndex, user.ID)
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (u *userRepo) Update(_ context.Context, user *domain.User) error {
	const op = "Users.Update"

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return err
	}
	defer release()

	cur, ok := st.users[user.ID]
	if !ok {
		return notFound(op)
	}

	for id, other := range st.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return conflict(op, "users_email_key")
		}
	}

	cur.Name, cur.Email, cur.PasswordHash = user.Name, user.Email, user.PasswordHash
	st.users[user.ID] = cur

	return nil
}

func (u *userRepo) Delete(_ context.Context, id uuid.UUID) error {
	const op = "Users.Delete"

	st, release, err := u.r.store.enter(u.r, op)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := st.users[id]; !ok {
		return notFound(op)
	}
	delete(st.users, id)

	return nil
}

type adminRepo struct{ r *repos }

func (a *adminRepo) Create(_ context.Context, admin *domain.Admin) error {
	const op = "Admins.Create"
	now := a.r.store.now()

	st, release, err := a.r.store.enter(a.r, op)
	if err != nil {
		return err
	}
	defer release()

	for _, other := range st.admins {
		if strings.EqualFold(other.Email, admin.Email) {
			return conflict(op, "admins_email_key")
		}
	}

	admin.CreatedAt = now
	stored := *admin
	stored.AddedMovies = nil
	st.admins[admin.ID] = stored

	return nil
}

func (a *adminRepo) Get(_ context.Context, id uuid.UUID) (*domain.Admin, error) {
	const op = "Admins.Get"

	st, release, err := a.r.store.enter(a.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	admin, ok := st.admins[id]
	if !ok {
		return nil, notFound(op)
	}
	admin.AddedMovies = moviesOf(st, id)

	return &admin, nil
}

func (a *adminRepo) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	const op = "Admins.GetByEmail"

	st, release, err := a.r.store.enter(a.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, admin := range st.admins {
		if strings.EqualFold(admin.Email, email) {
			admin.AddedMovies = moviesOf(st, admin.ID)
			return &admin, nil
		}
	}

	return nil, notFound(op)
}

func (a *adminRepo) List(_ context.Context) ([]domain.Admin, error) {
	const op = "Admins.List"

	st, release, err := a.r.store.enter(a.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]domain.Admin, 0, len(st.admins))
	for _, admin := range st.admins {
		admin.AddedMovies = moviesOf(st, admin.ID)
		out = append(out, admin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func moviesOf(st *state, adminID uuid.UUID) []uuid.UUID {
	owned := make([]domain.Movie, 0)
	for _, m := range st.movies {
		if m.AdminID == adminID {
			owned = append(owned, m)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })

	ids := make([]uuid.UUID, 0, len(owned))
	for _, m := range owned {
		ids = append(ids, m.ID)
	}

	return ids
}

type movieRepo struct{ r *repos }

func (m *movieRepo) Create(_ context.Context, movie *domain.Movie) error {
	const op = "Movies.Create"
	now := m.r.store.now()

	st, release, err := m.r.store.enter(m.r, op)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := st.admins[movie.AdminID]; !ok {
		return fmt.Errorf("mocks.%s: movies_admin_id_fkey", op)
	}

	movie.CreatedAt = now
	stored := *movie
	stored.Bookings = nil
	stored.Actors = append([]string(nil), movie.Actors...)
	st.movies[movie.ID] = stored

	return nil
}

func (m *movieRepo) Get(_ context.Context, id uuid.UUID) (*domain.Movie, error) {
	const op = "Movies.Get"

	st, release, err := m.r.store.enter(m.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	movie, ok := st.movies[id]
	if !ok {
		return nil, notFound(op)
	}
	movie.Bookings = idsOf(st.movieIndex, id)

	return &movie, nil
}

func (m *movieRepo) Lock(_ context.Context, id uuid.UUID) (*domain.Movie, error) {
	const op = "Movies.Lock"

	st, release, err := m.r.store.enter(m.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	movie, ok := st.movies[id]
	if !ok {
		return nil, notFound(op)
	}

	return &movie, nil
}

func (m *movieRepo) List(_ context.Context, f domain.MovieFilters) ([]domain.Movie, error) {
	const op = "Movies.List"

	st, release, err := m.r.store.enter(m.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	term := strings.ToLower(strings.TrimSpace(f.Term))

	out := make([]domain.Movie, 0)
	for _, movie := range st.movies {
		if f.Featured != nil && movie.Featured != *f.Featured {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(movie.Title), term) {
			continue
		}
		movie.Bookings = idsOf(st.movieIndex, movie.ID)
		out = append(out, movie)
	}

	desc := strings.HasPrefix(f.Sort, "-")
	less := func(a, b domain.Movie) bool {
		switch strings.TrimPrefix(f.Sort, "-") {
		case "title":
			return a.Title < b.Title
		case "release_date":
			return a.ReleaseDate.Before(b.ReleaseDate)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []domain.Movie{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}

	return out, nil
}

func (m *movieRepo) Update(_ context.Context, movie *domain.Movie) error {
	const op = "Movies.Update"

	st, release, err := m.r.store.enter(m.r, op)
	if err != nil {
		return err
	}
	defer release()

	cur, ok := st.movies[movie.ID]
	if !ok {
		return notFound(op)
	}

	cur.Title, cur.Description, cur.PosterURL = movie.Title, movie.Description, movie.PosterURL
	cur.Actors = append([]string(nil), movie.Actors...)
	cur.ReleaseDate, cur.Featured = movie.ReleaseDate, movie.Featured
	st.movies[movie.ID] = cur

	return nil
}

func (m *movieRepo) Delete(_ context.Context, id uuid.UUID) error {
	const op = "Movies.Delete"

	st, release, err := m.r.store.enter(m.r, op)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := st.movies[id]; !ok {
		return notFound(op)
	}
	delete(st.movies, id)

	return nil
}

type bookingRepo struct{ r *repos }

func (b *bookingRepo) Create(_ context.Context, booking *domain.Booking) error {
	const op = "Bookings.Create"
	now := b.r.store.now()

	st, release, err := b.r.store.enter(b.r, op)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := st.bookings[booking.ID]; ok {
		return conflict(op, "bookings_pkey")
	}

	booking.CreatedAt = now
	st.bookings[booking.ID] = *booking

	return nil
}

func (b *bookingRepo) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	return b.get("Bookings.Get", id)
}

func (b *bookingRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	return b.get("Bookings.GetForUpdate", id)
}

func (b *bookingRepo) get(op string, id uuid.UUID) (*domain.Booking, error) {
	st, release, err := b.r.store.enter(b.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	booking, ok := st.bookings[id]
	if !ok {
		return nil, notFound(op)
	}

	return &booking, nil
}

func (b *bookingRepo) Delete(_ context.Context, id uuid.UUID) error {
	const op = "Bookings.Delete"

	st, release, err := b.r.store.enter(b.r, op)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := st.bookings[id]; !ok {
		return notFound(op)
	}
	delete(st.bookings, id)

	return nil
}

func (b *bookingRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.BookingView, error) {
	const op = "Bookings.ListByUser"

	st, release, err := b.r.store.enter(b.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]domain.BookingView, 0)
	for _, booking := range st.bookings {
		if booking.UserID != userID {
			continue
		}
		v := domain.BookingView{Booking: booking}
		if m, ok := st.movies[booking.MovieID]; ok {
			v.MovieTitle, v.MoviePosterURL = m.Title, m.PosterURL
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (b *bookingRepo) ListByMovie(_ context.Context, movieID uuid.UUID) ([]domain.Booking, error) {
	const op = "Bookings.ListByMovie"

	st, release, err := b.r.store.enter(b.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]domain.Booking, 0)
	for _, booking := range st.bookings {
		if booking.MovieID == movieID {
			out = append(out, booking)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

type indexRepo struct{ r *repos }

func (x *indexRepo) Attach(_ context.Context, b domain.Booking) error {
	const op = "Index.Attach"

	st, release, err := x.r.store.enter(x.r, op)
	if err != nil {
		return err
	}
	defer release()

	st.userIndex = appendUnique(st.userIndex, indexEntry{owner: b.UserID, booking: b.ID})
	st.movieIndex = appendUnique(st.movieIndex, indexEntry{owner: b.MovieID, booking: b.ID})

	return nil
}

func (x *indexRepo) Detach(_ context.Context, b domain.Booking) error {
	const op = "Index.Detach"

	st, release, err := x.r.store.enter(x.r, op)
	if err != nil {
		return err
	}
	defer release()

	st.userIndex = removeEntries(st.userIndex, b.ID)
	st.movieIndex = removeEntries(st.movieIndex, b.ID)

	return nil
}

func (x *indexRepo) UserBookingIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	const op = "Index.UserBookingIDs"

	st, release, err := x.r.store.enter(x.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	return idsOf(st.userIndex, userID), nil
}

func (x *indexRepo) MovieBookingIDs(_ context.Context, movieID uuid.UUID) ([]uuid.UUID, error) {
	const op = "Index.MovieBookingIDs"

	st, release, err := x.r.store.enter(x.r, op)
	if err != nil {
		return nil, err
	}
	defer release()

	return idsOf(st.movieIndex, movieID), nil
}

func (x *indexRepo) RemoveDangling(_ context.Context) (int64, error) {
	const op = "Index.RemoveDangling"

	st, release, err := x.r.store.enter(x.r, op)
	if err != nil {
		return 0, err
	}
	defer release()

	var removed int64

	keep := st.userIndex[:0:0]
	for _, e := range st.userIndex {
		if b, ok := st.bookings[e.booking]; ok && b.UserID == e.owner {
			keep = append(keep, e)
			continue
		}
		removed++
	}
	st.userIndex = keep

	keep = st.movieIndex[:0:0]
	for _, e := range st.movieIndex {
		if b, ok := st.bookings[e.booking]; ok && b.MovieID == e.owner {
			keep = append(keep, e)
			continue
		}
		removed++
	}
	st.movieIndex = keep

	return removed, nil
}

func (x *indexRepo) AttachMissing(_ context.Context) (int64, error) {
	const op = "Index.AttachMissing"

	st, release, err := x.r.store.enter(x.r, op)
	if err != nil {
		return 0, err
	}
	defer release()

	bookings := make([]domain.Booking, 0, len(st.bookings))
	for _, b := range st.bookings {
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].CreatedAt.Before(bookings[j].CreatedAt) })

	var attached int64
	for _, b := range bookings {
		if !hasEntry(st.userIndex, b.UserID, b.ID) {
			st.userIndex = append(st.userIndex, indexEntry{owner: b.UserID, booking: b.ID})
			attached++
		}
		if !hasEntry(st.movieIndex, b.MovieID, b.ID) {
			st.movieIndex = append(st.movieIndex, indexEntry{owner: b.MovieID, booking: b.ID})
			attached++
		}
	}

	return attached, nil
}

func hasEntry(entries []indexEntry, owner, booking uuid.UUID) bool {
	for _, e := range entries {
		if e.owner == owner && e.booking == booking {
			return true
		}
	}

	return false
}

func appendUnique(entries []indexEntry, e indexEntry) []indexEntry {
	if hasEntry(entries, e.owner, e.booking) {
		return entries
	}

	return append(entries, e)
}
