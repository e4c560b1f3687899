package httpgin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/cinebook/internal/auth"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/mocks"
	redisx "github.com/kirinyoku/cinebook/internal/redis"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/service"
	"github.com/kirinyoku/cinebook/internal/service/admins"
	"github.com/kirinyoku/cinebook/internal/service/users"
	httpgin "github.com/kirinyoku/cinebook/internal/transport/http/gin"
)

type fakeLimiter struct {
	mu       sync.Mutex
	decision redisrepo.Decision
	err      error
	hits     []string
}

func (l *fakeLimiter) Allow(_ context.Context, suffix string) (redisrepo.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = append(l.hits, suffix)
	return l.decision, l.err
}

type fakeIdempotency struct {
	mu   sync.Mutex
	vals map[string]redisrepo.IdempotentRequest
	// beforeWrite runs ahead of SaveResult and Release.
	beforeWrite func()
}

func (f *fakeIdempotency) AcquireLock(_ context.Context, key, fingerprint string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vals[key]; ok {
		return false, nil
	}
	f.vals[key] = redisrepo.IdempotentRequest{Fingerprint: fingerprint}
	return true, nil
}

func (f *fakeIdempotency) SaveResult(ctx context.Context, key, fingerprint, payload string) error {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vals[key] = redisrepo.IdempotentRequest{Fingerprint: fingerprint, Payload: payload, Done: true}
	return nil
}

func (f *fakeIdempotency) GetResult(_ context.Context, key string) (redisrepo.IdempotentRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vals[key]
	return v, ok, nil
}

func (f *fakeIdempotency) Release(ctx context.Context, key string) error {
	if f.beforeWrite != nil {
		f.beforeWrite()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vals, key)
	return nil
}

type testEnv struct {
	t       *testing.T
	store   *mocks.Store
	limiter *fakeLimiter
	idem    *fakeIdempotency
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := mocks.NewStore()
	issuer := auth.NewIssuer("test-secret", time.Hour)

	svcs := service.NewServices(service.Deps{
		Store:  store,
		Issuer: issuer,
		Log:    log,
	}, service.Config{
		Users:  users.Config{BcryptCost: 4},
		Admins: admins.Config{BcryptCost: 4},
	})

	e := &testEnv{
		t:       t,
		store:   store,
		limiter: &fakeLimiter{decision: redisrepo.Decision{Allowed: true}},
		idem:    &fakeIdempotency{vals: make(map[string]redisrepo.IdempotentRequest)},
	}
	e.router = httpgin.NewRouter(httpgin.Deps{
		Services:    svcs,
		Issuer:      issuer,
		Limiter:     e.limiter,
		Idempotency: e.idem,
	}, log)

	return e
}

func (e *testEnv) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()

	return e.doCtx(context.Background(), method, path, token, body, headers...)
}

func (e *testEnv) doCtx(
	ctx context.Context,
	method, path, token string,
	body any,
	headers ...string,
) *httptest.ResponseRecorder {
	e.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequestWithContext(ctx, method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func (e *testEnv) signUp(name, email string) (uuid.UUID, string) {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/users/sign-up", "", gin.H{"name": name, "email": email, "password": "secret1"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/users/login", "", gin.H{"email": email, "password": "secret1"})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[httpgin.UserLoginResponse](e.t, rec)

	return res.User.ID, res.Token
}

func (e *testEnv) admin(email string) (uuid.UUID, string) {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/admin/add-admin", "", gin.H{"email": email, "password": "secret1"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/admin/admin-login", "", gin.H{"email": email, "password": "secret1"})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[httpgin.AdminLoginResponse](e.t, rec)

	return uuid.MustParse(res.ID), res.Token
}

func (e *testEnv) movie(adminToken, title string) uuid.UUID {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/movies", adminToken, gin.H{
		"title":       title,
		"description": "A film",
		"actors":      []string{"Timothée Chalamet"},
		"releaseDate": "2021-10-22",
		"posterUrl":   "https://posters.example.com/dune.jpg",
		"featured":    true,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	return decode[httpgin.MovieResponse](e.t, rec).Movie.ID
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestBookingLifecycle(t *testing.T) {
	e := newTestEnv(t)
	aliceID, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{
		"movieName":  duneID.String(),
		"seatNumber": "A5",
		"date":       "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[httpgin.BookingViewResponse](t, rec)
	want := httpgin.BookingViewResponse{
		Message: "Booking successful",
		Booking: &domain.BookingView{
			Booking: domain.Booking{
				MovieID:    duneID,
				SeatNumber: "A5",
				Date:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				UserID:     aliceID,
			},
			MovieTitle:     "Dune",
			MoviePosterURL: "https://posters.example.com/dune.jpg",
			UserName:       "Alice",
		},
	}
	if diff := cmp.Diff(want, created, cmpopts.IgnoreFields(domain.Booking{}, "ID", "CreatedAt")); diff != "" {
		t.Fatalf("created booking mismatch (-want +got):\n%s", diff)
	}
	bookingID := created.Booking.ID

	rec = e.do(http.MethodGet, "/movies/"+duneID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{bookingID}, decode[httpgin.MovieResponse](t, rec).Movie.Bookings)

	for _, path := range []string{"/users/" + aliceID.String() + "/bookings", "/bookings/user/" + aliceID.String()} {
		rec = e.do(http.MethodGet, path, alice, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)

		list := decode[httpgin.BookingsResponse](t, rec).Bookings
		require.Len(t, list, 1, path)
		assert.Equal(t, bookingID, list[0].ID)
		assert.Equal(t, "Dune", list[0].MovieTitle)
	}

	rec = e.do(http.MethodDelete, "/bookings/"+bookingID.String(), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Booking deleted successfully", decode[httpgin.BookingResponse](t, rec).Message)

	rec = e.do(http.MethodGet, "/bookings/"+bookingID.String(), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	got := decode[httpgin.ErrorResponse](t, rec)
	assert.Equal(t, "booking not found", got.Error)
	assert.Equal(t, "not_found", got.Code)
	assert.NotEmpty(t, got.RequestID)

	rec = e.do(http.MethodDelete, "/bookings/"+bookingID.String(), alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/users", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[httpgin.UsersResponse](t, rec).Users[0].Bookings)
}

func TestCreateBooking_Validation(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")

	tests := []struct {
		name   string
		body   gin.H
		fields []string
	}{
		{
			name:   "missing seat",
			body:   gin.H{"movieName": duneID.String(), "date": "2025-01-01"},
			fields: []string{"seatNumber"},
		},
		{
			name:   "blank fields",
			body:   gin.H{"movieName": "  ", "seatNumber": "A1", "date": " "},
			fields: []string{"movieName", "date"},
		},
		{
			name:   "unparseable date",
			body:   gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "next friday"},
			fields: []string{"date"},
		},
		{
			name:   "malformed movie id",
			body:   gin.H{"movieName": "dune", "seatNumber": "A1", "date": "2025-01-01"},
			fields: []string{"movieName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.store.ResetCalls()

			rec := e.do(http.MethodPost, "/bookings", alice, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			got := decode[httpgin.ErrorResponse](t, rec)
			assert.Equal(t, "validation_error", got.Code)
			for _, f := range tt.fields {
				assert.Contains(t, got.Fields, f)
			}
			assert.NotContains(t, e.store.Calls(), "Bookings.Create")
		})
	}

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{
		"movieName":  uuid.NewString(),
		"seatNumber": "A1",
		"date":       "2025-01-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "movie not found", decode[httpgin.ErrorResponse](t, rec).Error)
	assert.Empty(t, e.store.Snapshot().Bookings)
}

func TestAuthorization(t *testing.T) {
	e := newTestEnv(t)
	aliceID, alice := e.signUp("Alice", "alice@example.com")
	bobID, bob := e.signUp("Bob", "bob@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")

	booking := gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{name: "no token", method: http.MethodPost, path: "/bookings", body: booking, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "garbage token", method: http.MethodPost, path: "/bookings", token: "not.a.jwt", body: booking, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "admin books", method: http.MethodPost, path: "/bookings", token: admin, body: booking, status: http.StatusForbidden, code: "forbidden"},
		{name: "user adds movie", method: http.MethodPost, path: "/movies", token: alice, body: gin.H{}, status: http.StatusForbidden, code: "forbidden"},
		{name: "user reconciles", method: http.MethodPost, path: "/admin/reconcile", token: alice, status: http.StatusForbidden, code: "forbidden"},
		{name: "books for another user", method: http.MethodPost, path: "/bookings", token: alice, body: gin.H{
			"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01", "user": bobID.String(),
		}, status: http.StatusForbidden, code: "forbidden"},
		{name: "reads other bookings", method: http.MethodGet, path: "/users/" + aliceID.String() + "/bookings", token: bob, status: http.StatusForbidden, code: "forbidden"},
		{name: "deletes other user", method: http.MethodDelete, path: "/users/" + aliceID.String(), token: bob, status: http.StatusForbidden, code: "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, tt.token, tt.body)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[httpgin.ErrorResponse](t, rec).Code)
		})
	}

	assert.Empty(t, e.store.Snapshot().Bookings)
}

func TestDeleteBooking_OtherUser(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, bob := e.signUp("Bob", "bob@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[httpgin.BookingViewResponse](t, rec).Booking.ID

	rec = e.do(http.MethodDelete, "/bookings/"+id.String(), bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, e.store.Snapshot().Bookings, id)
}

func TestMalformedID(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/movies/42", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := decode[httpgin.ErrorResponse](t, rec)
	assert.Equal(t, map[string]string{"id": "must be a valid id"}, got.Fields)
}

func TestCreateBooking_RateLimited(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	e.limiter.decision = redisrepo.Decision{Allowed: false, Current: 10, RetryAfter: 1500 * time.Millisecond}

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{"movieName": uuid.NewString(), "seatNumber": "A1", "date": "2025-01-01"})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[httpgin.ErrorResponse](t, rec).Code)
	assert.Len(t, e.limiter.hits, 1)
	assert.True(t, strings.HasPrefix(e.limiter.hits[0], "ip:"))
}

func TestCreateBooking_LimiterDownLetsThrough(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")
	e.limiter.err = errors.New("redis: connection refused")

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"})

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateBooking_IdempotentReplay(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")
	body := gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"}

	first := e.do(http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, "k-1", first.Header().Get("Idempotency-Key"))

	second := e.do(http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, e.store.Snapshot().Bookings, 1)

	third := e.do(http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Len(t, e.store.Snapshot().Bookings, 2)
}

func TestCreateBooking_IdempotencyReleasedOnFailure(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")
	body := gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"}

	e.store.FailOn("Index.Attach", errors.New("connection reset by peer"))

	rec := e.do(http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, e.idem.vals)

	rec = e.do(http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateBooking_IdempotencyKeyReusedForOtherRequest(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")

	first := e.do(http.MethodPost, "/bookings", alice,
		gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"},
		"Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	tests := []struct {
		name string
		body gin.H
	}{
		{
			name: "other seat",
			body: gin.H{"movieName": duneID.String(), "seatNumber": "B7", "date": "2025-01-01"},
		},
		{
			name: "other date",
			body: gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-02-01"},
		},
		{
			name: "other movie",
			body: gin.H{"movieName": uuid.NewString(), "seatNumber": "A1", "date": "2025-01-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/bookings", alice, tt.body, "Idempotency-Key", "k-1")

			require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
			assert.Equal(t, "conflict", decode[httpgin.ErrorResponse](t, rec).Code)
		})
	}

	assert.Len(t, e.store.Snapshot().Bookings, 1)

	// surrounding whitespace does not make it another request
	same := e.do(http.MethodPost, "/bookings", alice,
		gin.H{"movieName": " " + duneID.String(), "seatNumber": "A1 ", "date": "2025-01-01"},
		"Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, same.Code)
	assert.JSONEq(t, first.Body.String(), same.Body.String())
}

func TestCreateBooking_IdempotencyOutlivesClientDisconnect(t *testing.T) {
	e := newTestEnv(t)
	aliceID, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")
	body := gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"}

	t.Run("result saved", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		e.idem.beforeWrite = cancel

		rec := e.doCtx(ctx, http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-1")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		saved, ok, err := e.idem.GetResult(context.Background(), redisx.KeyIdemBooking(aliceID, "k-1"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, saved.Done)
		assert.JSONEq(t, rec.Body.String(), saved.Payload)
	})

	t.Run("lock released", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		e.idem.beforeWrite = cancel
		e.store.FailOn("Index.Attach", errors.New("connection reset by peer"))

		rec := e.doCtx(ctx, http.MethodPost, "/bookings", alice, body, "Idempotency-Key", "k-2")
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		_, ok, err := e.idem.GetResult(context.Background(), redisx.KeyIdemBooking(aliceID, "k-2"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestInternalErrorIsNotExposed(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, admin := e.admin("root@example.com")
	duneID := e.movie(admin, "Dune")

	e.store.FailOn("Bookings.Create", errors.New(`relation "bookings" does not exist`))

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decode[httpgin.ErrorResponse](t, rec)
	assert.Equal(t, "internal server error", got.Error)
	assert.Equal(t, "internal_error", got.Code)
	assert.NotContains(t, rec.Body.String(), "relation")

	snap := e.store.Snapshot()
	assert.Empty(t, snap.Bookings)
	assert.Empty(t, snap.MovieIndex[duneID])
}

func TestMovies_ListAndETag(t *testing.T) {
	e := newTestEnv(t)
	_, admin := e.admin("root@example.com")
	e.movie(admin, "Dune")
	arrivalID := e.movie(admin, "Arrival")

	rec := e.do(http.MethodGet, "/movies?sort=title&limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decode[httpgin.MoviesResponse](t, rec).Movies
	require.Len(t, list, 1)
	assert.Equal(t, arrivalID, list[0].ID)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = e.do(http.MethodGet, "/movies?sort=title&limit=1", "", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = e.do(http.MethodGet, "/movies?sort=password", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/movies?limit=many", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed query parameter", decode[httpgin.ErrorResponse](t, rec).Error)
}

func TestMovies_OwnershipAndCascade(t *testing.T) {
	e := newTestEnv(t)
	_, alice := e.signUp("Alice", "alice@example.com")
	_, owner := e.admin("root@example.com")
	_, other := e.admin("other@example.com")
	duneID := e.movie(owner, "Dune")

	rec := e.do(http.MethodPost, "/bookings", alice, gin.H{"movieName": duneID.String(), "seatNumber": "A1", "date": "2025-01-01"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(http.MethodDelete, "/movies/"+duneID.String(), other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodDelete, "/movies/"+duneID.String(), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := e.store.Snapshot()
	assert.Empty(t, snap.Movies)
	assert.Empty(t, snap.Bookings)
	for _, ids := range snap.UserIndex {
		assert.Empty(t, ids)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	e := newTestEnv(t)
	_, admin := e.admin("root@example.com")
	e.store.CorruptIndex(map[uuid.UUID]uuid.UUID{uuid.New(): uuid.New()}, nil, uuid.Nil)

	rec := e.do(http.MethodPost, "/admin/reconcile", admin, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ReconcileReport{DanglingRemoved: 1}, decode[httpgin.ReconcileResponse](t, rec).Report)
}

func TestSignUp_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.signUp("Alice", "alice@example.com")

	rec := e.do(http.MethodPost, "/users/sign-up", "", gin.H{"name": "Alice", "email": "ALICE@example.com", "password": "secret1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user already exists, login instead", decode[httpgin.ErrorResponse](t, rec).Error)

	rec = e.do(http.MethodPost, "/users/sign-up", "", gin.H{"name": "Al", "email": "al@example.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decode[httpgin.ErrorResponse](t, rec).Fields["password"])

	req := httptest.NewRequest(http.MethodPost, "/users/sign-up", strings.NewReader("{"))
	out := httptest.NewRecorder()
	e.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
	assert.Equal(t, "malformed request body", decode[httpgin.ErrorResponse](t, out).Error)

	rec = e.do(http.MethodPost, "/users/login", "", gin.H{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
