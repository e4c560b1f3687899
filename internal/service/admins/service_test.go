package admins_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/cinebook/internal/auth"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/mocks"
	"github.com/kirinyoku/cinebook/internal/service/admins"
	"github.com/kirinyoku/cinebook/internal/uow"
)

func newService(t *testing.T) (*admins.Service, *mocks.Store, *auth.Issuer) {
	t.Helper()

	store := mocks.NewStore()
	issuer := auth.NewIssuer("test-secret", 24*time.Hour)

	return admins.New(uow.NewUoW(store), issuer, admins.Config{BcryptCost: 4}), store, issuer
}

func TestAddAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, issuer := newService(t)

	a, err := svc.Add(ctx, "Root@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", a.Email)
	assert.Empty(t, a.AddedMovies)

	_, err = svc.Add(ctx, "root@example.com", "secret2")
	assert.ErrorIs(t, err, admins.ErrEmailTaken)

	res, err := svc.Login(ctx, "root@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Admin.ID)

	p, err := issuer.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, p.Role)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), res.ExpiresAt, time.Minute)

	_, err = svc.Login(ctx, "root@example.com", "nope")
	assert.ErrorIs(t, err, admins.ErrInvalidCredentials)
}

func TestAdd_Validation(t *testing.T) {
	svc, store, _ := newService(t)

	_, err := svc.Add(context.Background(), "not-an-email", "123")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "email")
	assert.Contains(t, verr.FieldErrors, "password")
	assert.Empty(t, store.Calls())
}

func TestList_WithAddedMovies(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t)

	empty, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	a, err := svc.Add(ctx, "root@example.com", "secret1")
	require.NoError(t, err)

	m := domain.Movie{ID: uuid.New(), Title: "Dune", AdminID: a.ID}
	require.NoError(t, store.Movies().Create(ctx, &m))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []uuid.UUID{m.ID}, list[0].AddedMovies)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, admins.ErrAdminNotFound)
}
