package service

import (
	"log/slog"

	"github.com/kirinyoku/cinebook/internal/auth"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/service/admins"
	"github.com/kirinyoku/cinebook/internal/service/booking"
	"github.com/kirinyoku/cinebook/internal/service/movies"
	"github.com/kirinyoku/cinebook/internal/service/reconcile"
	"github.com/kirinyoku/cinebook/internal/service/users"
	"github.com/kirinyoku/cinebook/internal/telemetry"
	"github.com/kirinyoku/cinebook/internal/uow"
)

type Services struct {
	Booking   *booking.Service
	Users     *users.Service
	Admins    *admins.Service
	Movies    *movies.Service
	Reconcile *reconcile.Service
}

type Config struct {
	Booking booking.Config
	Users   users.Config
	Admins  admins.Config
	Movies  movies.Config
}

// Deps are the collaborators shared by all services. Cache, Notifier,
// Events and Metrics may be nil.
type Deps struct {
	Store    uow.Store
	Cache    *redisrepo.Cache
	Notifier booking.ChangeNotifier
	Events   booking.EventPublisher
	Metrics  *telemetry.BookingMetrics
	Issuer   *auth.Issuer
	Log      *slog.Logger
}

func NewServices(deps Deps, cfg Config) *Services {
	u := uow.NewUoW(deps.Store)

	bookings := booking.New(booking.Deps{
		UoW:      u,
		Cache:    deps.Cache,
		Notifier: deps.Notifier,
		Events:   deps.Events,
		Metrics:  deps.Metrics,
		Log:      deps.Log,
	}, cfg.Booking)

	return &Services{
		Booking:   bookings,
		Users:     users.New(u, bookings, deps.Issuer, deps.Cache, deps.Log, cfg.Users),
		Admins:    admins.New(u, deps.Issuer, cfg.Admins),
		Movies:    movies.New(u, bookings, deps.Cache, deps.Log, cfg.Movies),
		Reconcile: reconcile.New(u, deps.Metrics, deps.Log),
	}
}
