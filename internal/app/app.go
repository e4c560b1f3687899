package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/cinebook/internal/auth"
	"github.com/kirinyoku/cinebook/internal/broker"
	"github.com/kirinyoku/cinebook/internal/config"
	"github.com/kirinyoku/cinebook/internal/postgres"
	redisx "github.com/kirinyoku/cinebook/internal/redis"
	postgresrepo "github.com/kirinyoku/cinebook/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/service"
	"github.com/kirinyoku/cinebook/internal/service/admins"
	"github.com/kirinyoku/cinebook/internal/service/booking"
	"github.com/kirinyoku/cinebook/internal/service/users"
	"github.com/kirinyoku/cinebook/internal/telemetry"
	httpgin "github.com/kirinyoku/cinebook/internal/transport/http/gin"
)

const Version = "1.0.0"

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	cache      *redisrepo.Cache
	pubsub     *redisx.BookingsPubSub

	publisher *broker.Publisher
	// closers release resources in reverse order of acquisition.
	closers closers
}

// setupTelemetry is replaced in tests.
var setupTelemetry = telemetry.Setup

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	var cleanups closers
	defer func() {
		if err != nil {
			if cerr := cleanups.close(context.WithoutCancel(ctx)); cerr != nil {
				logger.Warn("release resources after failed start", "err", cerr)
			}
		}
	}()

	shutdown, err := setupTelemetry(ctx, telemetry.Config{
		Endpoint: cfg.Telemetry.Endpoint,
		Env:      cfg.Env,
		Version:  Version,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	cleanups.add("telemetry", shutdown)

	dsn := cfg.Postgres.DSN()

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(dsn); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("database schema is up to date")
	}

	// Initialize dependencies
	pgxPool, err := postgres.New(ctx, postgres.Config{DSN: dsn, MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	cleanups.add("postgres pool", func(context.Context) error {
		pgxPool.Close()
		return nil
	})

	rdb, err := redisx.New(ctx, redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	cleanups.add("redis client", func(context.Context) error {
		return rdb.Close()
	})

	metrics, err := telemetry.NewBookingMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewBookingsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redisx.KeyRateLimitPrefix("bookings"), cfg.Bookings.RateLimit, time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Bookings.IdempotencyTTL)

	var (
		events    booking.EventPublisher = broker.Nop{}
		publisher *broker.Publisher
	)
	if cfg.Broker.URL != "" {
		publisher = broker.NewPublisher(broker.Config{URL: cfg.Broker.URL}, logger)
		events = publisher
		// the errgroup in Run flushes queued events before this closes it
		cleanups.add("broker publisher", func(context.Context) error {
			return publisher.Close()
		})
	} else {
		logger.Info("RABBITMQ_URL not set, booking events disabled")
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize services
	services := service.NewServices(service.Deps{
		Store:    store,
		Cache:    cache,
		Notifier: pubsub,
		Events:   events,
		Metrics:  metrics,
		Issuer:   issuer,
		Log:      logger,
	}, service.Config{
		Users:  users.Config{BcryptCost: cfg.Auth.BcryptCost},
		Admins: admins.Config{BcryptCost: cfg.Auth.BcryptCost},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(httpgin.Deps{
		Services:    services,
		Issuer:      issuer,
		Limiter:     limiter,
		Idempotency: idempotencyStore,
	}, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		cache:    cache,
		pubsub:   pubsub,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		publisher: publisher,
		closers:   cleanups,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Index reconciliation
	if interval := a.cfg.Bookings.ReconcileInterval; interval > 0 {
		g.Go(func() error {
			a.logger.Info("reconcile sweep scheduled", "interval", interval)
			return a.services.Reconcile.Run(gCtx, interval)
		})
	}

	// Booking events to RabbitMQ
	if a.publisher != nil {
		g.Go(func() error {
			return a.publisher.Run(gCtx)
		})
	}

	// Booking change notifications from every instance
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, a.onBookingsChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bookings subscriber: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// onBookingsChanged repeats the writer's invalidation, so a read that raced
// the commit cannot leave a stale entry behind.
func (a *App) onBookingsChanged(ctx context.Context, msg redisx.BookingsChanged) {
	a.logger.Debug("bookings changed", "type", msg.Type, "user_id", msg.UserID, "movie_id", msg.MovieID)

	if err := a.cache.InvalidateMovie(ctx, msg.MovieID); err != nil {
		a.logger.Warn("invalidate movie cache", "movie_id", msg.MovieID, "err", err)
	}

	if err := a.cache.InvalidateUserBookings(ctx, msg.UserID); err != nil {
		a.logger.Warn("invalidate user bookings cache", "user_id", msg.UserID, "err", err)
	}
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.closers.close(ctx); err != nil {
		a.logger.Warn("release resources", "err", err)
	}
}
