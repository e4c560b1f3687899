package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/cinebook/internal/auth"
	"github.com/kirinyoku/cinebook/internal/domain"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
	"github.com/kirinyoku/cinebook/internal/service"
)

// IdempotencyStore keeps the first response of a keyed request so repeats
// can be answered with it. Every entry carries the fingerprint of the
// request that claimed the key.
type IdempotencyStore interface {
	AcquireLock(ctx context.Context, key, fingerprint string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key, fingerprint, jsonPayload string) error
	GetResult(ctx context.Context, key string) (redisrepo.IdempotentRequest, bool, error)
	Release(ctx context.Context, key string) error
}

// Deps are the collaborators of the router. Limiter and Idempotency may be
// nil, which disables rate limiting and idempotent replays.
type Deps struct {
	Services    *service.Services
	Issuer      *auth.Issuer
	Limiter     RateLimiter
	Idempotency IdempotencyStore
}

func NewRouter(
	deps Deps,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	registerValidators()

	svcs := deps.Services

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authn := AuthMiddleware(deps.Issuer)
	asUser := []gin.HandlerFunc{authn, RequireRole(domain.RoleUser)}
	asAdmin := []gin.HandlerFunc{authn, RequireRole(domain.RoleAdmin)}

	users := r.Group("/users")
	{
		users.POST("/sign-up", handleSignUp(svcs))
		users.POST("/login", handleUserLogin(svcs))
		users.GET("", handleListUsers(svcs))
		users.PUT("/:id", append(asUser, handleUpdateUser(svcs))...)
		users.DELETE("/:id", append(asUser, handleDeleteUser(svcs))...)
		users.GET("/:id/bookings", append(asUser, handleUserBookings(svcs))...)
	}

	admin := r.Group("/admin")
	{
		admin.POST("/add-admin", handleAddAdmin(svcs))
		admin.POST("/admin-login", handleAdminLogin(svcs))
		admin.GET("", handleListAdmins(svcs))
		admin.POST("/reconcile", append(asAdmin, handleReconcile(svcs))...)
	}

	movies := r.Group("/movies")
	{
		movies.GET("", handleListMovies(svcs))
		movies.GET("/:id", handleGetMovie(svcs))
		movies.POST("", append(asAdmin, handleCreateMovie(svcs))...)
		movies.PUT("/:id", append(asAdmin, handleUpdateMovie(svcs))...)
		movies.DELETE("/:id", append(asAdmin, handleDeleteMovie(svcs))...)
	}

	bookings := r.Group("/bookings")
	{
		bookings.POST("", append(asUser,
			RateLimitMiddleware(deps.Limiter),
			handleCreateBooking(svcs, deps.Idempotency),
		)...)
		bookings.GET("/:id", handleGetBooking(svcs))
		bookings.GET("/user/:id", append(asUser, handleUserBookings(svcs))...)
		bookings.DELETE("/:id", append(asUser, handleDeleteBooking(svcs))...)
	}

	return r
}

// --- Helpers ---

// parseIDParam reads a uuid path parameter and answers 400 when it is
// malformed.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add(name, "must be a valid id")
		respondErr(c, verr)
		return uuid.Nil, false
	}

	return id, true
}

// mustPrincipal returns the authenticated caller. Routes using it are
// always behind AuthMiddleware.
func mustPrincipal(c *gin.Context) (auth.Principal, bool) {
	p, ok := principalFrom(c)
	if !ok {
		respondErr(c, errMissingToken)
	}

	return p, ok
}
