package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Broker    BrokerConfig
	Telemetry TelemetryConfig
	Bookings  BookingsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
	Migrate  bool
}

// DSN returns the connection URL of the database.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Name,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}

	return u.String()
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type BrokerConfig struct {
	// URL of the AMQP broker. Empty disables event publishing.
	URL string
}

type TelemetryConfig struct {
	// OTLP gRPC endpoint. Empty disables tracing and metrics export.
	Endpoint string
}

type BookingsConfig struct {
	ReconcileInterval time.Duration
	RateLimit         int
	IdempotencyTTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: envString("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	postgresPort, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresMaxConns, err := envInt("POSTGRES_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresMigrate, err := envBool("POSTGRES_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     envString("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(postgresMaxConns),
		Migrate:  postgresMigrate,
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     envString("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	tokenTTL, err := envDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bcryptCost, err := envInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reconcileInterval, err := envDuration("RECONCILE_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rateLimit, err := envInt("RATE_LIMIT_BOOKINGS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	idempotencyTTL, err := envDuration("IDEMPOTENCY_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Env:      envString("APP_ENV", "development"),
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Auth: AuthConfig{
			JWTSecret:  jwtSecret,
			TokenTTL:   tokenTTL,
			BcryptCost: bcryptCost,
		},
		Broker:    BrokerConfig{URL: os.Getenv("RABBITMQ_URL")},
		Telemetry: TelemetryConfig{Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")},
		Bookings: BookingsConfig{
			ReconcileInterval: reconcileInterval,
			RateLimit:         rateLimit,
			IdempotencyTTL:    idempotencyTTL,
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Format: strings.ToLower(envString("LOG_FORMAT", "text")),
		},
	}, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}

	return v, nil
}
