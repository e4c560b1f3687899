package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/cinebook/internal/config"
	"github.com/kirinyoku/cinebook/internal/telemetry"
)

func TestNew_ReleasesTelemetryOnFailedStart(t *testing.T) {
	tests := []struct {
		name    string
		migrate bool
		wantErr string
	}{
		{name: "migrations fail", migrate: true, wantErr: "failed to apply migrations"},
		{name: "pool fails", migrate: false, wantErr: "failed to initialize postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shutdowns int
			orig := setupTelemetry
			setupTelemetry = func(context.Context, telemetry.Config, *slog.Logger) (telemetry.ShutdownFunc, error) {
				return func(context.Context) error {
					shutdowns++
					return nil
				}, nil
			}
			t.Cleanup(func() { setupTelemetry = orig })

			cfg := &config.Config{
				Postgres: config.PostgresConfig{
					User:     "cinebook",
					Password: "cinebook",
					Name:     "cinebook",
					Host:     "127.0.0.1",
					// nothing listens on port 1
					Port:    1,
					SSLMode: "disable",
					Migrate: tt.migrate,
				},
			}

			a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Nil(t, a)
			assert.Equal(t, 1, shutdowns)
		})
	}
}

func TestClosers(t *testing.T) {
	var (
		order []string
		c     closers
	)

	c.add("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	c.add("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})
	c.add("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	err := c.close(context.Background())

	require.Error(t, err)
	assert.EqualError(t, err, "second: boom")
	assert.Equal(t, []string{"third", "second", "first"}, order)

	require.NoError(t, c.close(context.Background()))
	assert.Len(t, order, 3)
}
