package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/cinebook/internal/config"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log := NewLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	log.Info("dropped")
	log.Warn("kept", "booking_id", "b1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "b1", line["booking_id"])

	buf.Reset()
	NewLogger(&buf, config.LogConfig{}).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
