package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIdempotent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want IdempotentRequest
	}{
		{
			name: "lock",
			raw:  "LOCK:abc123",
			want: IdempotentRequest{Fingerprint: "abc123"},
		},
		{
			name: "result",
			raw:  `RES:abc123:{"message":"ok","booking":{"seatNumber":"A:1"}}`,
			want: IdempotentRequest{
				Fingerprint: "abc123",
				Payload:     `{"message":"ok","booking":{"seatNumber":"A:1"}}`,
				Done:        true,
			},
		},
		{
			name: "unknown value",
			raw:  "garbage",
			want: IdempotentRequest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseIdempotent(tt.raw))
		})
	}
}
