package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLockPrefix = "LOCK:"
	idemResPrefix  = "RES:"
)

// IdempotentRequest is what is stored under an idempotency key: the
// fingerprint of the request that claimed it and, once it finished, the
// response it produced.
type IdempotentRequest struct {
	Fingerprint string
	Payload     string
	Done        bool
}

// IdempotencyStore remembers the response of a request by a client-chosen
// key. A key is either locked while the first request runs or holds the
// saved result. Both states carry the request fingerprint so a key reused
// for a different request can be told apart from a repeat.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// AcquireLock reports whether the caller now owns key.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key, fingerprint string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, idemLockPrefix+fingerprint, lockTTL).Result()
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key, fingerprint, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemResPrefix+fingerprint+":"+jsonPayload, s.ttl).Err()
}

// GetResult returns what is stored under key. The bool is false when the
// key is free.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (IdempotentRequest, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return IdempotentRequest{}, false, nil
	}
	if err != nil {
		return IdempotentRequest{}, false, err
	}

	return parseIdempotent(v), true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func parseIdempotent(v string) IdempotentRequest {
	if fp, ok := strings.CutPrefix(v, idemLockPrefix); ok {
		return IdempotentRequest{Fingerprint: fp}
	}

	rest, ok := strings.CutPrefix(v, idemResPrefix)
	if !ok {
		return IdempotentRequest{}
	}

	fp, payload, _ := strings.Cut(rest, ":")

	return IdempotentRequest{Fingerprint: fp, Payload: payload, Done: true}
}
