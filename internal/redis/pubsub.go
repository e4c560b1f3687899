package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BookingsChanged tells every instance that cached views of a user or a
// movie are stale.
type BookingsChanged struct {
	Type    string    `json:"type"`
	UserID  uuid.UUID `json:"user_id"`
	MovieID uuid.UUID `json:"movie_id"`
	TsUnix  int64     `json:"ts_unix"`
}

type BookingsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewBookingsPubSub(rdb *redis.Client) *BookingsPubSub {
	return &BookingsPubSub{
		rdb:     rdb,
		channel: ChannelBookingsChanged(),
	}
}

func (p *BookingsPubSub) PublishBookingsChanged(ctx context.Context, kind string, userID, movieID uuid.UUID) error {
	msg := BookingsChanged{
		Type:    kind,
		UserID:  userID,
		MovieID: movieID,
		TsUnix:  time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe delivers messages to handler until ctx is cancelled.
// Malformed payloads are skipped.
func (p *BookingsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, msg BookingsChanged)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg BookingsChanged
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil &&
				(msg.UserID != uuid.Nil || msg.MovieID != uuid.Nil) {
				handler(ctx, msg)
			}
		}
	}
}
