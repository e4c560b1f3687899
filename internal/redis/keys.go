package redisx

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "cinebook:v1"

func KeyMovie(movieID uuid.UUID) string {
	return fmt.Sprintf("%s:movie:%s", ns, movieID)
}

// KeyMoviesList is the cache key of one movie listing; variant identifies
// the filter combination.
func KeyMoviesList(variant string) string {
	return fmt.Sprintf("%s:movies:list:%s", ns, variant)
}

// KeyMoviesListIndex is the set of every cached movie listing key.
func KeyMoviesListIndex() string {
	return ns + ":movies:lists"
}

func KeyUserBookings(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s:bookings", ns, userID)
}

// KeyRateLimitPrefix is the key prefix of the sliding window limiter for scope.
func KeyRateLimitPrefix(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdemBooking(userID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%s:%s", ns, userID, idemKey)
}

func ChannelBookingsChanged() string {
	return ns + ":bookings:changed"
}
