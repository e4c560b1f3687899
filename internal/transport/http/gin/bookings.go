package httpgin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	redisx "github.com/kirinyoku/cinebook/internal/redis"
	"github.com/kirinyoku/cinebook/internal/service"
	"github.com/kirinyoku/cinebook/internal/service/booking"
)

const idemLockTTL = 60 * time.Second

// @Summary      Create booking (idempotent)
// @Description  Books a seat and links the booking to the user and the movie in one transaction.
// @Tags         bookings
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "replay key"
// @Param        req body  CreateBookingRequest true "payload"
// @Header       201 {string} Idempotency-Key "echo"
// @Success      201 {object} BookingViewResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse "booking on behalf of another user"
// @Failure      404 {object} ErrorResponse "movie or user not found"
// @Failure      409 {object} ErrorResponse "idem in progress or key reused for another request"
// @Failure      429 {object} ErrorResponse "rate limited"
// @Router       /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		var req CreateBookingRequest
		if !bindJSON(c, &req) {
			return
		}

		in := booking.CreateInput{
			MovieID:    strings.TrimSpace(req.MovieName),
			SeatNumber: strings.TrimSpace(req.SeatNumber),
			Date:       strings.TrimSpace(req.Date),
			UserID:     strings.TrimSpace(req.User),
		}
		if in.UserID == "" {
			in.UserID = p.ID.String()
		}

		// the response is committed once the booking is; bookkeeping of the
		// key must not depend on the client staying connected
		bgCtx := context.WithoutCancel(c.Request.Context())

		idemKey := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		var idemStorageKey, fingerprint string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisx.KeyIdemBooking(p.ID, idemKey)
			fingerprint = fingerprintOf(in)

			if replayIdempotent(c, idem, idemStorageKey, idemKey, fingerprint) {
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				fingerprint,
				idemLockTTL,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayIdempotent(c, idem, idemStorageKey, idemKey, fingerprint) {
					return
				}
				c.Header("Retry-After", "1")
				respondErr(c, errIdemInProgress)
				return
			}
		}

		view, err := svcs.Booking.Create(c.Request.Context(), in, p.ID)
		if err != nil {
			if idemStorageKey != "" {
				if rerr := idem.Release(bgCtx, idemStorageKey); rerr != nil {
					_ = c.Error(rerr)
				}
			}
			respondErr(c, err)
			return
		}

		resp := BookingViewResponse{Message: "Booking successful", Booking: view}

		if idemStorageKey != "" {
			if b, err := json.Marshal(resp); err == nil {
				if err := idem.SaveResult(bgCtx, idemStorageKey, fingerprint, string(b)); err != nil {
					_ = c.Error(err)
				}
			}
			c.Header(headerIdempotencyKey, idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// replayIdempotent answers for a key that is already taken: with the
// stored result when the same request finished, or with a conflict when
// the key was claimed by a different request. It returns false when the
// caller should go on.
func replayIdempotent(c *gin.Context, idem IdempotencyStore, storageKey, key, fingerprint string) bool {
	rec, ok, err := idem.GetResult(c.Request.Context(), storageKey)
	if err != nil {
		_ = c.Error(err)
		return false
	}
	if !ok {
		return false
	}

	if rec.Fingerprint != fingerprint {
		respondErr(c, errIdemKeyReused)
		return true
	}

	if !rec.Done {
		return false
	}

	c.Header(headerIdempotencyKey, key)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(rec.Payload))

	return true
}

// fingerprintOf identifies a booking request by its normalized input.
func fingerprintOf(in booking.CreateInput) string {
	h := sha256.New()
	for _, part := range []string{in.MovieID, in.SeatNumber, in.Date, in.UserID} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// @Summary  Get booking
// @Tags     bookings
// @Param    id  path  string  true  "Booking ID"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, BookingResponse{Booking: b})
	}
}

// @Summary      Delete booking
// @Description  Unlinks the booking from its user and movie, then removes it.
// @Tags         bookings
// @Security     BearerAuth
// @Param        id  path  string  true  "Booking ID"
// @Success      200 {object} BookingResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /bookings/{id} [delete]
func handleDeleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Delete(c.Request.Context(), id, p.ID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, BookingResponse{Message: "Booking deleted successfully", Booking: b})
	}
}
