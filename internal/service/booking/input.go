package booking

import (
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/domain"
)

// CreateInput is a booking request as received from a client. Field names
// in validation errors follow the JSON request body.
type CreateInput struct {
	MovieID    string
	SeatNumber string
	Date       string
	UserID     string
}

// validate parses the input into a booking without an id.
func (in CreateInput) validate() (domain.Booking, error) {
	verr := domain.NewValidationError()

	var b domain.Booking

	if id, ok := parseID(verr, "movieName", in.MovieID); ok {
		b.MovieID = id
	}

	b.SeatNumber = strings.TrimSpace(in.SeatNumber)
	if b.SeatNumber == "" {
		verr.Add("seatNumber", "is required")
	}

	if strings.TrimSpace(in.Date) == "" {
		verr.Add("date", "is required")
	} else if d, err := domain.ParseDate(in.Date); err != nil {
		verr.Add("date", "is not a valid date")
	} else {
		b.Date = d
	}

	if id, ok := parseID(verr, "user", in.UserID); ok {
		b.UserID = id
	}

	return b, verr.OrNil()
}

func parseID(verr *domain.ValidationError, field, raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add(field, "is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		verr.Add(field, "is not a valid id")
		return uuid.Nil, false
	}

	return id, true
}
