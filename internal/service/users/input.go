package users

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirinyoku/cinebook/internal/domain"
)

var emailRx = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

const (
	minNameLen     = 2
	maxNameLen     = 32
	minPasswordLen = 6
	maxPasswordLen = 320
)

// AccountInput carries the fields of sign-up and profile update.
type AccountInput struct {
	Name     string
	Email    string
	Password string
}

func (in AccountInput) normalize() AccountInput {
	return AccountInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
	}
}

func (in AccountInput) validate() error {
	verr := domain.NewValidationError()

	switch n := utf8.RuneCountInString(in.Name); {
	case n == 0:
		verr.Add("name", "is required")
	case n < minNameLen || n > maxNameLen:
		verr.Add("name", "must be between 2 and 32 characters")
	}

	ValidateEmail(verr, in.Email)

	switch n := utf8.RuneCountInString(in.Password); {
	case n == 0:
		verr.Add("password", "is required")
	case n < minPasswordLen || n > maxPasswordLen:
		verr.Add("password", "must be between 6 and 320 characters")
	}

	return verr.OrNil()
}

// ValidateEmail records a field error on verr unless email looks like an
// address.
func ValidateEmail(verr *domain.ValidationError, email string) {
	switch {
	case email == "":
		verr.Add("email", "is required")
	case !emailRx.MatchString(email):
		verr.Add("email", "must be a valid email address")
	}
}
