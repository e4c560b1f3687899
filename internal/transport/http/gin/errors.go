package httpgin

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/kirinyoku/cinebook/internal/domain"
)

const (
	codeValidation   = "validation_error"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal_error"
)

var (
	errMissingToken   = domain.NewError(domain.ErrUnauthorized, "missing bearer token")
	errInvalidToken   = domain.NewError(domain.ErrUnauthorized, "invalid or expired token")
	errWrongRole      = domain.NewError(domain.ErrForbidden, "insufficient role")
	errNotSelf        = domain.NewError(domain.ErrForbidden, "users may only view their own bookings")
	errMalformedBody  = domain.NewError(domain.ErrValidation, "malformed request body")
	errMalformedQuery = domain.NewError(domain.ErrValidation, "malformed query parameter")
	errIdemInProgress = domain.NewError(domain.ErrConflict, "idempotency key in progress")
	errIdemKeyReused  = domain.NewError(domain.ErrConflict, "idempotency key already used for a different request")
)

// respondErr writes the error response for err and aborts the chain.
// Errors of an unknown kind are attached to the context for the request
// logger and answered with a generic message.
func respondErr(c *gin.Context, err error) {
	status, code := classify(err)

	resp := ErrorResponse{
		Code:      code,
		RequestID: c.GetString(ctxRequestID),
	}

	var verr *domain.ValidationError
	var derr *domain.Error

	switch {
	case errors.As(err, &verr):
		resp.Error = "invalid input"
		resp.Fields = verr.FieldErrors
	case status == http.StatusInternalServerError:
		_ = c.Error(err)
		resp.Error = "internal server error"
	case errors.As(err, &derr):
		resp.Error = derr.Message
	default:
		resp.Error = strings.ToLower(http.StatusText(status))
	}

	c.AbortWithStatusJSON(status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondErr(c, bindingError(err))
		return false
	}

	return true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		respondErr(c, bindingError(err))
		return false
	}

	return true
}

// bindingError converts validator failures into field errors keyed by the
// JSON name of the field.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			return errMalformedQuery
		}

		return errMalformedBody
	}

	out := domain.NewValidationError()
	for _, fe := range verrs {
		out.Add(fe.Field(), validationMessage(fe))
	}

	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}

var registerOnce sync.Once

// registerValidators teaches gin's validator the notblank rule and to
// report fields by their json or form tag.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})

		_ = v.RegisterValidation("notblank", validators.NotBlank)
	})
}
