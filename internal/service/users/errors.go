package users

import "github.com/kirinyoku/cinebook/internal/domain"

var (
	ErrUserNotFound       = domain.NewError(domain.ErrNotFound, "user not found")
	ErrEmailTaken         = domain.NewError(domain.ErrConflict, "user already exists, login instead")
	ErrInvalidCredentials = domain.NewError(domain.ErrUnauthorized, "incorrect email or password")
	ErrNotSelf            = domain.NewError(domain.ErrForbidden, "users may only change their own account")
)
