package admins

import "github.com/kirinyoku/cinebook/internal/domain"

var (
	ErrAdminNotFound      = domain.NewError(domain.ErrNotFound, "admin not found")
	ErrEmailTaken         = domain.NewError(domain.ErrConflict, "admin already exists")
	ErrInvalidCredentials = domain.NewError(domain.ErrUnauthorized, "incorrect email or password")
)
