package movies

import "github.com/kirinyoku/cinebook/internal/domain"

var (
	ErrMovieNotFound = domain.NewError(domain.ErrNotFound, "movie not found")
	ErrAdminNotFound = domain.NewError(domain.ErrNotFound, "admin not found")
	ErrNotOwner      = domain.NewError(domain.ErrForbidden, "movie belongs to another admin")
)
