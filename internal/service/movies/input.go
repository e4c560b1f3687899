package movies

import (
	"strings"

	"github.com/kirinyoku/cinebook/internal/domain"
)

// MovieInput carries the client supplied fields of a movie.
type MovieInput struct {
	Title       string
	Description string
	Actors      []string
	ReleaseDate string
	PosterURL   string
	Featured    bool
}

func (in MovieInput) toMovie() (domain.Movie, error) {
	verr := domain.NewValidationError()

	m := domain.Movie{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		PosterURL:   strings.TrimSpace(in.PosterURL),
		Featured:    in.Featured,
		Actors:      make([]string, 0, len(in.Actors)),
	}

	if m.Title == "" {
		verr.Add("title", "is required")
	}
	if m.Description == "" {
		verr.Add("description", "is required")
	}
	if m.PosterURL == "" {
		verr.Add("posterUrl", "is required")
	}

	for _, a := range in.Actors {
		if a = strings.TrimSpace(a); a != "" {
			m.Actors = append(m.Actors, a)
		}
	}
	if len(m.Actors) == 0 {
		verr.Add("actors", "at least one actor is required")
	}

	if strings.TrimSpace(in.ReleaseDate) == "" {
		verr.Add("releaseDate", "is required")
	} else if d, err := domain.ParseDate(in.ReleaseDate); err != nil {
		verr.Add("releaseDate", "is not a valid date")
	} else {
		m.ReleaseDate = d
	}

	return m, verr.OrNil()
}

var sortKeys = map[string]struct{}{
	"title":        {},
	"release_date": {},
	"created_at":   {},
	"featured":     {},
}

func validateFilters(f domain.MovieFilters) error {
	verr := domain.NewValidationError()

	if f.Sort != "" {
		if _, ok := sortKeys[strings.TrimPrefix(f.Sort, "-")]; !ok {
			verr.Add("sort", "must be one of title, release_date, created_at, featured")
		}
	}
	if f.Limit < 0 {
		verr.Add("limit", "must not be negative")
	}
	if f.Offset < 0 {
		verr.Add("offset", "must not be negative")
	}

	return verr.OrNil()
}
