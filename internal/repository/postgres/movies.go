package postgres

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
)

const movieColumns = `m.id, m.title, m.description, m.actors, m.release_date, m.poster_url,
	m.featured, m.admin_id, m.created_at,
	COALESCE((SELECT array_agg(mb.booking_id::text ORDER BY mb.attached_at, mb.booking_id)
		FROM movie_bookings mb WHERE mb.movie_id = m.id), '{}')`

const (
	defaultMoviesLimit = 50
	maxMoviesLimit     = 200
)

var dialect = goqu.Dialect("postgres")

// movieSortColumns whitelists the columns a listing may be ordered by.
var movieSortColumns = map[string]string{
	"title":        "m.title",
	"release_date": "m.release_date",
	"created_at":   "m.created_at",
	"featured":     "m.featured",
}

type MovieRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *MovieRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *MovieRepo) Create(ctx context.Context, m *domain.Movie) error {
	const op = "postgres.MovieRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO movies(id, title, description, actors, release_date, poster_url, featured, admin_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		m.ID, m.Title, m.Description, m.Actors, m.ReleaseDate, m.PosterURL, m.Featured, m.AdminID,
	).Scan(&m.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a movie together with its booking back-references.
//
// Returns:
//   - *domain.Movie: the movie when found.
//   - error: repository.ErrNotFound if the movie does not exist.
func (r *MovieRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	const op = "postgres.MovieRepo.Get"

	m, err := scanMovie(r.handle().QueryRow(ctx,
		`SELECT `+movieColumns+` FROM movies m WHERE m.id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return m, nil
}

func (r *MovieRepo) Lock(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	const op = "postgres.MovieRepo.Lock"

	var m domain.Movie
	if err := r.handle().QueryRow(ctx,
		`SELECT id, title, description, actors, release_date, poster_url, featured, admin_id, created_at
		 FROM movies WHERE id = $1
		 FOR SHARE`,
		id,
	).Scan(
		&m.ID, &m.Title, &m.Description, &m.Actors, &m.ReleaseDate,
		&m.PosterURL, &m.Featured, &m.AdminID, &m.CreatedAt,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &m, nil
}

// List returns movies matching the filters.
//
// Parameters:
//   - f.Featured: when set, only movies with the same featured flag.
//   - f.Term: case-insensitive title substring.
//   - f.Sort: column name from movieSortColumns, "-" prefix for descending.
//   - f.Limit, f.Offset: pagination; the limit is clamped to maxMoviesLimit.
func (r *MovieRepo) List(ctx context.Context, f domain.MovieFilters) ([]domain.Movie, error) {
	const op = "postgres.MovieRepo.List"

	ds := dialect.From(goqu.T("movies").As("m")).
		Select(goqu.L(movieColumns)).
		Prepared(true)

	if f.Featured != nil {
		ds = ds.Where(goqu.I("m.featured").Eq(*f.Featured))
	}

	if term := strings.TrimSpace(f.Term); term != "" {
		ds = ds.Where(goqu.I("m.title").ILike("%" + term + "%"))
	}

	sortKey := strings.TrimPrefix(f.Sort, "-")
	col, ok := movieSortColumns[sortKey]
	if !ok {
		col = "m.created_at"
	}
	if strings.HasPrefix(f.Sort, "-") {
		ds = ds.Order(goqu.I(col).Desc(), goqu.I("m.id").Asc())
	} else {
		ds = ds.Order(goqu.I(col).Asc(), goqu.I("m.id").Asc())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultMoviesLimit
	}
	if limit > maxMoviesLimit {
		limit = maxMoviesLimit
	}
	ds = ds.Limit(uint(limit))
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := r.handle().Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := make([]domain.Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *MovieRepo) Update(ctx context.Context, m *domain.Movie) error {
	const op = "postgres.MovieRepo.Update"

	tag, err := r.handle().Exec(ctx,
		`UPDATE movies
		 SET title = $2, description = $3, actors = $4, release_date = $5,
		     poster_url = $6, featured = $7
		 WHERE id = $1`,
		m.ID, m.Title, m.Description, m.Actors, m.ReleaseDate, m.PosterURL, m.Featured,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *MovieRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.MovieRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func scanMovie(row rowScanner) (*domain.Movie, error) {
	var (
		m   domain.Movie
		ids []string
	)

	if err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Actors, &m.ReleaseDate,
		&m.PosterURL, &m.Featured, &m.AdminID, &m.CreatedAt, &ids,
	); err != nil {
		return nil, err
	}

	bookings, err := parseUUIDs(ids)
	if err != nil {
		return nil, err
	}
	m.Bookings = bookings

	if m.Actors == nil {
		m.Actors = []string{}
	}

	return &m, nil
}
