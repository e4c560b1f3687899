package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/service"
	"github.com/kirinyoku/cinebook/internal/service/movies"
)

func movieInput(req MovieRequest) movies.MovieInput {
	return movies.MovieInput{
		Title:       req.Title,
		Description: req.Description,
		Actors:      req.Actors,
		ReleaseDate: req.ReleaseDate,
		PosterURL:   req.PosterURL,
		Featured:    req.Featured,
	}
}

// @Summary  List movies
// @Tags     movies
// @Param    featured query  bool    false "only featured or only not featured"
// @Param    q        query  string  false "title search"
// @Param    sort     query  string  false "title, release_date, created_at, featured; prefix - for descending"
// @Param    limit    query  int     false "page size, at most 200"
// @Param    offset   query  int     false "offset"
// @Success  200  {object}  MoviesResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /movies [get]
func handleListMovies(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q MovieListQuery
		if !bindQuery(c, &q) {
			return
		}

		list, err := svcs.Movies.List(c.Request.Context(), domain.MovieFilters{
			Featured: q.Featured,
			Term:     q.Q,
			Sort:     q.Sort,
			Limit:    q.Limit,
			Offset:   q.Offset,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, MoviesResponse{Movies: list}, "public, max-age=15", true)
	}
}

// @Summary  Get movie
// @Tags     movies
// @Param    id  path  string  true  "Movie ID"
// @Success  200  {object}  MovieResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /movies/{id} [get]
func handleGetMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		m, err := svcs.Movies.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, MovieResponse{Movie: m}, "public, max-age=60", true)
	}
}

// @Summary   Add movie
// @Tags      movies
// @Security  BearerAuth
// @Param     req body  MovieRequest true "payload"
// @Success   201 {object} MovieResponse
// @Failure   400 {object} ErrorResponse
// @Failure   403 {object} ErrorResponse
// @Router    /movies [post]
func handleCreateMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		var req MovieRequest
		if !bindJSON(c, &req) {
			return
		}

		m, err := svcs.Movies.Create(c.Request.Context(), p.ID, movieInput(req))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, MovieResponse{Movie: m})
	}
}

// @Summary   Update movie
// @Tags      movies
// @Security  BearerAuth
// @Param     id  path  string  true  "Movie ID"
// @Param     req body  MovieRequest true "payload"
// @Success   200 {object} MovieResponse
// @Failure   403 {object} ErrorResponse "not the owning admin"
// @Failure   404 {object} ErrorResponse
// @Router    /movies/{id} [put]
func handleUpdateMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var req MovieRequest
		if !bindJSON(c, &req) {
			return
		}

		m, err := svcs.Movies.Update(c.Request.Context(), id, p.ID, movieInput(req))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, MovieResponse{Movie: m})
	}
}

// @Summary      Delete movie
// @Description  Removes the movie and every booking made for it.
// @Tags         movies
// @Security     BearerAuth
// @Param        id  path  string  true  "Movie ID"
// @Success      200 {object} MovieResponse
// @Failure      403 {object} ErrorResponse "not the owning admin"
// @Failure      404 {object} ErrorResponse
// @Router       /movies/{id} [delete]
func handleDeleteMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		m, err := svcs.Movies.Delete(c.Request.Context(), id, p.ID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, MovieResponse{Message: "movie deleted", Movie: m})
	}
}
