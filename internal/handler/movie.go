package handler

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/middleware"
    "github.com/iliyamo/movie-catalog/internal/repository"
)

const reviewListLimit = 100

// MovieHandler serves the public catalog reads.
type MovieHandler struct {
    Movies  *repository.MovieRepo
    Reviews *repository.RatingRepo
}

func NewMovieHandler(m *repository.MovieRepo, r *repository.RatingRepo) *MovieHandler {
    return &MovieHandler{Movies: m, Reviews: r}
}

// queryFloat/queryInt return def for an absent parameter and ok=false for a
// malformed one.
func queryFloat(c echo.Context, name string) (float64, bool) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return 0, true
    }
    f, err := strconv.ParseFloat(raw, 64)
    return f, err == nil
}

func queryInt(c echo.Context, name string, def int) (int, bool) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return def, true
    }
    n, err := strconv.Atoi(raw)
    return n, err == nil
}

func queryBool(c echo.Context, name string) bool {
    b, _ := strconv.ParseBool(strings.TrimSpace(c.QueryParam(name)))
    return b
}

// List handles GET /v1/movies.
func (h *MovieHandler) List(c echo.Context) error {
    minRating, ok := queryFloat(c, "min_rating")
    if !ok {
        return badRequest(c, "min_rating must be a number")
    }
    year, ok := queryInt(c, "year", 0)
    if !ok {
        return badRequest(c, "year must be an integer")
    }
    items, err := h.Movies.List(c.Request().Context(), repository.MovieFilter{
        Q:         c.QueryParam("q"),
        Genre:     c.QueryParam("genre"),
        MinRating: minRating,
        Year:      year,
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, items)
}

// Search handles GET /v1/movies/search. A bearer token, when present,
// adds the caller's own rating to each item.
func (h *MovieHandler) Search(c echo.Context) error {
    minRating, ok := queryFloat(c, "min_rating")
    if !ok {
        return badRequest(c, "min_rating must be a number")
    }
    year, ok := queryInt(c, "year", 0)
    if !ok {
        return badRequest(c, "year must be an integer")
    }
    page, _ := queryInt(c, "page", 1)
    pageSize, _ := queryInt(c, "page_size", 0)

    q := repository.MovieSearchQuery{
        Q:          c.QueryParam("q"),
        Genre:      c.QueryParam("genre"),
        MinRating:  minRating,
        Year:       year,
        TitleOnly:  queryBool(c, "title_only"),
        StartsWith: queryBool(c, "starts_with"),
        Sort:       c.QueryParam("sort"),
        Page:       page,
        PageSize:   pageSize,
    }
    if uid, ok := middleware.UserID(c); ok {
        q.UserID = uid
    }
    q = q.Normalize()

    items, total, err := h.Movies.Search(c.Request().Context(), q)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "items":     items,
        "total":     total,
        "page":      q.Page,
        "page_size": q.PageSize,
    })
}

// Suggest handles GET /v1/movies/suggest?q=.
func (h *MovieHandler) Suggest(c echo.Context) error {
    items, err := h.Movies.Suggest(c.Request().Context(), c.QueryParam("q"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, items)
}

// Get handles GET /v1/movies/:id.
func (h *MovieHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    m, err := h.Movies.GetByID(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, m)
}

// Genres handles GET /v1/movies/:id/genres.
func (h *MovieHandler) Genres(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    ctx := c.Request().Context()
    if _, err := h.Movies.GetByID(ctx, id); err != nil {
        return writeError(c, err)
    }
    tags, err := h.Movies.Genres(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"movie_id": id, "genres": tags})
}

// Ratings handles GET /v1/movies/:id/ratings: the latest reviews.
func (h *MovieHandler) Ratings(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    ctx := c.Request().Context()
    if _, err := h.Movies.GetByID(ctx, id); err != nil {
        return writeError(c, err)
    }
    items, err := h.Reviews.ListForMovie(ctx, id, reviewListLimit)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, items)
}

// Stats handles GET /v1/movies/:id/stats.
func (h *MovieHandler) Stats(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    ctx := c.Request().Context()
    m, err := h.Movies.GetByID(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    hist, err := h.Reviews.Histogram(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    count := 0
    for _, n := range hist {
        count += n
    }
    return c.JSON(http.StatusOK, echo.Map{
        "movie_id":   id,
        "avg_rating": m.AvgRating,
        "count":      count,
        "histogram":  hist,
    })
}
