package handler

import (
    "math"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/repository"
    "github.com/iliyamo/movie-catalog/internal/service"
)

const (
    defaultHistoryLimit = 20
    maxHistoryLimit     = 100
)

// RatingHandler exposes rating writes and the caller's rating history.
type RatingHandler struct {
    Ratings *service.RatingService
    Repo    *repository.RatingRepo
}

func NewRatingHandler(s *service.RatingService, r *repository.RatingRepo) *RatingHandler {
    return &RatingHandler{Ratings: s, Repo: r}
}

type ratingReq struct {
    // A float so that 4.5 is rejected as "not an integer" instead of a bind error.
    Rating *float64 `json:"rating" validate:"required"`
    Review *string  `json:"review"`
}

// Put handles POST /v1/movies/:id/ratings.
func (h *RatingHandler) Put(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    var req ratingReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    r := *req.Rating
    if r != math.Trunc(r) || r < 1 || r > 5 {
        return badRequest(c, service.ErrInvalidRating.Error())
    }
    m, err := h.Ratings.Submit(c.Request().Context(), uid, movieID, int(r), req.Review)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"movie": m})
}

// DeleteMine handles DELETE /v1/movies/:id/ratings/me.
func (h *RatingHandler) DeleteMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    m, err := h.Ratings.Delete(c.Request().Context(), uid, movieID)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"movie": m})
}

// History handles GET /v1/history?limit=.
func (h *RatingHandler) History(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    limit, ok := queryInt(c, "limit", defaultHistoryLimit)
    if !ok || limit < 1 {
        limit = defaultHistoryLimit
    }
    if limit > maxHistoryLimit {
        limit = maxHistoryLimit
    }
    items, err := h.Repo.History(c.Request().Context(), uid, limit)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, items)
}
