package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/repository"
)

// WatchlistHandler manages the caller's saved movies.
type WatchlistHandler struct {
    Repo *repository.WatchlistRepo
}

func NewWatchlistHandler(r *repository.WatchlistRepo) *WatchlistHandler {
    return &WatchlistHandler{Repo: r}
}

func (h *WatchlistHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    items, err := h.Repo.List(c.Request().Context(), uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Add handles PUT /v1/watchlist/:movie_id; repeating it is harmless.
func (h *WatchlistHandler) Add(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "movie_id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    if err := h.Repo.Add(c.Request().Context(), uid, movieID); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Remove handles DELETE /v1/watchlist/:movie_id; absent entries are fine.
func (h *WatchlistHandler) Remove(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "movie_id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    if err := h.Repo.Remove(c.Request().Context(), uid, movieID); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
