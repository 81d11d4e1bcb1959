package handler

import (
    "errors"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/service"
)

// RentalHandler drives the per-movie rental state machine.
type RentalHandler struct {
    Rentals *service.RentalService
}

func NewRentalHandler(s *service.RentalService) *RentalHandler {
    return &RentalHandler{Rentals: s}
}

func (h *RentalHandler) rentalError(c echo.Context, err error) error {
    if errors.Is(err, service.ErrRentalLimit) {
        return c.JSON(http.StatusConflict, echo.Map{
            "error": fmt.Sprintf("You cannot rent more than %d movies", h.Rentals.Limit()),
        })
    }
    return writeError(c, err)
}

// Rent handles POST /v1/movies/:id/rent.
func (h *RentalHandler) Rent(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    r, err := h.Rentals.Rent(c.Request().Context(), movieID, uid)
    if err != nil {
        return h.rentalError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "rental": r})
}

// Return handles POST /v1/movies/:id/return.
func (h *RentalHandler) Return(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    r, err := h.Rentals.Return(c.Request().Context(), movieID, uid)
    if err != nil {
        return h.rentalError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "rental": r})
}

// Status handles GET /v1/movies/:id/rental.
func (h *RentalHandler) Status(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    movieID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    st, err := h.Rentals.Status(c.Request().Context(), movieID, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"movie_id": movieID, "status": st})
}

// Mine handles GET /v1/rentals/me.
func (h *RentalHandler) Mine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    items, err := h.Rentals.Mine(c.Request().Context(), uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "limit": h.Rentals.Limit()})
}
