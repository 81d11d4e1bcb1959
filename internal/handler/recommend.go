package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/service"
)

type RecommendHandler struct {
    Recs *service.RecommendService
}

func NewRecommendHandler(s *service.RecommendService) *RecommendHandler {
    return &RecommendHandler{Recs: s}
}

// Get handles GET /v1/recommendations and returns {tier, items}.
func (h *RecommendHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    recs, err := h.Recs.Recommend(c.Request().Context(), uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, recs)
}
