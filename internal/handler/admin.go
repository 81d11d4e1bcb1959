package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/model"
    "github.com/iliyamo/movie-catalog/internal/repository"
    "github.com/iliyamo/movie-catalog/internal/service"
)

// AdminHandler exposes catalog and account management to admins. Routes are
// guarded by RequireRole("admin").
type AdminHandler struct {
    Catalog  *service.CatalogService
    Accounts *service.AccountService
    Rentals  *service.RentalService
}

func NewAdminHandler(catalog *service.CatalogService, accounts *service.AccountService, rentals *service.RentalService) *AdminHandler {
    return &AdminHandler{Catalog: catalog, Accounts: accounts, Rentals: rentals}
}

type createMovieReq struct {
    Title       string   `json:"title" validate:"required,max=255"`
    Description string   `json:"description" validate:"max=5000"`
    Genre       string   `json:"genre" validate:"required,max=64,excludesall=0x2C"`
    ReleaseYear int      `json:"release_year" validate:"gte=1888,lte=2100"`
    PosterURL   *string  `json:"poster_url" validate:"omitempty,url,max=512"`
    Genres      []string `json:"genres" validate:"max=20,dive,max=64"`
}

type updateMovieReq struct {
    Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
    Description *string `json:"description" validate:"omitempty,max=5000"`
    Genre       *string `json:"genre" validate:"omitempty,min=1,max=64,excludesall=0x2C"`
    ReleaseYear *int    `json:"release_year" validate:"omitempty,gte=1888,lte=2100"`
    // An empty string clears the poster.
    PosterURL *string `json:"poster_url" validate:"omitempty,url,max=512"`
}

type genresReq struct {
    Genres []string `json:"genres" validate:"max=20,dive,max=64"`
}

type updateUserReq struct {
    Role *string `json:"role" validate:"omitempty,oneof=user admin"`
    Name *string `json:"name" validate:"omitempty,min=1,max=100"`
}

// CreateMovie handles POST /v1/admin/movies.
func (h *AdminHandler) CreateMovie(c echo.Context) error {
    var req createMovieReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    m, err := h.Catalog.Create(c.Request().Context(), model.MovieInput{
        Title:       strings.TrimSpace(req.Title),
        Description: req.Description,
        Genre:       strings.TrimSpace(req.Genre),
        ReleaseYear: req.ReleaseYear,
        PosterURL:   req.PosterURL,
        Genres:      req.Genres,
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, m)
}

// UpdateMovie handles PUT /v1/admin/movies/:id (partial update).
func (h *AdminHandler) UpdateMovie(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    var req updateMovieReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    // "" is a valid way to clear the poster, so validate only non-empty URLs.
    poster := req.PosterURL
    if poster != nil && *poster == "" {
        req.PosterURL = nil
    }
    if ok, err := validOnly(c, &req); !ok {
        return err
    }
    m, err := h.Catalog.Update(c.Request().Context(), id, repository.MoviePatch{
        Title:       trimPtr(req.Title),
        Description: req.Description,
        Genre:       trimPtr(req.Genre),
        ReleaseYear: req.ReleaseYear,
        PosterURL:   poster,
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, m)
}

// DeleteMovie handles DELETE /v1/admin/movies/:id.
func (h *AdminHandler) DeleteMovie(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    if err := h.Catalog.Delete(c.Request().Context(), id); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// ReplaceGenres handles PUT /v1/admin/movies/:id/genres.
func (h *AdminHandler) ReplaceGenres(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid movie id")
    }
    var req genresReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    tags, err := h.Catalog.ReplaceGenres(c.Request().Context(), id, req.Genres)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"movie_id": id, "genres": tags})
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
    users, err := h.Accounts.List(c.Request().Context())
    if err != nil {
        return writeError(c, err)
    }
    out := make([]model.PublicUser, 0, len(users))
    for _, u := range users {
        out = append(out, u.Public())
    }
    return c.JSON(http.StatusOK, out)
}

// UpdateUser handles PUT /v1/admin/users/:id.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    var req updateUserReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    u, err := h.Accounts.UpdateUser(c.Request().Context(), id, req.Role, req.Name)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, u.Public())
}

// DeleteUser handles DELETE /v1/admin/users/:id. Admins cannot delete
// their own account.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    if self, err := getUserID(c); err == nil && self == id {
        return badRequest(c, "cannot delete your own account")
    }
    if err := h.Accounts.DeleteUser(c.Request().Context(), id); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// ActiveRentals handles GET /v1/admin/rentals.
func (h *AdminHandler) ActiveRentals(c echo.Context) error {
    items, err := h.Rentals.Active(c.Request().Context())
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, items)
}

func trimPtr(s *string) *string {
    if s == nil {
        return nil
    }
    t := strings.TrimSpace(*s)
    return &t
}
