package router

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/config"
    "github.com/iliyamo/movie-catalog/internal/handler"
    "github.com/iliyamo/movie-catalog/internal/utils"
)

const secret = "router-secret"

func newServer() *echo.Echo {
    e := echo.New()
    Register(e, Handlers{
        Auth:      handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil, nil),
        Movies:    handler.NewMovieHandler(nil, nil),
        Ratings:   handler.NewRatingHandler(nil, nil),
        Rentals:   handler.NewRentalHandler(nil),
        Recommend: handler.NewRecommendHandler(nil),
        Watchlist: handler.NewWatchlistHandler(nil),
        Admin:     handler.NewAdminHandler(nil, nil, nil),
    }, nil, secret, Middleware{})
    return e
}

func bearer(t *testing.T, role string) string {
    t.Helper()
    at, err := utils.NewAccessToken(secret, 5, role, 5)
    if err != nil {
        t.Fatal(err)
    }
    return "Bearer " + at.Token
}

func TestRouteTable(t *testing.T) {
    e := newServer()
    have := map[string]bool{}
    for _, r := range e.Routes() {
        have[r.Method+" "+r.Path] = true
    }
    for _, want := range []string{
        "GET /healthz",
        "GET /metrics",
        "POST /v1/auth/register",
        "POST /v1/auth/refresh-access",
        "POST /v1/auth/change-password",
        "GET /v1/movies",
        "GET /v1/movies/search",
        "GET /v1/movies/:id/stats",
        "POST /v1/movies/:id/ratings",
        "DELETE /v1/movies/:id/ratings/me",
        "POST /v1/movies/:id/rent",
        "POST /v1/movies/:id/return",
        "GET /v1/movies/:id/rental",
        "GET /v1/rentals/me",
        "GET /v1/recommendations",
        "GET /v1/history",
        "PUT /v1/watchlist/:movie_id",
        "PUT /v1/admin/movies/:id/genres",
        "DELETE /v1/admin/users/:id",
        "GET /v1/admin/rentals",
    } {
        if !have[want] {
            t.Errorf("route %q not registered", want)
        }
    }
}

func TestGuards(t *testing.T) {
    e := newServer()
    tests := []struct {
        method, path, auth string
        want               int
    }{
        {http.MethodGet, "/healthz", "", http.StatusOK},
        {http.MethodGet, "/v1/me", "", http.StatusUnauthorized},
        {http.MethodPost, "/v1/movies/1/rent", "", http.StatusUnauthorized},
        {http.MethodGet, "/v1/admin/users", "", http.StatusUnauthorized},
        {http.MethodGet, "/v1/admin/users", bearer(t, "user"), http.StatusForbidden},
        {http.MethodPost, "/v1/movies/abc/rent", bearer(t, "user"), http.StatusBadRequest},
    }
    for _, tt := range tests {
        req := httptest.NewRequest(tt.method, tt.path, nil)
        if tt.auth != "" {
            req.Header.Set(echo.HeaderAuthorization, tt.auth)
        }
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        if rec.Code != tt.want {
            t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
        }
    }
}
