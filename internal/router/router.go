// Package router wires handlers and middleware onto the echo instance.
package router

import (
    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/movie-catalog/internal/handler"
    "github.com/iliyamo/movie-catalog/internal/middleware"
    "github.com/iliyamo/movie-catalog/internal/model"
)

// Handlers is everything the route table needs.
type Handlers struct {
    Auth      *handler.AuthHandler
    Movies    *handler.MovieHandler
    Ratings   *handler.RatingHandler
    Rentals   *handler.RentalHandler
    Recommend *handler.RecommendHandler
    Watchlist *handler.WatchlistHandler
    Admin     *handler.AdminHandler
}

// Middleware carries the optional per-group middleware. Nil entries are skipped.
type Middleware struct {
    RateLimit echo.MiddlewareFunc
    Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers unauthenticated infrastructure endpoints.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
    e.GET("/healthz", handler.Health)
    if ready != nil {
        e.GET("/readyz", ready)
    }
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// authenticated profile endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, mw Middleware) {
    g := e.Group("/v1/auth", use(mw.RateLimit)...)
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    g.POST("/logout", a.Logout)

    authed := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
    authed.GET("/me", a.Me)
    authed.POST("/auth/change-password", a.ChangePassword)
}

// RegisterPublic registers the catalog reads. They are open to guests; a
// bearer token is honoured where it changes the response (search).
func RegisterPublic(e *echo.Echo, m *handler.MovieHandler, jwtSecret string, mw Middleware) {
    chain := append([]echo.MiddlewareFunc{middleware.OptionalJWT(jwtSecret)}, use(mw.RateLimit, mw.Cache)...)
    g := e.Group("/v1/movies", chain...)
    g.GET("", m.List)
    g.GET("/search", m.Search)
    g.GET("/suggest", m.Suggest)
    g.GET("/:id", m.Get)
    g.GET("/:id/genres", m.Genres)
    g.GET("/:id/ratings", m.Ratings)
    g.GET("/:id/stats", m.Stats)
}

// RegisterUser registers the endpoints of a signed-in user.
func RegisterUser(e *echo.Echo, h Handlers, jwtSecret string, mw Middleware) {
    chain := append([]echo.MiddlewareFunc{
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleUser, model.RoleAdmin),
    }, use(mw.RateLimit)...)
    g := e.Group("/v1", chain...)

    g.POST("/movies/:id/ratings", h.Ratings.Put)
    g.DELETE("/movies/:id/ratings/me", h.Ratings.DeleteMine)
    g.GET("/history", h.Ratings.History)

    g.POST("/movies/:id/rent", h.Rentals.Rent)
    g.POST("/movies/:id/return", h.Rentals.Return)
    g.GET("/movies/:id/rental", h.Rentals.Status)
    g.GET("/rentals/me", h.Rentals.Mine)

    g.GET("/recommendations", h.Recommend.Get)

    g.GET("/watchlist", h.Watchlist.List)
    g.PUT("/watchlist/:movie_id", h.Watchlist.Add)
    g.DELETE("/watchlist/:movie_id", h.Watchlist.Remove)
}

// RegisterAdmin registers catalog and account management under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
    g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
    g.POST("/movies", a.CreateMovie)
    g.PUT("/movies/:id", a.UpdateMovie)
    g.DELETE("/movies/:id", a.DeleteMovie)
    g.PUT("/movies/:id/genres", a.ReplaceGenres)

    g.GET("/users", a.ListUsers)
    g.PUT("/users/:id", a.UpdateUser)
    g.DELETE("/users/:id", a.DeleteUser)

    g.GET("/rentals", a.ActiveRentals)
}

// Register mounts the whole API.
func Register(e *echo.Echo, h Handlers, ready echo.HandlerFunc, jwtSecret string, mw Middleware) {
    RegisterRoutes(e, ready)
    RegisterAuth(e, h.Auth, jwtSecret, mw)
    RegisterPublic(e, h.Movies, jwtSecret, mw)
    RegisterUser(e, h, jwtSecret, mw)
    RegisterAdmin(e, h.Admin, jwtSecret)
}

func use(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
    out := make([]echo.MiddlewareFunc, 0, len(mws))
    for _, m := range mws {
        if m != nil {
            out = append(out, m)
        }
    }
    return out
}
