package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/movie-catalog/internal/utils"
)

// Context keys set by the auth middleware.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// JWTAuth validates a Bearer access token and stores the caller's id
// (uint64) and role under "user_id" and "role". Requests without a valid
// token get 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ctxUserID, claims.UserID)
            c.Set(ctxRole, claims.Role)
            return next(c)
        }
    }
}

// OptionalJWT identifies the caller when a valid token is present and lets
// anonymous or badly authenticated requests through as guests.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if raw, ok := bearer(c); ok {
                if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
                    c.Set(ctxUserID, claims.UserID)
                    c.Set(ctxRole, claims.Role)
                }
            }
            return next(c)
        }
    }
}

// UserID returns the authenticated caller, if any.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id > 0
}

// Role returns the authenticated caller's role or "".
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

func bearer(c echo.Context) (string, bool) {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(auth[7:])
    return raw, raw != ""
}
