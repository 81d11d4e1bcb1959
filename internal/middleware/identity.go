package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// identity names the caller for rate-limit keys: the user id when a token
// was verified earlier in the chain, "anon" otherwise.
func identity(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
