package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/movie-catalog/internal/logger"
    "github.com/iliyamo/movie-catalog/internal/metrics"
)

// RequestLogger logs one structured line per request and records its
// duration. Handler errors are passed to echo's error handler first so the
// logged status is the one the client saw.
func RequestLogger() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            elapsed := time.Since(start)

            req, res := c.Request(), c.Response()
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            metrics.RecordHTTPRequest(req.Method, route, res.Status, elapsed)

            fields := logrus.Fields{
                "method":     req.Method,
                "route":      route,
                "uri":        req.RequestURI,
                "status":     res.Status,
                "latency_ms": elapsed.Milliseconds(),
                "remote_ip":  c.RealIP(),
            }
            if id, ok := UserID(c); ok {
                fields["user_id"] = id
            }
            entry := logger.Get().WithFields(fields)
            if err != nil {
                entry = entry.WithError(err)
            }
            switch {
            case err != nil || res.Status >= 500:
                entry.Error("request")
            case res.Status >= 400:
                entry.Warn("request")
            default:
                entry.Info("request")
            }
            return nil
        }
    }
}
