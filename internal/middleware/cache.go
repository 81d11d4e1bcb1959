package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/movie-catalog/internal/config"
    "github.com/iliyamo/movie-catalog/internal/logger"
    "github.com/iliyamo/movie-catalog/internal/metrics"
)

// CatalogCache owns the catalog version counter. Every write that changes
// what a public catalog page shows calls Invalidate, which bumps the counter
// and so retires every cached page at once.
type CatalogCache struct {
    rdb *redis.Client
    key string
}

func NewCatalogCache(cfg config.CacheConfig, rdb *redis.Client) *CatalogCache {
    return &CatalogCache{rdb: rdb, key: cfg.VersionKey}
}

// Invalidate bumps the catalog version. No-op without Redis.
func (cc *CatalogCache) Invalidate(ctx context.Context) error {
    if cc == nil || cc.rdb == nil {
        return nil
    }
    return cc.rdb.Incr(ctx, cc.key).Err()
}

func (cc *CatalogCache) version(ctx context.Context) (string, error) {
    v, err := cc.rdb.Get(ctx, cc.key).Result()
    if errors.Is(err, redis.Nil) {
        return "0", nil
    }
    return v, err
}

// captureWriter tees the response body (up to limit bytes) while forwarding it.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    size      int64
    limit     int64
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit > 0 && cw.size+int64(len(b)) > cw.limit {
        cw.truncated = true
    } else {
        cw.buf.Write(b)
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

func cacheKeyFrom(cfg config.CacheConfig, version string, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
    default: // route_query
        parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
    }
    // Path params are part of the resource identity for every strategy.
    for _, v := range c.ParamValues() {
        parts = append(parts, "p", v)
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:v%s:%x", cfg.Prefix, version, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header len][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// NewRedisCache caches successful anonymous catalog reads in Redis, keyed by
// the current catalog version. Requests carrying credentials bypass the
// cache because their bodies may hold per-user fields.
func NewRedisCache(cfg config.CacheConfig, cc *CatalogCache) echo.MiddlewareFunc {
    if !cfg.Enabled || cc == nil || cc.rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    rdb := cc.rdb
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] || req.Header.Get(echo.HeaderAuthorization) != "" {
                return next(c)
            }

            ctx := req.Context()
            ver, err := cc.version(ctx)
            if err != nil {
                // Without a version we cannot tell a stale page from a fresh one.
                logger.Get().WithError(err).Debug("cache: version lookup failed")
                return next(c)
            }
            key := cacheKeyFrom(cfg, ver, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    metrics.CacheLookups.WithLabelValues("hit").Inc()
                    for k, vals := range hdr {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, err := c.Response().Write(body)
                    return err
                }
            }
            metrics.CacheLookups.WithLabelValues("miss").Inc()

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            // The request context may already be cancelled once the body is written.
            wctx, cancel := context.WithTimeout(context.Background(), time.Second)
            defer cancel()
            if err := rdb.Set(wctx, key, payload, ttl).Err(); err != nil {
                logger.Get().WithError(err).Debug("cache: store failed")
            }
            return nil
        }
    }
}
