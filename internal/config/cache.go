package config

import (
	"strings"
	"time"
)

// CacheConfig drives the catalog response cache. Caching is off when
// Enabled is false or Redis is unreachable.
//
// Every catalog or rating write bumps the counter at VersionKey; the current
// value is part of each cache key, so a write makes all older pages
// unreachable at once instead of waiting for their TTL.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // route | route_query | method_route | method_route_query
	Prefix       string
	VersionKey   string
	MaxBodyBytes int // larger responses are served but not stored
}

func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methodSet(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		VersionKey:   envStr("CACHE_VERSION_KEY", "catalog:version"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if c.TTL < time.Second {
		c.TTL = time.Second
	}
	if c.MaxBodyBytes < 1 {
		c.MaxBodyBytes = 1 << 20
	}
	return c
}

// methodSet parses "GET, head" into {"GET": true, "HEAD": true}.
func methodSet(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			m[p] = true
		}
	}
	return m
}
