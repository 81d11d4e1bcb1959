package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadRateLimitConfig_Normalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-4")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Capacity = %d, want 1", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 {
		t.Errorf("RefillTokens = %d, want 1", cfg.RefillTokens)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("TTL = %s, want 10s", cfg.TTL)
	}
}

func TestLoadRateLimitConfig_BurstAndEvery(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "250ms")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 7 || cfg.RefillTokens != 1 || cfg.RefillInterval != 250*time.Millisecond {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"off", true, false},
		{"YES", false, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("X_BOOL", tt.val)
		if got := envBool("X_BOOL", tt.def); got != tt.want {
			t.Errorf("envBool(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}

func TestAdminPolicy(t *testing.T) {
	tests := map[string]string{
		"":           AdminFirstUser,
		"first_user": AdminFirstUser,
		"none":       AdminNone,
		" No_Admin ": AdminNone,
		"bogus":      AdminFirstUser,
	}
	for in, want := range tests {
		if got := adminPolicy(in); got != want {
			t.Errorf("adminPolicy(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadBrokerConfig_Defaults(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("BROKER_BREAKER_FAILURES", "0")

	cfg := LoadBrokerConfig()
	if cfg.URL != "amqp://u:p@mq:5672/" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Queue != "activity.events" {
		t.Errorf("Queue = %q", cfg.Queue)
	}
	if cfg.BreakerFailures != 1 {
		t.Errorf("BreakerFailures = %d, want 1", cfg.BreakerFailures)
	}
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	t.Setenv("CACHE_TTL", "10ms")
	t.Setenv("CACHE_MAX_BODY_BYTES", "-1")

	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
		t.Errorf("Methods = %v", cfg.Methods)
	}
	if cfg.TTL != time.Second {
		t.Errorf("TTL = %s, want 1s floor", cfg.TTL)
	}
	if cfg.MaxBodyBytes != 1<<20 || cfg.VersionKey != "catalog:version" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestRedisConfig_Options(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")

	opt, err := LoadRedisConfig().Options()
	if err != nil {
		t.Fatal(err)
	}
	if opt.Addr != "cache:6380" || opt.DB != 2 || opt.TLSConfig == nil {
		t.Errorf("options = addr %q db %d tls %v", opt.Addr, opt.DB, opt.TLSConfig != nil)
	}

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	if got := LoadRedisConfig().Addr; got != "redis:6379" {
		t.Errorf("Addr = %q, want host+port to win over REDIS_ADDR", got)
	}

	t.Setenv("REDIS_URL", "redis://:pw@remote:7000/5")
	opt, err = LoadRedisConfig().Options()
	if err != nil {
		t.Fatal(err)
	}
	if opt.Addr != "remote:7000" || opt.Password != "pw" || opt.DB != 5 {
		t.Errorf("url options = %+v", opt)
	}
}

func TestRedisConfig_ConnectUnreachable(t *testing.T) {
	cfg := RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}
	if c := cfg.Connect(context.Background()); c != nil {
		t.Error("Connect() to a closed port returned a client")
	}
}
