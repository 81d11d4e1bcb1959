package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken("s3cret", 42, "admin", 15)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}
	if time.Until(at.Exp) <= 14*time.Minute {
		t.Errorf("expiry too soon: %s", at.Exp)
	}
	c, err := ParseAccessToken("s3cret", at.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if c.UserID != 42 || c.Role != "admin" {
		t.Errorf("claims = %+v", c)
	}
}

func TestParseAccessToken_Rejects(t *testing.T) {
	good, _ := NewAccessToken("s3cret", 7, "user", 5)
	expired, _ := NewAccessToken("s3cret", 7, "user", -5)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "7", "role": "admin"})
	noneRaw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "user"}).SignedString([]byte("s3cret"))

	tests := []struct {
		name   string
		secret string
		raw    string
	}{
		{"wrong secret", "other", good.Token},
		{"expired", "s3cret", expired.Token},
		{"alg none", "s3cret", noneRaw},
		{"missing sub", "s3cret", noSub},
		{"garbage", "s3cret", "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAccessToken(tt.secret, tt.raw); err != ErrInvalidToken {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNumericSubjectAccepted(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 9, "role": "user", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseAccessToken("k", raw)
	if err != nil || c.UserID != 9 {
		t.Fatalf("got %+v, %v", c, err)
	}
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(30)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewRefreshToken(30)
	if len(a.Raw) != 96 || a.Raw == b.Raw {
		t.Errorf("unexpected raw tokens %q %q", a.Raw, b.Raw)
	}
	h := HashRefreshRaw(a.Raw)
	if len(h) != 64 || strings.Contains(h, a.Raw) || h != HashRefreshRaw(a.Raw) {
		t.Errorf("hash not stable/opaque: %q", h)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "hunter22") {
		t.Error("VerifyPassword rejected the right password")
	}
	if VerifyPassword(hash, "hunter23") {
		t.Error("VerifyPassword accepted the wrong password")
	}
}

func TestPassword_RehashAndLimits(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatal(err)
	}
	if NeedsRehash(hash, 4) {
		t.Error("NeedsRehash(same cost) = true")
	}
	if !NeedsRehash(hash, 5) {
		t.Error("NeedsRehash(new cost) = false")
	}
	if !NeedsRehash("not-a-hash", 4) {
		t.Error("NeedsRehash(garbage) = false")
	}
	if _, err := HashPassword(strings.Repeat("é", 40), 4); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword(80 bytes) error = %v, want ErrPasswordTooLong", err)
	}
}
