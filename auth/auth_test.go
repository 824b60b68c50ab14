package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifyMobileToken(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret})
	token := signToken(t, jwt.MapClaims{"device_id": "d1"}, testSecret)

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Unit || id.DeviceID != "d1" {
		t.Fatalf("unexpected identity %#v", id)
	}
}

func TestVerifyUnitToken(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret})
	token := signToken(t, jwt.MapClaims{"tcu": "true", "mac": "AA:BB:CC"}, testSecret)

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !id.Unit || id.MAC != "AA:BB:CC" {
		t.Fatalf("unexpected identity %#v", id)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret, Issuer: "sums"})
	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", signToken(t, jwt.MapClaims{"device_id": "d1", "iss": "sums"}, "other")},
		{"wrong issuer", signToken(t, jwt.MapClaims{"device_id": "d1", "iss": "elsewhere"}, testSecret)},
		{"no claims", signToken(t, jwt.MapClaims{"iss": "sums"}, testSecret)},
		{"unit without mac", signToken(t, jwt.MapClaims{"tcu": "true", "iss": "sums"}, testSecret)},
		{"expired", signToken(t, jwt.MapClaims{
			"device_id": "d1", "iss": "sums", "exp": time.Now().Add(-time.Hour).Unix(),
		}, testSecret)},
	}
	for _, c := range cases {
		if _, err := v.Verify(c.token); err == nil {
			t.Fatalf("%s: expected rejection", c.name)
		}
	}
}

func TestVerifyRejectsUnexpectedAlg(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret})
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"device_id": "d1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(s); err == nil {
		t.Fatalf("alg none must be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret})
	var got Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("identity missing from context")
		}
		got = id
	})
	h := v.Middleware(next)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"device_id": "d1"}, testSecret))
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || got.DeviceID != "d1" {
		t.Fatalf("status %d identity %#v", rr.Code, got)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: status %d", rr.Code)
	}
}
