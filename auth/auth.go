// Package auth verifies the bearer tokens presented by mobile clients and
// vehicle units. Mobile tokens carry a device_id claim; unit tokens carry
// tcu="true" and the unit's MAC address.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the token verification parameters.
type Config struct {
	Secret   string `json:"secret"`
	Issuer   string `json:"issuer"`
	Audience string `json:"audience"`
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("auth: secret is required")
	}
	return nil
}

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	// DeviceID identifies a mobile client. Empty for unit tokens.
	DeviceID string
	// MAC identifies a vehicle unit. Empty for mobile tokens.
	MAC string
	// Unit reports whether the token was issued to a head unit or TCU.
	Unit bool
}

// ErrInvalidToken is returned for tokens that fail verification or lack the
// claims their audience requires.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	DeviceID string `json:"device_id"`
	TCU      string `json:"tcu"`
	MAC      string `json:"mac"`
	jwt.RegisteredClaims
}

// Verifier parses and validates bearer tokens.
type Verifier struct {
	cfg Config
}

// NewVerifier creates a Verifier for the given configuration.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify parses the token string and returns the caller's identity.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, fmt.Errorf("empty token: %w", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%v: %w", err, ErrInvalidToken)
	}

	if claims.TCU == "true" {
		if claims.MAC == "" {
			return Identity{}, fmt.Errorf("unit token without mac: %w", ErrInvalidToken)
		}
		return Identity{MAC: claims.MAC, Unit: true}, nil
	}
	if claims.DeviceID == "" {
		return Identity{}, fmt.Errorf("mobile token without device_id: %w", ErrInvalidToken)
	}
	return Identity{DeviceID: claims.DeviceID}, nil
}

type contextKey struct{}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Middleware authenticates requests with a bearer token and stores the
// resulting identity in the request context. Requests without a valid token
// are rejected with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
