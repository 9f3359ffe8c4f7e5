// Package auth issues and validates the HS256 session tokens that gate the
// admin dashboard routes.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storeops/be-inspections/internal/errors"
	"github.com/storeops/be-inspections/internal/middleware"
)

const issuer = "be-inspections"

// Claims extends the registered JWT claims with the session role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type contextKey string

const claimsKey contextKey = "auth_claims"

// ClaimsFromContext returns the validated claims set by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// Manager issues and validates session tokens.
type Manager struct {
	secret        []byte
	adminUser     string
	adminPassword string
	ttl           time.Duration
}

// NewManager creates a token manager. An empty secret is tolerated only for
// development; config.Load rejects it elsewhere.
func NewManager(secret, adminUser, adminPassword string, ttl time.Duration) *Manager {
	return &Manager{
		secret:        []byte(secret),
		adminUser:     adminUser,
		adminPassword: adminPassword,
		ttl:           ttl,
	}
}

// Login checks admin credentials and returns a signed session token.
func (m *Manager) Login(username, password string) (string, error) {
	if m.adminPassword == "" {
		return "", errors.Unauthorized("admin login is not configured")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.adminPassword)) == 1
	if !userOK || !passOK {
		return "", errors.Unauthorized("invalid credentials")
	}
	return m.IssueToken(username, "admin")
}

// IssueToken signs a token for the given subject and role.
func (m *Manager) IssueToken(subject, role string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses and validates a session token string.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.Unauthorized("invalid token claims")
	}
	return claims, nil
}

// RequireAdmin gates a handler behind a valid admin session token.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := middleware.BearerToken(r)
		if tokenString == "" {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if claims.Role != "admin" {
			http.Error(w, "Admin role required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
