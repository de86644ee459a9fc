package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// RoleStorageAdmin is required for the storage operations.
const RoleStorageAdmin = "storage_admin"

const (
	ctxClaims          = "claims"
	defaultTokenTTL    = 24 * time.Hour
	bearerPrefix       = "Bearer "
	tokenIssuer        = "mcs"
	errMissingAuth     = "missing bearer token"
	errInvalidToken    = "invalid or expired token"
	errMissingRoleTmpl = "role %q required"
)

// Claims are the JWT claims accepted by the server.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. A zero ttl uses 24h.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for subject carrying roles.
func (m *TokenManager) Issue(subject string, roles ...string) (string, error) {
	now := m.now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns its claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthMiddleware requires a valid bearer token and stores its claims in the
// context. With a nil manager every request passes.
func AuthMiddleware(m *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(errMissingAuth))
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(errInvalidToken))
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose token lacks role. Must run after
// AuthMiddleware; it is a no-op when authentication is disabled.
func RequireRole(m *TokenManager, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		v, ok := c.Get(ctxClaims)
		claims, _ := v.(*Claims)
		if !ok || claims == nil || !claims.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody(fmt.Sprintf(errMissingRoleTmpl, role)))
			return
		}
		c.Next()
	}
}
