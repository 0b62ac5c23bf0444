// Package auth issues and verifies anonymous identity tokens.
package auth

import (
	"chatroulette/backend/internal/api/response"
	"chatroulette/backend/internal/log"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the anonymous user id.
type Claims struct {
	AnonID string `json:"anon_id"`
	jwt.RegisteredClaims
}

// Manager signs and parses HS256 tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// NewAnonID returns a fresh anonymous identity.
func NewAnonID() string {
	return uuid.New().String()
}

// Issue returns a signed token for anonID.
func (m *Manager) Issue(anonID string) (string, error) {
	if anonID == "" {
		return "", errors.New("anon id is required")
	}
	now := m.now()
	claims := Claims{
		AnonID: anonID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   anonID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify returns the anonymous id carried by tokenString.
func (m *Manager) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.AnonID == "" {
		return "", ErrInvalidToken
	}
	return claims.AnonID, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter used by browser WebSocket clients.
func TokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return c.Query("token")
}

// RequireIdentity rejects requests without a valid token and stores the
// caller id under log.FieldUserID.
func RequireIdentity(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		anonID, err := m.Verify(token)
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}
		c.Set(log.FieldUserID, anonID)
		c.Next()
	}
}

// CallerID returns the identity stored by RequireIdentity, or "".
func CallerID(c *gin.Context) string {
	return c.GetString(log.FieldUserID)
}
