package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role decides what a token holder may do.
type Role string

const (
	// RolePlayer joins an arena over WebSocket and can be hunted.
	RolePlayer Role = "player"
	// RoleSpectator only watches the event stream.
	RoleSpectator Role = "spectator"
)

func (r Role) Valid() bool { return r == RolePlayer || r == RoleSpectator }

// Claims is the JWT payload. Subject carries the player ID, ID the token ID
// used for revocation.
type Claims struct {
	Role  Role   `json:"role"`
	Arena string `json:"arena,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for subject with the given secret and TTL.
func GenerateToken(subject string, role Role, arena, name, secret string, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		subject = uuid.NewString()
	}
	now := time.Now()
	claims := &Claims{
		Role:  role,
		Arena: arena,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseToken validates a JWT string and returns the claims.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Role.Valid() {
		return nil, errors.New("invalid role")
	}
	return claims, nil
}

// ArenaOr picks the arena a client enters: the one bound into the token,
// else the one it asked for, else fallback.
func (c *Claims) ArenaOr(requested, fallback string) string {
	if c != nil && c.Arena != "" {
		return c.Arena
	}
	if requested != "" {
		return requested
	}
	return fallback
}
