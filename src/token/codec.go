// Package token signs and verifies the identity tokens shared by the HTTP
// API and the WebSocket gateway.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/orchestra-mcp/chat/src/types"
)

var (
	// ErrAuth is the root of every verification failure.
	ErrAuth = errors.New("unauthorized")
	// ErrMissingToken is returned for an empty token string.
	ErrMissingToken = errors.New("token is required")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrMissingClaim is returned when the userId claim is absent.
	ErrMissingClaim = errors.New("token has no userId claim")
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("invalid token")
)

// Config holds signing configuration.
type Config struct {
	Secret string
	Issuer string
	// TTL of issued tokens. Zero issues tokens without an expiry.
	TTL time.Duration
}

// Claims is the JWT payload. The userId key matches tokens minted by the
// account API.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256 tokens.
type Codec struct {
	cfg Config
}

// NewCodec creates a codec for the given secret.
func NewCodec(cfg Config) *Codec {
	return &Codec{cfg: cfg}
}

// Issue signs a token for userID.
func (c *Codec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingClaim
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.cfg.Issuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if c.cfg.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.cfg.TTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns the identity it carries.
// Every failure matches ErrAuth.
func (c *Codec) Verify(tokenString string) (types.Identity, error) {
	if tokenString == "" {
		return types.Identity{}, authErr(ErrMissingToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(c.cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return types.Identity{}, authErr(ErrExpiredToken)
		}
		return types.Identity{}, authErr(ErrInvalidToken)
	}
	if !token.Valid {
		return types.Identity{}, authErr(ErrInvalidToken)
	}
	if claims.UserID == "" {
		return types.Identity{}, authErr(ErrMissingClaim)
	}

	return types.Identity{UserID: claims.UserID}, nil
}

func authErr(reason error) error {
	return fmt.Errorf("%w: %w", ErrAuth, reason)
}
