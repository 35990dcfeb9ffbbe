package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdg-garage/club-booking-api/internal/config"
	"github.com/gdg-garage/club-booking-api/internal/policy"
	"github.com/golang-jwt/jwt/v5"
)

const TokenDuration = 24 * time.Hour

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID    string
	Role  policy.Role
	Email string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator issues and verifies principal tokens.
type Authenticator struct {
	cfg *config.Config
	now func() time.Time
}

func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{cfg: cfg, now: time.Now}
}

type claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (a *Authenticator) GenerateToken(p Principal) (string, error) {
	now := a.now()
	c := claims{
		Role:  string(p.Role),
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

// ParseToken verifies the token and returns its principal and expiry.
func (a *Authenticator) ParseToken(tokenString string) (Principal, time.Time, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return Principal{}, time.Time{}, err
	}
	if !token.Valid {
		return Principal{}, time.Time{}, errors.New("invalid token")
	}

	p := Principal{ID: c.Subject, Role: policy.Role(c.Role), Email: c.Email}
	if p.ID == "" {
		return Principal{}, time.Time{}, errors.New("token has no subject")
	}
	if !p.Role.Valid() {
		return Principal{}, time.Time{}, fmt.Errorf("token has unknown role %q", c.Role)
	}

	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return p, exp, nil
}
