// Package auth verifies the bearer tokens issued by the HR portal and mints
// tokens for development and tests.
package auth

import (
	"context"
	"time"

	"hrchat/internal/domain/thread"
	hrchat_errors "hrchat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c Claims) UserID() string { return c.Subject }

// Member is the signed in user as a thread member.
func (c Claims) Member() thread.Member {
	return thread.Member{ID: c.Subject, Name: c.Name, Role: c.Role}
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for userID.
func (s *TokenService) Issue(userID, name, role string) (string, error) {
	if userID == "" {
		return "", hrchat_errors.NewValidation("sub", "user id is required")
	}
	now := s.now()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies tokenString and returns its claims.
func (s *TokenService) Parse(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, hrchat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, hrchat_errors.ErrUnauthorized
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, hrchat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Claims{}, hrchat_errors.ErrUnauthorized
	}
	return *claims, nil
}

// ParseUnverified reads the claims of a token without checking its
// signature. Clients use it to learn who they are signed in as.
func ParseUnverified(tokenString string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return Claims{}, hrchat_errors.ErrUnauthorized
	}
	if claims.Subject == "" {
		return Claims{}, hrchat_errors.ErrUnauthorized
	}
	return claims, nil
}

type ctxKey struct{}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims stored by WithClaims.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}
