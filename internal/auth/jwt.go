// Package auth is the boundary to the identity provider. Bearer tokens are
// HMAC-signed JWTs carrying the user id in "sub" and the role in "role"; a
// verified token becomes a domain.Caller.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens.
type Verifier struct {
	key    []byte
	issuer string
	clock  clock.Clock
}

func NewVerifier(signingKey, issuer string, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Verifier{key: []byte(signingKey), issuer: issuer, clock: clk}
}

// Verify parses token and returns the caller it identifies. Tokens with an
// unknown role or no subject are rejected.
func (v *Verifier) Verify(token string) (domain.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Caller{}, ErrTokenExpired
		}
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return domain.Caller{}, ErrTokenInvalid
	}
	return domain.Caller{UserID: claims.Subject, Role: claims.Role}, nil
}

// Issuer mints tokens. The API never issues tokens itself; rifasctl and tests do.
type Issuer struct {
	key    []byte
	issuer string
	clock  clock.Clock
}

func NewIssuer(signingKey, issuer string, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Issuer{key: []byte(signingKey), issuer: issuer, clock: clk}
}

func (i *Issuer) Issue(caller domain.Caller, ttl time.Duration) (string, error) {
	if caller.UserID == "" {
		return "", errors.New("user id required")
	}
	if !caller.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", caller.Role)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := i.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(i.key)
}
