package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
)

const testKey = "test-signing-key"

func TestIssueAndVerify(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	issuer := NewIssuer(testKey, "rifas", clk)
	verifier := NewVerifier(testKey, "rifas", clk)

	token, err := issuer.Issue(domain.Caller{UserID: "user-1", Role: domain.RoleSeller}, time.Hour)
	require.NoError(t, err)

	caller, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Caller{UserID: "user-1", Role: domain.RoleSeller}, caller)

	t.Run("expired", func(t *testing.T) {
		clk.Advance(2 * time.Hour)
		defer clk.Advance(-2 * time.Hour)
		_, err := verifier.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := NewVerifier("other-key", "rifas", clk).Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewVerifier(testKey, "someone-else", clk).Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestVerify_RejectsUnknownRoleAndAlgNone(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	verifier := NewVerifier(testKey, "", clk)

	claims := Claims{
		Role: domain.Role("root"),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = verifier.Verify(signed)
	assert.True(t, errors.Is(err, ErrTokenInvalid))

	claims.Role = domain.RoleAdmin
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = verifier.Verify(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssue_Validates(t *testing.T) {
	issuer := NewIssuer(testKey, "rifas", nil)
	_, err := issuer.Issue(domain.Caller{Role: domain.RoleAdmin}, time.Hour)
	assert.Error(t, err)
	_, err = issuer.Issue(domain.Caller{UserID: "u", Role: "root"}, time.Hour)
	assert.Error(t, err)
	_, err = issuer.Issue(domain.Caller{UserID: "u", Role: domain.RoleAdmin}, 0)
	assert.Error(t, err)
}
