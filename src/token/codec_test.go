package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec(Config{Secret: "test-secret", Issuer: "chat-test", TTL: time.Hour})
}

func TestIssueAndVerify(t *testing.T) {
	c := testCodec()

	tok, err := c.Issue("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	id, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
}

func TestIssueRequiresUserID(t *testing.T) {
	_, err := testCodec().Issue("")
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerifyWithoutTTL(t *testing.T) {
	c := NewCodec(Config{Secret: "s"})
	tok, err := c.Issue("u2")
	require.NoError(t, err)

	id, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
}

func TestVerifyRejects(t *testing.T) {
	c := testCodec()
	other := NewCodec(Config{Secret: "other-secret", Issuer: "chat-test", TTL: time.Hour})
	foreign, err := other.Issue("user-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason error
	}{
		{name: "empty", token: "", reason: ErrMissingToken},
		{name: "garbage", token: "not.a.token", reason: ErrInvalidToken},
		{name: "truncated", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid", reason: ErrInvalidToken},
		{name: "wrong secret", token: foreign, reason: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Verify(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuth)
			assert.ErrorIs(t, err, tt.reason)
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	c := NewCodec(Config{Secret: "s", TTL: time.Millisecond})
	tok, err := c.Issue("user-1")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = c.Verify(tok)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyMissingUserIDClaim(t *testing.T) {
	claims := jwt.MapClaims{"sub": "someone"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = NewCodec(Config{Secret: "s"}).Verify(tok)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: "u1"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = NewCodec(Config{Secret: "s"}).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongIssuer(t *testing.T) {
	tok, err := NewCodec(Config{Secret: "s", Issuer: "a"}).Issue("u1")
	require.NoError(t, err)

	_, err = NewCodec(Config{Secret: "s", Issuer: "b"}).Verify(tok)
	assert.ErrorIs(t, err, ErrAuth)
}
