package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret, subject string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   subject,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: exp.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestTokenParser_UserID(t *testing.T) {
	p := NewTokenParser("s3cret")

	tok := signHS256(t, "s3cret", "42", time.Now().Add(time.Hour))
	uid, err := p.UserID(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)
}

func TestTokenParser_WrongSecret(t *testing.T) {
	p := NewTokenParser("s3cret")

	tok := signHS256(t, "other", "42", time.Now().Add(time.Hour))
	_, err := p.UserID(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenParser_Expired(t *testing.T) {
	p := NewTokenParser("s3cret")

	tok := signHS256(t, "s3cret", "42", time.Now().Add(-time.Hour))
	_, err := p.UserID(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenParser_BadSubject(t *testing.T) {
	p := NewTokenParser("s3cret")

	for _, subject := range []string{"", "abc", "-5", "0"} {
		tok := signHS256(t, "s3cret", subject, time.Now().Add(time.Hour))
		_, err := p.UserID(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "subject %q", subject)
	}
}

func TestTokenParser_RejectsNonHMAC(t *testing.T) {
	p := NewTokenParser("s3cret")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{Subject: "42"})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.UserID(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
