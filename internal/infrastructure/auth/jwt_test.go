package auth

import (
	"testing"
	"time"

	"github.com/consulta/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *TokenVerifier {
	return NewTokenVerifier(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-bytes-long",
		Issuer: "consulta-backend",
	})
}

func TestTokenVerifier_IssueAndVerify(t *testing.T) {
	verifier := newTestVerifier()
	userID := uuid.New()

	token, err := verifier.Issue(userID, "user@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)

	parsed, err := claims.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestTokenVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier()

	token, err := verifier.Issue(uuid.New(), "", -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenVerifier_WrongSecret(t *testing.T) {
	verifier := newTestVerifier()
	other := NewTokenVerifier(config.JWTConfig{
		Secret: "a-completely-different-secret-keyyyyy",
		Issuer: "consulta-backend",
	})

	token, err := other.Issue(uuid.New(), "", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenVerifier_WrongIssuer(t *testing.T) {
	verifier := newTestVerifier()
	other := NewTokenVerifier(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-bytes-long",
		Issuer: "someone-else",
	})

	token, err := other.Issue(uuid.New(), "", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestTokenVerifier_MissingUserID(t *testing.T) {
	verifier := newTestVerifier()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "consulta-backend",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret-key-at-least-32-bytes-long"))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestTokenVerifier_RejectsUnsignedAlgorithm(t *testing.T) {
	verifier := newTestVerifier()

	claims := &Claims{UserID: uuid.New().String()}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenVerifier_GarbageToken(t *testing.T) {
	verifier := newTestVerifier()

	_, err := verifier.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
