package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestOperatorID(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"userId": "A1", "sub": "session-7"})

	id, err := OperatorID(token)
	require.NoError(t, err)
	assert.Equal(t, "A1", id)
}

func TestOperatorIDMissingClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "session-7"})

	_, err := OperatorID(token)
	assert.ErrorIs(t, err, ErrNoOperatorClaim)
}

func TestOperatorIDMalformedToken(t *testing.T) {
	_, err := OperatorID("not-a-jwt")
	assert.Error(t, err)
}
