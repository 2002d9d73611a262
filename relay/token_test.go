package relay

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("abc01234", 15*time.Minute)

	token, err := issuer.Issue("42")
	require.NoError(t, err)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "42", userID)

	_, err = issuer.Issue("")
	assert.Error(t, err)
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := NewTokenIssuer("abc01234", 15*time.Minute)

	expired := NewTokenIssuer("abc01234", 15*time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, err := expired.Issue("42")
	require.NoError(t, err)

	foreignToken, err := NewTokenIssuer("other-secret", time.Minute).Issue("42")
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("abc01234"))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": "42",
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("abc01234"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expiredToken},
		{"foreign secret", foreignToken},
		{"no user_id", noUser},
		{"wrong algorithm", wrongAlg},
		{"garbage", "not.a.token"},
		{"placeholder", "no_auth_token_user bad_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestTokenIssuerNumericUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 17,
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("abc01234"))
	require.NoError(t, err)

	userID, err := NewTokenIssuer("abc01234", time.Minute).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "17", userID)
}
