package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Secret: "test-secret", Issuer: "minishop"})
	require.NoError(t, err)
	return v
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := newVerifier(t)

	token, err := v.Issue(Identity{UserID: "u-1", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)

	id, err := v.ParseBearer("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestVerifier_Rejects(t *testing.T) {
	v := newVerifier(t)
	other, err := NewVerifier(Config{Secret: "other-secret", Issuer: "minishop"})
	require.NoError(t, err)
	foreignIssuer, err := NewVerifier(Config{Secret: "test-secret", Issuer: "elsewhere"})
	require.NoError(t, err)

	expired, err := v.Issue(Identity{UserID: "u-1"}, -time.Hour)
	require.NoError(t, err)
	wrongKey, err := other.Issue(Identity{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)
	wrongIss, err := foreignIssuer.Issue(Identity{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)
	noSubject, err := v.Issue(Identity{}, time.Minute)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u-1",
		Issuer:    "minishop",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrMissingToken},
		{"not bearer", "Basic abc", ErrMissingToken},
		{"garbage", "Bearer abc.def.ghi", ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrInvalidToken},
		{"wrong key", "Bearer " + wrongKey, ErrInvalidToken},
		{"wrong issuer", "Bearer " + wrongIss, ErrInvalidToken},
		{"no subject", "Bearer " + noSubject, ErrInvalidToken},
		{"other algorithm", "Bearer " + hs512, ErrInvalidToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ParseBearer(tc.header)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(Config{})
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u-2", Role: "customer"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-2", id.UserID)
	assert.False(t, id.IsAdmin())
}
