package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		Name:  "Laura Diaz",
		Email: "laura@example.com",
		Phone: "3009876543",
		Role:  "patient",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "11",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestFromRequestGuest(t *testing.T) {
	p, err := NewResolver(testSecret).FromRequest(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.True(t, p.Guest())
	assert.Empty(t, p.Token)
}

func TestFromRequestBearer(t *testing.T) {
	token := sign(t, testSecret, jwt.SigningMethodHS256, validClaims())
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	p, err := NewResolver(testSecret).FromRequest(req)
	require.NoError(t, err)
	require.False(t, p.Guest())
	assert.Equal(t, int64(11), p.Identity.ID)
	assert.Equal(t, "laura@example.com", p.Identity.Email)
	assert.Equal(t, token, p.Token)
}

func TestParseRejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	badSubject := validClaims()
	badSubject.Subject = "laura"

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, "other", jwt.SigningMethodHS256, validClaims())},
		{"expired", sign(t, testSecret, jwt.SigningMethodHS256, expired)},
		{"other hmac", sign(t, testSecret, jwt.SigningMethodHS512, validClaims())},
		{"non numeric subject", sign(t, testSecret, jwt.SigningMethodHS256, badSubject)},
		{"garbage", "not.a.token"},
	}

	r := NewResolver(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestParseWithoutSecret(t *testing.T) {
	_, err := NewResolver("").Parse("anything")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestFromRequestWrongScheme(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	_, err := NewResolver(testSecret).FromRequest(req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestContextRoundTrip(t *testing.T) {
	p := Principal{Token: "tok"}
	assert.Equal(t, p, FromContext(NewContext(context.Background(), p)))
	assert.True(t, FromContext(context.Background()).Guest())
}
