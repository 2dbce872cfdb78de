package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// newJWKSServer serves the public half of key in the JWKS format identity
// providers publish.
func newJWKSServer(t *testing.T, kid string, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]string{
			{
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, kid string, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWKSVerifier_ValidToken(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	bearer := signToken(t, "key-1", key, jwt.MapClaims{
		"sub":   "user-123",
		"email": "user@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	ident, err := verifier.Verify(context.Background(), bearer)
	require.NoError(t, err)
	assert.Equal(t, "user-123", ident.UserID)
	assert.Equal(t, "user@example.com", ident.Email)
}

func TestJWKSVerifier_UserIDClaimFallback(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	bearer := signToken(t, "key-1", key, jwt.MapClaims{
		"user_id": "user-456",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	ident, err := verifier.Verify(context.Background(), bearer)
	require.NoError(t, err)
	assert.Equal(t, "user-456", ident.UserID)
}

func TestJWKSVerifier_EmptyToken(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	_, err := verifier.Verify(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}

func TestJWKSVerifier_ExpiredToken(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	bearer := signToken(t, "key-1", key, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), bearer)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}

func TestJWKSVerifier_WrongKey(t *testing.T) {
	serverKey := newSigningKey(t)
	attackerKey := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", serverKey)
	verifier := NewJWKSVerifier(srv.URL)

	bearer := signToken(t, "key-1", attackerKey, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), bearer)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}

func TestJWKSVerifier_UnknownKid(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	bearer := signToken(t, "rotated-away", key, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), bearer)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}

func TestJWKSVerifier_RejectsHMACToken(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "attacker",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "key-1"
	bearer, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), bearer)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}

func TestJWKSVerifier_MissingSubject(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, "key-1", key)
	verifier := NewJWKSVerifier(srv.URL)

	bearer := signToken(t, "key-1", key, jwt.MapClaims{
		"email": "user@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(context.Background(), bearer)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}

func TestStaticVerifier(t *testing.T) {
	verifier := StaticVerifier{
		"dev-token": {UserID: "dev-user", Email: "dev@example.com"},
	}

	ident, err := verifier.Verify(context.Background(), "dev-token")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", ident.UserID)

	_, err = verifier.Verify(context.Background(), "other")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthenticated, domain.CodeOf(err))
}
