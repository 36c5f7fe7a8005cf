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

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://cognito-idp.ap-southeast-1.amazonaws.com/pool"

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "user-1",
		"iss":       testIssuer,
		"client_id": "client",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
}

func TestAuthenticate(t *testing.T) {
	key := newKey(t)
	v := NewVerifier(testIssuer, "client", map[string]*rsa.PublicKey{"k1": &key.PublicKey})

	t.Run("valid token", func(t *testing.T) {
		userId, err := v.Authenticate(context.Background(), sign(t, key, "k1", validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "user-1", userId)
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := v.Authenticate(context.Background(), sign(t, key, "k2", validClaims()))
		assert.ErrorIs(t, err, ErrUnknownKid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims()
		claims["iss"] = "https://evil.example.com"
		_, err := v.Authenticate(context.Background(), sign(t, key, "k1", claims))
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		claims := validClaims()
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
		_, err := v.Authenticate(context.Background(), sign(t, key, "k1", claims))
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("other client", func(t *testing.T) {
		claims := validClaims()
		claims["client_id"] = "someone-else"
		_, err := v.Authenticate(context.Background(), sign(t, key, "k1", claims))
		assert.Error(t, err)
	})

	t.Run("signed by another key", func(t *testing.T) {
		_, err := v.Authenticate(context.Background(), sign(t, newKey(t), "k1", validClaims()))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Authenticate(context.Background(), "not-a-token")
		assert.Error(t, err)
	})
}

func TestLoadCognitoPublicKeys(t *testing.T) {
	key := newKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pool/.well-known/jwks.json", r.URL.Path)
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kid: "k1",
			Kty: "RSA",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	issuer := srv.URL + "/pool"
	v := NewVerifier(issuer, "", nil)
	require.NoError(t, v.LoadCognitoPublicKeys(context.Background(), srv.Client()))

	claims := validClaims()
	claims["iss"] = issuer
	userId, err := v.Authenticate(context.Background(), sign(t, key, "k1", claims))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userId)
}

func TestSubject(t *testing.T) {
	_, err := Subject(map[string]interface{}{"sub": 12})
	assert.ErrorIs(t, err, ErrNoSubject)

	sub, err := Subject(map[string]interface{}{"sub": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", sub)
}
