package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// newTestJWKSServer запускает httptest JWKS endpoint со свежим
// RSA-ключом, которым подписываются тестовые токены.
func newTestJWKSServer(t *testing.T) (*httptest.Server, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": "test-key-1",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	}
	body, err := json.Marshal(jwks)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return srv, key
}

func signToken(t *testing.T, key *rsa.PrivateKey, sub string, extra map[string]any, expiry time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(expiry).Unix(),
		"iat": time.Now().Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key-1"

	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestValidator(t *testing.T, jwksURL string) *Validator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := NewValidator(context.Background(), jwksURL, "", time.Hour, 0, nil, logger)
	require.NoError(t, err)
	return v
}

func TestValidator_ParseValidToken(t *testing.T) {
	srv, key := newTestJWKSServer(t)
	v := newTestValidator(t, srv.URL)

	tok := signToken(t, key, "alice", map[string]any{"groups": []any{"climate-researchers"}}, time.Hour)

	claims, err := v.Parse(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
}

func TestValidator_ParseExpiredToken(t *testing.T) {
	srv, key := newTestJWKSServer(t)
	v := newTestValidator(t, srv.URL)

	tok := signToken(t, key, "alice", nil, -time.Hour)

	_, err := v.Parse(context.Background(), tok)
	require.Error(t, err)
}

func TestValidator_ParseWrongKeyRejected(t *testing.T) {
	srv, _ := newTestJWKSServer(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := newTestValidator(t, srv.URL)
	tok := signToken(t, otherKey, "alice", nil, time.Hour)

	_, err = v.Parse(context.Background(), tok)
	require.Error(t, err)
}

func TestValidator_ParseEnforcesClaimFilters(t *testing.T) {
	srv, key := newTestJWKSServer(t)

	filters, err := CompileFilters(map[string]string{"groups": "^climate-.*$"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := NewValidator(context.Background(), srv.URL, "", time.Hour, 0, filters, logger)
	require.NoError(t, err)

	ok := signToken(t, key, "alice", map[string]any{"groups": []any{"climate-researchers"}}, time.Hour)
	_, err = v.Parse(context.Background(), ok)
	require.NoError(t, err)

	bad := signToken(t, key, "bob", map[string]any{"groups": []any{"other-team"}}, time.Hour)
	_, err = v.Parse(context.Background(), bad)
	require.Error(t, err, "токен без требуемых claim'ов отклоняется при валидации")
}

func TestClaimFilters_MatchesGroupRegex(t *testing.T) {
	filters, err := CompileFilters(map[string]string{"groups": "^climate-.*$"})
	require.NoError(t, err)

	claims := &Claims{Subject: "alice", Raw: map[string]any{"groups": []any{"climate-researchers"}}}
	require.True(t, Matches(claims, filters))

	claims2 := &Claims{Subject: "bob", Raw: map[string]any{"groups": []any{"other-team"}}}
	require.False(t, Matches(claims2, filters))
}

func TestClaimFilters_NestedPath(t *testing.T) {
	filters, err := CompileFilters(map[string]string{"realm_access.roles": "^admin$"})
	require.NoError(t, err)

	claims := &Claims{Raw: map[string]any{
		"realm_access": map[string]any{"roles": []any{"admin", "user"}},
	}}
	require.True(t, Matches(claims, filters))
}

func TestClaimFilters_MissingPathFails(t *testing.T) {
	filters, err := CompileFilters(map[string]string{"missing.path": ".*"})
	require.NoError(t, err)

	claims := &Claims{Raw: map[string]any{}}
	require.False(t, Matches(claims, filters))
}
