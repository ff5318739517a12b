package zarrclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignVerifyRoundTrip(t *testing.T) {
	s := NewSigner("top-secret")
	expires := time.Now().Add(time.Hour).Unix()

	sig := s.Sign(http.MethodGet, "token-123", expires)
	require.NoError(t, s.Verify(http.MethodGet, "token-123", sig, expires))
}

func TestSigner_VerifyRejectsTamperedToken(t *testing.T) {
	s := NewSigner("top-secret")
	expires := time.Now().Add(time.Hour).Unix()

	sig := s.Sign(http.MethodGet, "token-123", expires)
	assert.Error(t, s.Verify(http.MethodGet, "other-token", sig, expires))
}

func TestSigner_VerifyRejectsTamperedExpires(t *testing.T) {
	s := NewSigner("top-secret")
	expires := time.Now().Add(time.Hour).Unix()

	sig := s.Sign(http.MethodGet, "token-123", expires)
	assert.Error(t, s.Verify(http.MethodGet, "token-123", sig, expires+3600))
}

func TestSigner_VerifyRejectsWrongMethod(t *testing.T) {
	s := NewSigner("top-secret")
	expires := time.Now().Add(time.Hour).Unix()

	sig := s.Sign(http.MethodGet, "token-123", expires)
	assert.Error(t, s.Verify(http.MethodPost, "token-123", sig, expires))
}

func TestSigner_VerifyRejectsWrongKey(t *testing.T) {
	s1 := NewSigner("key-one")
	s2 := NewSigner("key-two")
	expires := time.Now().Add(time.Hour).Unix()

	sig := s1.Sign(http.MethodGet, "token-123", expires)
	assert.Error(t, s2.Verify(http.MethodGet, "token-123", sig, expires))
}

func TestSigner_VerifyRejectsExpired(t *testing.T) {
	s := NewSigner("top-secret")
	expires := time.Now().Add(-time.Minute).Unix()

	sig := s.Sign(http.MethodGet, "token-123", expires)
	assert.Error(t, s.Verify(http.MethodGet, "token-123", sig, expires))
}

func TestSigner_Issue(t *testing.T) {
	s := NewSigner("top-secret")

	grant := s.Issue("token-123", time.Hour)
	assert.Equal(t, "token-123", grant.Token)
	assert.Equal(t, http.MethodGet, grant.Method)
	require.NoError(t, s.Verify(grant.Method, grant.Token, grant.Sig, grant.Expires.Unix()))
}

func TestParseExpires(t *testing.T) {
	ts, err := ParseExpires("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)

	_, err = ParseExpires("not-a-number")
	assert.Error(t, err)
}
