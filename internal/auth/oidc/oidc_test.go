package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdP(t *testing.T, deviceInterval int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var baseURL string

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		doc := Document{
			Issuer:                baseURL,
			AuthorizationEndpoint: baseURL + "/auth",
			TokenEndpoint:         baseURL + "/token",
			DeviceAuthEndpoint:    baseURL + "/device",
			JWKSURI:               baseURL + "/jwks",
		}
		json.NewEncoder(w).Encode(doc)
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		grant := r.FormValue("grant_type")
		if grant == "urn:ietf:params:oauth:grant-type:device_code" {
			code := r.FormValue("device_code")
			if code == "pending" {
				json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
				return
			}
		}
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-token-xyz", ExpiresIn: 3600})
	})

	mux.HandleFunc("/device", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(DeviceAuthorization{
			DeviceCode:      "ready",
			UserCode:        "ABCD-EFGH",
			VerificationURI: baseURL + "/verify",
			ExpiresIn:       600,
			Interval:        deviceInterval,
		})
	})

	srv := httptest.NewServer(mux)
	baseURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Discover(t *testing.T) {
	srv := newTestIdP(t, 1)
	c := NewClient(srv.URL+"/.well-known/openid-configuration", "client-id", "", true)

	doc, err := c.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/token", doc.TokenEndpoint)
}

func TestClient_BuildAuthorizationURL(t *testing.T) {
	srv := newTestIdP(t, 1)
	c := NewClient(srv.URL+"/.well-known/openid-configuration", "client-id", "", true)

	authURL, state, verifier, err := c.BuildAuthorizationURL(context.Background(), "https://app/callback", "openid")
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.NotEmpty(t, verifier)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
}

func TestClient_ExchangeCode(t *testing.T) {
	srv := newTestIdP(t, 1)
	c := NewClient(srv.URL+"/.well-known/openid-configuration", "client-id", "secret", true)

	tr, err := c.ExchangeCode(context.Background(), "auth-code", "https://app/callback", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "access-token-xyz", tr.AccessToken)
}

func TestClient_StartAndPollDeviceFlow(t *testing.T) {
	srv := newTestIdP(t, 1)
	c := NewClient(srv.URL+"/.well-known/openid-configuration", "client-id", "", true)

	da, err := c.StartDeviceFlow(context.Background(), "openid")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", da.UserCode)

	tr, err := c.WaitForDeviceToken(context.Background(), da)
	require.NoError(t, err)
	assert.Equal(t, "access-token-xyz", tr.AccessToken)
}

func TestClient_EndSessionURL_NotPublished(t *testing.T) {
	srv := newTestIdP(t, 1)
	c := NewClient(srv.URL+"/.well-known/openid-configuration", "client-id", "", true)

	_, err := c.EndSessionURL(context.Background(), "")
	assert.Error(t, err, "IdP без end_session_endpoint не поддерживает logout-редирект")
}

func TestClient_PollDeviceToken_Pending(t *testing.T) {
	srv := newTestIdP(t, 1)
	c := NewClient(srv.URL+"/.well-known/openid-configuration", "client-id", "", true)

	_, err := c.PollDeviceToken(context.Background(), "pending")
	assert.ErrorIs(t, err, ErrAuthorizationPending)
}
