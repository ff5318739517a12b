package oidc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
)

// BuildAuthorizationURL формирует URL экрана согласия IdP для
// Authorization Code flow с PKCE. Возвращает URL, сгенерированный
// state и code_verifier (последний должен быть сохранён в
// internal/auth/statestore до обмена кода на токен).
func (c *Client) BuildAuthorizationURL(ctx context.Context, redirectURI, scope string) (authURL, state, codeVerifier string, err error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return "", "", "", err
	}

	state, err = randomURLSafe(32)
	if err != nil {
		return "", "", "", err
	}
	codeVerifier, err = randomURLSafe(48)
	if err != nil {
		return "", "", "", err
	}
	challenge := codeChallengeS256(codeVerifier)

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {c.clientID},
		"redirect_uri":          {redirectURI},
		"scope":                 {scope},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}

	return doc.AuthorizationEndpoint + "?" + q.Encode(), state, codeVerifier, nil
}

// ExchangeCode обменивает authorization code на access/refresh token —
// последний шаг Authorization Code flow.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {c.clientID},
		"code_verifier": {codeVerifier},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	return c.exchangeForm(ctx, doc.TokenEndpoint, form)
}

// RefreshToken обновляет access token по refresh_token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	return c.exchangeForm(ctx, doc.TokenEndpoint, form)
}

// EndSessionURL формирует URL end-session endpoint'а IdP для logout.
// postLogoutRedirectURI, если задан, передаётся IdP вместе с
// client_id — Keycloak требует их парой.
func (c *Client) EndSessionURL(ctx context.Context, postLogoutRedirectURI string) (string, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return "", err
	}
	if doc.EndSessionEndpoint == "" {
		return "", fmt.Errorf("IdP не публикует end_session_endpoint")
	}

	if postLogoutRedirectURI == "" {
		return doc.EndSessionEndpoint, nil
	}
	q := url.Values{
		"post_logout_redirect_uri": {postLogoutRedirectURI},
		"client_id":                {c.clientID},
	}
	return doc.EndSessionEndpoint + "?" + q.Encode(), nil
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("генерация случайных байт: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
