package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeviceAuthorization — ответ device_authorization_endpoint
// (RFC 8628). Клиент без браузера отображает VerificationURI +
// UserCode пользователю, затем поллит token endpoint.
type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// StartDeviceFlow инициирует Device Code flow.
func (c *Client) StartDeviceFlow(ctx context.Context, scope string) (*DeviceAuthorization, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if doc.DeviceAuthEndpoint == "" {
		return nil, fmt.Errorf("IdP не публикует device_authorization_endpoint")
	}

	form := url.Values{"client_id": {c.clientID}, "scope": {scope}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, doc.DeviceAuthEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса device authorization: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос device authorization: %w", err)
	}
	defer resp.Body.Close()

	var da DeviceAuthorization
	if err := json.NewDecoder(resp.Body).Decode(&da); err != nil {
		return nil, fmt.Errorf("декодирование ответа device authorization: %w", err)
	}
	if da.Interval == 0 {
		da.Interval = 5
	}
	return &da, nil
}

// ErrAuthorizationPending сообщает, что пользователь ещё не подтвердил
// device code — клиент должен повторить опрос через Interval секунд.
var ErrAuthorizationPending = fmt.Errorf("authorization_pending")

// ErrSlowDown сообщает о необходимости увеличить интервал опроса.
var ErrSlowDown = fmt.Errorf("slow_down")

// PollDeviceToken опрашивает token endpoint по device_code один раз.
// Пока возвращается ErrAuthorizationPending или ErrSlowDown, вызывающий
// код повторяет вызов с интервалом da.Interval — до получения токена или
// истечения ExpiresIn (так делает WaitForDeviceToken).
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {deviceCode},
		"client_id":   {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	tr, err := c.exchangeForm(ctx, doc.TokenEndpoint, form)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "authorization_pending"):
			return nil, ErrAuthorizationPending
		case strings.Contains(err.Error(), "slow_down"):
			return nil, ErrSlowDown
		}
		return nil, err
	}
	return tr, nil
}

// WaitForDeviceToken поллит PollDeviceToken до получения токена,
// истечения срока da.ExpiresIn или отмены ctx.
func (c *Client) WaitForDeviceToken(ctx context.Context, da *DeviceAuthorization) (*TokenResponse, error) {
	interval := time.Duration(da.Interval) * time.Second
	deadline := time.Now().Add(time.Duration(da.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("срок действия device code истёк")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		tr, err := c.PollDeviceToken(ctx, da.DeviceCode)
		switch {
		case err == nil:
			return tr, nil
		case err == ErrAuthorizationPending:
			continue
		case err == ErrSlowDown:
			interval += 5 * time.Second
			continue
		default:
			return nil, err
		}
	}
}
