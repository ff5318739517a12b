// Пакет oidc — клиент OIDC discovery, Authorization Code и Device Code
// flow. Работает с произвольным IdP через его discovery document, не
// привязываясь к конкретному провайдеру.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Document — подмножество полей OIDC discovery document
// (.well-known/openid-configuration), необходимое Auth Mediator.
type Document struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	DeviceAuthEndpoint    string   `json:"device_authorization_endpoint"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint"`
	EndSessionEndpoint    string   `json:"end_session_endpoint"`
	JWKSURI               string   `json:"jwks_uri"`
	ScopesSupported       []string `json:"scopes_supported"`
}

// Client — клиент OIDC, кэширующий discovery document.
type Client struct {
	discoveryURL string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	debug        bool

	mu      sync.Mutex
	cached  *Document
	expires time.Time
}

// NewClient создаёт OIDC-клиент. Если debug=true, discovery document не
// кэшируется — перечитывается при каждом запросе (удобно при разработке
// с локальным IdP, чья конфигурация часто меняется).
func NewClient(discoveryURL, clientID, clientSecret string, debug bool) *Client {
	return &Client{
		discoveryURL: discoveryURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		debug:        debug,
	}
}

// discoveryCacheTTL — срок жизни кэшированного discovery document.
const discoveryCacheTTL = 10 * time.Minute

// Discover возвращает discovery document, используя кэш, если debug не
// установлен.
func (c *Client) Discover(ctx context.Context) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.debug && c.cached != nil && time.Now().Before(c.expires) {
		return c.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса discovery document: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IdP вернул статус %d при запросе discovery document", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("декодирование discovery document: %w", err)
	}

	c.cached = &doc
	c.expires = time.Now().Add(discoveryCacheTTL)
	return &doc, nil
}

// TokenResponse — ответ token endpoint'а (общий для всех grant types).
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDesc        string `json:"error_description"`
}

// exchangeForm выполняет POST application/x-www-form-urlencoded к
// token endpoint и декодирует ответ.
func (c *Client) exchangeForm(ctx context.Context, tokenEndpoint string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос токена: %w", err)
	}
	defer resp.Body.Close()

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("декодирование ответа токена: %w", err)
	}

	if tr.Error != "" {
		return nil, fmt.Errorf("IdP вернул ошибку %s: %s", tr.Error, tr.ErrorDesc)
	}
	return &tr, nil
}
