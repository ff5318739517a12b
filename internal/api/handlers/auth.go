package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/auth/oidc"
	"github.com/freva-org/freva-nextgen/internal/auth/statestore"
)

// codeEntryPrefix отделяет записи statestore, ключованные authorization
// code (ожидают обмена на POST /auth/v2/token), от записей, ключованных
// state (ожидают callback).
const codeEntryPrefix = "code:"

// OIDCDiscovery — GET /auth/v2/.well-known/openid-configuration:
// проксирует discovery document IdP, переписывая token и userinfo
// endpoint'ы на этот сервис.
func (h *Handler) OIDCDiscovery(w http.ResponseWriter, r *http.Request) {
	doc, err := h.OIDC.Discover(r.Context())
	if err != nil {
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "IdP недоступен")
		return
	}

	proxied := *doc
	proxied.TokenEndpoint = h.PublicURL + "/auth/v2/token"
	proxied.UserinfoEndpoint = h.PublicURL + "/auth/v2/userinfo"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(&proxied)
}

// redirectURIAllowed проверяет redirect_uri: либо зарегистрированный
// абсолютный URL, либо http://localhost:<p> с портом из API_AUTH_PORTS.
func (h *Handler) redirectURIAllowed(raw string) bool {
	for _, registered := range h.RedirectURIs {
		if raw == registered {
			return true
		}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		return false
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return false
	}
	for _, p := range h.AuthPorts {
		if port == p {
			return true
		}
	}
	return false
}

// Login — GET /auth/v2/login: начинает Authorization Code + PKCE flow,
// перенаправляя пользователя на экран согласия IdP.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" {
		apierrors.Write(w, apierrors.CodeInvalidInput, "redirect_uri обязателен")
		return
	}
	if !h.redirectURIAllowed(redirectURI) {
		apierrors.Write(w, apierrors.CodeInvalidInput, "redirect_uri не входит в список разрешённых")
		return
	}

	scope := "openid profile email"
	if q.Get("offline_access") == "true" {
		scope += " offline_access"
	}

	authURL, state, verifier, err := h.OIDC.BuildAuthorizationURL(r.Context(), redirectURI, scope)
	if err != nil {
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "IdP недоступен")
		return
	}

	h.States.Put(state, statestore.Entry{RedirectURI: redirectURI, CodeVerifier: verifier})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback — GET /auth/v2/callback: сверяет state с одноразовым
// хранилищем и возвращает браузер на redirect_uri клиента с тем же
// code. Сам обмен кода на токены выполняет клиент через
// POST /auth/v2/token; code_verifier PKCE переезжает из state-записи
// в code-запись до этого обмена.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		apierrors.Write(w, apierrors.CodeInvalidInput, "отсутствуют code или state")
		return
	}

	entry, ok := h.States.Take(state)
	if !ok {
		apierrors.Write(w, apierrors.CodeForbidden, "неизвестный или просроченный state")
		return
	}

	h.States.Put(codeEntryPrefix+code, entry)

	u, err := url.Parse(entry.RedirectURI)
	if err != nil {
		apierrors.Write(w, apierrors.CodeInternal, "сохранённый redirect_uri некорректен")
		return
	}
	rq := u.Query()
	rq.Set("code", code)
	rq.Set("state", state)
	u.RawQuery = rq.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}

// Token — POST /auth/v2/token: единый token endpoint шлюза.
// Принимает application/x-www-form-urlencoded с grant_type
// authorization_code, refresh_token или device_code и обменивает его
// с IdP.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		code := r.PostFormValue("code")
		redirectURI := r.PostFormValue("redirect_uri")
		if code == "" || redirectURI == "" {
			apierrors.Write(w, apierrors.CodeInvalidInput, "code и redirect_uri обязательны")
			return
		}

		// Запись может отсутствовать, если flow начинался не через этот
		// экземпляр шлюза; тогда обмен идёт без PKCE verifier'а. Если запись
		// есть, redirect_uri должен совпасть с переданным при старте flow.
		entry, found := h.States.Take(codeEntryPrefix + code)
		if found && entry.RedirectURI != redirectURI {
			apierrors.Write(w, apierrors.CodeForbidden, "redirect_uri не совпадает с переданным при старте flow")
			return
		}

		tr, err := h.OIDC.ExchangeCode(r.Context(), code, redirectURI, entry.CodeVerifier)
		if err != nil {
			apierrors.Write(w, apierrors.CodeUnauthenticated, "обмен authorization code не удался")
			return
		}
		writeTokenResponse(w, tr)

	case "refresh_token":
		refreshToken := r.PostFormValue("refresh_token")
		if refreshToken == "" {
			apierrors.Write(w, apierrors.CodeInvalidInput, "refresh_token обязателен")
			return
		}
		tr, err := h.OIDC.RefreshToken(r.Context(), refreshToken)
		if err != nil {
			apierrors.Write(w, apierrors.CodeUnauthenticated, "refresh token недействителен или истёк")
			return
		}
		writeTokenResponse(w, tr)

	case "urn:ietf:params:oauth:grant-type:device_code":
		deviceCode := r.PostFormValue("device_code")
		if deviceCode == "" {
			apierrors.Write(w, apierrors.CodeInvalidInput, "device_code обязателен")
			return
		}
		tr, err := h.OIDC.PollDeviceToken(r.Context(), deviceCode)
		switch err {
		case nil:
			writeTokenResponse(w, tr)
		case oidc.ErrAuthorizationPending, oidc.ErrSlowDown:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		default:
			apierrors.Write(w, apierrors.CodeBackendUnavailable, "опрос токена device flow не удался")
		}

	default:
		apierrors.Write(w, apierrors.CodeInvalidInput, "неизвестный grant_type")
	}
}

// DeviceStart — POST /auth/v2/device: инициирует Device Code flow
// для клиентов без браузера (RFC 8628).
func (h *Handler) DeviceStart(w http.ResponseWriter, r *http.Request) {
	da, err := h.OIDC.StartDeviceFlow(r.Context(), "openid profile email")
	if err != nil {
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "IdP недоступен")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(da)
}

// devicePollRequest — тело POST /auth/v2/device/token.
type devicePollRequest struct {
	DeviceCode string `json:"device_code"`
}

// DevicePoll — POST /auth/v2/device/token: JSON-алиас опроса token
// endpoint'а по device_code. Клиент сам реализует цикл
// ожидания по возвращаемому interval.
func (h *Handler) DevicePoll(w http.ResponseWriter, r *http.Request) {
	var req devicePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	tr, err := h.OIDC.PollDeviceToken(r.Context(), req.DeviceCode)
	switch err {
	case nil:
		writeTokenResponse(w, tr)
	case oidc.ErrAuthorizationPending, oidc.ErrSlowDown:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": err.Error()})
	default:
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "опрос токена device flow не удался")
	}
}

// refreshRequest — тело POST /auth/v2/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh — POST /auth/v2/refresh: JSON-алиас обновления access token
// по refresh_token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	tr, err := h.OIDC.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "refresh token недействителен или истёк")
		return
	}

	writeTokenResponse(w, tr)
}

// writeTokenResponse отдаёт токены в форме
// {access_token, token_type, expires, refresh_token, refresh_expires, scope}.
func writeTokenResponse(w http.ResponseWriter, tr *oidc.TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":    tr.AccessToken,
		"token_type":      tr.TokenType,
		"expires":         tr.ExpiresIn,
		"refresh_token":   tr.RefreshToken,
		"refresh_expires": tr.RefreshExpiresIn,
		"scope":           tr.Scope,
	})
}

// claimString извлекает строковый claim по имени ("" при отсутствии).
func claimString(claims *auth.Claims, key string) string {
	v, _ := claims.Raw[key].(string)
	return v
}

// Status — GET /auth/v2/status: субъект, срок действия и email
// текущего токена.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	var exp int64
	if v, ok := claims.Raw["exp"].(float64); ok {
		exp = int64(v)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"sub":   claims.Subject,
		"exp":   exp,
		"email": claimString(claims, "email"),
	})
}

// username возвращает каноническое имя пользователя токена:
// preferred_username, с откатом на sub.
func username(claims *auth.Claims) string {
	if u := claimString(claims, "preferred_username"); u != "" {
		return u
	}
	return claims.Subject
}

// UserInfo — GET /auth/v2/userinfo: профиль текущего пользователя.
// Гостевые токены допускаются — ограничение несут
// admin-маршруты, не этот эндпойнт.
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"username":   username(claims),
		"first_name": claimString(claims, "given_name"),
		"last_name":  claimString(claims, "family_name"),
		"email":      claimString(claims, "email"),
		"home":       claimString(claims, "home"),
		"is_guest":   isGuest(claims),
	})
}

// isGuest сообщает, помечен ли токен как гостевой (is_guest claim,
// по умолчанию false).
func isGuest(claims *auth.Claims) bool {
	v, ok := claims.Raw["is_guest"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SystemUser — GET /auth/v2/systemuser: каноническое имя пользователя;
// гостевые токены отклоняются с 403 — используется операциями, пишущими
// данные от имени конкретного пользователя (user-data, flavours).
func (h *Handler) SystemUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}
	if isGuest(claims) {
		apierrors.Write(w, apierrors.CodeForbidden, "гостевые токены не допускаются для этой операции")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"username": username(claims)})
}

// CheckUser — GET /auth/v2/checkuser: системное имя пользователя
// ({pw_name}) для полноценных (не гостевых) пользователей.
func (h *Handler) CheckUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}
	if isGuest(claims) {
		apierrors.Write(w, apierrors.CodeForbidden, "гостевые токены не являются системными пользователями")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"pw_name": username(claims)})
}

// Logout — GET /auth/v2/logout: 307 на end-session endpoint IdP с
// post_logout_redirect_uri. Шлюз не хранит серверную сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	postLogout := r.URL.Query().Get("post_logout_redirect_uri")

	endSession, err := h.OIDC.EndSessionURL(r.Context(), postLogout)
	if err != nil {
		// IdP без end-session endpoint'а: возвращаем клиента на его URI.
		if postLogout == "" {
			postLogout = h.PublicURL
		}
		http.Redirect(w, r, postLogout, http.StatusTemporaryRedirect)
		return
	}

	http.Redirect(w, r, endSession, http.StatusTemporaryRedirect)
}
