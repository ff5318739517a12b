// Пакет auth — Auth Mediator: валидация JWT access token через
// JWKS произвольного OIDC IdP, извлечение произвольных claim'ов с
// фильтрацией по регулярным выражениям, OAuth2 Authorization Code /
// Device Code flow. Фильтры claim'ов задаются точечными путями в
// API_OIDC_TOKEN_CLAIMS и не привязаны к конкретному IdP.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
)

type contextKey string

// ContextKeyClaims — ключ контекста с извлечёнными claims запроса.
const ContextKeyClaims contextKey = "auth_claims"

// Claims — произвольные JWT claims, декодированные как map: тип
// IdP-провайдера заранее не известен, поэтому claims не парсятся в
// фиксированную Go-структуру.
type Claims struct {
	Subject string
	Raw     map[string]any
}

// rawClaims — обёртка над jwt.MapClaims: claims декодируются в
// map[string]any (для фильтров), стандартные проверки exp/nbf/iss
// выполняются методами MapClaims.
type rawClaims struct {
	jwt.MapClaims
}

// UnmarshalJSON декодирует payload токена во встроенную map: без него
// encoding/json искал бы в payload поле "MapClaims" и оставлял map пустой.
func (c *rawClaims) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &c.MapClaims)
}

// Validator — JWT middleware, валидирующий подпись через JWKS IdP.
type Validator struct {
	jwks      keyfunc.Keyfunc
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
	filters   []ClaimFilter
}

// NewValidator создаёт Validator с фоновым обновлением JWKS-ключей IdP.
// filters (API_OIDC_TOKEN_CLAIMS) применяются к каждому токену: токен,
// не проходящий хотя бы один фильтр, отклоняется как невалидный.
func NewValidator(ctx context.Context, jwksURL, issuer string, refreshInterval, jwtLeeway time.Duration, filters []ClaimFilter, logger *slog.Logger) (*Validator, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    http.DefaultClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("ошибка обновления JWKS", slog.String("error", err.Error()), slog.String("url", jwksURL))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &Validator{
		jwks:      k,
		logger:    logger.With(slog.String("component", "auth_validator")),
		issuer:    issuer,
		jwtLeeway: jwtLeeway,
		filters:   filters,
	}, nil
}

// Middleware извлекает Bearer token, валидирует подпись и exp, помещает
// Claims в контекст запроса. Запросы без заголовка Authorization
// пропускаются дальше без Claims в контексте — маршруты, требующие
// аутентификации, сами проверяют её наличие: часть поверхности
// databrowser — публичная.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			apierrors.Write(w, apierrors.CodeUnauthenticated, "некорректный формат заголовка Authorization, ожидается Bearer <token>")
			return
		}

		claims, err := v.Parse(r.Context(), parts[1])
		if err != nil {
			v.logger.Debug("JWT валидация не пройдена", slog.String("error", err.Error()))
			apierrors.Write(w, apierrors.CodeUnauthenticated, "невалидный или просроченный токен")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Parse валидирует и декодирует access token напрямую (без HTTP-запроса) —
// используется Middleware и тестами.
func (v *Validator) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	raw := &rawClaims{MapClaims: jwt.MapClaims{}}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.jwtLeeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, raw, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("токен невалиден")
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("отсутствует sub в токене")
	}

	claims := &Claims{Subject: subject, Raw: map[string]any(raw.MapClaims)}
	if len(v.filters) > 0 && !Matches(claims, v.filters) {
		return nil, fmt.Errorf("claims токена не проходят сконфигурированные фильтры")
	}

	return claims, nil
}

// FromContext извлекает Claims из контекста запроса (nil, если запрос
// не был аутентифицирован).
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*Claims)
	return claims
}

// RequireAuth — middleware, отклоняющий запросы без валидных Claims в
// контексте, для использования поверх Validator.Middleware. Роутер
// internal/server его не подключает: обработчики защищённых маршрутов
// сами проверяют наличие Claims через FromContext.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			apierrors.Write(w, apierrors.CodeUnauthenticated, "для этого запроса требуется аутентификация")
			return
		}
		next.ServeHTTP(w, r)
	})
}
