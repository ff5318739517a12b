// share.go — подписанные ссылки, допускающие неаутентифицированный
// доступ к конкретному токену Zarr в ограниченное время.
// Подпись реализована через crypto/hmac + crypto/sha256.
package zarrclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// Signer подписывает и проверяет share-ссылки на Zarr-токены.
type Signer struct {
	key []byte
}

// NewSigner создаёт Signer с секретным ключом (API_SHARE_SIGNING_KEY).
func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Sign вычисляет подпись над строкой "<method>|<token>|<expires>" и
// возвращает её в URL-safe base64 без padding.
func (s *Signer) Sign(method, token string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s|%s|%d", method, token, expires)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись sig для (method, token, expires). И просроченная,
// и неверная подпись отклоняются как UNAUTHENTICATED: share-ссылка — это
// единственный credential неаутентифицированного запроса.
func (s *Signer) Verify(method, token, sig string, expires int64) error {
	expected := s.Sign(method, token, expires)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) != 1 {
		return apierrors.New(apierrors.CodeUnauthenticated, "неверная подпись share-ссылки")
	}
	if !time.Now().Before(time.Unix(expires, 0)) {
		return apierrors.New(apierrors.CodeUnauthenticated, "срок действия share-ссылки истёк")
	}
	return nil
}

// Issue выдаёт ShareGrant для GET-доступа к токену на срок ttl.
func (s *Signer) Issue(token string, ttl time.Duration) model.ShareGrant {
	expires := time.Now().Add(ttl)
	return model.ShareGrant{
		Sig:     s.Sign(http.MethodGet, token, expires.Unix()),
		Token:   token,
		Expires: expires,
		Method:  http.MethodGet,
	}
}

// ParseExpires парсит unix-таймстамп expires из компонента ссылки.
func ParseExpires(raw string) (int64, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apierrors.New(apierrors.CodeInvalidInput, "некорректный параметр expires")
	}
	return sec, nil
}
