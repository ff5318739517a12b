// Пакет statestore — TTL-хранилище параметра state (и code_verifier
// PKCE) для Authorization Code flow. Обёртка над
// hashicorp/golang-lru/v2/expirable.
package statestore

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry — данные, ассоциированные с одним значением state.
type Entry struct {
	// RedirectURI — redirect_uri, переданный клиентом при старте flow;
	// сверяется при обмене кода на токен для защиты от подмены.
	RedirectURI string
	// CodeVerifier — PKCE code_verifier, сгенерированный при старте flow.
	CodeVerifier string
}

// Store — in-memory TTL-хранилище state → Entry. Per-instance: при
// нескольких репликах шлюза клиент должен завершить flow через ту же
// реплику, что его начала.
type Store struct {
	cache *expirable.LRU[string, Entry]
}

// New создаёт хранилище заданной ёмкости и TTL (обычно несколько минут —
// время, отведённое пользователю на прохождение экрана согласия IdP).
func New(maxSize int, ttl time.Duration) *Store {
	return &Store{cache: expirable.NewLRU[string, Entry](maxSize, nil, ttl)}
}

// Put сохраняет Entry под заданным state.
func (s *Store) Put(state string, e Entry) {
	s.cache.Add(state, e)
}

// Take извлекает и удаляет Entry по state (одноразовое использование —
// предотвращает replay одного authorization code).
func (s *Store) Take(state string) (Entry, bool) {
	e, ok := s.cache.Get(state)
	if ok {
		s.cache.Remove(state)
	}
	return e, ok
}
