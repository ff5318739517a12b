package auth

import (
	"fmt"
	"regexp"
	"strings"
)

// ClaimFilter — одно правило "path.expr" → regexp, как задаётся в
// API_OIDC_TOKEN_CLAIMS. path — точечный путь во
// вложенной структуре claims (например "realm_access.roles" или
// "groups"); expr выбирает, какое значение/элемент массива сверяется
// с regexp.
type ClaimFilter struct {
	Path  string
	Regex *regexp.Regexp
}

// CompileFilters компилирует карту path → паттерн (из config.TokenClaims)
// в список ClaimFilter, завершая работу с ошибкой при невалидном regexp.
func CompileFilters(raw map[string]string) ([]ClaimFilter, error) {
	filters := make([]ClaimFilter, 0, len(raw))
	for path, pattern := range raw {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("claim filter %q: некорректное регулярное выражение %q: %w", path, pattern, err)
		}
		filters = append(filters, ClaimFilter{Path: path, Regex: re})
	}
	return filters, nil
}

// Matches сообщает, удовлетворяют ли claims всем заданным фильтрам
// (логическое И — пользователь должен пройти каждое правило).
func Matches(claims *Claims, filters []ClaimFilter) bool {
	for _, f := range filters {
		if !matchOne(claims.Raw, f) {
			return false
		}
	}
	return true
}

func matchOne(raw map[string]any, f ClaimFilter) bool {
	value, ok := lookupPath(raw, f.Path)
	if !ok {
		return false
	}

	switch v := value.(type) {
	case string:
		return f.Regex.MatchString(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && f.Regex.MatchString(s) {
				return true
			}
		}
		return false
	default:
		return f.Regex.MatchString(fmt.Sprintf("%v", v))
	}
}

// lookupPath навигирует по вложенным map[string]any/map[string]interface{}
// значениям claims по точечному пути ("realm_access.roles").
func lookupPath(raw map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = raw

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok := m[part]
		if !ok {
			return nil, false
		}
		current = val
	}
	return current, true
}
