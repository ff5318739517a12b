// Пакет search содержит бэкенд-независимую логику Search Engine Adapter:
// разбор фасетного синтаксиса, семантику time/bbox, пагинацию и
// агрегацию intake-ESM. Перевод разобранного запроса в запрос
// конкретного полнотекстового индекса выполняет internal/searchindex.
package search

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchKind — вид сопоставления значения фасета.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchSuffix
	MatchSubstring
	MatchRegex
)

// ValueMatcher — одно сопоставление значения фасета.
type ValueMatcher struct {
	Kind    MatchKind
	Literal string         // для Exact/Prefix/Suffix/Substring — без '*'
	Regex   *regexp.Regexp // для MatchRegex
}

// Match проверяет значение value. Все сопоставления регистронезависимы.
func (m ValueMatcher) Match(value string) bool {
	if m.Kind == MatchRegex {
		return m.Regex.MatchString(value)
	}
	lv := strings.ToLower(value)
	ll := strings.ToLower(m.Literal)
	switch m.Kind {
	case MatchExact:
		return lv == ll
	case MatchPrefix:
		return strings.HasPrefix(lv, ll)
	case MatchSuffix:
		return strings.HasSuffix(lv, ll)
	case MatchSubstring:
		return strings.Contains(lv, ll)
	default:
		return false
	}
}

// ParseValue разбирает одно значение value:
// bare string ⇒ exact; ведущая/замыкающая '*' ⇒ prefix/suffix/substring;
// /…/ ⇒ regex; {v1,v2,…} ⇒ disjunction (возвращает несколько matcher'ов).
func ParseValue(raw string) ([]ValueMatcher, error) {
	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") && len(raw) >= 2 {
		inner := raw[1 : len(raw)-1]
		parts := strings.Split(inner, ",")
		out := make([]ValueMatcher, 0, len(parts))
		for _, p := range parts {
			m, err := parseSingleValue(p)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}

	m, err := parseSingleValue(raw)
	if err != nil {
		return nil, err
	}
	return []ValueMatcher{m}, nil
}

func parseSingleValue(raw string) (ValueMatcher, error) {
	if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
		pattern := raw[1 : len(raw)-1]
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return ValueMatcher{}, fmt.Errorf("некорректное регулярное выражение %q: %w", pattern, err)
		}
		return ValueMatcher{Kind: MatchRegex, Regex: re}, nil
	}

	hasPrefixStar := strings.HasPrefix(raw, "*")
	hasSuffixStar := strings.HasSuffix(raw, "*")

	switch {
	case hasPrefixStar && hasSuffixStar && len(raw) >= 2:
		return ValueMatcher{Kind: MatchSubstring, Literal: raw[1 : len(raw)-1]}, nil
	case hasSuffixStar:
		return ValueMatcher{Kind: MatchPrefix, Literal: strings.TrimSuffix(raw, "*")}, nil
	case hasPrefixStar:
		return ValueMatcher{Kind: MatchSuffix, Literal: strings.TrimPrefix(raw, "*")}, nil
	default:
		return ValueMatcher{Kind: MatchExact, Literal: raw}, nil
	}
}

// FieldQuery — все условия для одного канонического поля: позитивные
// (OR-комбинируемые — disjunction) и отрицательные (key_not_=value,
// AND-комбинируемые между собой).
type FieldQuery struct {
	Positive []ValueMatcher
	Negative []ValueMatcher
}

// Matches проверяет одно значение поля документа против FieldQuery.
func (q FieldQuery) Matches(values []string) bool {
	if len(q.Positive) > 0 {
		ok := false
		for _, v := range values {
			for _, m := range q.Positive {
				if m.Match(v) {
					ok = true
					break
				}
			}
			if ok {
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, m := range q.Negative {
		for _, v := range values {
			if m.Match(v) {
				return false
			}
		}
	}
	return true
}

// NegationSuffix — суффикс имени фасета, помечающий отрицание.
const NegationSuffix = "_not_"

// SplitNegation отделяет суффикс отрицания от имени фасета:
// "model_not_" → ("model", true).
func SplitNegation(key string) (field string, negated bool) {
	if strings.HasSuffix(key, NegationSuffix) {
		return strings.TrimSuffix(key, NegationSuffix), true
	}
	return key, false
}

// Query — полный фасетный запрос: канонические поля → условие.
// Комбинация между разными ключами — конъюнктивна.
type Query map[string]FieldQuery

// ParseFacets строит Query из сырых параметров запроса. raw — каждому
// ключу может соответствовать несколько значений (repeated key=a key=b
// эквивалентно disjunction).
func ParseFacets(raw map[string][]string) (Query, error) {
	q := make(Query)
	for key, values := range raw {
		field, negate := SplitNegation(key)

		fq := q[field]
		for _, v := range values {
			matchers, err := ParseValue(v)
			if err != nil {
				return nil, fmt.Errorf("поле %q: %w", field, err)
			}
			if negate {
				fq.Negative = append(fq.Negative, matchers...)
			} else {
				fq.Positive = append(fq.Positive, matchers...)
			}
		}
		q[field] = fq
	}
	return q, nil
}

// Matches проверяет документ (представленный как facet→values) против
// всего запроса (конъюнкция по полям).
func (q Query) Matches(docFacets map[string][]string) bool {
	for field, fq := range q {
		if !fq.Matches(docFacets[field]) {
			return false
		}
	}
	return true
}
