package searchindex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/freva-org/freva-nextgen/internal/search"
)

// BuildNativeQuery переводит search.Query в строку нативного синтаксиса
// полнотекстового бэкенда: "field:value" через пробел (конъюнкция),
// "field:(v1 OR v2)" для disjunction, "NOT field:value" для отрицания,
// "field:/regex/" для regex-условий. Поля сортируются для
// детерминированного вывода (упрощает тестирование и логирование).
func BuildNativeQuery(q search.Query) string {
	fields := make([]string, 0, len(q))
	for f := range q {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		fq := q[field]
		if clause := positiveClause(field, fq.Positive); clause != "" {
			parts = append(parts, clause)
		}
		for _, m := range fq.Negative {
			parts = append(parts, "NOT "+matcherClause(field, m))
		}
	}
	return strings.Join(parts, " ")
}

func positiveClause(field string, matchers []search.ValueMatcher) string {
	if len(matchers) == 0 {
		return ""
	}
	if len(matchers) == 1 {
		return matcherClause(field, matchers[0])
	}

	clauses := make([]string, len(matchers))
	for i, m := range matchers {
		clauses[i] = valueLiteral(m)
	}
	return fmt.Sprintf("%s:(%s)", field, strings.Join(clauses, " OR "))
}

func matcherClause(field string, m search.ValueMatcher) string {
	return fmt.Sprintf("%s:%s", field, valueLiteral(m))
}

func valueLiteral(m search.ValueMatcher) string {
	switch m.Kind {
	case search.MatchRegex:
		return "/" + m.Regex.String() + "/"
	case search.MatchPrefix:
		return m.Literal + "*"
	case search.MatchSuffix:
		return "*" + m.Literal
	case search.MatchSubstring:
		return "*" + m.Literal + "*"
	default:
		return m.Literal
	}
}
