package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue_Exact(t *testing.T) {
	ms, err := ParseValue("tas")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, MatchExact, ms[0].Kind)
	assert.True(t, ms[0].Match("TAS"))
}

func TestParseValue_PrefixSuffixSubstring(t *testing.T) {
	ms, err := ParseValue("tas*")
	require.NoError(t, err)
	assert.Equal(t, MatchPrefix, ms[0].Kind)
	assert.True(t, ms[0].Match("tasmax"))
	assert.False(t, ms[0].Match("pr"))

	ms, err = ParseValue("*max")
	require.NoError(t, err)
	assert.Equal(t, MatchSuffix, ms[0].Kind)
	assert.True(t, ms[0].Match("tasmax"))

	ms, err = ParseValue("*as*")
	require.NoError(t, err)
	assert.Equal(t, MatchSubstring, ms[0].Kind)
	assert.True(t, ms[0].Match("tasmax"))
}

func TestParseValue_Regex(t *testing.T) {
	ms, err := ParseValue("/^tas.*$/")
	require.NoError(t, err)
	assert.Equal(t, MatchRegex, ms[0].Kind)
	assert.True(t, ms[0].Match("tasmax"))
	assert.False(t, ms[0].Match("pr"))
}

func TestParseValue_Disjunction(t *testing.T) {
	ms, err := ParseValue("{tas,pr,huss}")
	require.NoError(t, err)
	require.Len(t, ms, 3)
}

func TestSplitNegation(t *testing.T) {
	field, negated := SplitNegation("variable_not_")
	assert.True(t, negated)
	assert.Equal(t, "variable", field)

	field, negated = SplitNegation("variable")
	assert.False(t, negated)
	assert.Equal(t, "variable", field)
}

func TestParseFacets_NegationConjunctive(t *testing.T) {
	q, err := ParseFacets(map[string][]string{
		"variable_not_": {"tas", "pr"},
	})
	require.NoError(t, err)

	assert.False(t, q.Matches(map[string][]string{"variable": {"tas"}}))
	assert.False(t, q.Matches(map[string][]string{"variable": {"pr"}}))
	assert.True(t, q.Matches(map[string][]string{"variable": {"huss"}}))
}

func TestParseFacets_RepeatedKeyIsDisjunction(t *testing.T) {
	q, err := ParseFacets(map[string][]string{
		"variable": {"tas", "pr"},
	})
	require.NoError(t, err)

	assert.True(t, q.Matches(map[string][]string{"variable": {"tas"}}))
	assert.True(t, q.Matches(map[string][]string{"variable": {"pr"}}))
	assert.False(t, q.Matches(map[string][]string{"variable": {"huss"}}))
}

func TestQuery_ConjunctiveAcrossKeys(t *testing.T) {
	q, err := ParseFacets(map[string][]string{
		"variable": {"tas"},
		"project":  {"cmip6"},
	})
	require.NoError(t, err)

	assert.True(t, q.Matches(map[string][]string{"variable": {"tas"}, "project": {"cmip6"}}))
	assert.False(t, q.Matches(map[string][]string{"variable": {"tas"}, "project": {"cmip5"}}))
}

func TestParseValue_CaseInsensitive(t *testing.T) {
	ms, err := ParseValue("CMIP6")
	require.NoError(t, err)
	assert.True(t, ms[0].Match("cmip6"))
}
