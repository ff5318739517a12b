package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

func TestParseTimeSpec_Single(t *testing.T) {
	iv, err := ParseTimeSpec("2020-01-15")
	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2020-01-15"), iv.T0)
	assert.Equal(t, mustParse(t, "2020-01-16").Add(-time.Second), iv.T1)
}

func TestParseTimeSpec_SingleYearCoversWholeYear(t *testing.T) {
	iv, err := ParseTimeSpec("2020")
	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2020-01-01"), iv.T0)
	assert.Equal(t, mustParse(t, "2021-01-01").Add(-time.Second), iv.T1)
}

func TestParseTimeSpec_Range(t *testing.T) {
	iv, err := ParseTimeSpec("2020-01-01 to 2020-12-31")
	require.NoError(t, err)
	assert.True(t, iv.T1.After(iv.T0))
}

func TestParseTimeSpec_PartialPrecisionRange(t *testing.T) {
	iv, err := ParseTimeSpec("2016-09-02T22:15 to 2016-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 9, 2, 22, 15, 0, 0, time.UTC), iv.T0)
	assert.Equal(t, time.Date(2016, 10, 31, 23, 59, 59, 0, time.UTC), iv.T1)
}

func TestParseTimeSpec_YearRange(t *testing.T) {
	iv, err := ParseTimeSpec("1898 to 1901")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1898, 1, 1, 0, 0, 0, 0, time.UTC), iv.T0)
	assert.Equal(t, time.Date(1901, 12, 31, 23, 59, 59, 0, time.UTC), iv.T1)
}

func TestParseTimeSpec_GarbageRejected(t *testing.T) {
	_, err := ParseTimeSpec("вчера to сегодня")
	assert.Error(t, err)
}

func TestParseTimeSpec_InvertedRangeRejected(t *testing.T) {
	_, err := ParseTimeSpec("2020-12-31 to 2020-01-01")
	assert.Error(t, err)
}

func TestMatchTime_FlexibleIntersects(t *testing.T) {
	doc := model.TimeInterval{
		T0: mustParse(t, "2020-06-01"),
		T1: mustParse(t, "2020-06-30"),
	}
	query := model.TimeInterval{
		T0: mustParse(t, "2020-01-01"),
		T1: mustParse(t, "2020-07-01"),
	}
	assert.True(t, MatchTime(doc, query, TimeFlexible))
}

func TestMatchTime_StrictRequiresContainment(t *testing.T) {
	doc := model.TimeInterval{
		T0: mustParse(t, "2019-12-01"),
		T1: mustParse(t, "2020-06-30"),
	}
	query := model.TimeInterval{
		T0: mustParse(t, "2020-01-01"),
		T1: mustParse(t, "2020-07-01"),
	}
	assert.False(t, MatchTime(doc, query, TimeStrict))
	assert.True(t, MatchTime(doc, query, TimeFlexible))
}

func TestMatchTime_StaticQueryAlwaysMatches(t *testing.T) {
	doc := model.TimeInterval{T0: mustParse(t, "2020-01-01"), T1: mustParse(t, "2020-02-01")}
	assert.True(t, MatchTime(doc, model.TimeInterval{}, TimeFlexible))
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return tm
}
