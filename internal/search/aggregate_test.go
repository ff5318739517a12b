package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

func doc(project, variable, uri string, t0, t1 time.Time) *model.SearchDocument {
	return &model.SearchDocument{
		Facets: map[string][]string{
			"project":        {project},
			"product":        {"output"},
			"institute":      {"dkrz"},
			"model":          {"mpi-esm"},
			"experiment":     {"historical"},
			"time_frequency": {"mon"},
			"realm":          {"atmos"},
			"variable":       {variable},
			"ensemble":       {"r1i1p1f1"},
			"cmor_table":     {"Amon"},
			"fs_type":        {"posix"},
			"grid_label":     {"gn"},
		},
		URI:  uri,
		Time: model.TimeInterval{T0: t0, T1: t1},
	}
}

func TestAggregate_GroupsByKeySignature(t *testing.T) {
	t0 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC)

	docs := []*model.SearchDocument{
		doc("cmip6", "tas", "file2.nc", t1, t2),
		doc("cmip6", "tas", "file1.nc", t0, t1),
		doc("cmip6", "pr", "file3.nc", t0, t1),
	}

	groups := Aggregate(docs, "uri")
	require.Len(t, groups, 2)

	var tasGroup *Group
	for i := range groups {
		if groups[i].Keys["variable"] == "tas" {
			tasGroup = &groups[i]
		}
	}
	require.NotNil(t, tasGroup)
	assert.Equal(t, []string{"file1.nc", "file2.nc"}, tasGroup.Files)
	assert.Equal(t, t0, tasGroup.Time.T0)
	assert.Equal(t, t2, tasGroup.Time.T1)
}

func TestAggregate_UniqKeySelectsFileOrURI(t *testing.T) {
	t0 := time.Now()
	d := doc("cmip6", "tas", "uri-value", t0, t0)
	d.File = "file-value"

	groups := Aggregate([]*model.SearchDocument{d}, "file")
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"file-value"}, groups[0].Files)
}
