package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

func TestParseBBox_Valid(t *testing.T) {
	b, err := ParseBBox("-10,40,10,60")
	require.NoError(t, err)
	assert.Equal(t, model.BBox{MinX: -10, MinY: 40, MaxX: 10, MaxY: 60}, b)
}

func TestParseBBox_WrongArity(t *testing.T) {
	_, err := ParseBBox("1,2,3")
	assert.Error(t, err)
}

func TestParseBBox_InvertedLatitudeRejected(t *testing.T) {
	_, err := ParseBBox("-10,60,10,40")
	assert.Error(t, err)
}

func TestMatchBBox_SimpleIntersection(t *testing.T) {
	doc := model.BBox{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20}
	query := model.BBox{MinX: 10, MinY: 10, MaxX: 30, MaxY: 30}
	assert.True(t, MatchBBox(doc, query))
}

func TestMatchBBox_NoIntersection(t *testing.T) {
	doc := model.BBox{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5}
	query := model.BBox{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	assert.False(t, MatchBBox(doc, query))
}

func TestMatchBBox_AntimeridianCrossingQuery(t *testing.T) {
	// query пересекает антимеридиан: minx=170 > maxx=-170, охватывает [170,180]∪[-180,-170]
	query := model.BBox{MinX: 170, MinY: -10, MaxX: -170, MaxY: 10}
	docNearDateline := model.BBox{MinX: 175, MinY: -5, MaxX: 179, MaxY: 5}
	assert.True(t, MatchBBox(docNearDateline, query))

	docFarAway := model.BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	assert.False(t, MatchBBox(docFarAway, query))
}

func TestMatchBBox_AntimeridianCrossingDocument(t *testing.T) {
	doc := model.BBox{MinX: 170, MinY: -10, MaxX: -170, MaxY: 10}
	query := model.BBox{MinX: -175, MinY: -5, MaxX: -165, MaxY: 5}
	assert.True(t, MatchBBox(doc, query))
}
