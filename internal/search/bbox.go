package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// ParseBBox разбирает bbox в виде "minx,miny,maxx,maxy".
func ParseBBox(raw string) (model.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.BBox{}, fmt.Errorf("bbox должен содержать 4 числа через запятую, получено %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("некорректное число в bbox: %q: %w", p, err)
		}
		vals[i] = v
	}

	b := model.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if b.MinY > b.MaxY {
		return model.BBox{}, fmt.Errorf("miny (%f) больше maxy (%f)", b.MinY, b.MaxY)
	}
	return b, nil
}

// MatchBBox сопоставляет bbox документа с bbox запроса. Прямоугольники,
// пересекающие антимеридиан (minx > maxx), расщепляются на два
// под-запроса и объединяются через OR.
func MatchBBox(doc, query model.BBox) bool {
	if query.CrossesAntimeridian() {
		q1, q2 := query.Split()
		return MatchBBox(doc, q1) || MatchBBox(doc, q2)
	}
	if doc.CrossesAntimeridian() {
		d1, d2 := doc.Split()
		return d1.Intersects(query) || d2.Intersects(query)
	}
	return doc.Intersects(query)
}
