package model

import "time"

// TimeInterval — полуоткрытый интервал [T0, T1) времени документа.
// T0 и T1 нулевые одновременно для статических (вневременных) данных.
type TimeInterval struct {
	T0 time.Time
	T1 time.Time
}

// Static возвращает true, если интервал не задан (статический документ).
func (t TimeInterval) Static() bool {
	return t.T0.IsZero() && t.T1.IsZero()
}

// Intersects проверяет пересечение с другим интервалом (flexible semantics).
func (t TimeInterval) Intersects(other TimeInterval) bool {
	if t.Static() || other.Static() {
		return true
	}
	return t.T0.Before(other.T1) && other.T0.Before(t.T1)
}

// ContainedIn проверяет, что t целиком лежит внутри other (strict semantics).
func (t TimeInterval) ContainedIn(other TimeInterval) bool {
	if t.Static() {
		return true
	}
	return !t.T0.Before(other.T0) && !t.T1.After(other.T1)
}

// BBox — прямоугольник в WGS-84: [minx, miny, maxx, maxy].
// Пустое значение (нулевые поля) трактуется вызывающей стороной как
// глобальный охват [-180,-90,180,90] — см. GlobalBBox.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// GlobalBBox — bbox по умолчанию для документов без собственного охвата.
var GlobalBBox = BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

// CrossesAntimeridian — minx > maxx означает, что прямоугольник пересекает
// антимеридиан и должен быть расщеплён на два под-запроса.
func (b BBox) CrossesAntimeridian() bool {
	return b.MinX > b.MaxX
}

// Split расщепляет антимеридиан-пересекающий bbox на два обычных.
func (b BBox) Split() (BBox, BBox) {
	return BBox{MinX: b.MinX, MinY: b.MinY, MaxX: 180, MaxY: b.MaxY},
		BBox{MinX: -180, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// Intersects проверяет пересечение прямоугольников (антимеридиан должен
// быть расщеплён вызывающей стороной до сравнения).
func (b BBox) Intersects(other BBox) bool {
	return b.MinX < other.MaxX && other.MinX < b.MaxX &&
		b.MinY < other.MaxY && other.MinY < b.MaxY
}

// SearchDocument — единица индексации полнотекстового бэкенда.
// Канонические фасетные поля — множественные значения (для агрегации).
type SearchDocument struct {
	ID int64 `json:"id"`

	Facets map[string][]string `json:"facets"`

	Time TimeInterval `json:"time"`
	BBox *BBox        `json:"bbox,omitempty"`

	File string `json:"file,omitempty"`
	URI  string `json:"uri,omitempty"`

	Version string `json:"version,omitempty"`
}

// Get возвращает первое значение канонического поля или пустую строку.
func (d *SearchDocument) Get(field string) string {
	vals := d.Facets[field]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Project — удобный геттер поля project (определяет членство в STAC-коллекции).
func (d *SearchDocument) Project() string {
	return d.Get("project")
}

// User — удобный геттер владельца пользовательской записи.
func (d *SearchDocument) User() string {
	return d.Get("user")
}

// EffectiveBBox возвращает bbox документа или GlobalBBox, если не задан.
func (d *SearchDocument) EffectiveBBox() BBox {
	if d.BBox == nil {
		return GlobalBBox
	}
	return *d.BBox
}
