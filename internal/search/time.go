package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// TimeMode — режим сопоставления временного интервала документа с
// интервалом запроса.
type TimeMode int

const (
	// TimeFlexible — документ совпадает, если интервалы пересекаются (по умолчанию).
	TimeFlexible TimeMode = iota
	// TimeStrict — документ совпадает, если его интервал целиком внутри запроса.
	TimeStrict
)

// timeLayouts — допустимые ISO-представления одной временной метки,
// от самого точного к самому грубому. Метка может быть частичной:
// "2016", "2016-10", "2016-09-02T22:15" — недостающие компоненты
// дополняются минимумом для начала интервала и максимумом для конца.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
	"2006-01",
	"2006",
}

// parseTimestamp разбирает одну (возможно частичную) метку. При end=true
// метка дополняется до последней секунды своего периода: "2016-10" →
// 2016-10-31T23:59:59Z.
func parseTimestamp(raw string, end bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			lastErr = err
			continue
		}
		t = t.UTC()
		if end {
			t = periodEnd(t, layout)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("нераспознаваемая временная метка %q: %w", raw, lastErr)
}

// periodEnd возвращает последнюю секунду периода, задаваемого меткой
// данной точности.
func periodEnd(t time.Time, layout string) time.Time {
	switch layout {
	case "2006":
		return t.AddDate(1, 0, 0).Add(-time.Second)
	case "2006-01":
		return t.AddDate(0, 1, 0).Add(-time.Second)
	case "2006-01-02":
		return t.AddDate(0, 0, 1).Add(-time.Second)
	case "2006-01-02T15":
		return t.Add(time.Hour - time.Second)
	case "2006-01-02T15:04":
		return t.Add(time.Minute - time.Second)
	default:
		return t
	}
}

// ParseTimeSpec разбирает time_spec: "<iso>" или "<iso> to <iso>".
// Одиночная метка трактуется как интервал, покрывающий весь её период:
// "2020" → [2020-01-01T00:00:00, 2020-12-31T23:59:59].
func ParseTimeSpec(raw string) (model.TimeInterval, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.TimeInterval{}, nil
	}

	if idx := strings.Index(raw, " to "); idx >= 0 {
		t0, err := parseTimestamp(raw[:idx], false)
		if err != nil {
			return model.TimeInterval{}, err
		}
		t1, err := parseTimestamp(raw[idx+len(" to "):], true)
		if err != nil {
			return model.TimeInterval{}, err
		}
		if t1.Before(t0) {
			return model.TimeInterval{}, fmt.Errorf("конец интервала раньше начала: %s", raw)
		}
		return model.TimeInterval{T0: t0, T1: t1}, nil
	}

	t0, err := parseTimestamp(raw, false)
	if err != nil {
		return model.TimeInterval{}, err
	}
	t1, err := parseTimestamp(raw, true)
	if err != nil {
		return model.TimeInterval{}, err
	}
	return model.TimeInterval{T0: t0, T1: t1}, nil
}

// MatchTime сопоставляет интервал документа с интервалом запроса
// согласно выбранному режиму.
func MatchTime(doc, query model.TimeInterval, mode TimeMode) bool {
	if query.Static() {
		return true
	}
	if mode == TimeStrict {
		return doc.ContainedIn(query)
	}
	return doc.Intersects(query)
}
