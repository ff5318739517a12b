package search

import (
	"sort"
	"strings"
	"time"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// GroupByFields — ключи группировки intake-ESM каталога, в
// фиксированном порядке; вместе образуют сигнатуру группы.
var GroupByFields = []string{
	"project", "product", "institute", "model", "experiment",
	"time_frequency", "realm", "variable", "ensemble",
	"cmor_table", "fs_type", "grid_label",
}

// Group — одна строка intake-ESM каталога: значения группирующих полей
// плюс конкатенированные по времени файлы группы.
type Group struct {
	Keys  map[string]string
	Files []string // URI/file — в порядке возрастания Time.T0 (при равных — по имени)
	Time  model.TimeInterval
}

// groupKey строит устойчивый ключ группировки из значений полей.
func groupKey(doc *model.SearchDocument) string {
	var sb strings.Builder
	for _, f := range GroupByFields {
		sb.WriteString(doc.Get(f))
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

// Aggregate группирует документы по GroupByFields и конкатенирует файлы
// внутри группы по измерению времени. uniqKey выбирает, что
// класть в Group.Files — "file" или "uri".
func Aggregate(docs []*model.SearchDocument, uniqKey string) []Group {
	order := make([]string, 0)
	groups := make(map[string]*Group)

	type member struct {
		loc string
		t0  time.Time
	}
	members := make(map[string][]member)

	for _, doc := range docs {
		key := groupKey(doc)
		g, ok := groups[key]
		if !ok {
			keys := make(map[string]string, len(GroupByFields))
			for _, f := range GroupByFields {
				keys[f] = doc.Get(f)
			}
			g = &Group{Keys: keys, Time: doc.Time}
			groups[key] = g
			order = append(order, key)
		}

		loc := doc.URI
		if uniqKey == "file" {
			loc = doc.File
		}
		if loc != "" {
			members[key] = append(members[key], member{loc: loc, t0: doc.Time.T0})
		}

		g.Time = extendInterval(g.Time, doc.Time)
	}

	out := make([]Group, 0, len(order))
	for _, key := range order {
		g := groups[key]
		ms := members[key]
		sort.Slice(ms, func(i, j int) bool {
			if !ms[i].t0.Equal(ms[j].t0) {
				return ms[i].t0.Before(ms[j].t0)
			}
			return ms[i].loc < ms[j].loc
		})
		for _, m := range ms {
			g.Files = append(g.Files, m.loc)
		}
		out = append(out, *g)
	}
	return out
}

// extendInterval расширяет интервал a до объединения с b (для
// конкатенации по времени внутри группы).
func extendInterval(a, b model.TimeInterval) model.TimeInterval {
	if a.Static() {
		return b
	}
	if b.Static() {
		return a
	}
	out := a
	if b.T0.Before(out.T0) {
		out.T0 = b.T0
	}
	if b.T1.After(out.T1) {
		out.T1 = b.T1
	}
	return out
}
