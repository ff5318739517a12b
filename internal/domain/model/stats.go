package model

import "time"

// StatsRecord — запись об одном завершённом запросе. Append-only,
// никогда не читается на горячем пути.
type StatsRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	Route        string         `json:"route"`
	Principal    *string        `json:"principal,omitempty"`
	Flavour      string         `json:"flavour,omitempty"`
	Facets       map[string]any `json:"facets,omitempty"`
	ResultCount  int            `json:"result_count"`
	DurationMS   int64          `json:"duration_ms"`
	Aborted      bool           `json:"aborted,omitempty"`
}
