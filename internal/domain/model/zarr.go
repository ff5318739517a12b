package model

import "time"

// JobStatus — состояние задания конвертации Zarr.
type JobStatus int

const (
	JobQueued JobStatus = iota + 1
	JobRunning
	JobReady
	JobFailed
)

// String возвращает человекочитаемое имя статуса (для логов и HTML-превью).
func (s JobStatus) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobReady:
		return "ready"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AggregateMode — режим агрегации при конвертации нескольких путей.
type AggregateMode string

const (
	AggregateNone   AggregateMode = ""
	AggregateAuto   AggregateMode = "auto"
	AggregateMerge  AggregateMode = "merge"
	AggregateConcat AggregateMode = "concat"
)

// JoinMode — способ объединения координат при агрегации (только вместе с aggregate).
type JoinMode string

const (
	JoinOuter JoinMode = "outer"
	JoinInner JoinMode = "inner"
	JoinLeft  JoinMode = "left"
	JoinRight JoinMode = "right"
	JoinExact JoinMode = "exact"
)

// CompatMode — правило совпадения неконфликтующих переменных при агрегации.
type CompatMode string

const (
	CompatEquals      CompatMode = "equals"
	CompatNoConflicts CompatMode = "no_conflicts"
	CompatOverride    CompatMode = "override"
)

// VarsMode — режим объединения данных/координат (minimal/different/all).
type VarsMode string

const (
	VarsMinimal   VarsMode = "minimal"
	VarsDifferent VarsMode = "different"
	VarsAll       VarsMode = "all"
)

// ConvertOptions — опции преобразования Zarr-задания.
type ConvertOptions struct {
	Aggregate   AggregateMode `json:"aggregate,omitempty"`
	Join        JoinMode      `json:"join,omitempty"`
	Compat      CompatMode    `json:"compat,omitempty"`
	DataVars    VarsMode      `json:"data_vars,omitempty"`
	Coords      VarsMode      `json:"coords,omitempty"`
	Dim         string        `json:"dim,omitempty"`
	GroupBy     string        `json:"group_by,omitempty"`
	Public      bool          `json:"public,omitempty"`
	TTLSeconds  int           `json:"ttl_seconds,omitempty"`
}

// DefaultTTLSeconds — ttl_seconds по умолчанию (24 часа).
const DefaultTTLSeconds = 86400

// ZarrJob — задание конвертации файлов в Zarr-представление.
type ZarrJob struct {
	Token     string         `json:"token"`
	Status    JobStatus      `json:"status"`
	Reason    string         `json:"reason"`
	Owner     string         `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	Expiry    time.Time      `json:"expiry"`
	Paths     []string       `json:"paths"`
	Options   ConvertOptions `json:"options"`
}

// Expired сообщает, истёк ли срок жизни задания относительно now.
func (j *ZarrJob) Expired(now time.Time) bool {
	return now.After(j.Expiry)
}

// ShareGrant — подписанный HMAC URL, допускающий неаутентифицированное
// обращение к одному токену Zarr в течение ограниченного времени.
type ShareGrant struct {
	Sig     string    `json:"sig"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	Method  string    `json:"method"`
}
