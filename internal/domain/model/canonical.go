// Пакет model содержит доменные типы Databrowser Gateway: каноническую
// схему полей, документы поиска, определения flavour, задания Zarr,
// share-гранты и записи статистики.
package model

// CanonicalFields — упорядоченный набор канонических имён полей,
// используемых во всех запросах и во всех хранимых документах.
// Любой маппинг flavour является частичной инъекцией из этого набора.
var CanonicalFields = []string{
	"project", "product", "institute", "model", "experiment", "ensemble",
	"realm", "variable", "time_frequency", "time_aggregation", "cmor_table",
	"grid_label", "grid_id", "level_type", "format", "dataset",
	"driving_model", "rcm_name", "rcm_version", "fs_type", "file", "uri",
	"time", "bbox", "version", "user",
}

// canonicalSet — множество канонических полей для быстрой проверки.
var canonicalSet = func() map[string]bool {
	s := make(map[string]bool, len(CanonicalFields))
	for _, f := range CanonicalFields {
		s[f] = true
	}
	return s
}()

// IsCanonicalField проверяет, что name входит в канонический набор.
func IsCanonicalField(name string) bool {
	return canonicalSet[name]
}
