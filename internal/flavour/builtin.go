package flavour

import (
	"time"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// builtinMappings возвращает статические определения встроенных словарей.
// "freva" — identity-словарь, остальные переименовывают канонические
// поля в соглашения конкретных проектов климатических данных.
func builtinMappings() map[string]*model.Flavour {
	now := time.Time{}

	defs := map[string]map[string]string{
		"freva": {},
		"cmip5": {
			"project":          "project",
			"product":          "product",
			"institute":        "institute",
			"model":            "model",
			"experiment":       "experiment",
			"time_frequency":   "time_frequency",
			"realm":            "realm",
			"cmor_table":       "cmor_table",
			"ensemble":         "ensemble",
			"variable":         "variable",
		},
		"cmip6": {
			"project":          "mip_era",
			"product":          "activity_id",
			"institute":        "institution_id",
			"model":            "source_id",
			"experiment":       "experiment_id",
			"time_frequency":   "frequency",
			"realm":            "realm",
			"cmor_table":       "table_id",
			"ensemble":         "variant_label",
			"variable":         "variable_id",
			"grid_label":       "grid_label",
		},
		"cordex": {
			"project":          "project",
			"product":          "product",
			"institute":        "institution",
			"driving_model":    "driving_model",
			"experiment":       "experiment",
			"time_frequency":   "time_frequency",
			"rcm_name":         "rcm_name",
			"rcm_version":      "rcm_version",
			"ensemble":         "ensemble",
			"variable":         "variable",
			"cmor_table":       "cmor_table",
		},
		"nextgems": {
			"project":        "project",
			"model":          "simulation",
			"experiment":     "experiment",
			"realm":          "realm",
			"time_frequency": "frequency",
			"variable":       "variable",
			"grid_id":        "grid",
		},
		"user": {},
	}

	out := make(map[string]*model.Flavour, len(defs))
	for name, mapping := range defs {
		out[name] = &model.Flavour{
			Name:      name,
			Owner:     model.GlobalOwner,
			Mapping:   mapping,
			CreatedAt: now,
		}
	}
	return out
}
