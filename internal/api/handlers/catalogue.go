package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/search"
	"github.com/freva-org/freva-nextgen/internal/searchindex"
)

// intakeAggregation — часть aggregation_control каталога.
type intakeAggregation struct {
	Type      string         `json:"type"`
	Attribute string         `json:"attribute_name"`
	Options   map[string]any `json:"options,omitempty"`
}

// intakeCatalogue — esmcat 0.1.0 документ.
type intakeCatalogue struct {
	ESMCatVersion string         `json:"esmcat_version"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	Title         string         `json:"title"`
	LastUpdated   string         `json:"last_updated"`
	Attributes    []intakeAttribute `json:"attributes"`
	Assets        intakeAssets   `json:"assets"`
	AggregationControl intakeAggCtl `json:"aggregation_control"`
	CatalogDict   []map[string]any `json:"catalog_dict"`
}

type intakeAttribute struct {
	ColumnName string `json:"column_name"`
	Vocabulary string `json:"vocabulary"`
}

type intakeAssets struct {
	ColumnName       string `json:"column_name"`
	FormatColumnName string `json:"format_column_name"`
}

type intakeAggCtl struct {
	VariableColumnName string              `json:"variable_column_name"`
	GroupByAttrs       []string            `json:"groupby_attrs"`
	Aggregations       []intakeAggregation `json:"aggregations"`
}

// IntakeCatalogue — GET /databrowser/intake-catalogue/{flavour}/{uniq_key}:
// синтезирует каталог intake-ESM из документов индекса, агрегированных
// по uniq_key (file либо uri).
func (h *Handler) IntakeCatalogue(w http.ResponseWriter, r *http.Request, flavourName, uniqKey string) {
	start := time.Now()
	psr, err := h.parseSearchRequest(r, flavourName)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	cur, err := h.Index.Search(ctx, searchindex.SearchRequest{
		Collection:  collectionFor(psr),
		NativeQuery: psr.native,
		BatchSize:   search.MaxBatchSizeDefault,
	})
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	defer cur.Close()

	var docs []*model.SearchDocument
	for {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			apierrors.Write(w, apierrors.CodeBackendUnavailable, "ошибка чтения индекса")
			return
		}
		if !ok {
			break
		}
		if matchesTimeBBox(doc, psr) {
			docs = append(docs, doc)
		}
	}

	if len(docs) == 0 {
		apierrors.Write(w, apierrors.CodeInvalidInput, "запрос не вернул ни одного документа")
		return
	}

	groups := search.Aggregate(docs, uniqKey)

	catalogDict := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		row := make(map[string]any, len(g.Keys)+1)
		for k, v := range g.Keys {
			row[k] = v
		}
		row[uniqKey] = g.Files
		catalogDict = append(catalogDict, row)
	}

	attrs := make([]intakeAttribute, 0, len(search.GroupByFields))
	for _, f := range search.GroupByFields {
		attrs = append(attrs, intakeAttribute{ColumnName: f})
	}

	cat := intakeCatalogue{
		ESMCatVersion: "0.1.0",
		ID:            psr.flavourName,
		Description:   "Catalogue from freva-databrowser",
		Title:         "freva-databrowser catalogue",
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		Attributes:    attrs,
		Assets: intakeAssets{
			ColumnName:       uniqKey,
			FormatColumnName: "format",
		},
		AggregationControl: intakeAggCtl{
			VariableColumnName: "variable",
			GroupByAttrs:       search.GroupByFields,
			Aggregations: []intakeAggregation{
				{Type: "union", Attribute: "variable"},
				{Type: "join_existing", Attribute: "time", Options: map[string]any{"dim": "time"}},
			},
		},
		CatalogDict: catalogDict,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(cat)

	h.recordStats(r, "intake_catalogue", psr.flavourName, nil, len(groups), time.Since(start), false)
}
