package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/search"
	"github.com/freva-org/freva-nextgen/internal/searchindex"
)

// parsedSearchRequest — общий разбор параметров data_search/metadata_search/count,
// разделяемый тремя обработчиками.
type parsedSearchRequest struct {
	flavourName string
	query       search.Query
	native      string
	timeSpec    model.TimeInterval
	timeMode    search.TimeMode
	bbox        *model.BBox
	multiVersion bool
}

func (h *Handler) parseSearchRequest(r *http.Request, flavourName string) (*parsedSearchRequest, error) {
	q := r.URL.Query()
	if flavourName == "" {
		flavourName = "freva"
	}

	raw := map[string][]string{}
	for k, v := range q {
		switch k {
		case "flavour", "time", "bbox", "time_select", "multi-version", "start", "batch-size", "--json", "extended", "facet":
			continue
		}
		raw[k] = v
	}

	principal := principalName(r)
	translated, err := h.translateFacetsIn(r.Context(), flavourName, principal, raw)
	if err != nil {
		return nil, err
	}
	facetQuery, err := search.ParseFacets(translated)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidFacet, err.Error())
	}

	var timeIv model.TimeInterval
	if ts := q.Get("time"); ts != "" {
		timeIv, err = search.ParseTimeSpec(ts)
		if err != nil {
			return nil, apierrors.New(apierrors.CodeInvalidTime, err.Error())
		}
	}
	timeMode := search.TimeFlexible
	if q.Get("time_select") == "strict" {
		timeMode = search.TimeStrict
	}

	var bbox *model.BBox
	if bs := q.Get("bbox"); bs != "" {
		b, err := search.ParseBBox(bs)
		if err != nil {
			return nil, apierrors.New(apierrors.CodeInvalidBBox, err.Error())
		}
		bbox = &b
	}

	multiVersion := q.Get("multi-version") == "true"
	if !multiVersion {
		if fq, ok := facetQuery["version"]; ok && len(fq.Positive) > 0 {
			return nil, apierrors.New(apierrors.CodeInvalidFacet, "поле version допустимо только при multi-version=true")
		}
	}

	return &parsedSearchRequest{
		flavourName:  flavourName,
		query:        facetQuery,
		native:       searchindex.BuildNativeQuery(facetQuery),
		timeSpec:     timeIv,
		timeMode:     timeMode,
		bbox:         bbox,
		multiVersion: multiVersion,
	}, nil
}

func collectionFor(psr *parsedSearchRequest) string {
	if psr.multiVersion {
		return "multi-version"
	}
	return "latest"
}

// DataSearch — GET /databrowser/data-search/{flavour}/{uniq_key}: потоковая
// выдача путей/URI, удовлетворяющих фасетам/времени/bbox.
func (h *Handler) DataSearch(w http.ResponseWriter, r *http.Request, flavourName, uniqKey string) {
	start := time.Now()
	psr, err := h.parseSearchRequest(r, flavourName)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	startIdx, batchSize, err := parsePagination(r, true)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	cur, err := h.Index.Search(ctx, searchindex.SearchRequest{
		Collection:  collectionFor(psr),
		NativeQuery: psr.native,
		Start:       startIdx,
		BatchSize:   batchSize,
	})
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	defer cur.Close()

	asJSON := r.URL.Query().Has("--json")
	if asJSON {
		w.Header().Set("Content-Type", "application/x-ndjson")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := bufio.NewWriter(w)
	count := 0
	aborted := false

	for {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			h.Logger.Warn("ошибка при потоковой выдаче data_search", "error", err)
			aborted = true
			break
		}
		if !ok {
			break
		}
		if !matchesTimeBBox(doc, psr) {
			continue
		}

		loc := doc.URI
		if uniqKey == "file" {
			loc = doc.File
		}

		if asJSON {
			if err := json.NewEncoder(buf).Encode(map[string]string{uniqKey: loc}); err != nil {
				aborted = true
				break
			}
		} else {
			fmt.Fprintf(buf, "%s\n", loc)
		}
		count++

		select {
		case <-r.Context().Done():
			aborted = true
		default:
		}
		if aborted {
			break
		}
		if flusher != nil {
			buf.Flush()
			flusher.Flush()
		}
	}
	buf.Flush()

	h.recordStats(r, "data_search", psr.flavourName, nil, count, time.Since(start), aborted)
}

// matchesTimeBBox применяет семантику времени/bbox, которую индекс не
// умеет выразить нативно.
func matchesTimeBBox(doc *model.SearchDocument, psr *parsedSearchRequest) bool {
	if !psr.timeSpec.Static() && !search.MatchTime(doc.Time, psr.timeSpec, psr.timeMode) {
		return false
	}
	if psr.bbox != nil && !search.MatchBBox(doc.EffectiveBBox(), *psr.bbox) {
		return false
	}
	return true
}

// MetadataSearch — GET /databrowser/metadata-search/{flavour}/{uniq_key}:
// фасетные счётчики.
func (h *Handler) MetadataSearch(w http.ResponseWriter, r *http.Request, flavourName string) {
	start := time.Now()
	psr, err := h.parseSearchRequest(r, flavourName)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	extended := r.URL.Query().Get("extended") == "true"
	result, err := h.Index.MetadataSearch(ctx, psr.native, extended)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	out, err := h.translateOutFacetCounts(ctx, psr.flavourName, principalName(r), result)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)

	h.recordStats(r, "metadata_search", psr.flavourName, nil, len(out), time.Since(start), false)
}

// Count — GET /databrowser/count: число совпадающих документов, а при
// detail=true — счётчики по каждому фасету.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	psr, err := h.parseSearchRequest(r, r.URL.Query().Get("flavour"))
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	if r.URL.Query().Get("detail") == "true" {
		counts, err := h.Index.MetadataSearch(ctx, psr.native, false)
		if err != nil {
			apierrors.WriteError(w, err)
			return
		}
		translated, err := h.translateOutFacetCounts(ctx, psr.flavourName, principalName(r), counts)
		if err != nil {
			apierrors.WriteError(w, err)
			return
		}

		out := make(map[string]map[string]int, len(translated))
		total := 0
		for facet, vals := range translated {
			m := make(map[string]int, len(vals))
			for _, fc := range vals {
				m[fc.Value] = fc.Count
				total += fc.Count
			}
			out[facet] = m
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(out)

		h.recordStats(r, "count", psr.flavourName, nil, total, time.Since(start), false)
		return
	}

	n, err := h.Index.Count(ctx, psr.native)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"count": n})

	h.recordStats(r, "count", psr.flavourName, nil, n, time.Since(start), false)
}

func parsePagination(r *http.Request, streaming bool) (start, batchSize int, err error) {
	q := r.URL.Query()

	start = 0
	if v := q.Get("start"); v != "" {
		start, err = strconv.Atoi(v)
		if err != nil || start < 0 {
			return 0, 0, apierrors.New(apierrors.CodeInvalidInput, "start должен быть неотрицательным целым числом")
		}
	}

	batchSize = search.MaxBatchSizeDefault
	if streaming {
		batchSize = search.MaxBatchSizeStreaming
	}
	if v := q.Get("batch-size"); v != "" {
		batchSize, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, apierrors.New(apierrors.CodeInvalidInput, "batch-size должен быть целым числом")
		}
	}
	if err := search.ValidateBatchSize(batchSize, streaming); err != nil {
		return 0, 0, apierrors.New(apierrors.CodeInvalidInput, err.Error())
	}

	return start, batchSize, nil
}
