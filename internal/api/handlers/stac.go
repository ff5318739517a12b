package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/search"
	"github.com/freva-org/freva-nextgen/internal/searchindex"
)

// stacConformance — классы соответствия STAC 1.1.0, реализованные
// шлюзом: core, collections, item-search и ogcapi-features; transactional
// не поддержан.
var stacConformance = []string{
	"https://api.stacspec.org/v1.0.0/core",
	"https://api.stacspec.org/v1.0.0/collections",
	"https://api.stacspec.org/v1.0.0/item-search",
	"https://api.stacspec.org/v1.0.0/ogcapi-features",
}

type stacLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// StacLandingPage — GET /stacapi/: корневой STAC-каталог.
func (h *Handler) StacLandingPage(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"id":          "freva",
		"type":        "Catalog",
		"stac_version": "1.1.0",
		"description": "freva-databrowser STAC API",
		"links": []stacLink{
			{Rel: "self", Href: h.PublicURL + "/stacapi/", Type: "application/json"},
			{Rel: "conformance", Href: h.PublicURL + "/stacapi/conformance", Type: "application/json"},
			{Rel: "data", Href: h.PublicURL + "/stacapi/collections", Type: "application/json"},
			{Rel: "search", Href: h.PublicURL + "/stacapi/search", Type: "application/geo+json"},
		},
		"conformsTo": stacConformance,
	}
	writeJSON(w, http.StatusOK, body)
}

// StacConformance — GET /stacapi/conformance.
func (h *Handler) StacConformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"conformsTo": stacConformance})
}

// stacCollection — одна STAC-коллекция, соответствующая канонической
// группе project: collection id — значение project в нижнем регистре.
type stacCollection struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	StacVersion string     `json:"stac_version"`
	Description string     `json:"description"`
	License     string     `json:"license"`
	Extent      stacExtent `json:"extent"`
	Links       []stacLink `json:"links"`
}

type stacExtent struct {
	Spatial  stacSpatialExtent  `json:"spatial"`
	Temporal stacTemporalExtent `json:"temporal"`
}

type stacSpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

type stacTemporalExtent struct {
	Interval [][2]*string `json:"interval"`
}

// StacCollections — GET /stacapi/collections: одна коллекция на
// значение фасета project.
func (h *Handler) StacCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	counts, err := h.Index.MetadataSearch(ctx, "", false)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	projects := counts["project"]
	cols := make([]stacCollection, 0, len(projects))
	for _, p := range projects {
		cols = append(cols, buildStacCollection(h.PublicURL, strings.ToLower(p.Value)))
	}

	writeJSON(w, http.StatusOK, map[string]any{"collections": cols, "links": []stacLink{
		{Rel: "self", Href: h.PublicURL + "/stacapi/collections", Type: "application/json"},
	}})
}

func buildStacCollection(publicURL, id string) stacCollection {
	return stacCollection{
		ID:          id,
		Type:        "Collection",
		StacVersion: "1.1.0",
		Description: fmt.Sprintf("Climate data collection for project %s", id),
		License:     "various",
		Extent: stacExtent{
			Spatial:  stacSpatialExtent{BBox: [][]float64{{-180, -90, 180, 90}}},
			Temporal: stacTemporalExtent{Interval: [][2]*string{{nil, nil}}},
		},
		Links: []stacLink{
			{Rel: "self", Href: fmt.Sprintf("%s/stacapi/collections/%s", publicURL, id), Type: "application/json"},
			{Rel: "items", Href: fmt.Sprintf("%s/stacapi/collections/%s/items", publicURL, id), Type: "application/geo+json"},
		},
	}
}

// StacCollection — GET /stacapi/collections/{id}.
func (h *Handler) StacCollection(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	n, err := h.Index.Count(ctx, fmt.Sprintf("project:%s", id))
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	if n == 0 {
		apierrors.Write(w, apierrors.CodeNotFound, fmt.Sprintf("коллекция %q не найдена", id))
		return
	}

	writeJSON(w, http.StatusOK, buildStacCollection(h.PublicURL, id))
}

// stacItem — один SearchDocument, представленный как GeoJSON Feature.
type stacItem struct {
	Type       string         `json:"type"`
	StacVersion string        `json:"stac_version"`
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Geometry   map[string]any `json:"geometry"`
	BBox       []float64      `json:"bbox"`
	Properties map[string]any `json:"properties"`
	Assets     map[string]any `json:"assets"`
	Links      []stacLink     `json:"links"`
}

func docToStacItem(publicURL, collection string, doc *model.SearchDocument) stacItem {
	bb := doc.EffectiveBBox()
	props := map[string]any{}
	for k, v := range doc.Facets {
		if len(v) == 1 {
			props[k] = v[0]
		} else {
			props[k] = v
		}
	}
	if !doc.Time.Static() {
		props["start_datetime"] = doc.Time.T0.Format("2006-01-02T15:04:05Z")
		props["end_datetime"] = doc.Time.T1.Format("2006-01-02T15:04:05Z")
		props["datetime"] = nil
	} else {
		props["datetime"] = nil
	}

	id := strconv.FormatInt(doc.ID, 10)

	return stacItem{
		Type:        "Feature",
		StacVersion: "1.1.0",
		ID:          id,
		Collection:  collection,
		Geometry:    bboxToPolygon(bb),
		BBox:        []float64{bb.MinX, bb.MinY, bb.MaxX, bb.MaxY},
		Properties:  props,
		Assets: map[string]any{
			"zarr-access": map[string]any{
				"href":  fmt.Sprintf("%s/data-portal/zarr/convert?file=%s", publicURL, doc.URI),
				"type":  "application/vnd+zarr",
				"roles": []string{"data"},
			},
		},
		Links: []stacLink{
			{Rel: "self", Href: fmt.Sprintf("%s/stacapi/collections/%s/items/%s", publicURL, collection, id), Type: "application/geo+json"},
			{Rel: "collection", Href: fmt.Sprintf("%s/stacapi/collections/%s", publicURL, collection), Type: "application/json"},
		},
	}
}

func bboxToPolygon(b model.BBox) map[string]any {
	return map[string]any{
		"type": "Polygon",
		"coordinates": [][][2]float64{{
			{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}, {b.MinX, b.MinY},
		}},
	}
}

// StacCollectionItems — GET /stacapi/collections/{id}/items: элементы
// коллекции с opaque-курсорной пагинацией.
func (h *Handler) StacCollectionItems(w http.ResponseWriter, r *http.Request, id string) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.Write(w, apierrors.CodeInvalidInput, "limit должен быть целым числом")
			return
		}
		limit = n
	}
	if err := search.ValidateStacLimit(limit); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, err.Error())
		return
	}

	req := searchindex.SearchRequest{
		Collection:  "latest",
		NativeQuery: fmt.Sprintf("project:%s", id),
		BatchSize:   limit,
	}
	paged := false
	if token := r.URL.Query().Get("token"); token != "" {
		c, err := search.DecodeStacCursor(token)
		if err != nil || c.Collection != id {
			apierrors.Write(w, apierrors.CodeInvalidInput, "некорректный токен курсора")
			return
		}
		paged = true
		switch c.Direction {
		case search.StacNext:
			req.AfterID = c.ItemID
		case search.StacPrev:
			req.BeforeID = c.ItemID
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	cur, err := h.Index.Search(ctx, req)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	defer cur.Close()

	items := make([]stacItem, 0, limit)
	for len(items) < limit {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			apierrors.Write(w, apierrors.CodeBackendUnavailable, "ошибка чтения индекса")
			return
		}
		if !ok {
			break
		}
		items = append(items, docToStacItem(h.PublicURL, id, doc))
	}

	itemsURL := fmt.Sprintf("%s/stacapi/collections/%s/items", h.PublicURL, id)
	links := []stacLink{
		{Rel: "self", Href: itemsURL, Type: "application/geo+json"},
	}
	if len(items) == limit {
		nextToken := search.EncodeStacCursor(search.StacCursor{Direction: search.StacNext, Collection: id, ItemID: items[len(items)-1].ID})
		links = append(links, stacLink{Rel: "next", Href: fmt.Sprintf("%s?token=%s&limit=%d", itemsURL, nextToken, limit), Type: "application/geo+json"})
	}
	if paged && len(items) > 0 {
		prevToken := search.EncodeStacCursor(search.StacCursor{Direction: search.StacPrev, Collection: id, ItemID: items[0].ID})
		links = append(links, stacLink{Rel: "prev", Href: fmt.Sprintf("%s?token=%s&limit=%d", itemsURL, prevToken, limit), Type: "application/geo+json"})
	}

	writeGeoJSON(w, http.StatusOK, map[string]any{
		"type":     "FeatureCollection",
		"features": items,
		"links":    links,
	})
}

// StacItem — GET /stacapi/collections/{id}/items/{itemID}.
func (h *Handler) StacItem(w http.ResponseWriter, r *http.Request, id, itemID string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	cur, err := h.Index.Search(ctx, searchindex.SearchRequest{
		Collection:  "latest",
		NativeQuery: fmt.Sprintf("project:%s AND id:%s", id, itemID),
		BatchSize:   1,
	})
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	defer cur.Close()

	doc, ok, err := cur.Next(ctx)
	if err != nil {
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "ошибка чтения индекса")
		return
	}
	if !ok {
		apierrors.Write(w, apierrors.CodeNotFound, fmt.Sprintf("item %q не найден", itemID))
		return
	}

	writeGeoJSON(w, http.StatusOK, docToStacItem(h.PublicURL, id, doc))
}

// StacSearch — POST/GET /stacapi/search: кросс-коллекционный
// item-search с фасетами/временем/bbox.
func (h *Handler) StacSearch(w http.ResponseWriter, r *http.Request) {
	psr, err := h.parseSearchRequest(r, r.URL.Query().Get("flavour"))
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.Write(w, apierrors.CodeInvalidInput, "limit должен быть целым числом")
			return
		}
		limit = n
	}
	if err := search.ValidateStacLimit(limit); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.BackendTimeout)
	defer cancel()

	cur, err := h.Index.Search(ctx, searchindex.SearchRequest{
		Collection:  collectionFor(psr),
		NativeQuery: psr.native,
		BatchSize:   limit,
	})
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	defer cur.Close()

	items := make([]stacItem, 0, limit)
	for len(items) < limit {
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			apierrors.Write(w, apierrors.CodeBackendUnavailable, "ошибка чтения индекса")
			return
		}
		if !ok {
			break
		}
		if !matchesTimeBBox(doc, psr) {
			continue
		}
		items = append(items, docToStacItem(h.PublicURL, strings.ToLower(doc.Project()), doc))
	}

	writeGeoJSON(w, http.StatusOK, map[string]any{
		"type":     "FeatureCollection",
		"features": items,
		"links": []stacLink{
			{Rel: "self", Href: h.PublicURL + "/stacapi/search", Type: "application/geo+json"},
		},
	})
}

// StacQueryables — GET /stacapi/queryables: схема полей, допустимых в
// фильтрах поиска, отдаётся как application/schema+json.
func (h *Handler) StacQueryables(w http.ResponseWriter, r *http.Request) {
	properties := map[string]any{}
	for _, f := range search.GroupByFields {
		properties[f] = map[string]any{"type": "string"}
	}

	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"$schema":    "https://json-schema.org/draft/2019-09/schema",
		"type":       "object",
		"properties": properties,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeGeoJSON — как writeJSON, но с media type STAC-item'ов.
func writeGeoJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
