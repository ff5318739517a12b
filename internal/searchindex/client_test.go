package searchindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/search"
)

func TestBuildNativeQuery_SimpleConjunction(t *testing.T) {
	q, err := search.ParseFacets(map[string][]string{"project": {"cmip6"}, "variable": {"tas"}})
	require.NoError(t, err)
	assert.Equal(t, "project:cmip6 variable:tas", BuildNativeQuery(q))
}

func TestBuildNativeQuery_DisjunctionAndNegation(t *testing.T) {
	q, err := search.ParseFacets(map[string][]string{
		"variable":     {"tas", "pr"},
		"experiment_not_": {"piControl"},
	})
	require.NoError(t, err)
	native := BuildNativeQuery(q)
	assert.Contains(t, native, "variable:(tas OR pr)")
	assert.Contains(t, native, "NOT experiment:piControl")
}

func newFakeIndex(t *testing.T, docs []*model.SearchDocument) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, d := range docs {
			enc.Encode(d)
		}
	})
	mux.HandleFunc("/files/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"count": len(docs)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SearchStreamsDocuments(t *testing.T) {
	docs := []*model.SearchDocument{
		{ID: 1, URI: "file1.nc"},
		{ID: 2, URI: "file2.nc"},
	}
	srv := newFakeIndex(t, docs)
	c := NewClient(srv.URL, "files")

	cur, err := c.Search(context.Background(), SearchRequest{Collection: "latest", NativeQuery: "project:cmip6", BatchSize: 100})
	require.NoError(t, err)
	defer cur.Close()

	var got []*model.SearchDocument
	for {
		d, ok, err := cur.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, d)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "file1.nc", got[0].URI)
}

func TestClient_Count(t *testing.T) {
	docs := []*model.SearchDocument{{ID: 1}, {ID: 2}, {ID: 3}}
	srv := newFakeIndex(t, docs)
	c := NewClient(srv.URL, "files")

	n, err := c.Count(context.Background(), "project:cmip6")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClient_SearchBackendUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "files")
	_, err := c.Search(context.Background(), SearchRequest{Collection: "latest", NativeQuery: "x"})
	require.Error(t, err)
}
