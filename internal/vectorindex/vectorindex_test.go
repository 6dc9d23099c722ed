package vectorindex_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/internal/vectorindex"
)

// fakeCluster answers the few endpoints the index writer uses.
type fakeCluster struct {
	mu      sync.Mutex
	docs    map[string]vectorindex.Document
	indices map[string]string
	queries []string
	status  int
}

func newFakeCluster(t *testing.T) (*fakeCluster, *opensearch.Client) {
	t.Helper()

	fc := &fakeCluster{
		docs:    make(map[string]vectorindex.Document),
		indices: make(map[string]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(fc.serve))
	t.Cleanup(srv.Close)

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)

	return fc, client
}

func (fc *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.queries = append(fc.queries, r.URL.RawQuery)
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	if fc.status != 0 {
		w.WriteHeader(fc.status)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		var doc vectorindex.Document
		_ = json.Unmarshal(body, &doc)
		_, existed := fc.docs[parts[2]]
		fc.docs[parts[2]] = doc
		result := "created"
		if existed {
			result = "updated"
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"_id": parts[2], "result": result})
	case len(parts) == 1 && r.Method == http.MethodHead:
		if _, ok := fc.indices[parts[0]]; !ok {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		fc.indices[parts[0]] = string(body)
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fc *fakeCluster) doc(id string) (vectorindex.Document, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	d, ok := fc.docs[id]
	return d, ok
}

func TestOpenSearch_UpsertOverwritesByPostID(t *testing.T) {
	t.Parallel()

	fc, client := newFakeCluster(t)
	idx := vectorindex.NewOpenSearch(client, "posts")
	ctx := context.Background()

	meta := domain.EmbeddingMetadata{Description: "a cat", Tags: []string{"cat"}, SceneType: "indoor"}
	require.NoError(t, idx.Upsert(ctx, "p1", []float64{0.1, 0.2}, meta))
	require.NoError(t, idx.Upsert(ctx, "p1", []float64{0.3, 0.4}, meta))

	fc.mu.Lock()
	assert.Len(t, fc.docs, 1)
	fc.mu.Unlock()

	doc, ok := fc.doc("p1")
	require.True(t, ok)
	assert.Equal(t, vectorindex.Document{
		PostID:      "p1",
		Embedding:   []float64{0.3, 0.4},
		Description: "a cat",
		Tags:        []string{"cat"},
		SceneType:   "indoor",
	}, doc)
}

func TestOpenSearch_UpsertNilTags(t *testing.T) {
	t.Parallel()

	fc, client := newFakeCluster(t)
	idx := vectorindex.NewOpenSearch(client, "posts", vectorindex.WithRefresh())

	require.NoError(t, idx.Upsert(context.Background(), "p2", []float64{1}, domain.EmbeddingMetadata{}))

	doc, ok := fc.doc("p2")
	require.True(t, ok)
	assert.Equal(t, []string{}, doc.Tags)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Contains(t, fc.queries[len(fc.queries)-1], "refresh=true")
}

func TestOpenSearch_UpsertValidation(t *testing.T) {
	t.Parallel()

	_, client := newFakeCluster(t)
	idx := vectorindex.NewOpenSearch(client, "posts")

	assert.ErrorIs(t, idx.Upsert(context.Background(), "", []float64{1}, domain.EmbeddingMetadata{}), vectorindex.ErrEmptyPostID)
	assert.ErrorIs(t, idx.Upsert(context.Background(), "p1", nil, domain.EmbeddingMetadata{}), vectorindex.ErrEmptyVector)
}

func TestOpenSearch_UpsertErrorStatus(t *testing.T) {
	t.Parallel()

	fc, client := newFakeCluster(t)
	fc.status = http.StatusBadRequest
	idx := vectorindex.NewOpenSearch(client, "posts")

	err := idx.Upsert(context.Background(), "p1", []float64{1}, domain.EmbeddingMetadata{})
	require.ErrorIs(t, err, vectorindex.ErrIndexRequest)
	assert.Contains(t, err.Error(), "status 400")
}

func TestOpenSearch_EnsureIndex(t *testing.T) {
	t.Parallel()

	fc, client := newFakeCluster(t)
	idx := vectorindex.NewOpenSearch(client, "posts")
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx, 3))

	fc.mu.Lock()
	mapping, ok := fc.indices["posts"]
	fc.mu.Unlock()
	require.True(t, ok)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(mapping), &parsed))
	props := parsed["mappings"].(map[string]any)["properties"].(map[string]any)
	embedding := props["embedding"].(map[string]any)
	assert.Equal(t, "knn_vector", embedding["type"])
	assert.InDelta(t, 3, embedding["dimension"], 0)

	fc.mu.Lock()
	fc.indices["posts"] = "existing"
	fc.mu.Unlock()

	require.NoError(t, idx.EnsureIndex(ctx, 3))

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Equal(t, "existing", fc.indices["posts"])
}

func TestLog_Upsert(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	idx := vectorindex.NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, idx.Upsert(context.Background(), "p1", []float64{1, 2, 3}, domain.EmbeddingMetadata{SceneType: "beach"}))

	out := buf.String()
	assert.Contains(t, out, "post_id=p1")
	assert.Contains(t, out, "dimensions=3")
	assert.Contains(t, out, "scene_type=beach")
}
