package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
)

var (
	ErrEmptyPostID  = errors.New("vectorindex: post id is required")
	ErrEmptyVector  = errors.New("vectorindex: vector is empty")
	ErrIndexRequest = errors.New("vectorindex: index request failed")
)

// Document is the stored representation of a post embedding.
type Document struct {
	PostID      string    `json:"postId"`
	Embedding   []float64 `json:"embedding"`
	Description string    `json:"description"`
	Caption     string    `json:"caption,omitempty"`
	Tags        []string  `json:"tags"`
	SceneType   string    `json:"sceneType"`
}

// Option configures an OpenSearch index.
type Option func(*OpenSearch)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *OpenSearch) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRefresh makes every write visible to search before Upsert returns.
func WithRefresh() Option {
	return func(o *OpenSearch) {
		o.refresh = "true"
	}
}

// OpenSearch upserts embeddings into an OpenSearch index.
type OpenSearch struct {
	transport opensearchapi.Transport
	index     string
	refresh   string
	logger    *slog.Logger
}

// NewOpenSearch creates an index writer. transport is usually *opensearch.Client.
func NewOpenSearch(transport opensearchapi.Transport, index string, opts ...Option) *OpenSearch {
	o := &OpenSearch{
		transport: transport,
		index:     index,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(logger.Component("vectorindex"))
	return o
}

// Upsert stores vector under postID, replacing any earlier document.
func (o *OpenSearch) Upsert(ctx context.Context, postID string, vector []float64, meta domain.EmbeddingMetadata) error {
	if postID == "" {
		return ErrEmptyPostID
	}
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}

	body, err := json.Marshal(Document{
		PostID:      postID,
		Embedding:   vector,
		Description: meta.Description,
		Caption:     meta.Caption,
		Tags:        tags,
		SceneType:   meta.SceneType,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: encode document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      o.index,
		DocumentID: postID,
		Body:       bytes.NewReader(body),
		Refresh:    o.refresh,
	}

	res, err := req.Do(ctx, o.transport)
	if err != nil {
		return errors.Join(ErrIndexRequest, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Join(ErrIndexRequest, responseError(res))
	}
	_, _ = io.Copy(io.Discard, res.Body)

	o.logger.DebugContext(ctx, "embedding indexed",
		logger.PostID(postID),
		slog.Int("dimensions", len(vector)),
	)
	return nil
}

// EnsureIndex creates the k-NN index when it does not exist yet.
func (o *OpenSearch) EnsureIndex(ctx context.Context, dimension int) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{o.index}}
	res, err := exists.Do(ctx, o.transport)
	if err != nil {
		return errors.Join(ErrIndexRequest, err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: o.index,
		Body:  strings.NewReader(indexMapping(dimension)),
	}
	res, err = create.Do(ctx, o.transport)
	if err != nil {
		return errors.Join(ErrIndexRequest, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Join(ErrIndexRequest, responseError(res))
	}

	o.logger.InfoContext(ctx, "vector index created",
		slog.String("index", o.index),
		slog.Int("dimension", dimension),
	)
	return nil
}

func indexMapping(dimension int) string {
	return fmt.Sprintf(`{
  "settings": {"index": {"knn": true}},
  "mappings": {
    "properties": {
      "postId": {"type": "keyword"},
      "embedding": {"type": "knn_vector", "dimension": %d},
      "description": {"type": "text"},
      "caption": {"type": "text"},
      "tags": {"type": "keyword"},
      "sceneType": {"type": "keyword"}
    }
  }
}`, dimension)
}

func responseError(res *opensearchapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
}
