package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

const defaultQdrantTimeout = 15 * time.Second

// QdrantConfig holds connection settings for a Qdrant instance.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a minimal REST client to Qdrant using cosine distance.
// Point ids are deterministic UUIDs derived from chunk ids, so replayed
// upserts overwrite rather than duplicate.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrantIndex creates a Qdrant-backed index.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultQdrantTimeout
	}
	return &QdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Ensure creates the collection if missing. Qdrant returns 200 when the
// collection already exists with the same schema.
func (q *QdrantIndex) Ensure(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid vector dimension %d", types.ErrValidation, dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.putJSON(ctx, fmt.Sprintf("%s/collections/%s", q.url, q.collection), body)
}

// Upsert writes one point keyed by the chunk's deterministic UUID.
func (q *QdrantIndex) Upsert(ctx context.Context, rec *types.EmbeddingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     types.PointID(rec.ChunkID),
				"vector": rec.Vector,
				"payload": map[string]any{
					"doc_id":   rec.Payload.DocID,
					"chunk_id": rec.Payload.ChunkID,
					"ordinal":  rec.Payload.Ordinal,
					"text":     rec.Payload.Text,
					"model":    rec.Payload.Model,
				},
			},
		},
	}
	return q.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection), body)
}

// Search queries the collection and maps payloads back to hits. Qdrant
// already orders by score; ties are re-sorted by chunk id locally for a
// stable ordering.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]types.SearchHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", types.ErrValidation)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if cond := qdrantFilter(filter); cond != nil {
		req["filter"] = cond
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]types.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := types.SearchHit{Score: r.Score}
		if v, ok := r.Payload["doc_id"].(string); ok {
			hit.DocID = v
		}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			hit.ChunkID = v
		}
		if v, ok := r.Payload["ordinal"].(float64); ok {
			hit.Ordinal = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			hit.Text = v
		}
		hits = append(hits, hit)
	}
	sortHits(hits)
	return hits, nil
}

// Count returns the number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", q.url, q.collection),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func qdrantFilter(filter *Filter) map[string]any {
	if filter == nil {
		return nil
	}
	var must []map[string]any
	if filter.DocID != "" {
		must = append(must, map[string]any{
			"key":   "doc_id",
			"match": map[string]any{"value": filter.DocID},
		})
	}
	if filter.Model != "" {
		must = append(must, map[string]any{
			"key":   "model",
			"match": map[string]any{"value": filter.Model},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (q *QdrantIndex) putJSON(ctx context.Context, url string, body any) error {
	return q.doJSON(ctx, http.MethodPut, url, body, nil)
}

func (q *QdrantIndex) postJSON(ctx context.Context, url string, body any, out any) error {
	return q.doJSON(ctx, http.MethodPost, url, body, out)
}

func (q *QdrantIndex) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		// Network errors are worth retrying
		return fmt.Errorf("%w: qdrant %s %s: %v", types.ErrTransient, method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%w: qdrant %s %s: %s", types.ErrTransient, method, url, resp.Status)
		}
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}
