package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"docrouter/internal/model"
)

// QdrantIndex is a minimal REST client to a Qdrant collection configured for
// cosine distance. It implements VectorIndex.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantConfig contains connection details for the index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Query runs a nearest-neighbour search. Qdrant reports cosine similarity;
// fragments carry the equivalent cosine distance (1 - score).
func (q *QdrantIndex) Query(ctx context.Context, embedding []float32, topK int, sourceFiles []string) ([]model.Fragment, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       embedding,
		"limit":        topK,
		"with_payload": true,
	}
	if len(sourceFiles) > 0 {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "source_file", "match": map[string]any{"any": sourceFiles}},
			},
		}
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	if err := q.postJSON(ctx, url, body, &resp); err != nil {
		return nil, err
	}

	fragments := make([]model.Fragment, 0, len(resp.Result))
	for _, r := range resp.Result {
		f := model.Fragment{Distance: 1 - r.Score, Attrs: map[string]string{}}
		for k, v := range r.Payload {
			s, ok := v.(string)
			if !ok {
				continue
			}
			switch k {
			case "text":
				f.Content = s
			case "source_file":
				f.SourceFile = s
			default:
				f.Attrs[k] = s
			}
		}
		fragments = append(fragments, f)
	}
	return fragments, nil
}

func (q *QdrantIndex) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
