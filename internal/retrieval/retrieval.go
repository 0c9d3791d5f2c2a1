// Package retrieval adapts the external vector-index and embedding services
// and owns the over-fetch/threshold/truncate search policy.
package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"docrouter/internal/model"
)

// maxOverFetch caps how many candidates are requested from the index to
// compensate for post-filtering.
const maxOverFetch = 50

// VectorIndex is the external nearest-neighbour service boundary. Results
// come back ranked with cosine distances; sourceFiles narrows the search to
// a document subset (nil or empty means all).
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, topK int, sourceFiles []string) ([]model.Fragment, error)
}

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts. A failure on any single text aborts
	// the whole batch: a partial batch would corrupt downstream indexing.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dims() int
}

// Client wraps the vector index behind the retrieval policy: over-fetch,
// distance cutoff, truncate to k. External failures degrade to an empty
// result so routing reports "cannot answer" instead of crashing.
type Client struct {
	index    VectorIndex
	embedder Embedder
	logger   *slog.Logger
}

func NewClient(index VectorIndex, embedder Embedder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{index: index, embedder: embedder, logger: logger}
}

// Search embeds the query and returns at most k fragments whose distance is
// within the threshold, closest first. Never returns an error.
func (c *Client) Search(ctx context.Context, query string, k int, distanceThreshold float64, sourceFiles []string) []model.Fragment {
	if k <= 0 {
		k = 5
	}

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.logger.Warn("query embedding failed", "err", err)
		return nil
	}

	fetch := k * 3
	if fetch > maxOverFetch {
		fetch = maxOverFetch
	}
	candidates, err := c.index.Query(ctx, vec, fetch, sourceFiles)
	if err != nil {
		c.logger.Warn("vector index unavailable", "err", err)
		return nil
	}

	var kept []model.Fragment
	for _, f := range candidates {
		if f.Distance <= distanceThreshold {
			kept = append(kept, f)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Distance < kept[j].Distance })
	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
