package grader

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"examgrader/types"
)

var (
	ErrEmptyCorpus       = errors.New("no usable chunks in corpus")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Index is the per-course in-memory vector index. vectors[i] and texts[i]
// describe the same chunk; insertion order is the join key. It is rebuilt
// from the chunk store per retrieval pass, never persisted, and is read-only
// after BuildIndex returns, so concurrent searches need no locking.
type Index struct {
	vectors [][]float32
	texts   []string
	dim     int
}

// BuildIndex loads chunk embeddings into a fresh index. Chunks with missing
// or malformed embeddings are skipped with a warning; a partially degraded
// corpus still serves retrieval. Fails with ErrEmptyCorpus when nothing
// usable remains.
func BuildIndex(chunks []types.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	ix := &Index{
		vectors: make([][]float32, 0, len(chunks)),
		texts:   make([]string, 0, len(chunks)),
	}
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			slog.Warn("skipping chunk with empty embedding", "chunk", c.ID)
			continue
		}
		if ix.dim == 0 {
			ix.dim = len(c.Embedding)
		}
		if len(c.Embedding) != ix.dim {
			slog.Warn("skipping chunk with corrupt embedding",
				"chunk", c.ID, "got", len(c.Embedding), "want", ix.dim)
			continue
		}
		ix.vectors = append(ix.vectors, c.Embedding)
		ix.texts = append(ix.texts, c.Text)
	}

	if len(ix.vectors) == 0 {
		return nil, ErrEmptyCorpus
	}
	return ix, nil
}

func (ix *Index) Size() int {
	return len(ix.vectors)
}

func (ix *Index) Dimension() int {
	return ix.dim
}

// Search returns the texts of the min(k, size) chunks nearest to query under
// squared Euclidean distance, closest first. Ties keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]string, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w",
			len(query), ix.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return []string{}, nil
	}

	dists := make([]float64, len(ix.vectors))
	order := make([]int, len(ix.vectors))
	for i, vec := range ix.vectors {
		var sum float64
		for j := range vec {
			d := float64(vec[j] - query[j])
			sum += d * d
		}
		dists[i] = sum
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return dists[order[a]] < dists[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ix.texts[order[i]]
	}
	return out, nil
}
