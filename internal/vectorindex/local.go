package vectorindex

import (
	"context"
	"sort"

	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// LocalIndex serves vectors from the storage layer's embeddings table.
// Suitable for single-node deployments and tests where running Qdrant is
// overkill.
type LocalIndex struct {
	store storage.Storage
}

// NewLocalIndex creates an index over the given storage.
func NewLocalIndex(store storage.Storage) *LocalIndex {
	return &LocalIndex{store: store}
}

// Ensure is a no-op; the embeddings table accepts any dimension and the
// search skips mismatched vectors.
func (l *LocalIndex) Ensure(ctx context.Context, dimension int) error {
	return nil
}

func (l *LocalIndex) Upsert(ctx context.Context, rec *types.EmbeddingRecord) error {
	return l.store.UpsertEmbedding(ctx, rec)
}

func (l *LocalIndex) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]types.SearchHit, error) {
	var sf *storage.VectorFilter
	if filter != nil {
		sf = &storage.VectorFilter{DocID: filter.DocID, Model: filter.Model}
	}
	return l.store.SearchVector(ctx, vector, limit, sf)
}

func (l *LocalIndex) Count(ctx context.Context) (int, error) {
	return l.store.CountEmbeddings(ctx)
}

// sortHits orders hits by score descending, breaking ties on chunk id so
// identical corpora always rank identically.
func sortHits(hits []types.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
