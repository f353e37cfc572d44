package vectorindex

import (
	"context"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// Filter narrows a search by payload fields. Zero values mean no
// constraint.
type Filter struct {
	DocID string
	Model string
}

// Index is a keyed vector store. Upsert replaces any existing record with
// the same chunk id; Search returns hits ordered by score descending with
// chunk id as the tie break.
type Index interface {
	// Ensure prepares the backing collection for vectors of the given
	// dimension. Safe to call repeatedly.
	Ensure(ctx context.Context, dimension int) error

	// Upsert writes a record keyed by its chunk id.
	Upsert(ctx context.Context, rec *types.EmbeddingRecord) error

	// Search returns up to limit hits most similar to the query vector.
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]types.SearchHit, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)
}
