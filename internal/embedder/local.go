package embedder

import (
	"context"
	"crypto/sha256"
	"math"
)

// LocalModelName identifies the built-in deterministic model.
const LocalModelName = "local-hash-v1"

// LocalProvider is an offline embedder that derives vectors from a
// content hash. It carries no semantic signal, but it is deterministic
// and unit-normalized, which is exactly what pipeline and ranking tests
// need: identical text maps to an identical vector with cosine
// similarity 1.0 against itself.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a new local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) Embed(ctx context.Context, req Request) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vector := hashVector(req.Text, LocalDimension)

	emb := &Embedding{
		Vector:    vector,
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     LocalModelName,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

// hashVector expands the text's SHA-256 into dim components by chaining
// the hash, maps each byte into [-1, 1], then normalizes to unit length.
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)

	block := sha256.Sum256([]byte(text))
	var norm float64
	for i := 0; i < dim; i++ {
		if i > 0 && i%sha256.Size == 0 {
			block = sha256.Sum256(block[:])
		}
		vector[i] = (float32(block[i%sha256.Size]) - 127.5) / 127.5
		norm += float64(vector[i]) * float64(vector[i])
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return LocalModelName
}

func (l *LocalProvider) Close() error {
	return nil
}
