package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// serializeVector converts a float32 slice to a little-endian byte blob
func serializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched dimensions or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// UpsertEmbedding stores a vector keyed by chunk id, replacing any prior
// vector for the same chunk. Replaying the same record after a crash or
// queue redelivery leaves exactly one row.
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, rec *types.EmbeddingRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (chunk_id, doc_id, ordinal, text, vector, dimension, model, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			ordinal = excluded.ordinal,
			text = excluded.text,
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model`,
		rec.ChunkID, rec.Payload.DocID, rec.Payload.Ordinal, rec.Payload.Text,
		serializeVector(rec.Vector), len(rec.Vector), rec.Payload.Model, nowMillis())
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// SearchVector scans stored embeddings, scores each by cosine similarity
// against the query vector, and returns the top results. Results order by
// score descending with chunk id as the tie break, so identical corpora
// always produce identical rankings.
func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filter *VectorFilter) ([]types.SearchHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", types.ErrValidation)
	}

	query := `SELECT chunk_id, doc_id, ordinal, text, vector, dimension FROM embeddings`
	var args []interface{}
	var conds []string
	if filter != nil {
		if filter.DocID != "" {
			conds = append(conds, "doc_id = ?")
			args = append(args, filter.DocID)
		}
		if filter.Model != "" {
			conds = append(conds, "model = ?")
			args = append(args, filter.Model)
		}
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var hit types.SearchHit
		var blob []byte
		var dimension int
		if err := rows.Scan(&hit.ChunkID, &hit.DocID, &hit.Ordinal, &hit.Text, &blob, &dimension); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if dimension != len(vector) {
			continue
		}
		stored, err := deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt vector for chunk %s: %w", hit.ChunkID, err)
		}
		hit.Score = cosineSimilarity(vector, stored)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// CountEmbeddings returns the number of stored vectors
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}
