package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(context.Background(), t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(key, content string) *types.Document {
	raw := []byte(content)
	return &types.Document{
		DocID:       types.DeriveDocID(key, raw),
		SourceURI:   key,
		ContentHash: types.HashContent(raw),
		Status:      types.DocStatusDiscovered,
	}
}

func testChunks(docID string, texts ...string) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, types.Chunk{
			ChunkID: types.DeriveChunkID(docID, i, text),
			DocID:   docID,
			Ordinal: i,
			Text:    text,
			Status:  types.ChunkStatusPublished,
		})
	}
	return chunks
}

func TestRecordDocumentIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "hello world")
	require.NoError(t, store.RecordDocument(ctx, doc))

	// Claim it so status moves past discovered
	claimed, err := store.ClaimDocument(ctx, doc.DocID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	// Re-recording the same document must not reset its status
	require.NoError(t, store.RecordDocument(ctx, doc))

	got, err := store.GetDocument(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusChunking, got.Status)
}

func TestClaimDocument(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "content")
	require.NoError(t, store.RecordDocument(ctx, doc))

	staleBefore := time.Now().Add(-time.Hour)

	claimed, err := store.ClaimDocument(ctx, doc.DocID, staleBefore)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim loses while the first is fresh
	claimed, err = store.ClaimDocument(ctx, doc.DocID, staleBefore)
	require.NoError(t, err)
	assert.False(t, claimed)

	// A claim with staleBefore in the future treats the first claim as
	// abandoned and succeeds
	claimed, err = store.ClaimDocument(ctx, doc.DocID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimSkipsTerminalStates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "content")
	require.NoError(t, store.RecordDocument(ctx, doc))
	require.NoError(t, store.MarkDocumentFailed(ctx, doc.DocID, "corrupt encoding"))

	claimed, err := store.ClaimDocument(ctx, doc.DocID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed, "failed documents must not be re-claimed")

	got, err := store.GetDocument(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusFailed, got.Status)
	assert.Equal(t, "corrupt encoding", got.FailureReason)
}

func TestReleaseDocument(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "content")
	require.NoError(t, store.RecordDocument(ctx, doc))

	claimed, err := store.ClaimDocument(ctx, doc.DocID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.ReleaseDocument(ctx, doc.DocID))

	got, err := store.GetDocument(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusDiscovered, got.Status)
}

func TestResetFailedDocument(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "content")
	require.NoError(t, store.RecordDocument(ctx, doc))

	// Only failed documents can be reset
	err := store.ResetFailedDocument(ctx, doc.DocID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.MarkDocumentFailed(ctx, doc.DocID, "bad input"))
	require.NoError(t, store.ResetFailedDocument(ctx, doc.DocID))

	got, err := store.GetDocument(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusDiscovered, got.Status)
	assert.Empty(t, got.FailureReason)
}

func TestPublishChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "para one\n\npara two")
	require.NoError(t, store.RecordDocument(ctx, doc))
	claimed, err := store.ClaimDocument(ctx, doc.DocID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	chunks := testChunks(doc.DocID, "para one", "para two")
	require.NoError(t, store.PublishChunks(ctx, doc.DocID, chunks))

	got, err := store.GetDocument(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusChunked, got.Status)

	stored, err := store.ListChunksByDocument(ctx, doc.DocID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0, stored[0].Ordinal)
	assert.Equal(t, 1, stored[1].Ordinal)

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestPublishChunksRequiresClaim(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "content")
	require.NoError(t, store.RecordDocument(ctx, doc))

	// Document is still discovered, not claimed by this worker
	chunks := testChunks(doc.DocID, "content")
	err := store.PublishChunks(ctx, doc.DocID, chunks)
	assert.ErrorIs(t, err, types.ErrConsistency)

	// Nothing should have leaked into the queue
	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestPublishChunksEmptyDocument(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/empty.txt", "")
	require.NoError(t, store.RecordDocument(ctx, doc))
	claimed, err := store.ClaimDocument(ctx, doc.DocID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	// Zero chunks is valid; the document still completes
	require.NoError(t, store.PublishChunks(ctx, doc.DocID, nil))

	got, err := store.GetDocument(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusChunked, got.Status)
}

func TestChunkStatusTransitions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := testDocument("docs/a.txt", "content")
	require.NoError(t, store.RecordDocument(ctx, doc))
	claimed, err := store.ClaimDocument(ctx, doc.DocID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	chunks := testChunks(doc.DocID, "content")
	require.NoError(t, store.PublishChunks(ctx, doc.DocID, chunks))

	require.NoError(t, store.MarkChunkEmbedded(ctx, chunks[0].ChunkID))
	got, err := store.GetChunk(ctx, chunks[0].ChunkID)
	require.NoError(t, err)
	assert.Equal(t, types.ChunkStatusEmbedded, got.Status)

	counts, err := store.CountChunksByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.ChunkStatusEmbedded])

	err = store.MarkChunkEmbedded(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnqueueDeduplicates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{
		DocID:   "doc1",
		Ordinal: 0,
		Text:    "some text",
	}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)

	inserted, err := store.Enqueue(ctx, item)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Enqueue(ctx, item)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate chunk id must collapse")

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestLeaseAckLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{DocID: "doc1", Ordinal: 0, Text: "text"}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)
	_, err := store.Enqueue(ctx, item)
	require.NoError(t, err)

	leased, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, leased)
	assert.Equal(t, item.ChunkID, leased.Item.ChunkID)
	assert.NotEmpty(t, leased.LeaseToken)

	// The item is invisible while leased
	second, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, store.Ack(ctx, leased.ID, leased.LeaseToken))

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestLeaseExpiryAllowsRedelivery(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{DocID: "doc1", Ordinal: 0, Text: "text"}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)
	_, err := store.Enqueue(ctx, item)
	require.NoError(t, err)

	first, err := store.Lease(ctx, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(5 * time.Millisecond)

	second, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, second, "expired lease must allow redelivery")

	// The stale consumer's token no longer works
	err = store.Ack(ctx, first.ID, first.LeaseToken)
	assert.ErrorIs(t, err, ErrNotFound)

	// The current holder's does
	require.NoError(t, store.Ack(ctx, second.ID, second.LeaseToken))
}

func TestRetryDelaysVisibility(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{DocID: "doc1", Ordinal: 0, Text: "text"}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)
	_, err := store.Enqueue(ctx, item)
	require.NoError(t, err)

	leased, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, leased)
	assert.Equal(t, 1, leased.Attempts)

	require.NoError(t, store.Retry(ctx, leased.ID, leased.LeaseToken, time.Hour, "provider timeout"))

	// Item is delayed by the backoff, not immediately visible
	next, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestEveryLeaseCountsAsAnAttempt(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{DocID: "doc1", Ordinal: 0, Text: "text"}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)
	_, err := store.Enqueue(ctx, item)
	require.NoError(t, err)

	leased, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Retry(ctx, leased.ID, leased.LeaseToken, 0, "transient"))

	redelivered, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, 2, redelivered.Attempts)
}

func TestExpiredLeaseRedeliveryCountsAsAnAttempt(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{DocID: "doc1", Ordinal: 0, Text: "text"}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)
	_, err := store.Enqueue(ctx, item)
	require.NoError(t, err)

	// Abandon two leases without settling, as a crashing consumer would
	for i := 1; i <= 2; i++ {
		leased, err := store.Lease(ctx, time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, leased)
		assert.Equal(t, i, leased.Attempts)
		time.Sleep(5 * time.Millisecond)
	}

	leased, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, leased)
	assert.Equal(t, 3, leased.Attempts)
}

func TestDeadLetterLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &types.WorkItem{DocID: "doc1", Ordinal: 0, Text: "text"}
	item.ChunkID = types.DeriveChunkID(item.DocID, item.Ordinal, item.Text)
	_, err := store.Enqueue(ctx, item)
	require.NoError(t, err)

	leased, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.DeadLetter(ctx, leased.ID, leased.LeaseToken, "attempts exhausted"))

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	letters, err := store.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, item.ChunkID, letters[0].Item.ChunkID)
	assert.Equal(t, "attempts exhausted", letters[0].LastError)

	require.NoError(t, store.RequeueDeadLetter(ctx, letters[0].ID))

	letters, err = store.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)

	requeued, err := store.Lease(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, requeued)
	assert.Equal(t, item.ChunkID, requeued.Item.ChunkID)
	assert.Equal(t, 1, requeued.Attempts, "requeue resets the attempt count")
}

func TestVectorSerializationRoundTrip(t *testing.T) {
	vec := []float32{0.1, -0.5, 1.0, 0}
	got, err := deserializeVector(serializeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func embeddingRecord(docID string, ordinal int, text, model string, vec []float32) *types.EmbeddingRecord {
	chunkID := types.DeriveChunkID(docID, ordinal, text)
	return &types.EmbeddingRecord{
		ChunkID: chunkID,
		Vector:  vec,
		Payload: types.Payload{
			DocID:   docID,
			ChunkID: chunkID,
			Text:    text,
			Ordinal: ordinal,
			Model:   model,
		},
	}
}

func TestUpsertEmbeddingIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rec := embeddingRecord("doc1", 0, "text", "model-a", []float32{1, 0, 0})
	require.NoError(t, store.UpsertEmbedding(ctx, rec))
	require.NoError(t, store.UpsertEmbedding(ctx, rec))

	count, err := store.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "replayed upsert must not duplicate")
}

func TestSearchVectorOrderingAndFilter(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEmbedding(ctx, embeddingRecord("doc1", 0, "exact", "model-a", []float32{1, 0, 0})))
	require.NoError(t, store.UpsertEmbedding(ctx, embeddingRecord("doc1", 1, "close", "model-a", []float32{1, 1, 0})))
	require.NoError(t, store.UpsertEmbedding(ctx, embeddingRecord("doc2", 0, "far", "model-a", []float32{0, 0, 1})))
	require.NoError(t, store.UpsertEmbedding(ctx, embeddingRecord("doc3", 0, "other model", "model-b", []float32{1, 0, 0})))

	hits, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, &VectorFilter{Model: "model-a"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact", hits[0].Text)
	assert.Equal(t, "close", hits[1].Text)
	assert.Equal(t, "far", hits[2].Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = store.SearchVector(ctx, []float32{1, 0, 0}, 1, &VectorFilter{Model: "model-a"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "exact", hits[0].Text)

	hits, err = store.SearchVector(ctx, []float32{1, 0, 0}, 10, &VectorFilter{DocID: "doc2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "far", hits[0].Text)
}

func TestSearchVectorTieBreakDeterministic(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Two chunks with identical vectors score identically; ordering must
	// fall back to chunk id
	a := embeddingRecord("doc1", 0, "alpha", "m", []float32{1, 0})
	b := embeddingRecord("doc1", 1, "beta", "m", []float32{1, 0})
	require.NoError(t, store.UpsertEmbedding(ctx, a))
	require.NoError(t, store.UpsertEmbedding(ctx, b))

	want := []string{a.ChunkID, b.ChunkID}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}

	for i := 0; i < 3; i++ {
		hits, err := store.SearchVector(ctx, []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, want[0], hits[0].ChunkID)
		assert.Equal(t, want[1], hits[1].ChunkID)
	}
}

func TestSearchVectorSkipsMismatchedDimensions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEmbedding(ctx, embeddingRecord("doc1", 0, "3d", "m", []float32{1, 0, 0})))
	require.NoError(t, store.UpsertEmbedding(ctx, embeddingRecord("doc1", 1, "2d", "m", []float32{1, 0})))

	hits, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "3d", hits[0].Text)
}

func TestCountDocumentsByStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.RecordDocument(ctx, testDocument("a", "1")))
	require.NoError(t, store.RecordDocument(ctx, testDocument("b", "2")))
	failing := testDocument("c", "3")
	require.NoError(t, store.RecordDocument(ctx, failing))
	require.NoError(t, store.MarkDocumentFailed(ctx, failing.DocID, "oops"))

	counts, err := store.CountDocumentsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[types.DocStatusDiscovered])
	assert.Equal(t, 1, counts[types.DocStatusFailed])

	failed, err := store.ListDocumentsByStatus(ctx, types.DocStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, failing.DocID, failed[0].DocID)
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStorage(ctx, dir+"/test.db")
	require.NoError(t, err)
	require.NoError(t, store.RecordDocument(ctx, testDocument("a", "1")))
	require.NoError(t, store.Close())

	// Reopening applies no migrations and keeps the data
	store, err = NewSQLiteStorage(ctx, dir+"/test.db")
	require.NoError(t, err)
	defer store.Close()

	counts, err := store.CountDocumentsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.DocStatusDiscovered])
}
