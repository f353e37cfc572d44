package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorpipe/vectorpipe/internal/chunker"
	"github.com/vectorpipe/vectorpipe/internal/objstore"
	"github.com/vectorpipe/vectorpipe/internal/publisher"
	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

func newTestWatcher(t *testing.T) (*Watcher, *objstore.MemoryStore, *storage.SQLiteStorage) {
	t.Helper()
	ledger, err := storage.NewSQLiteStorage(context.Background(), t.TempDir()+"/watch.db")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	store := objstore.NewMemoryStore()
	w := New(store, ledger, chunker.New(), publisher.New(ledger, 0), Config{
		PollInterval:    time.Hour,
		StaleClaimAfter: time.Hour,
	})
	return w, store, ledger
}

func TestCycleIngestsDocuments(t *testing.T) {
	w, store, ledger := newTestWatcher(t)
	ctx := context.Background()

	content := []byte("Paragraph A.\n\nParagraph B.")
	require.NoError(t, store.Put(ctx, "docs/a.txt", content))

	require.NoError(t, w.Cycle(ctx))

	docID := types.DeriveDocID("docs/a.txt", content)
	doc, err := ledger.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusChunked, doc.Status)

	chunks, err := ledger.ListChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Paragraph A.", chunks[0].Text)
	assert.Equal(t, "Paragraph B.", chunks[1].Text)

	depth, err := ledger.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestRepeatedCyclesDoNotReprocess(t *testing.T) {
	w, store, ledger := newTestWatcher(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "docs/a.txt", []byte("content")))

	require.NoError(t, w.Cycle(ctx))
	require.NoError(t, w.Cycle(ctx))
	require.NoError(t, w.Cycle(ctx))

	depth, err := ledger.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth, "repeated polling must not duplicate work")
}

func TestUpdatedContentIsANewDocument(t *testing.T) {
	w, store, ledger := newTestWatcher(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "docs/a.txt", []byte("version one")))
	require.NoError(t, w.Cycle(ctx))

	require.NoError(t, store.Put(ctx, "docs/a.txt", []byte("version two")))
	require.NoError(t, w.Cycle(ctx))

	counts, err := ledger.CountDocumentsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[types.DocStatusChunked])
}

func TestInvalidUTF8FailsPermanently(t *testing.T) {
	w, store, ledger := newTestWatcher(t)
	ctx := context.Background()

	content := []byte{0xff, 0xfe, 0x00, 0x80}
	require.NoError(t, store.Put(ctx, "docs/bad.bin", content))

	require.NoError(t, w.Cycle(ctx))

	docID := types.DeriveDocID("docs/bad.bin", content)
	doc, err := ledger.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusFailed, doc.Status)
	assert.Contains(t, doc.FailureReason, "UTF-8")

	depth, err := ledger.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	// Failed documents are not retried on later cycles
	require.NoError(t, w.Cycle(ctx))
	doc, err = ledger.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusFailed, doc.Status)
}

func TestEmptyDocumentCompletesWithNoChunks(t *testing.T) {
	w, store, ledger := newTestWatcher(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "docs/empty.txt", []byte("")))
	require.NoError(t, w.Cycle(ctx))

	docID := types.DeriveDocID("docs/empty.txt", nil)
	doc, err := ledger.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, types.DocStatusChunked, doc.Status)

	depth, err := ledger.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestPrefixRestrictsIngestion(t *testing.T) {
	ledger, err := storage.NewSQLiteStorage(context.Background(), t.TempDir()+"/watch.db")
	require.NoError(t, err)
	defer ledger.Close()

	store := objstore.NewMemoryStore()
	w := New(store, ledger, chunker.New(), publisher.New(ledger, 0), Config{
		PollInterval:    time.Hour,
		StaleClaimAfter: time.Hour,
		Prefix:          "inbox/",
	})

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "inbox/a.txt", []byte("in")))
	require.NoError(t, store.Put(ctx, "archive/b.txt", []byte("out")))

	require.NoError(t, w.Cycle(ctx))

	counts, err := ledger.CountDocumentsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.DocStatusChunked])
}

func TestRunStopsOnContextCancel(t *testing.T) {
	w, _, _ := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
