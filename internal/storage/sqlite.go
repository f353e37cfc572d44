package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// querier abstracts *sql.DB and *sql.Tx so operations can run either
// standalone or inside a transaction
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStorage implements Storage backed by a SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at the given path
// and applies pending migrations
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps lease claims and transactional publishes
	// serialized and avoids SQLITE_BUSY under concurrent workers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", pragma, err)
		}
	}

	return db, nil
}

// Close closes the underlying database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// RecordDocument inserts a document in the discovered state. If a document
// with the same ID already exists the call is a no-op, so repeated discovery
// of unchanged content never resets status.
func (s *SQLiteStorage) RecordDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	now := nowMillis()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, source_uri, content_hash, status, ingested_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO NOTHING`,
		doc.DocID, doc.SourceURI, doc.ContentHash, string(types.DocStatusDiscovered), now, now)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID
func (s *SQLiteStorage) GetDocument(ctx context.Context, docID string) (*types.Document, error) {
	return getDocumentWithQuerier(ctx, s.db, docID)
}

func getDocumentWithQuerier(ctx context.Context, q querier, docID string) (*types.Document, error) {
	var doc types.Document
	var status string
	var ingestedMs, updatedMs int64
	err := q.QueryRowContext(ctx, `
		SELECT doc_id, source_uri, content_hash, status, failure_reason, ingested_at_ms, updated_at_ms
		FROM documents WHERE doc_id = ?`, docID).Scan(
		&doc.DocID, &doc.SourceURI, &doc.ContentHash, &status, &doc.FailureReason, &ingestedMs, &updatedMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc.Status = types.DocumentStatus(status)
	doc.IngestedAt = time.UnixMilli(ingestedMs)
	doc.UpdatedAt = time.UnixMilli(updatedMs)
	return &doc, nil
}

// ClaimDocument atomically transitions a document to chunking. A claim
// succeeds when the document is in discovered, or when it is stuck in
// chunking since before staleBefore (a crashed worker's claim). Returns
// false when another worker holds a fresh claim or processing is complete.
func (s *SQLiteStorage) ClaimDocument(ctx context.Context, docID string, staleBefore time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at_ms = ?
		WHERE doc_id = ?
		  AND (status = ? OR (status = ? AND updated_at_ms < ?))`,
		string(types.DocStatusChunking), nowMillis(),
		docID,
		string(types.DocStatusDiscovered),
		string(types.DocStatusChunking), staleBefore.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to claim document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n > 0, nil
}

// ReleaseDocument returns a chunking document to discovered so another
// worker can pick it up
func (s *SQLiteStorage) ReleaseDocument(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at_ms = ?
		WHERE doc_id = ? AND status = ?`,
		string(types.DocStatusDiscovered), nowMillis(),
		docID, string(types.DocStatusChunking))
	if err != nil {
		return fmt.Errorf("failed to release document: %w", err)
	}
	return nil
}

// MarkDocumentFailed records a permanent failure with its reason
func (s *SQLiteStorage) MarkDocumentFailed(ctx context.Context, docID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, failure_reason = ?, updated_at_ms = ?
		WHERE doc_id = ?`,
		string(types.DocStatusFailed), reason, nowMillis(), docID)
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	return nil
}

// ResetFailedDocument moves a failed document back to discovered for
// operator-driven reprocessing
func (s *SQLiteStorage) ResetFailedDocument(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, failure_reason = '', updated_at_ms = ?
		WHERE doc_id = ? AND status = ?`,
		string(types.DocStatusDiscovered), nowMillis(),
		docID, string(types.DocStatusFailed))
	if err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s not in failed state: %w", docID, ErrNotFound)
	}
	return nil
}

// ListDocumentsByStatus returns all documents in the given state
func (s *SQLiteStorage) ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, source_uri, content_hash, status, failure_reason, ingested_at_ms, updated_at_ms
		FROM documents WHERE status = ? ORDER BY doc_id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		var doc types.Document
		var st string
		var ingestedMs, updatedMs int64
		if err := rows.Scan(&doc.DocID, &doc.SourceURI, &doc.ContentHash, &st, &doc.FailureReason, &ingestedMs, &updatedMs); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Status = types.DocumentStatus(st)
		doc.IngestedAt = time.UnixMilli(ingestedMs)
		doc.UpdatedAt = time.UnixMilli(updatedMs)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// CountDocumentsByStatus returns document counts keyed by status
func (s *SQLiteStorage) CountDocumentsByStatus(ctx context.Context) (map[types.DocumentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.DocumentStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[types.DocumentStatus(status)] = count
	}
	return counts, rows.Err()
}

// PublishChunks durably stores a document's chunks and their queue items,
// then marks the document chunked, all within one transaction. The document
// never reaches chunked unless every chunk row and queue item committed.
// Queue items dedupe on chunk_id, so republishing after a partial failure
// cannot produce duplicate pending work.
func (s *SQLiteStorage) PublishChunks(ctx context.Context, docID string, chunks []types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nowMillis()
	for i := range chunks {
		chunk := &chunks[i]
		if err := chunk.Validate(); err != nil {
			return err
		}
		if chunk.DocID != docID {
			return fmt.Errorf("%w: chunk %s belongs to document %s, not %s",
				types.ErrConsistency, chunk.ChunkID, chunk.DocID, docID)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (chunk_id, doc_id, ordinal, text, status, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO NOTHING`,
			chunk.ChunkID, chunk.DocID, chunk.Ordinal, chunk.Text,
			string(types.ChunkStatusPublished), now); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO queue_items (chunk_id, doc_id, ordinal, text, visible_at_ms, created_at_ms)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO NOTHING`,
			chunk.ChunkID, chunk.DocID, chunk.Ordinal, chunk.Text, now, now); err != nil {
			return fmt.Errorf("failed to enqueue chunk: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at_ms = ?
		WHERE doc_id = ? AND status = ?`,
		string(types.DocStatusChunked), now,
		docID, string(types.DocStatusChunking))
	if err != nil {
		return fmt.Errorf("failed to mark document chunked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		cur, gerr := getDocumentWithQuerier(ctx, tx, docID)
		if gerr != nil {
			return gerr
		}
		return fmt.Errorf("%w: document %s in state %s, expected %s",
			types.ErrConsistency, docID, cur.Status, types.DocStatusChunking)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk by ID
func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error) {
	var chunk types.Chunk
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, doc_id, ordinal, text, status
		FROM chunks WHERE chunk_id = ?`, chunkID).Scan(
		&chunk.ChunkID, &chunk.DocID, &chunk.Ordinal, &chunk.Text, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	chunk.Status = types.ChunkStatus(status)
	return &chunk, nil
}

// ListChunksByDocument returns a document's chunks in ordinal order
func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, docID string) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, doc_id, ordinal, text, status
		FROM chunks WHERE doc_id = ? ORDER BY ordinal`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var status string
		if err := rows.Scan(&chunk.ChunkID, &chunk.DocID, &chunk.Ordinal, &chunk.Text, &status); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Status = types.ChunkStatus(status)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// MarkChunkEmbedded transitions a chunk to embedded
func (s *SQLiteStorage) MarkChunkEmbedded(ctx context.Context, chunkID string) error {
	return s.setChunkStatus(ctx, chunkID, types.ChunkStatusEmbedded)
}

// MarkChunkFailed transitions a chunk to failed
func (s *SQLiteStorage) MarkChunkFailed(ctx context.Context, chunkID string) error {
	return s.setChunkStatus(ctx, chunkID, types.ChunkStatusFailed)
}

func (s *SQLiteStorage) setChunkStatus(ctx context.Context, chunkID string, status types.ChunkStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks SET status = ?, updated_at_ms = ? WHERE chunk_id = ?`,
		string(status), nowMillis(), chunkID)
	if err != nil {
		return fmt.Errorf("failed to update chunk status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}
	return nil
}

// CountChunksByStatus returns chunk counts keyed by status
func (s *SQLiteStorage) CountChunksByStatus(ctx context.Context) (map[types.ChunkStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM chunks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.ChunkStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[types.ChunkStatus(status)] = count
	}
	return counts, rows.Err()
}

// Enqueue adds a work item to the queue. Returns false when an item with
// the same chunk ID is already queued.
func (s *SQLiteStorage) Enqueue(ctx context.Context, item *types.WorkItem) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, err
	}

	now := nowMillis()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_items (chunk_id, doc_id, ordinal, text, visible_at_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO NOTHING`,
		item.ChunkID, item.DocID, item.Ordinal, item.Text, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return n > 0, nil
}

// Lease claims the oldest visible queue item for exclusive processing.
// The item stays invisible to other consumers until leaseFor elapses or it
// is acked, retried, or dead-lettered. Returns nil when nothing is ready.
// Each lease counts as a delivery attempt, so items whose consumer crashes
// without settling still run up the attempt count and can be bounded.
func (s *SQLiteStorage) Lease(ctx context.Context, leaseFor time.Duration) (*QueueItem, error) {
	now := nowMillis()
	token := uuid.NewString()

	// UPDATE...RETURNING would be nicer but is not available on every
	// driver version, so claim by token then read back
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET lease_token = ?, leased_until_ms = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM queue_items
			WHERE visible_at_ms <= ? AND leased_until_ms <= ?
			ORDER BY id LIMIT 1
		)`,
		token, now+leaseFor.Milliseconds(), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read lease result: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	var item QueueItem
	var visibleMs, leasedMs, createdMs int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id, chunk_id, doc_id, ordinal, text, attempts, lease_token, visible_at_ms, leased_until_ms, created_at_ms
		FROM queue_items WHERE lease_token = ?`, token).Scan(
		&item.ID, &item.Item.ChunkID, &item.Item.DocID, &item.Item.Ordinal, &item.Item.Text,
		&item.Attempts, &item.LeaseToken, &visibleMs, &leasedMs, &createdMs)
	if err != nil {
		return nil, fmt.Errorf("failed to read leased item: %w", err)
	}
	item.VisibleAt = time.UnixMilli(visibleMs)
	item.LeasedUntil = time.UnixMilli(leasedMs)
	item.CreatedAt = time.UnixMilli(createdMs)
	return &item, nil
}

// Ack removes a leased item from the queue. The token guards against a
// consumer acking an item whose lease already expired and was re-leased.
func (s *SQLiteStorage) Ack(ctx context.Context, id int64, token string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_items WHERE id = ? AND lease_token = ?`, id, token)
	if err != nil {
		return fmt.Errorf("failed to ack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item %d with valid lease: %w", id, ErrNotFound)
	}
	return nil
}

// Retry releases a leased item back to the queue with visibility delayed
// by the backoff duration. The attempt was already counted at lease time.
func (s *SQLiteStorage) Retry(ctx context.Context, id int64, token string, delay time.Duration, cause string) error {
	now := nowMillis()
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET lease_token = '', leased_until_ms = 0,
		    visible_at_ms = ?, last_error = ?
		WHERE id = ? AND lease_token = ?`,
		now+delay.Milliseconds(), cause, id, token)
	if err != nil {
		return fmt.Errorf("failed to retry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item %d with valid lease: %w", id, ErrNotFound)
	}
	return nil
}

// DeadLetter moves a leased item to the dead letter table for operator
// inspection and removes it from the live queue
func (s *SQLiteStorage) DeadLetter(ctx context.Context, id int64, token string, cause string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (chunk_id, doc_id, ordinal, text, attempts, last_error, dead_lettered_at_ms)
		SELECT chunk_id, doc_id, ordinal, text, attempts, ?, ?
		FROM queue_items WHERE id = ? AND lease_token = ?`,
		cause, nowMillis(), id, token)
	if err != nil {
		return fmt.Errorf("failed to dead-letter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item %d with valid lease: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM queue_items WHERE id = ? AND lease_token = ?`, id, token); err != nil {
		return fmt.Errorf("failed to remove dead-lettered item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dead-letter: %w", err)
	}
	return nil
}

// QueueDepth returns the number of items in the live queue, leased or not
func (s *SQLiteStorage) QueueDepth(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return count, nil
}

// ListDeadLetters returns the most recent dead letters up to limit
func (s *SQLiteStorage) ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chunk_id, doc_id, ordinal, text, attempts, last_error, dead_lettered_at_ms
		FROM dead_letters ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []*DeadLetter
	for rows.Next() {
		var dl DeadLetter
		var deadMs int64
		if err := rows.Scan(&dl.ID, &dl.Item.ChunkID, &dl.Item.DocID, &dl.Item.Ordinal, &dl.Item.Text,
			&dl.Attempts, &dl.LastError, &deadMs); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		dl.DeadLetteredAt = time.UnixMilli(deadMs)
		letters = append(letters, &dl)
	}
	return letters, rows.Err()
}

// RequeueDeadLetter moves a dead letter back onto the live queue with a
// reset attempt count
func (s *SQLiteStorage) RequeueDeadLetter(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := nowMillis()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO queue_items (chunk_id, doc_id, ordinal, text, visible_at_ms, created_at_ms)
		SELECT chunk_id, doc_id, ordinal, text, ?, ?
		FROM dead_letters WHERE id = ?
		ON CONFLICT(chunk_id) DO NOTHING`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("failed to requeue dead letter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the dead letter does not exist or its chunk is already
		// queued again; distinguish so the operator sees the right error
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM dead_letters WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check dead letter: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("dead letter %d: %w", id, ErrNotFound)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove dead letter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit requeue: %w", err)
	}
	return nil
}
