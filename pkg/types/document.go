package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	DocStatusDiscovered DocumentStatus = "discovered"
	DocStatusChunking   DocumentStatus = "chunking"
	DocStatusChunked    DocumentStatus = "chunked"
	DocStatusFailed     DocumentStatus = "failed"
)

// DocIDBytes is the length of the hex-encoded document id.
const DocIDBytes = 16

// Document represents a source document discovered in object storage.
// Status transitions are persisted so repeated polling cycles and multiple
// watcher replicas do not reprocess a completed document.
type Document struct {
	DocID         string
	SourceURI     string
	ContentHash   string // hex SHA-256 of the raw content
	Status        DocumentStatus
	FailureReason string
	IngestedAt    time.Time
	UpdatedAt     time.Time
}

// DeriveDocID computes a stable document id from the storage key and the
// raw content. Identical key+content always yields the same id; updated
// content under the same key yields a new one.
func DeriveDocID(key string, content []byte) string {
	contentSum := sha256.Sum256(content)
	h := sha256.New()
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write(contentSum[:])
	return hex.EncodeToString(h.Sum(nil))[:DocIDBytes]
}

// HashContent returns the hex SHA-256 of raw document content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Validate checks the document fields required before persistence.
func (d *Document) Validate() error {
	if d.DocID == "" {
		return fmt.Errorf("%w: document id is required", ErrValidation)
	}
	if d.SourceURI == "" {
		return fmt.Errorf("%w: source URI is required", ErrValidation)
	}
	switch d.Status {
	case DocStatusDiscovered, DocStatusChunking, DocStatusChunked, DocStatusFailed:
	default:
		return fmt.Errorf("%w: invalid document status %q", ErrValidation, d.Status)
	}
	return nil
}
