package chunker

import (
	"strings"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// Chunker creates paragraph chunks from extracted document text.
type Chunker struct{}

// New creates a new Chunker instance.
func New() *Chunker {
	return &Chunker{}
}

// Split divides text into blank-line-delimited paragraphs and assigns
// contiguous ordinals starting at 0. Whitespace-only paragraphs are
// dropped; ordinals are assigned after dropping so the sequence stays
// contiguous. Chunk ids are derived from (docID, ordinal, text), so
// splitting the same text twice yields identical chunks.
func (c *Chunker) Split(docID, text string) []types.Chunk {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []types.Chunk
	for _, para := range splitParagraphs(normalized) {
		ordinal := len(chunks)
		chunks = append(chunks, types.Chunk{
			ChunkID: types.DeriveChunkID(docID, ordinal, para),
			DocID:   docID,
			Ordinal: ordinal,
			Text:    para,
			Status:  types.ChunkStatusPublished,
		})
	}
	return chunks
}

// splitParagraphs splits on runs of blank lines. A line containing only
// spaces or tabs counts as blank.
func splitParagraphs(text string) []string {
	var paras []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		para := strings.TrimSpace(strings.Join(current, "\n"))
		if para != "" {
			paras = append(paras, para)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paras
}
