// Package chunker splits extracted document text into paragraph chunks
// for embedding and search.
//
// Paragraphs are delimited by blank lines, the natural retrieval unit for
// prose. Each chunk is trimmed, non-empty, and assigned a strictly
// increasing ordinal starting at 0 in document order. Degenerate input
// (empty document, single giant paragraph) yields a well-formed sequence
// of length 0 or 1 rather than an error.
//
//	c := chunker.New()
//	chunks := c.Split(docID, text)
//	for _, ch := range chunks {
//	    fmt.Printf("%d: %s\n", ch.Ordinal, ch.ChunkID)
//	}
package chunker
