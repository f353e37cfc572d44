package types

import (
	"fmt"
	"strings"
)

// MaxTopN bounds how many results a single query may request.
const MaxTopN = 100

// QueryRequest is an ephemeral similarity query. It is never persisted.
type QueryRequest struct {
	QueryText string `json:"query_text"`
	TopN      int    `json:"top_n"`
}

// Validate rejects malformed queries before any dependency is called.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.QueryText) == "" {
		return fmt.Errorf("%w: query_text must be a non-empty string", ErrValidation)
	}
	if q.TopN <= 0 {
		return fmt.Errorf("%w: top_n must be a positive integer", ErrValidation)
	}
	if q.TopN > MaxTopN {
		return fmt.Errorf("%w: top_n must be <= %d", ErrValidation, MaxTopN)
	}
	return nil
}
