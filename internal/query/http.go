package query

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// searchResponse is the success envelope.
type searchResponse struct {
	Results []types.SearchHit `json:"results"`
}

// errorResponse is the failure envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the query service over HTTP.
type Server struct {
	service *Service
	mux     *http.ServeMux
}

// NewServer builds the HTTP surface for a query service.
func NewServer(service *Service) *Server {
	s := &Server{service: service, mux: http.NewServeMux()}
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hits, err := s.service.Search(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}
	if hits == nil {
		hits = []types.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: hits})
}

func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case types.IsRetryable(err), errors.Is(err, context.Canceled):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "dependency unavailable, retry shortly")
	default:
		log.Printf("query: search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := s.service.index.Count(ctx)
	if err != nil {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "vector index unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"vectors": count,
		"model":   s.service.emb.Model(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("query: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
