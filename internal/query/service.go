package query

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/vectorpipe/vectorpipe/internal/embedder"
	"github.com/vectorpipe/vectorpipe/internal/vectorindex"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

const (
	// DefaultEmbedTimeout bounds the query embedding call
	DefaultEmbedTimeout = 10 * time.Second
	// DefaultSearchTimeout bounds the index search call
	DefaultSearchTimeout = 10 * time.Second
	// DefaultCacheSize is the result cache capacity
	DefaultCacheSize = 1000
	// DefaultCacheTTL is how long a cached result stays fresh
	DefaultCacheTTL = 60 * time.Second
)

// Config controls query behavior.
type Config struct {
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
	CacheSize     int
	CacheTTL      time.Duration

	// AllowModelMismatch disables filtering results to the current
	// embedding model. Only useful while re-indexing after a model
	// upgrade, when partial results beat none.
	AllowModelMismatch bool
}

// Service answers similarity queries.
type Service struct {
	emb    embedder.Embedder
	index  vectorindex.Index
	group  singleflight.Group
	cache  *expirable.LRU[string, []types.SearchHit]
	config Config

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared context of one in-progress query, canceled when
// the last caller waiting on it goes away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates a query service.
func New(emb embedder.Embedder, index vectorindex.Index, config Config) *Service {
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = DefaultEmbedTimeout
	}
	if config.SearchTimeout <= 0 {
		config.SearchTimeout = DefaultSearchTimeout
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultCacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	return &Service{
		emb:     emb,
		index:   index,
		cache:   expirable.NewLRU[string, []types.SearchHit](config.CacheSize, nil, config.CacheTTL),
		config:  config,
		flights: make(map[string]*flight),
	}
}

// Search validates and answers one query. Concurrent identical queries
// share a single embedding and index call; a caller's cancellation
// propagates into that shared call once no other caller is waiting on it.
func (s *Service) Search(ctx context.Context, req types.QueryRequest) ([]types.SearchHit, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := s.cacheKey(req)
	if hits, ok := s.cache.Get(key); ok {
		return copyHits(hits), nil
	}

	f := s.joinFlight(key)
	defer s.leaveFlight(key, f)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		hits, err := s.search(f.ctx, req)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, hits)
		return hits, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyHits(res.Val.([]types.SearchHit)), nil
	}
}

// joinFlight registers the caller as a waiter on the shared call for key,
// creating the call's context on first join.
func (s *Service) joinFlight(key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &flight{ctx: ctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	return f
}

// leaveFlight drops one waiter. The last waiter out cancels the shared
// context, so an abandoned query stops its embedding and index calls
// instead of running to completion in the background.
func (s *Service) leaveFlight(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		delete(s.flights, key)
		s.group.Forget(key)
	}
}

func (s *Service) search(ctx context.Context, req types.QueryRequest) ([]types.SearchHit, error) {
	embCtx, cancel := context.WithTimeout(ctx, s.config.EmbedTimeout)
	defer cancel()
	emb, err := s.emb.Embed(embCtx, embedder.Request{Text: req.QueryText})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter *vectorindex.Filter
	if !s.config.AllowModelMismatch {
		filter = &vectorindex.Filter{Model: s.emb.Model()}
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
	defer cancel()
	hits, err := s.index.Search(searchCtx, emb.Vector, req.TopN, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return hits, nil
}

// cacheKey identifies a query by content hash, result count, and model,
// so a model change never serves stale cross-model results.
func (s *Service) cacheKey(req types.QueryRequest) string {
	return embedder.ComputeHash(req.QueryText) + ":" + strconv.Itoa(req.TopN) + ":" + s.emb.Model()
}

// copyHits keeps callers from mutating cached or shared slices.
func copyHits(hits []types.SearchHit) []types.SearchHit {
	out := make([]types.SearchHit, len(hits))
	copy(out, hits)
	return out
}
