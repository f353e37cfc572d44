package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOpenAIModel = string(openai.SmallEmbedding3)

	// Dimensions
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Cache
	DefaultCacheSize = 10000

	// Retry configuration
	MaxAttempts       = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// Environment variables
	EnvProvider     = "VECTORPIPE_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIModel  = "VECTORPIPE_EMBEDDING_MODEL"
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	cache  *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder. The model can be
// overridden through VECTORPIPE_EMBEDDING_MODEL; it defaults to
// text-embedding-3-small.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	model := os.Getenv(EnvOpenAIModel)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		cache:  cache,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, req Request) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	config := DefaultRetryConfig()
	emb, err := retryWithBackoff(ctx, config, func() (*Embedding, error) {
		return o.callAPI(ctx, req.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	emb.Hash = hash
	if o.cache != nil {
		o.cache.Set(hash, emb)
	}
	return emb, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, text string) (*Embedding, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", types.ErrTransient)
	}

	vector := resp.Data[0].Embedding
	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderOpenAI,
		Model:     o.model,
	}, nil
}

// classifyAPIError maps API failures onto the pipeline error taxonomy.
// Rate limits, timeouts, and server errors are transient and retried;
// a 4xx rejecting the content itself is permanent.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode == http.StatusRequestTimeout,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: api error %d: %v", types.ErrTransient, apiErr.HTTPStatusCode, err)
		case apiErr.HTTPStatusCode >= http.StatusBadRequest:
			return fmt.Errorf("%w: api rejected content %d: %v", types.ErrPermanentContent, apiErr.HTTPStatusCode, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Network failures and deadline expiry are retryable.
	return fmt.Errorf("%w: %v", types.ErrTransient, err)
}

func (o *OpenAIProvider) Dimension() int {
	// text-embedding-3-small and -large differ; report the configured
	// model's native size.
	if o.model == string(openai.LargeEmbedding3) {
		return 3072
	}
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
