package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	first, err := provider.Embed(context.Background(), Request{Text: "Paragraph A."})
	require.NoError(t, err)
	second, err := provider.Embed(context.Background(), Request{Text: "Paragraph A."})
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)
	assert.Len(t, first.Vector, LocalDimension)
	assert.Equal(t, LocalModelName, first.Model)
}

func TestLocalProvider_DistinctTexts(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	a, err := provider.Embed(context.Background(), Request{Text: "alpha"})
	require.NoError(t, err)
	b, err := provider.Embed(context.Background(), Request{Text: "beta"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Vector, b.Vector)
}

func TestLocalProvider_UnitNorm(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := provider.Embed(context.Background(), Request{Text: "normalize me"})
	require.NoError(t, err)

	var norm float64
	for _, v := range emb.Vector {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-4)
}

func TestLocalProvider_EmptyText(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), Request{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProvider_CanceledContext(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = provider.Embed(ctx, Request{Text: "anything"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache_HitReturnsCopy(t *testing.T) {
	cache := NewCache(10)
	hash := ComputeHash("text")
	cache.Set(hash, &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Model: "m"})

	got, ok := cache.Get(hash)
	require.True(t, ok)

	got.Vector[0] = 99
	again, ok := cache.Get(hash)
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache(10)
	_, ok := cache.Get(ComputeHash("never stored"))
	assert.False(t, ok)
}

func TestLocalProvider_UsesCache(t *testing.T) {
	cache := NewCache(10)
	provider, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), Request{Text: "cached"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	// Second call must be served from cache.
	emb, err := provider.Embed(context.Background(), Request{Text: "cached"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())
	assert.Len(t, emb.Vector, LocalDimension)
}

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	config := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	result, err := retryWithBackoff(context.Background(), config, func() (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("%w: flaky", types.ErrTransient)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	config := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	_, err := retryWithBackoff(context.Background(), config, func() (string, error) {
		calls++
		return "", fmt.Errorf("%w: still down", types.ErrTransient)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_PermanentErrorNotRetried(t *testing.T) {
	config := DefaultRetryConfig()

	calls := 0
	_, err := retryWithBackoff(context.Background(), config, func() (string, error) {
		calls++
		return "", fmt.Errorf("%w: bad content", types.ErrPermanentContent)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPermanentContent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	config := RetryConfig{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := retryWithBackoff(ctx, config, func() (string, error) {
		calls++
		cancel()
		return "", fmt.Errorf("%w: slow", types.ErrTransient)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "mystery"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNewFromEnv_ExplicitLocal(t *testing.T) {
	t.Setenv(EnvProvider, "local")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestNewFromEnv_DefaultsToLocalWithoutKeys(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvProvider, "LOCAL")
	assert.Equal(t, ProviderLocal, DetectProvider())
}

func TestClassifyAPIError_Timeout(t *testing.T) {
	err := classifyAPIError(errors.New("dial tcp: i/o timeout"))
	assert.True(t, types.IsRetryable(err))
}

func TestCosineOfIdenticalLocalVectorsIsOne(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	a, err := provider.Embed(context.Background(), Request{Text: "same text"})
	require.NoError(t, err)
	b, err := provider.Embed(context.Background(), Request{Text: "same text"})
	require.NoError(t, err)

	var dot float64
	for i := range a.Vector {
		dot += float64(a.Vector[i]) * float64(b.Vector[i])
	}
	assert.InDelta(t, 1.0, dot, 1e-4)
	assert.False(t, math.IsNaN(dot))
}
