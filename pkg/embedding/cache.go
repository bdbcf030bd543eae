package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VectorCache stores embeddings keyed by content hash. Lookups are
// best-effort: a failed cache never fails a request.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

type cachedProvider struct {
	inner EmbeddingProvider
	cache VectorCache
	model string
}

// WithCache wraps a provider so repeated texts skip the embedding API. The
// model name participates in the key so switching providers never serves
// stale vectors.
func WithCache(inner EmbeddingProvider, cache VectorCache, model string) EmbeddingProvider {
	return &cachedProvider{
		inner: inner,
		cache: cache,
		model: model,
	}
}

func (p *cachedProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	key := cacheKey(p.model, taskType, text)
	if vec, ok := p.cache.Get(ctx, key); ok {
		return &EmbeddingResponse{
			Embedding: EmbeddingResponseEmbedding{Values: vec},
		}, nil
	}

	resp, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}

	p.cache.Set(ctx, key, resp.Embedding.Values)
	return resp, nil
}

func cacheKey(model, taskType, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", model, taskType, text)))
	return "embed:" + hex.EncodeToString(sum[:])
}

// RedisVectorCache keeps embeddings in Redis so vectors survive process
// restarts and are shared across instances.
type RedisVectorCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVectorCache(client *redis.Client, ttl time.Duration) *RedisVectorCache {
	return &RedisVectorCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisVectorCache) Get(ctx context.Context, key string) ([]float32, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(payload, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *RedisVectorCache) Set(ctx context.Context, key string, vec []float32) {
	payload, err := json.Marshal(vec)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, payload, c.ttl)
}
