package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"atlas-of-us/backend/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedEmbedder memoizes embeddings in Redis. Cache errors are logged and
// fall through to the wrapped embedder.
type CachedEmbedder struct {
	next      Embedder
	rdb       *goredis.Client
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewCachedEmbedder wraps next. namespace separates vectors from different
// embedding models sharing one Redis.
func NewCachedEmbedder(next Embedder, rdb *goredis.Client, namespace string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		next:      next,
		rdb:       rdb,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.Get(),
	}
}

// Embed implements Embedder
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := embeddingCacheKey(c.namespace, text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float64
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			return vec, nil
		}
		c.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key))
	case errors.Is(err, goredis.Nil):
	default:
		c.logger.Warn("Embedding cache read failed", zap.Error(err))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

func embeddingCacheKey(namespace, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + namespace + ":" + hex.EncodeToString(sum[:])
}
