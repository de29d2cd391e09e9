package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"voice-agent/internal/storage/cache"
)

// CachedEmbedder 以文本哈希为 key 缓存向量，仅对未命中的文本批量调用下游
type CachedEmbedder struct {
	inner  Embedder
	cache  cache.Store
	logger *slog.Logger
}

// NewCachedEmbedder 创建带缓存的 Embedder；store 为 nil 时直接返回 inner
func NewCachedEmbedder(inner Embedder, store cache.Store, logger *slog.Logger) Embedder {
	if store == nil {
		return inner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{inner: inner, cache: store, logger: logger}
}

// Dimension 返回向量维度
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// Embed 实现 Embedder；缓存读写失败只记录告警
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		vec, ok, err := c.cache.Get(ctx, cacheKey(text))
		if err != nil {
			c.logger.Warn("embedding 缓存读取失败", "error", err)
		}
		if ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(vecs) {
			break
		}
		out[i] = vecs[j]
		if err := c.cache.Set(ctx, cacheKey(missTexts[j]), vecs[j]); err != nil {
			c.logger.Warn("embedding 缓存写入失败", "error", err)
		}
	}
	return out, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
