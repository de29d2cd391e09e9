package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultHashDimension HashEmbedder 默认维度
const DefaultHashDimension = 64

// HashEmbedder 基于词哈希的确定性 embedder，无需外部服务；开发与测试默认使用。
// 每个小写词以 FNV-1a 为种子经 LCG 展开为一个向量，累加后做 L2 归一化，
// 共享词越多的文本距离越近。
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder 创建 HashEmbedder；dimension<=0 使用 DefaultHashDimension
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Dimension 返回向量维度
func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed 实现 Embedder
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.dimension)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(word))
		seed := f.Sum64()
		for j := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			// 取高 53 位映射到 [-1, 1)
			vec[j] += float64(seed>>11)/float64(1<<53)*2 - 1
		}
	}
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for j := range vec {
		vec[j] /= norm
	}
	return vec
}

func isSeparator(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	case r > 127:
		return r == '，' || r == '。' || r == '？' || r == '！' || r == '　'
	default:
		return true
	}
}
