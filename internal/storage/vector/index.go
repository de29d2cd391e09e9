// Package vector 提供事实召回用的向量索引：内存暴力检索与 chromem-go 嵌入式实现。
package vector

import (
	"context"
	"math"
)

// 距离度量
const (
	DistanceCosine    = "cosine"
	DistanceEuclidean = "euclidean"
	DistanceManhattan = "manhattan"
)

// Index 单个向量索引
type Index interface {
	// Add 添加向量；ID 相同则覆盖
	Add(ctx context.Context, vectors []*Vector) error
	// Search 返回与 query 最相似的 topK 个结果，按 Score 降序
	Search(ctx context.Context, query []float64, topK int) ([]*SearchResult, error)
	// Count 当前向量数
	Count() int
}

// Vector 向量数据
type Vector struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"` // 相似度得分，越大越相似
	Metadata map[string]string `json:"metadata"`
}

// Euclidean 欧几里得距离；维度不一致时返回 +Inf
func Euclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Cosine 余弦相似度；维度不一致或零向量时返回 0
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	dotProduct, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Manhattan 曼哈顿距离；维度不一致时返回 +Inf
func Manhattan(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// Similarity 按度量把距离换算为相似度得分
func Similarity(distance string, a, b []float64) float64 {
	switch distance {
	case DistanceEuclidean:
		return 1.0 / (1.0 + Euclidean(a, b))
	case DistanceManhattan:
		return 1.0 / (1.0 + Manhattan(a, b))
	default:
		return Cosine(a, b)
	}
}
