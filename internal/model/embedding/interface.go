// Package embedding 把文本转为定长向量，供语义检索与事实召回使用。
package embedding

import "context"

// Embedder 向量化接口；对同一输入在一个会话内结果确定，需并发安全
type Embedder interface {
	// Embed 返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Dimension 返回向量维度
	Dimension() int
}
