// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"context"

	einoembed "github.com/cloudwego/eino/components/embedding"
)

// EinoEmbedder 将任意 eino/components/embedding.Embedder 适配为 Embedder
type EinoEmbedder struct {
	inner     einoembed.Embedder
	dimension int
}

// NewEinoEmbedder 创建适配器；dimension 仅用于报告
func NewEinoEmbedder(inner einoembed.Embedder, dimension int) *EinoEmbedder {
	return &EinoEmbedder{inner: inner, dimension: dimension}
}

// Embed 实现 Embedder
func (e *EinoEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e.inner == nil || len(texts) == 0 {
		return nil, nil
	}
	return e.inner.EmbedStrings(ctx, texts)
}

// Dimension 返回向量维度
func (e *EinoEmbedder) Dimension() int { return e.dimension }

// EinoAdapter 反向适配：把 Embedder 暴露为 eino Embedder，便于接入 eino 组件
type EinoAdapter struct {
	embedder Embedder
}

// NewEinoAdapter 创建 eino 适配器
func NewEinoAdapter(embedder Embedder) *EinoAdapter {
	return &EinoAdapter{embedder: embedder}
}

// EmbedStrings 实现 eino/components/embedding.Embedder，忽略 opts
func (a *EinoAdapter) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	if a.embedder == nil || len(texts) == 0 {
		return nil, nil
	}
	return a.embedder.Embed(ctx, texts)
}

var _ einoembed.Embedder = (*EinoAdapter)(nil)
