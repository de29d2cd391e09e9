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

package vector

import (
	"context"
	"fmt"
	"math"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex 基于 chromem-go 的嵌入式向量索引；向量由调用方的 embedder 提供
type ChromemIndex struct {
	col *chromem.Collection
}

// NewChromemIndex 创建 chromem 集合。path 为空时使用内存数据库；
// 非空时使用持久化数据库，文档写入即落盘，重启后按 path 恢复。
func NewChromemIndex(collection, path string, compress bool) (*ChromemIndex, error) {
	if collection == "" {
		collection = "facts"
	}
	db := chromem.NewDB()
	if path != "" {
		var err error
		if db, err = chromem.NewPersistentDB(path, compress); err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", path, err)
		}
	}
	// 不设置 embedding func，向量由调用方提供；距离使用默认余弦
	col, err := db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{col: col}, nil
}

// Add 实现 Index
func (c *ChromemIndex) Add(ctx context.Context, vectors []*Vector) error {
	for _, v := range vectors {
		doc := chromem.Document{
			ID:        v.ID,
			Content:   v.Content,
			Embedding: toFloat32(v.Values),
			Metadata:  v.Metadata,
		}
		if err := c.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
	}
	return nil
}

// Search 实现 Index；chromem 要求 nResults 不超过集合大小
func (c *ChromemIndex) Search(ctx context.Context, query []float64, topK int) ([]*SearchResult, error) {
	n := c.col.Count()
	if n == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}
	results, err := c.col.QueryEmbedding(ctx, toFloat32(query), topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	out := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, &SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

// Count 实现 Index
func (c *ChromemIndex) Count() int {
	return c.col.Count()
}

// toFloat32 转换并做 L2 归一化，chromem 的余弦实现要求单位向量
func toFloat32(v []float64) []float32 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		if norm > 0 {
			x /= norm
		}
		out[i] = float32(x)
	}
	return out
}
