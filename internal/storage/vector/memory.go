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
	"sort"
	"sync"
)

// MemoryIndex 内存向量索引，暴力检索
type MemoryIndex struct {
	dimension int
	distance  string
	vectors   map[string]*Vector
	mu        sync.RWMutex
}

// NewMemoryIndex 创建内存索引；dimension<=0 时以首个向量维度为准
func NewMemoryIndex(dimension int, distance string) *MemoryIndex {
	if distance == "" {
		distance = DistanceCosine
	}
	return &MemoryIndex{
		dimension: dimension,
		distance:  distance,
		vectors:   make(map[string]*Vector),
	}
}

// Add 添加向量
func (s *MemoryIndex) Add(ctx context.Context, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, vector := range vectors {
		if s.dimension <= 0 {
			s.dimension = len(vector.Values)
		}
		if len(vector.Values) != s.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector.Values), s.dimension)
		}
		cp := *vector
		cp.Values = append([]float64(nil), vector.Values...)
		s.vectors[vector.ID] = &cp
	}
	return nil
}

// Search 搜索向量
func (s *MemoryIndex) Search(ctx context.Context, query []float64, topK int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), s.dimension)
	}

	results := make([]*SearchResult, 0, len(s.vectors))
	for id, vector := range s.vectors {
		results = append(results, &SearchResult{
			ID:       id,
			Content:  vector.Content,
			Score:    Similarity(s.distance, query, vector.Values),
			Metadata: vector.Metadata,
		})
	}

	// 按相似度排序，同分按 ID 保证稳定
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count 当前向量数
func (s *MemoryIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
