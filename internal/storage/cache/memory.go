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

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 内存缓存存储实现
type MemoryStore struct {
	items map[string]*cacheItem
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

// cacheItem 缓存项
type cacheItem struct {
	value      []float64
	expiration time.Time // 零值表示不过期
}

// NewMemoryStore 创建内存缓存；ttl<=0 表示不过期
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, vec []float64) error {
	item := &cacheItem{value: append([]float64(nil), vec...)}
	if s.ttl > 0 {
		item.expiration = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

// Get 获取缓存
func (s *MemoryStore) Get(ctx context.Context, key string) ([]float64, bool, error) {
	s.mu.RLock()
	item, exists := s.items[key]
	s.mu.RUnlock()
	if !exists {
		return nil, false, nil
	}
	if !item.expiration.IsZero() && s.now().After(item.expiration) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]float64(nil), item.value...), true, nil
}

// Len 当前缓存项数（含未清理的过期项）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close 关闭缓存连接
func (s *MemoryStore) Close() error {
	return nil
}
