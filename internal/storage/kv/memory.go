package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore 内存键值存储实现；值经 JSON 往返拷贝，形态与持久化后端一致
type MemoryStore struct {
	data map[string]map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryStore 创建新的内存键值存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string][]byte),
	}
}

// Upsert 实现 Store
func (s *MemoryStore) Upsert(ctx context.Context, namespace, key string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s/%s: %w", namespace, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = raw
	return nil
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, namespace, key string) (map[string]any, error) {
	s.mu.RLock()
	raw, ok := s.data[namespace][key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(raw)
}

// SearchContains 实现 Store
func (s *MemoryStore) SearchContains(ctx context.Context, namespace, substring string) ([]Record, error) {
	needle := strings.ToLower(substring)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, key := range sortedKeys(s.data[namespace]) {
		data, err := decode(s.data[namespace][key])
		if err != nil {
			return nil, err
		}
		if containsValue(data, needle) {
			out = append(out, Record{Namespace: namespace, Key: key, Data: data})
		}
	}
	return out, nil
}

// Keys 实现 Store
func (s *MemoryStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.data[namespace]), nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decode(raw []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
