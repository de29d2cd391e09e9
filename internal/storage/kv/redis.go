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

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 实现：每个 namespace 一个 hash，field 为 key，value 为 JSON；HSET 对单 field 原子
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore 创建 Redis 存储；prefix 为空时使用 "voice-agent"
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "voice-agent"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) hashKey(namespace string) string {
	return s.prefix + ":" + namespace
}

// Upsert 实现 Store
func (s *RedisStore) Upsert(ctx context.Context, namespace, key string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s/%s: %w", namespace, key, err)
	}
	return s.client.HSet(ctx, s.hashKey(namespace), key, raw).Err()
}

// Get 实现 Store
func (s *RedisStore) Get(ctx context.Context, namespace, key string) (map[string]any, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(namespace), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(raw)
}

// SearchContains 实现 Store；HSCAN 遍历后在客户端匹配字符串叶子值
func (s *RedisStore) SearchContains(ctx context.Context, namespace, substring string) ([]Record, error) {
	needle := strings.ToLower(substring)
	var out []Record
	err := s.scan(ctx, namespace, func(key, value string) error {
		data, err := decode([]byte(value))
		if err != nil {
			return err
		}
		if containsValue(data, needle) {
			out = append(out, Record{Namespace: namespace, Key: key, Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Keys 实现 Store
func (s *RedisStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	var keys []string
	err := s.scan(ctx, namespace, func(key, _ string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) scan(ctx context.Context, namespace string, fn func(key, value string) error) error {
	var cursor uint64
	for {
		pairs, next, err := s.client.HScan(ctx, s.hashKey(namespace), cursor, "", 100).Result()
		if err != nil {
			return err
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			if err := fn(pairs[i], pairs[i+1]); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close 关闭客户端
func (s *RedisStore) Close() error {
	return s.client.Close()
}
