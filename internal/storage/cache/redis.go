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
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 缓存实现，值为 JSON 数组，过期由 Redis 负责
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 缓存；prefix 为空时使用 "voice-agent:emb"
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "voice-agent:emb"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

// Set 设置缓存
func (s *RedisStore) Set(ctx context.Context, key string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), data, s.ttl).Err()
}

// Get 获取缓存
func (s *RedisStore) Get(ctx context.Context, key string) ([]float64, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Close 关闭客户端
func (s *RedisStore) Close() error {
	return s.client.Close()
}
