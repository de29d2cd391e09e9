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
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voice-agent/pkg/config"
)

// NewCache 根据配置创建向量缓存；type 为 none 时返回 nil
func NewCache(cfg config.CacheConfig) (Store, error) {
	ttl, err := parseTTL(cfg.TTL)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(ttl), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		return NewRedisStore(client, cfg.Prefix, ttl), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("不支持的缓存类型: %s", cfg.Type)
	}
}

func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("无效的缓存 ttl %q: %w", s, err)
	}
	return d, nil
}
