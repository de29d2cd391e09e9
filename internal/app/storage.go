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

package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"voice-agent/internal/agent/runtime"
	"voice-agent/pkg/config"
)

// newCheckpointStore 按 storage.checkpoint.type 创建 CheckpointStore（memory | postgres | redis | none）
func (b *Bootstrap) newCheckpointStore(ctx context.Context, cfg config.KVConfig) (runtime.CheckpointStore, error) {
	switch cfg.Type {
	case "", "memory":
		return runtime.NewCheckpointStoreMem(runtime.DefaultCheckpointRetention), nil
	case "none":
		return nil, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres checkpoint 存储需要 dsn")
		}
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		store := runtime.NewCheckpointStorePg(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("初始化 conversation_checkpoints 表失败: %w", err)
		}
		return store, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		return runtime.NewCheckpointStoreRedis(client, cfg.Prefix, runtime.DefaultCheckpointRetention), nil
	default:
		return nil, fmt.Errorf("不支持的 checkpoint 存储类型: %s", cfg.Type)
	}
}
