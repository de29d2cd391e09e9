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
	"errors"
	"fmt"

	"voice-agent/internal/agent/runtime"
	"voice-agent/internal/model/embedding"
	"voice-agent/internal/model/llm"
	"voice-agent/internal/storage/cache"
	"voice-agent/internal/storage/kv"
	"voice-agent/internal/storage/vector"
	"voice-agent/pkg/config"
	"voice-agent/pkg/log"
	"voice-agent/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，cmd 内不写装配逻辑
type Bootstrap struct {
	Config      *config.Config
	Logger      *log.Logger
	Secrets     secrets.Store
	KV          kv.Store
	Checkpoints runtime.CheckpointStore
	Facts       vector.Index
	Embedder    embedding.Embedder
	LLM         llm.Client

	closers []func() error
}

// NewBootstrap 根据配置创建 Bootstrap（Secrets/KV/Checkpoint/Vector/Models）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	cfg.ApplyDefaults()

	logger, err := log.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	b := &Bootstrap{Config: cfg, Logger: logger}

	if b.Secrets, err = secrets.NewStore(cfg.Secrets); err != nil {
		return nil, fmt.Errorf("初始化 secret store 失败: %w", err)
	}
	if err := b.resolveSecrets(ctx); err != nil {
		return nil, err
	}

	if b.KV, err = kv.NewStore(ctx, cfg.Storage.KV); err != nil {
		return nil, fmt.Errorf("初始化键值存储失败: %w", err)
	}
	b.closers = append(b.closers, b.KV.Close)
	if pg, ok := b.KV.(*kv.PostgresStore); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("初始化 long_term_memory 表失败: %w", err)
		}
	}

	if b.Checkpoints, err = b.newCheckpointStore(ctx, cfg.Storage.Checkpoint); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化 checkpoint 存储失败: %w", err)
	}

	if b.Embedder, err = b.newEmbedder(cfg.Model.Embedding); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化 embedding 失败: %w", err)
	}
	if b.Facts, err = vector.NewIndex(cfg.Storage.Vector, b.Embedder.Dimension()); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化事实索引失败: %w", err)
	}

	if b.LLM, err = b.newLLMClient(ctx, cfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化 LLM 失败: %w", err)
	}

	logger.Info("bootstrap 完成",
		"kv", cfg.Storage.KV.Type,
		"checkpoint", cfg.Storage.Checkpoint.Type,
		"vector", cfg.Storage.Vector.Type,
		"embedding", cfg.Model.Embedding.Type,
		"llm_provider", b.LLM.Provider(),
		"llm_model", b.LLM.Model(),
	)
	return b, nil
}

// resolveSecrets 将 secret:// 引用替换为实际值
func (b *Bootstrap) resolveSecrets(ctx context.Context) error {
	refs := []*string{
		&b.Config.Model.LLM.APIKey,
		&b.Config.Model.Embedding.APIKey,
		&b.Config.Storage.KV.DSN,
		&b.Config.Storage.KV.Password,
		&b.Config.Storage.Checkpoint.DSN,
		&b.Config.Storage.Checkpoint.Password,
		&b.Config.Model.Embedding.Cache.Password,
	}
	for _, ref := range refs {
		v, err := secrets.Resolve(ctx, b.Secrets, *ref)
		if err != nil {
			return fmt.Errorf("解析 secret 失败: %w", err)
		}
		*ref = v
	}
	return nil
}

func (b *Bootstrap) newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	base, err := embedding.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return base, nil
	}
	b.closers = append(b.closers, store.Close)
	return embedding.NewCachedEmbedder(base, store, b.Logger.Logger), nil
}

// newLLMClient type=eino 时通过 eino-ext 构造 ChatModel，否则使用 HTTP 客户端；统一包一层限流
func (b *Bootstrap) newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	if cfg.Model.LLM.Type == "eino" {
		client, err = llm.NewEinoClientFromConfig(ctx, cfg.Model.LLM)
	} else {
		client, err = llm.NewClient(cfg.Model.LLM)
	}
	if err != nil {
		return nil, err
	}
	limiter := llm.NewLLMRateLimiter(cfg.RateLimits.LLM, nil)
	return llm.NewRateLimitedClient(client, limiter), nil
}

// Close 释放存储连接
func (b *Bootstrap) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
