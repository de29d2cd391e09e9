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

// Package memory 管理两级记忆：有界短期缓冲与经由键值存储的长期记忆，
// 并提供基于向量距离的语义检索与线程 ID 分配。
//
// 存储故障在本包内捕获、记录并降级为空结果，不向编排层传播。
package memory

import (
	"context"
	"errors"
	"log/slog"

	"voice-agent/internal/agent/state"
	"voice-agent/internal/model/embedding"
	"voice-agent/internal/storage/kv"
	"voice-agent/internal/storage/vector"
	verrors "voice-agent/pkg/errors"
	"voice-agent/pkg/metrics"
)

// 持久化布局中的 namespace
const (
	NamespaceSessionLogs = "session_logs"
	NamespaceThreads     = "threads"
	NamespaceResearch    = "research_results"
	NamespaceLongTerm    = "long_term_memory"
)

// 语义检索默认参数
const (
	DefaultSearchK     = 3
	DefaultMaxDistance = 0.8
)

// DefaultKeywords 触发长期记忆提升的关键词
var DefaultKeywords = []string{"remember", "important", "save", "profile", "preference"}

// Manager 记忆管理器；并发安全，可被多个 thread 共享
type Manager struct {
	store       kv.Store
	embedder    embedding.Embedder
	facts       vector.Index
	bound       int
	keywords    []string
	searchK     int
	maxDistance float64
	logger      *slog.Logger
}

// Option 配置 Manager
type Option func(*Manager)

// WithBound 设置短期记忆上限
func WithBound(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.bound = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFactIndex 设置长期事实的向量索引，nil 表示不做事实召回
func WithFactIndex(idx vector.Index) Option {
	return func(m *Manager) { m.facts = idx }
}

// WithKeywords 设置提升关键词
func WithKeywords(keywords []string) Option {
	return func(m *Manager) {
		if len(keywords) > 0 {
			m.keywords = append([]string(nil), keywords...)
		}
	}
}

// WithSearchDefaults 设置 SemanticSearch 的默认 k 与距离阈值
func WithSearchDefaults(k int, maxDistance float64) Option {
	return func(m *Manager) {
		if k > 0 {
			m.searchK = k
		}
		if maxDistance > 0 {
			m.maxDistance = maxDistance
		}
	}
}

// NewManager 创建记忆管理器
func NewManager(store kv.Store, embedder embedding.Embedder, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		embedder:    embedder,
		bound:       state.DefaultShortTermBound,
		keywords:    DefaultKeywords,
		searchK:     DefaultSearchK,
		maxDistance: DefaultMaxDistance,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bound 短期记忆上限
func (m *Manager) Bound() int { return m.bound }

// Persist upsert 到键值存储；(namespace, key) 后写覆盖。
// 错误返回给调用方用于记录，已计入存储故障指标。
func (m *Manager) Persist(ctx context.Context, namespace, key string, data map[string]any) error {
	if err := m.store.Upsert(ctx, namespace, key, data); err != nil {
		return m.storageFault(ctx, "persist", err, "namespace", namespace, "key", key)
	}
	return nil
}

// Retrieve 点查；未命中或故障时返回空 map，从不返回错误
func (m *Manager) Retrieve(ctx context.Context, namespace, key string) map[string]any {
	data, err := m.store.Get(ctx, namespace, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			_ = m.storageFault(ctx, "retrieve", err, "namespace", namespace, "key", key)
		}
		return map[string]any{}
	}
	if data == nil {
		return map[string]any{}
	}
	return data
}

// SearchContains 子串搜索；故障时返回 nil
func (m *Manager) SearchContains(ctx context.Context, namespace, substring string) []kv.Record {
	recs, err := m.store.SearchContains(ctx, namespace, substring)
	if err != nil {
		_ = m.storageFault(ctx, "search_contains", err, "namespace", namespace)
		return nil
	}
	return recs
}

func (m *Manager) storageFault(ctx context.Context, op string, err error, attrs ...any) error {
	wrapped := verrors.Storage("memory."+op, err)
	metrics.StorageFaultsTotal.WithLabelValues(op).Inc()
	m.logger.WarnContext(ctx, "存储故障，降级处理", append(attrs, "error", wrapped)...)
	return wrapped
}
