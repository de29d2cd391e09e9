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

package state

import (
	"context"
	"log/slog"
	"sync"
)

// Store 持有每个 thread 的规范状态，提供原子的 Apply 合并
type Store interface {
	// Load 返回状态快照；thread 不存在时 ok=false
	Load(ctx context.Context, threadID string) (*ConversationState, bool)
	// Put 以 st 覆盖 thread 的规范状态（恢复 checkpoint / session_logs 时使用）
	Put(ctx context.Context, st *ConversationState)
	// Apply 将 u 合并进规范状态并返回合并后的快照；thread 不存在时先创建空状态
	Apply(ctx context.Context, threadID string, u Update) *ConversationState
	// BeginTurn 开始新一轮，清除 terminate 锁存
	BeginTurn(ctx context.Context, threadID string)
	// Bound 短期记忆上限
	Bound() int
}

type storeEntry struct {
	state   *ConversationState
	latched bool
}

// MemoryStore Store 的内存实现，同一 thread 单写者
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string]*storeEntry
	bound   int
	logger  *slog.Logger
}

// NewMemoryStore 创建内存 State Store；bound<=0 使用 DefaultShortTermBound
func NewMemoryStore(bound int, logger *slog.Logger) *MemoryStore {
	if bound <= 0 {
		bound = DefaultShortTermBound
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{threads: make(map[string]*storeEntry), bound: bound, logger: logger}
}

// Bound 实现 Store
func (s *MemoryStore) Bound() int { return s.bound }

// Load 实现 Store
func (s *MemoryStore) Load(ctx context.Context, threadID string) (*ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.threads[threadID]
	if !ok {
		return nil, false
	}
	return e.state.Clone(), true
}

// Put 实现 Store
func (s *MemoryStore) Put(ctx context.Context, st *ConversationState) {
	if st == nil {
		return
	}
	cp := st.Clone()
	if cp.LongTermMemory == nil {
		cp.LongTermMemory = map[string]any{}
	}
	s.mu.Lock()
	s.threads[cp.ThreadID] = &storeEntry{state: cp}
	s.mu.Unlock()
}

// BeginTurn 实现 Store
func (s *MemoryStore) BeginTurn(ctx context.Context, threadID string) {
	s.mu.Lock()
	if e, ok := s.threads[threadID]; ok {
		e.latched = false
	}
	s.mu.Unlock()
}

// Apply 实现 Store
func (s *MemoryStore) Apply(ctx context.Context, threadID string, u Update) *ConversationState {
	s.mu.Lock()
	e, ok := s.threads[threadID]
	if !ok {
		e = &storeEntry{state: New(threadID)}
		s.threads[threadID] = e
	}
	Apply(e.state, u, ApplyOptions{Bound: s.bound, TerminateLatched: e.latched})
	if e.state.Terminate {
		e.latched = true
	}
	snapshot := e.state.Clone()
	s.mu.Unlock()

	for _, p := range Validate(snapshot, s.bound) {
		s.logger.Warn("状态校验告警", "thread_id", threadID, "problem", p)
	}
	return snapshot
}
