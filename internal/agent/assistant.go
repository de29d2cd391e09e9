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

package agent

import (
	"context"
	"log/slog"
	"time"

	"voice-agent/internal/agent/graph"
	"voice-agent/internal/agent/memory"
	"voice-agent/internal/agent/runtime"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
)

// Reply 一轮对话的结果
type Reply struct {
	ThreadID     string                   `json:"thread_id"`
	Text         string                   `json:"response"`
	Error        bool                     `json:"error"`
	ErrorMessage string                   `json:"error_message,omitempty"`
	Duration     time.Duration            `json:"-"`
	State        *state.ConversationState `json:"-"`
}

// Assistant 对外入口：分配 thread、串行化同一 thread 的轮次、执行图并写 session_logs
type Assistant struct {
	graph   *graph.Graph
	memory  *memory.Manager
	threads *memory.ThreadIDAllocator
	store   state.Store
	locks   *runtime.ThreadLocks
	logger  *slog.Logger
}

// NewAssistant 创建 Assistant；store 为 nil 时使用图的 State Store
func NewAssistant(g *graph.Graph, mem *memory.Manager, threads *memory.ThreadIDAllocator, store state.Store, logger *slog.Logger) *Assistant {
	if store == nil {
		store = g.Store()
	}
	if threads == nil {
		threads = memory.NewThreadIDAllocator(mem)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		graph:   g,
		memory:  mem,
		threads: threads,
		store:   store,
		locks:   runtime.NewThreadLocks(),
		logger:  logger,
	}
}

// SessionLogLoader 从 session_logs 恢复状态，供 graph.WithFallbackLoader 使用
func SessionLogLoader(mem *memory.Manager) graph.FallbackLoader {
	return func(ctx context.Context, threadID string) (*state.ConversationState, bool) {
		data := mem.Retrieve(ctx, memory.NamespaceSessionLogs, threadID)
		if len(data) == 0 {
			return nil, false
		}
		st, err := state.FromMap(data)
		if err != nil {
			return nil, false
		}
		return st, true
	}
}

// NewThread 分配新的 thread ID
func (a *Assistant) NewThread(ctx context.Context) string {
	return a.threads.Next(ctx)
}

// Chat 执行一轮对话；threadID 为空时分配新 thread。
// 节点失败体现在 Reply.Error 中，仅调用方误用返回 error。
func (a *Assistant) Chat(ctx context.Context, threadID, text string) (*Reply, error) {
	start := time.Now()
	if threadID == "" {
		threadID = a.threads.Next(ctx)
	} else if _, ok := a.store.Load(ctx, threadID); !ok {
		a.threads.Register(ctx, threadID)
	}

	unlock := a.locks.Lock(threadID)
	defer unlock()

	st, err := a.graph.Execute(ctx, threadID, text)
	if err != nil {
		return nil, err
	}
	a.persistSession(ctx, st)

	reply := &Reply{
		ThreadID:     threadID,
		Error:        st.Error,
		ErrorMessage: st.ErrorMessage,
		Duration:     time.Since(start),
		State:        st,
	}
	if st.Error {
		reply.Text = st.ErrorMessage
	} else {
		reply.Text = st.Response
	}
	a.logger.InfoContext(ctx, "对话轮次完成",
		"thread_id", threadID, "error", st.Error, "duration_ms", reply.Duration.Milliseconds())
	return reply, nil
}

// State 返回 thread 的规范状态：优先 State Store，其次 session_logs
func (a *Assistant) State(ctx context.Context, threadID string) (*state.ConversationState, error) {
	if threadID == "" {
		return nil, verrors.Validation("assistant.state", "thread_id is empty")
	}
	if st, ok := a.store.Load(ctx, threadID); ok {
		return st, nil
	}
	if st, ok := SessionLogLoader(a.memory)(ctx, threadID); ok {
		return st, nil
	}
	return nil, verrors.ErrNotFound
}

// Memory 返回记忆管理器
func (a *Assistant) Memory() *memory.Manager { return a.memory }

func (a *Assistant) persistSession(ctx context.Context, st *state.ConversationState) {
	data, err := st.ToMap()
	if err != nil {
		a.logger.WarnContext(ctx, "session 快照序列化失败", "thread_id", st.ThreadID, "error", err)
		return
	}
	if err := a.memory.Persist(ctx, memory.NamespaceSessionLogs, st.ThreadID, data); err != nil {
		a.logger.WarnContext(ctx, "session 快照持久化失败", "thread_id", st.ThreadID, "error", err)
	}
}
