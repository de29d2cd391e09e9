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

package nodes

import (
	"context"

	"voice-agent/internal/agent/graph"
	"voice-agent/internal/agent/state"
)

// MemoryConsolidate 写入短期记忆并提升长期事实，结束本轮
func (n *Nodes) MemoryConsolidate(ctx context.Context, st *state.ConversationState) (graph.Result, error) {
	shortTerm, fact := n.memory.Consolidate(ctx, st)
	if fact != nil {
		n.logger.InfoContext(ctx, "长期记忆已更新", "thread_id", st.ThreadID, "facts", len(fact))
	}
	return graph.Result{
		Next: graph.End,
		Update: state.Update{
			ShortTermMemory:   shortTerm,
			LongTermMemory:    fact,
			ProcessedMessages: st.ProcessedMessages,
			Terminate:         state.Ptr(true),
			LastAgent:         state.Ptr(MemoryConsolidate),
		},
	}, nil
}

// Error 错误节点：标记错误并终止；保留已记录的错误信息
func (n *Nodes) Error(ctx context.Context, st *state.ConversationState) (graph.Result, error) {
	msg := st.ErrorMessage
	if msg == "" {
		msg = DefaultErrorMessage
	}
	n.logger.ErrorContext(ctx, "对话流程出错", "thread_id", st.ThreadID, "error_message", msg)
	return graph.Result{
		Next: graph.End,
		Update: state.Update{
			Error:        state.Ptr(true),
			ErrorMessage: state.Ptr(msg),
			Terminate:    state.Ptr(true),
			LastAgent:    state.Ptr(Error),
		},
	}, nil
}
