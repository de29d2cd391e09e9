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
	"strings"

	"voice-agent/internal/agent/graph"
	"voice-agent/internal/agent/memory"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
)

// Researcher 研究节点：执行研究、改写结果并交回 supervisor
func (n *Nodes) Researcher(ctx context.Context, st *state.ConversationState) (graph.Result, error) {
	query := strings.TrimSpace(st.Query)
	if query == "" {
		return n.invalid(ctx, Researcher, "query is empty"), nil
	}
	raw, err := n.research.Research(ctx, query)
	if err != nil {
		return graph.Result{}, verrors.Upstream("nodes.researcher.research", err)
	}
	refined, err := n.research.Refine(ctx, query, raw)
	if err != nil {
		return graph.Result{}, verrors.Upstream("nodes.researcher.refine", err)
	}

	if err := n.memory.Persist(ctx, memory.NamespaceResearch, query, map[string]any{"result": raw}); err != nil {
		n.logger.WarnContext(ctx, "研究结果持久化失败", "thread_id", st.ThreadID, "query", query, "error", err)
	}

	return graph.Result{
		Next: Supervisor,
		Update: state.Update{
			ResearchResult:   state.Ptr(raw),
			ModifiedResponse: state.Ptr(refined),
			Query:            state.Ptr(""),
			LastAgent:        state.Ptr(Researcher),
			NextAgent:        state.Ptr(Supervisor),
		},
	}, nil
}
