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
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
)

// Greeting 回复生成节点。
// 上下文依次为：召回的长期事实、相关历史消息、研究结论、当前用户消息。
func (n *Nodes) Greeting(ctx context.Context, st *state.ConversationState) (graph.Result, error) {
	if st.LastUserMessage == "" {
		return n.invalid(ctx, Greeting, "last user message is empty"), nil
	}
	if problems := state.ValidateAgentMessages(st); len(problems) > 0 {
		return n.invalid(ctx, Greeting, "agent_messages: "+strings.Join(problems, "; ")), nil
	}

	text, err := n.generator.Generate(ctx, n.systemPrompt, n.transcript(ctx, st))
	if err != nil {
		return graph.Result{}, verrors.Upstream("nodes.greeting.generate", err)
	}

	return graph.Result{
		Next: Supervisor,
		Update: state.Update{
			AgentMessages:    []state.Message{state.AssistantMessage(text)},
			Response:         state.Ptr(text),
			ModifiedResponse: state.Ptr(""),
			LastAgent:        state.Ptr(Greeting),
			NextAgent:        state.Ptr(Supervisor),
		},
	}, nil
}

func (n *Nodes) transcript(ctx context.Context, st *state.ConversationState) []state.Message {
	msgs := make([]state.Message, 0, len(st.RelevantMessages)+3)
	if n.factK > 0 {
		if facts := n.memory.RecallFacts(ctx, st.LastUserMessage, n.factK); len(facts) > 0 {
			msgs = append(msgs, state.Message{
				Role:    state.RoleSystem,
				Content: "Known facts from earlier conversations:\n- " + strings.Join(facts, "\n- "),
			})
		}
	}
	msgs = append(msgs, st.RelevantMessages...)
	if st.ModifiedResponse != "" {
		msgs = append(msgs, state.Message{
			Role:    state.RoleSystem,
			Content: "Research findings to share with the user:\n" + st.ModifiedResponse,
		})
	}
	return append(msgs, state.UserMessage(st.LastUserMessage))
}
