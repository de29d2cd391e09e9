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

const recentWindow = 3

// Supervisor 路由节点：对新消息分类并选择 researcher 或 greeting；
// 已处理的消息不再分类，只推进本轮剩余流程。
func (n *Nodes) Supervisor(ctx context.Context, st *state.ConversationState) (graph.Result, error) {
	if len(st.UserMessages) == 0 || st.LastUserMessage == "" {
		return n.invalid(ctx, Supervisor, "no user message to route"), nil
	}
	msg := st.LastUserMessage

	if st.Processed(msg) && (st.LastAgent == Researcher || st.LastAgent == Greeting) {
		next := MemoryConsolidate
		if st.LastAgent == Researcher && st.ModifiedResponse != "" {
			next = Greeting
		}
		return graph.Result{Update: state.Update{
			LastAgent: state.Ptr(Supervisor),
			NextAgent: state.Ptr(next),
		}}, nil
	}

	label, err := n.classifier.Classify(ctx, ClassifyInput{
		RecentUser:  contents(lastN(st.UserMessages, recentWindow)),
		RecentAgent: contents(lastN(st.AgentMessages, recentWindow)),
		LastAgent:   st.LastAgent,
		Message:     msg,
	})
	if err != nil {
		return graph.Result{}, verrors.Upstream("nodes.supervisor.classify", err)
	}

	next := Greeting
	switch NormalizeLabel(label) {
	case LabelResearcher:
		next = Researcher
	case LabelGreeting:
	default:
		n.logger.WarnContext(ctx, "分类结果无效，默认 GREETING", "thread_id", st.ThreadID, "label", label)
	}

	relevant := n.memory.SemanticSearch(ctx, msg, priorMessages(st, msg), n.searchK, n.maxDistance)
	u := state.Update{
		LastAgent:         state.Ptr(Supervisor),
		NextAgent:         state.Ptr(next),
		RelevantMessages:  relevant,
		ProcessedMessages: []string{msg},
	}
	if next == Researcher {
		u.Query = state.Ptr(msg)
	}
	n.logger.InfoContext(ctx, "supervisor 路由", "thread_id", st.ThreadID, "next", next, "relevant", len(relevant))
	return graph.Result{Update: u}, nil
}

// NormalizeLabel 去除空白、引号与标点后转大写
func NormalizeLabel(label string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(label), " \t\r\n'\"`.,;:!?"))
}

// priorMessages 语义检索候选：除当前消息外的用户消息与全部助手消息
func priorMessages(st *state.ConversationState, msg string) []state.Message {
	users := st.UserMessages
	if k := len(users); k > 0 && users[k-1].Content == msg {
		users = users[:k-1]
	}
	out := make([]state.Message, 0, len(users)+len(st.AgentMessages))
	out = append(out, users...)
	return append(out, st.AgentMessages...)
}

func lastN(msgs []state.Message, n int) []state.Message {
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func contents(msgs []state.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}
