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

import "fmt"

// Validate 检查结构不变量，返回问题列表；调用方记录为告警，不中断会话
func Validate(s *ConversationState, bound int) []string {
	if s == nil {
		return []string{"state is nil"}
	}
	if bound <= 0 {
		bound = DefaultShortTermBound
	}
	var problems []string
	if s.ThreadID == "" {
		problems = append(problems, "thread_id is empty")
	}
	if n := len(s.ShortTermMemory); n > bound {
		problems = append(problems, fmt.Sprintf("short_term_memory has %d entries, bound %d", n, bound))
	}
	if d := firstDuplicate(s.AgentMessages); d >= 0 {
		problems = append(problems, fmt.Sprintf("agent_messages has duplicate at %d", d))
	}
	if d := firstDuplicate(s.ProcessedMessages); d >= 0 {
		problems = append(problems, fmt.Sprintf("processed_messages has duplicate at %d", d))
	}
	problems = append(problems, checkRoles("user_messages", s.UserMessages)...)
	problems = append(problems, checkRoles("agent_messages", s.AgentMessages)...)
	return problems
}

// ValidateAgentMessages 仅检查 agent_messages（Greeting 入口使用）
func ValidateAgentMessages(s *ConversationState) []string {
	var problems []string
	if d := firstDuplicate(s.AgentMessages); d >= 0 {
		problems = append(problems, fmt.Sprintf("agent_messages has duplicate at %d", d))
	}
	return append(problems, checkRoles("agent_messages", s.AgentMessages)...)
}

func firstDuplicate[T comparable](list []T) int {
	seen := make(map[T]struct{}, len(list))
	for i, v := range list {
		if _, ok := seen[v]; ok {
			return i
		}
		seen[v] = struct{}{}
	}
	return -1
}

func checkRoles(field string, msgs []Message) []string {
	var problems []string
	for i, m := range msgs {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			problems = append(problems, fmt.Sprintf("%s[%d] has invalid role %q", field, i, m.Role))
		}
	}
	return problems
}
