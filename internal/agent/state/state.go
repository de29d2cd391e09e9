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

// Package state 定义会话状态、部分更新与逐字段合并策略（reducer）。
package state

import "encoding/json"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message 一条对话消息；可比较，结构相等即 ==
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage 构造用户消息
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage 构造助手消息
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Record 短期记忆中的一条交互记录
type Record struct {
	ThreadID       string `json:"thread_id,omitempty"`
	UserMessage    string `json:"user_message"`
	AgentMessage   string `json:"agent_message,omitempty"`
	Query          string `json:"query,omitempty"`
	ResearchResult string `json:"research_result,omitempty"`
}

// ConversationState 单个 thread 的规范会话状态。
// 字段的合并策略见 reducers 表，任何字段都只能经由该表写入。
type ConversationState struct {
	ThreadID          string         `json:"thread_id"`
	UserMessages      []Message      `json:"user_messages"`
	AgentMessages     []Message      `json:"agent_messages"`
	ProcessedMessages []string       `json:"processed_messages"`
	ShortTermMemory   []Record       `json:"short_term_memory"`
	LongTermMemory    map[string]any `json:"long_term_memory"`
	RelevantMessages  []Message      `json:"relevant_messages,omitempty"`
	LastUserMessage   string         `json:"last_user_message,omitempty"`
	LastAgent         string         `json:"last_agent,omitempty"`
	NextAgent         string         `json:"next_agent,omitempty"`
	Query             string         `json:"query,omitempty"`
	ResearchResult    string         `json:"research_result,omitempty"`
	ModifiedResponse  string         `json:"modified_response,omitempty"`
	Response          string         `json:"response,omitempty"`
	Terminate         bool           `json:"terminate"`
	Error             bool           `json:"error"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}

// New 创建空状态
func New(threadID string) *ConversationState {
	return &ConversationState{
		ThreadID:       threadID,
		LongTermMemory: map[string]any{},
	}
}

// LastUser 返回最近一条用户消息内容，没有则返回空串
func (s *ConversationState) LastUser() string {
	for i := len(s.UserMessages) - 1; i >= 0; i-- {
		if s.UserMessages[i].Role == RoleUser {
			return s.UserMessages[i].Content
		}
	}
	return ""
}

// LastAssistant 返回 agent_messages 中最近一条助手消息内容。
// agent_messages 去重，本轮回复以 Response 为准。
func (s *ConversationState) LastAssistant() string {
	for i := len(s.AgentMessages) - 1; i >= 0; i-- {
		if s.AgentMessages[i].Role == RoleAssistant {
			return s.AgentMessages[i].Content
		}
	}
	return ""
}

// Processed 判断消息是否已被路由过
func (s *ConversationState) Processed(msg string) bool {
	for _, p := range s.ProcessedMessages {
		if p == msg {
			return true
		}
	}
	return false
}

// Clone 深拷贝
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.UserMessages = cloneSlice(s.UserMessages)
	out.AgentMessages = cloneSlice(s.AgentMessages)
	out.ProcessedMessages = cloneSlice(s.ProcessedMessages)
	out.ShortTermMemory = cloneSlice(s.ShortTermMemory)
	out.RelevantMessages = cloneSlice(s.RelevantMessages)
	out.LongTermMemory = CloneMap(s.LongTermMemory)
	return &out
}

// Marshal 序列化为 JSON（checkpoint 与 session_logs 使用）
func (s *ConversationState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal 从 JSON 还原状态
func Unmarshal(data []byte) (*ConversationState, error) {
	var s ConversationState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.LongTermMemory == nil {
		s.LongTermMemory = map[string]any{}
	}
	return &s, nil
}

// ToMap 转为通用 map，用于写入键值存储
func (s *ConversationState) ToMap() (map[string]any, error) {
	data, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap 从键值存储的 map 还原状态
func FromMap(m map[string]any) (*ConversationState, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// CloneMap 递归拷贝 map[string]any / []any，其他值按值复制
func CloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
