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

// DefaultShortTermBound 短期记忆默认上限
const DefaultShortTermBound = 100

// Policy 字段合并策略
type Policy string

const (
	PolicyAppend       Policy = "append"
	PolicyAppendDedup  Policy = "append_dedup"
	PolicyBounded      Policy = "bounded"
	PolicyShallowMerge Policy = "shallow_merge"
	PolicyOverwrite    Policy = "overwrite"
)

// Update 对 ConversationState 的部分更新。
// 标量字段为指针，nil 表示不修改；列表与 map 字段为 nil 表示不修改。
// RelevantMessages 为覆盖语义，传入空切片（非 nil）可清空。
type Update struct {
	ThreadID          *string
	UserMessages      []Message
	AgentMessages     []Message
	ProcessedMessages []string
	ShortTermMemory   []Record
	LongTermMemory    map[string]any
	RelevantMessages  []Message
	LastUserMessage   *string
	LastAgent         *string
	NextAgent         *string
	Query             *string
	ResearchResult    *string
	ModifiedResponse  *string
	Response          *string
	Terminate         *bool
	Error             *bool
	ErrorMessage      *string
}

// Ptr 返回 v 的指针，便于构造 Update
func Ptr[T any](v T) *T { return &v }

// ApplyOptions 合并参数
type ApplyOptions struct {
	// Bound 短期记忆上限，<=0 使用 DefaultShortTermBound
	Bound int
	// TerminateLatched 本轮已有更新将 terminate 置为 true
	TerminateLatched bool
}

type fieldReducer struct {
	field  string
	policy Policy
	apply  func(dst *ConversationState, u *Update, opts ApplyOptions)
}

// reducers 字段 -> 合并策略表，每个 ConversationState 字段恰好一项
var reducers = []fieldReducer{
	{"ThreadID", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.ThreadID, u.ThreadID) }},
	{"UserMessages", PolicyAppend, func(d *ConversationState, u *Update, _ ApplyOptions) {
		if u.UserMessages != nil {
			d.UserMessages = append(cloneSlice(d.UserMessages), u.UserMessages...)
		}
	}},
	{"AgentMessages", PolicyAppendDedup, func(d *ConversationState, u *Update, _ ApplyOptions) {
		d.AgentMessages = AppendDedup(d.AgentMessages, u.AgentMessages)
	}},
	{"ProcessedMessages", PolicyAppendDedup, func(d *ConversationState, u *Update, _ ApplyOptions) {
		d.ProcessedMessages = AppendDedup(d.ProcessedMessages, u.ProcessedMessages)
	}},
	{"ShortTermMemory", PolicyBounded, func(d *ConversationState, u *Update, o ApplyOptions) {
		d.ShortTermMemory = Bounded(d.ShortTermMemory, u.ShortTermMemory, o.Bound)
	}},
	{"LongTermMemory", PolicyShallowMerge, func(d *ConversationState, u *Update, _ ApplyOptions) {
		d.LongTermMemory = ShallowMerge(d.LongTermMemory, u.LongTermMemory)
	}},
	{"RelevantMessages", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) {
		if u.RelevantMessages != nil {
			d.RelevantMessages = cloneSlice(u.RelevantMessages)
		}
	}},
	{"LastUserMessage", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.LastUserMessage, u.LastUserMessage) }},
	{"LastAgent", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.LastAgent, u.LastAgent) }},
	{"NextAgent", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.NextAgent, u.NextAgent) }},
	{"Query", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.Query, u.Query) }},
	{"ResearchResult", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.ResearchResult, u.ResearchResult) }},
	{"ModifiedResponse", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.ModifiedResponse, u.ModifiedResponse) }},
	{"Response", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.Response, u.Response) }},
	{"Terminate", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.Terminate, u.Terminate) }},
	{"Error", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.Error, u.Error) }},
	{"ErrorMessage", PolicyOverwrite, func(d *ConversationState, u *Update, _ ApplyOptions) { overwrite(&d.ErrorMessage, u.ErrorMessage) }},
}

// PolicyOf 返回字段的合并策略
func PolicyOf(field string) (Policy, bool) {
	for _, r := range reducers {
		if r.field == field {
			return r.policy, true
		}
	}
	return "", false
}

// Apply 按 reducers 表将 u 合并进 dst。
// 合并后 terminate 复位为 false，除非 u 显式置 true 或本轮已锁存。
func Apply(dst *ConversationState, u Update, opts ApplyOptions) {
	for _, r := range reducers {
		r.apply(dst, &u, opts)
	}
	dst.Terminate = (u.Terminate != nil && *u.Terminate) || opts.TerminateLatched
}

func overwrite[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// AppendDedup 拼接后按结构相等去重，保留首次出现顺序；add 为 nil 时原样返回 old
func AppendDedup[T comparable](old, add []T) []T {
	if add == nil {
		return old
	}
	seen := make(map[T]struct{}, len(old)+len(add))
	out := make([]T, 0, len(old)+len(add))
	for _, list := range [][]T{old, add} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Bounded AppendDedup 后仅保留最近 n 项（FIFO 淘汰）
func Bounded[T comparable](old, add []T, n int) []T {
	if n <= 0 {
		n = DefaultShortTermBound
	}
	out := AppendDedup(old, add)
	if len(out) > n {
		out = cloneSlice(out[len(out)-n:])
	}
	return out
}

// ShallowMerge {**old, **new}，new 的键覆盖 old
func ShallowMerge(old, add map[string]any) map[string]any {
	if add == nil {
		return old
	}
	out := make(map[string]any, len(old)+len(add))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range add {
		out[k] = cloneValue(v)
	}
	return out
}
