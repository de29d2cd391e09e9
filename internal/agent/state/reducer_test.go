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
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReducers_CoverEveryField(t *testing.T) {
	typ := reflect.TypeOf(ConversationState{})
	require.Equal(t, typ.NumField(), len(reducers), "one reducer per field")
	for i := 0; i < typ.NumField(); i++ {
		name := typ.Field(i).Name
		_, ok := PolicyOf(name)
		assert.True(t, ok, "field %s has no reducer", name)
	}
	// Update 与 ConversationState 字段一一对应
	utyp := reflect.TypeOf(Update{})
	require.Equal(t, typ.NumField(), utyp.NumField())
	for i := 0; i < typ.NumField(); i++ {
		assert.Equal(t, typ.Field(i).Name, utyp.Field(i).Name)
	}
}

func TestPolicyOf_DeclaredPolicies(t *testing.T) {
	cases := map[string]Policy{
		"AgentMessages":     PolicyAppendDedup,
		"ProcessedMessages": PolicyAppendDedup,
		"ShortTermMemory":   PolicyBounded,
		"LongTermMemory":    PolicyShallowMerge,
		"Terminate":         PolicyOverwrite,
		"Query":             PolicyOverwrite,
		"LastAgent":         PolicyOverwrite,
	}
	for field, want := range cases {
		got, ok := PolicyOf(field)
		require.True(t, ok, field)
		assert.Equal(t, want, got, field)
	}
}

func TestBounded_NeverExceedsBoundAndKeepsTail(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, bound := range []int{1, 3, 10, 100} {
		var buf []Record
		arrived := []Record{}
		seq := 0
		for step := 0; step < 60; step++ {
			n := rng.Intn(7)
			batch := make([]Record, n)
			for i := range batch {
				batch[i] = Record{UserMessage: fmt.Sprintf("m%d", seq)}
				seq++
			}
			arrived = append(arrived, batch...)
			buf = Bounded(buf, batch, bound)

			require.LessOrEqual(t, len(buf), bound)
			want := arrived
			if len(want) > bound {
				want = want[len(want)-bound:]
			}
			require.Equal(t, want, buf, "bound=%d step=%d", bound, step)
		}
	}
}

func TestBounded_TruncatesOversizedExisting(t *testing.T) {
	old := []Record{{UserMessage: "a"}, {UserMessage: "b"}, {UserMessage: "c"}}
	got := Bounded(old, nil, 2)
	assert.Equal(t, []Record{{UserMessage: "b"}, {UserMessage: "c"}}, got)
}

func TestAppendDedup_NoDuplicatesFirstSeenOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var acc []string
	order := []string{}
	seen := map[string]bool{}
	for step := 0; step < 50; step++ {
		batch := make([]string, rng.Intn(5))
		for i := range batch {
			batch[i] = fmt.Sprintf("v%d", rng.Intn(12))
			if !seen[batch[i]] {
				seen[batch[i]] = true
				order = append(order, batch[i])
			}
		}
		acc = AppendDedup(acc, batch)
		require.Equal(t, order, acc)
	}
}

func TestAppendDedup_StructuralEquality(t *testing.T) {
	old := []Message{AssistantMessage("hello")}
	got := AppendDedup(old, []Message{AssistantMessage("hello"), UserMessage("hello"), AssistantMessage("bye")})
	assert.Equal(t, []Message{AssistantMessage("hello"), UserMessage("hello"), AssistantMessage("bye")}, got)
}

func TestShallowMerge(t *testing.T) {
	old := map[string]any{"a": 1, "b": map[string]any{"x": 1}}
	got := ShallowMerge(old, map[string]any{"b": map[string]any{"y": 2}, "c": 3})
	assert.Equal(t, map[string]any{"a": 1, "b": map[string]any{"y": 2}, "c": 3}, got)
	assert.Equal(t, map[string]any{"x": 1}, old["b"], "old map must not be mutated")
	assert.Equal(t, old, ShallowMerge(old, nil))
}

func TestApply_UntargetedFieldsUnchanged(t *testing.T) {
	st := New("thread-1")
	Apply(st, Update{Query: Ptr("q"), LastAgent: Ptr("supervisor")}, ApplyOptions{})
	Apply(st, Update{AgentMessages: []Message{AssistantMessage("hi")}}, ApplyOptions{})
	assert.Equal(t, "q", st.Query)
	assert.Equal(t, "supervisor", st.LastAgent)
	assert.Equal(t, []Message{AssistantMessage("hi")}, st.AgentMessages)
	assert.Equal(t, "thread-1", st.ThreadID)
}

func TestApply_UserMessagesAppendWithoutDedup(t *testing.T) {
	st := New("t")
	Apply(st, Update{UserMessages: []Message{UserMessage("hi")}}, ApplyOptions{})
	Apply(st, Update{UserMessages: []Message{UserMessage("hi")}}, ApplyOptions{})
	assert.Len(t, st.UserMessages, 2)
}

func TestApply_TerminateReset(t *testing.T) {
	st := New("t")
	Apply(st, Update{Terminate: Ptr(true)}, ApplyOptions{})
	assert.True(t, st.Terminate)
	// 未锁存时，后续未显式设置 terminate 的更新会复位
	Apply(st, Update{Query: Ptr("x")}, ApplyOptions{})
	assert.False(t, st.Terminate)
	// 锁存后保持 true
	Apply(st, Update{Terminate: Ptr(false)}, ApplyOptions{TerminateLatched: true})
	assert.True(t, st.Terminate)
}

func TestRelevantMessages_OverwriteAndClear(t *testing.T) {
	st := New("t")
	Apply(st, Update{RelevantMessages: []Message{UserMessage("a")}}, ApplyOptions{})
	Apply(st, Update{RelevantMessages: []Message{UserMessage("b")}}, ApplyOptions{})
	assert.Equal(t, []Message{UserMessage("b")}, st.RelevantMessages)
	Apply(st, Update{RelevantMessages: []Message{}}, ApplyOptions{})
	assert.Empty(t, st.RelevantMessages)
}

func TestValidate(t *testing.T) {
	st := New("")
	st.AgentMessages = []Message{AssistantMessage("x"), AssistantMessage("x")}
	st.UserMessages = []Message{{Role: "robot", Content: "?"}}
	st.ShortTermMemory = []Record{{UserMessage: "1"}, {UserMessage: "2"}}
	problems := Validate(st, 1)
	assert.Len(t, problems, 4)
	assert.Empty(t, Validate(New("thread-1"), 0))
}

func TestStateRoundTrip(t *testing.T) {
	st := New("thread-3")
	st.UserMessages = []Message{UserMessage("hi")}
	st.LongTermMemory["user_preferences"] = map[string]any{"user_message": "remember tea"}
	m, err := st.ToMap()
	require.NoError(t, err)
	back, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, st, back)
}
