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

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"voice-agent/internal/agent/runtime"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func endNode(ctx context.Context, st *state.ConversationState) (Result, error) {
	return Result{Next: End, Update: state.Update{Terminate: state.Ptr(true)}}, nil
}

func errorNode(ctx context.Context, st *state.ConversationState) (Result, error) {
	msg := st.ErrorMessage
	if msg == "" {
		msg = "Error in processing flow"
	}
	return Result{Next: End, Update: state.Update{
		Error: state.Ptr(true), ErrorMessage: state.Ptr(msg), Terminate: state.Ptr(true),
	}}, nil
}

func TestExecute_EmptyThreadID(t *testing.T) {
	g := New().AddNode("supervisor", endNode)
	_, err := g.Execute(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Equal(t, verrors.KindValidation, verrors.KindOf(err))
}

func TestExecute_MissingEntry(t *testing.T) {
	g := New()
	_, err := g.Execute(context.Background(), "thread-1", "hi")
	require.Error(t, err)
	require.Error(t, g.Validate())
}

func TestExecute_SeedsUserMessage(t *testing.T) {
	g := New().AddNode("supervisor", endNode)
	st, err := g.Execute(context.Background(), "thread-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []state.Message{state.UserMessage("hello")}, st.UserMessages)
	assert.Equal(t, "hello", st.LastUserMessage)
	assert.True(t, st.Terminate)
	assert.False(t, st.Error)
}

func TestExecute_LoopCapExactlyMaxSteps(t *testing.T) {
	calls := 0
	g := New().AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
		calls++
		return Result{Next: "supervisor"}, nil
	})
	st, err := g.Execute(context.Background(), "thread-1", "spin")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSteps, calls)
	assert.True(t, st.Terminate)
	assert.False(t, st.Error)
}

func TestExecute_CustomMaxSteps(t *testing.T) {
	calls := 0
	g := New(WithMaxSteps(3)).AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
		calls++
		return Result{}, nil
	}).AddEdge("supervisor", "supervisor")
	_, err := g.Execute(context.Background(), "thread-1", "spin")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_ExplicitNextBeatsStaticAndConditional(t *testing.T) {
	var visited []string
	track := func(name string, next string) NodeFunc {
		return func(ctx context.Context, st *state.ConversationState) (Result, error) {
			visited = append(visited, name)
			return Result{Next: next}, nil
		}
	}
	g := New().
		AddNode("supervisor", track("supervisor", "b")).
		AddNode("a", track("a", End)).
		AddNode("b", track("b", End)).
		AddEdge("supervisor", "a").
		AddConditionalEdge("supervisor", func(*state.ConversationState) string { return "a" })
	_, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor", "b"}, visited)
}

func TestExecute_ConditionalReadsMergedState(t *testing.T) {
	var visited []string
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			visited = append(visited, "supervisor")
			return Result{Update: state.Update{NextAgent: state.Ptr("greeting")}}, nil
		}).
		AddNode("greeting", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			visited = append(visited, "greeting")
			return Result{}, nil
		}).
		AddConditionalEdge("supervisor", func(st *state.ConversationState) string { return st.NextAgent }).
		AddEdge("greeting", End)
	_, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor", "greeting"}, visited)
}

func TestExecute_NodeErrorRoutesToErrorNode(t *testing.T) {
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			return Result{}, verrors.Upstream("classify", errors.New("llm down"))
		}).
		AddNode("error", errorNode)
	st, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.True(t, st.Error)
	assert.True(t, st.Terminate)
	assert.Contains(t, st.ErrorMessage, "llm down")
}

func TestExecute_PanicRoutesToErrorNode(t *testing.T) {
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			panic("boom")
		}).
		AddNode("error", errorNode)
	st, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.True(t, st.Error)
	assert.Contains(t, st.ErrorMessage, "boom")
}

func TestExecute_NoTransitionIsValidationError(t *testing.T) {
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			return Result{}, nil
		}).
		AddNode("error", errorNode)
	st, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.True(t, st.Error)
	assert.Contains(t, st.ErrorMessage, "no transition from supervisor")
}

func TestExecute_UnknownNextIsValidationError(t *testing.T) {
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			return Result{Next: "nowhere"}, nil
		}).
		AddNode("error", errorNode)
	st, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.True(t, st.Error)
	assert.Contains(t, st.ErrorMessage, "nowhere")
}

func TestExecute_FailingErrorNodeForcesEnd(t *testing.T) {
	calls := 0
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			return Result{}, errors.New("first")
		}).
		AddNode("error", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			calls++
			return Result{}, errors.New("second")
		})
	st, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, st.Error)
	assert.True(t, st.Terminate)
}

func TestExecute_CheckpointPerStep(t *testing.T) {
	cps := runtime.NewCheckpointStoreMem(0)
	g := New(WithCheckpoints(cps)).
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			return Result{Next: "greeting"}, nil
		}).
		AddNode("greeting", endNode)
	_, err := g.Execute(context.Background(), "thread-1", "x")
	require.NoError(t, err)

	list, err := cps.ListByThread(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "supervisor", list[0].Node)
	assert.Equal(t, "greeting", list[0].NextNode)
	assert.Equal(t, End, list[1].NextNode)
	assert.Equal(t, 2, list[1].Step)
}

func TestExecute_ResumeFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	cps := runtime.NewCheckpointStoreMem(0)
	prev := state.New("thread-4")
	prev.UserMessages = []state.Message{state.UserMessage("earlier")}
	prev.ProcessedMessages = []string{"earlier"}
	data, err := prev.Marshal()
	require.NoError(t, err)
	_, err = cps.Save(ctx, runtime.NewCheckpoint("thread-4", 3, "memoryConsolidate", End, data))
	require.NoError(t, err)

	g := New(WithCheckpoints(cps)).AddNode("supervisor", endNode)
	st, err := g.Execute(ctx, "thread-4", "now")
	require.NoError(t, err)
	assert.Equal(t, []state.Message{state.UserMessage("earlier"), state.UserMessage("now")}, st.UserMessages)
	assert.Equal(t, []string{"earlier"}, st.ProcessedMessages)
}

func TestExecute_ResumeFromFallback(t *testing.T) {
	loaded := false
	g := New(WithFallbackLoader(func(ctx context.Context, threadID string) (*state.ConversationState, bool) {
		loaded = true
		st := state.New(threadID)
		st.AgentMessages = []state.Message{state.AssistantMessage("hi there")}
		return st, true
	})).AddNode("supervisor", endNode)
	st, err := g.Execute(context.Background(), "thread-2", "again")
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "hi there", st.LastAssistant())
}

func TestExecute_SeedClearsTurnScratch(t *testing.T) {
	ctx := context.Background()
	g := New().
		AddNode("supervisor", func(ctx context.Context, st *state.ConversationState) (Result, error) {
			if st.LastUserMessage == "fail" {
				return Result{}, errors.New("bad")
			}
			return Result{Next: End}, nil
		}).
		AddNode("error", errorNode)
	st, err := g.Execute(ctx, "thread-1", "fail")
	require.NoError(t, err)
	require.True(t, st.Error)

	st, err = g.Execute(ctx, "thread-1", "ok")
	require.NoError(t, err)
	assert.False(t, st.Error)
	assert.Empty(t, st.ErrorMessage)
	assert.False(t, st.Terminate)
}
