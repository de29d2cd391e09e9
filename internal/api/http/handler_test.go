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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"voice-agent/internal/agent"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
)

type fakeAssistant struct {
	reply *agent.Reply
	err   error
	last  ChatRequest
}

func (f *fakeAssistant) Chat(ctx context.Context, threadID, text string) (*agent.Reply, error) {
	f.last = ChatRequest{ThreadID: threadID, Message: text}
	return f.reply, f.err
}

func (f *fakeAssistant) NewThread(ctx context.Context) string { return "thread-5" }

func (f *fakeAssistant) State(ctx context.Context, threadID string) (*state.ConversationState, error) {
	if threadID != "thread-1" {
		return nil, verrors.ErrNotFound
	}
	st := state.New("thread-1")
	st.UserMessages = []state.Message{state.UserMessage("hi")}
	return st, nil
}

type mapMemory map[string]map[string]any

func (m mapMemory) Retrieve(ctx context.Context, ns, key string) map[string]any {
	if v, ok := m[ns+"/"+key]; ok {
		return v
	}
	return map[string]any{}
}

func perform(h *server.Hertz, method, path string, body []byte) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, method, path, &ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func TestHealthCheck(t *testing.T) {
	h := server.Default(server.WithHostPorts(":0"))
	handler := NewHandler(nil, nil, nil)
	h.GET("/api/health", func(ctx context.Context, c *app.RequestContext) {
		handler.HealthCheck(ctx, c)
	})
	w := perform(h, "GET", "/api/health", nil)
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Errorf("HealthCheck status: got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("ok")) {
		t.Errorf("HealthCheck body: %s", resp.Body())
	}
}

func TestChat_ReturnsReply(t *testing.T) {
	fa := &fakeAssistant{reply: &agent.Reply{ThreadID: "thread-1", Text: "Hello!"}}
	handler := NewHandler(fa, nil, nil)
	h := server.Default(server.WithHostPorts(":0"))
	h.POST("/api/chat", handler.Chat)

	w := perform(h, "POST", "/api/chat", []byte(`{"thread_id":"thread-1","message":"hi"}`))
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("Chat status: got %d body %s", resp.StatusCode(), resp.Body())
	}
	var out ChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ThreadID != "thread-1" || out.Response != "Hello!" || out.Error {
		t.Errorf("Chat response: %+v", out)
	}
	if fa.last.Message != "hi" {
		t.Errorf("Chat forwarded message %q", fa.last.Message)
	}
}

func TestChat_InvalidBody(t *testing.T) {
	handler := NewHandler(&fakeAssistant{}, nil, nil)
	h := server.Default(server.WithHostPorts(":0"))
	h.POST("/api/chat", handler.Chat)
	w := perform(h, "POST", "/api/chat", []byte(`{not json`))
	if got := w.Result().StatusCode(); got != 400 {
		t.Errorf("Chat invalid body status = %d, want 400", got)
	}
}

func TestChat_AssistantErrorStatus(t *testing.T) {
	handler := NewHandler(&fakeAssistant{err: verrors.Validation("graph.execute", "thread_id is empty")}, nil, nil)
	h := server.Default(server.WithHostPorts(":0"))
	h.POST("/api/chat", handler.Chat)
	w := perform(h, "POST", "/api/chat", []byte(`{"message":"x"}`))
	if got := w.Result().StatusCode(); got != 400 {
		t.Errorf("validation error status = %d, want 400", got)
	}

	handler = NewHandler(&fakeAssistant{err: errors.New("boom")}, nil, nil)
	h = server.Default(server.WithHostPorts(":0"))
	h.POST("/api/chat", handler.Chat)
	w = perform(h, "POST", "/api/chat", []byte(`{"message":"x"}`))
	if got := w.Result().StatusCode(); got != 500 {
		t.Errorf("internal error status = %d, want 500", got)
	}
}

func TestThreadState(t *testing.T) {
	handler := NewHandler(&fakeAssistant{}, nil, nil)
	h := server.Default(server.WithHostPorts(":0"))
	h.GET("/api/threads/:id/state", handler.ThreadState)

	w := perform(h, "GET", "/api/threads/thread-1/state", nil)
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("ThreadState status: got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte(`"thread_id":"thread-1"`)) {
		t.Errorf("ThreadState body: %s", resp.Body())
	}

	w = perform(h, "GET", "/api/threads/thread-9/state", nil)
	if got := w.Result().StatusCode(); got != 404 {
		t.Errorf("ThreadState missing status = %d, want 404", got)
	}
}

func TestGetMemory_MissReturnsEmptyObject(t *testing.T) {
	mem := mapMemory{"research_results/moon": {"result": "far"}}
	handler := NewHandler(nil, mem, nil)
	h := server.Default(server.WithHostPorts(":0"))
	h.GET("/api/memory/:namespace/:key", handler.GetMemory)

	w := perform(h, "GET", "/api/memory/research_results/moon", nil)
	if !bytes.Contains(w.Result().Body(), []byte(`"result":"far"`)) {
		t.Errorf("GetMemory body: %s", w.Result().Body())
	}
	w = perform(h, "GET", "/api/memory/research_results/sun", nil)
	if got := string(w.Result().Body()); got != "{}" {
		t.Errorf("GetMemory miss body = %s, want {}", got)
	}
}

func TestChat_AssistantErrorLoggedThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewHandler(&fakeAssistant{err: errors.New("boom")}, nil, logger)
	h := server.Default(server.WithHostPorts(":0"))
	h.POST("/api/chat", handler.Chat)
	perform(h, "POST", "/api/chat", []byte(`{"thread_id":"thread-9","message":"x"}`))

	out := buf.String()
	if !strings.Contains(out, `"thread_id":"thread-9"`) || !strings.Contains(out, "boom") {
		t.Errorf("chat failure not logged through handler logger: %s", out)
	}
}
