package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"voice-agent"}`))
	})
	mux.HandleFunc("/api/threads", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"thread_id":"thread-4"}`))
	})
	mux.HandleFunc("/api/threads/thread-4/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"thread_id":"thread-4","last_agent":"memoryConsolidate"}`))
	})
	mux.HandleFunc("/api/memory/research_results/quantum", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"raw findings"}`))
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ThreadID string `json:"thread_id"`
			Message  string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id := req.ThreadID
		if id == "" {
			id = "thread-1"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply{ThreadID: id, Response: "echo " + req.Message})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Setenv("VOICE_AGENT_API_URL", srv.URL)
	return srv
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run("version", nil, strings.NewReader(""), &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "voice-agent") {
		t.Errorf("version output: %q", stdout.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run("bogus", nil, strings.NewReader(""), &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Usage") {
		t.Errorf("expected usage on stderr, got %q", stderr.String())
	}
}

func TestRun_HealthThreadStateMemory(t *testing.T) {
	newFakeAPI(t)

	cases := []struct {
		cmd  string
		args []string
		want string
	}{
		{"health", nil, `"status": "ok"`},
		{"thread", []string{"new"}, "thread-4"},
		{"state", []string{"thread-4"}, `"last_agent": "memoryConsolidate"`},
		{"memory", []string{"research_results", "quantum"}, `"result": "raw findings"`},
	}
	for _, tc := range cases {
		var stdout, stderr bytes.Buffer
		if code := run(tc.cmd, tc.args, strings.NewReader(""), &stdout, &stderr); code != 0 {
			t.Fatalf("%s: exit code = %d, stderr=%s", tc.cmd, code, stderr.String())
		}
		if !strings.Contains(stdout.String(), tc.want) {
			t.Errorf("%s: output %q does not contain %q", tc.cmd, stdout.String(), tc.want)
		}
	}
}

func TestRun_MissingArgs(t *testing.T) {
	for _, cmd := range []string{"state", "memory", "thread"} {
		var stdout, stderr bytes.Buffer
		if code := run(cmd, nil, strings.NewReader(""), &stdout, &stderr); code != 1 {
			t.Errorf("%s: exit code = %d, want 1", cmd, code)
		}
	}
}

func TestRun_StateNotFound(t *testing.T) {
	newFakeAPI(t)
	var stdout, stderr bytes.Buffer
	if code := run("state", []string{"thread-404"}, strings.NewReader(""), &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestChatLoop_KeepsAllocatedThread(t *testing.T) {
	newFakeAPI(t)
	client := newClient(apiBaseURL())

	var seen []string
	send := func(threadID, msg string) (*chatReply, error) {
		seen = append(seen, threadID)
		return client.chat(threadID, msg)
	}

	var stdout, stderr bytes.Buffer
	chatLoop(strings.NewReader("hi\n\nhow are you\nexit\nignored\n"), &stdout, &stderr, "", send)

	if len(seen) != 2 {
		t.Fatalf("sent %d messages, want 2", len(seen))
	}
	if seen[0] != "" || seen[1] != "thread-1" {
		t.Errorf("thread ids = %v", seen)
	}
	if !strings.Contains(stdout.String(), "[thread-1] echo how are you") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestChatLoop_LastLineWithoutNewline(t *testing.T) {
	var got []string
	send := func(threadID, msg string) (*chatReply, error) {
		got = append(got, msg)
		return &chatReply{ThreadID: "thread-2", Response: "ok"}, nil
	}
	var stdout, stderr bytes.Buffer
	chatLoop(strings.NewReader("tail"), &stdout, &stderr, "", send)
	if len(got) != 1 || got[0] != "tail" {
		t.Errorf("messages = %v", got)
	}
}

func TestChatLoop_ErrorsAreReported(t *testing.T) {
	calls := 0
	send := func(threadID, msg string) (*chatReply, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return &chatReply{ThreadID: "thread-3", Error: true, ErrorMessage: "Error in processing flow"}, nil
	}
	var stdout, stderr bytes.Buffer
	chatLoop(strings.NewReader("a\nb\n"), &stdout, &stderr, "", send)
	if !strings.Contains(stderr.String(), "connection refused") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "[thread-3] error: Error in processing flow") {
		t.Errorf("stdout = %q", stdout.String())
	}
}
