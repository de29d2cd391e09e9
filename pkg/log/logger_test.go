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

package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_JSONDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(nil, &buf)
	l.Info("hello", "thread_id", "thread-1")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"thread_id":"thread-1"`) {
		t.Errorf("missing attribute: %s", buf.String())
	}
}

func TestNewLoggerWithWriter_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&Config{Level: "warn", Format: "text"}, &buf)
	l.Info("dropped")
	l.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=kept") {
		t.Errorf("text handler output: %s", out)
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	l, err := NewLogger(&Config{File: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info("to file")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file content: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("bogus") != slog.LevelInfo {
		t.Error("ParseLevel mismatch")
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != slog.Default() {
		t.Error("Or(nil) should return slog.Default()")
	}
}
