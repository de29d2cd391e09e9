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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("VOICE_AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// chatReply POST /api/chat 的响应
type chatReply struct {
	ThreadID     string `json:"thread_id"`
	Response     string `json:"response"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	DurationMS   int64  `json:"duration_ms"`
}

// apiClient 访问 voice-agent HTTP API
type apiClient struct {
	http *resty.Client
}

func newClient(baseURL string) *apiClient {
	return &apiClient{http: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")}
}

func (c *apiClient) health() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.http.R().
		SetResult(&out).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/health: %s", resp.String())
	}
	return out, nil
}

func (c *apiClient) chat(threadID, message string) (*chatReply, error) {
	body := map[string]string{"thread_id": threadID, "message": message}
	var out chatReply
	resp, err := c.http.R().
		SetBody(body).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/chat: %s", resp.String())
	}
	return &out, nil
}

func (c *apiClient) newThread() (string, error) {
	var out struct {
		ThreadID string `json:"thread_id"`
	}
	resp, err := c.http.R().
		SetResult(&out).
		Post("/api/threads")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("POST /api/threads: %s", resp.String())
	}
	return out.ThreadID, nil
}

func (c *apiClient) threadState(threadID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.http.R().
		SetResult(&out).
		Get("/api/threads/" + threadID + "/state")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/threads/%s/state: %s", threadID, resp.String())
	}
	return out, nil
}

func (c *apiClient) memory(namespace, key string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := c.http.R().
		SetResult(&out).
		SetPathParams(map[string]string{"namespace": namespace, "key": key}).
		Get("/api/memory/{namespace}/{key}")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET memory: %s", resp.String())
	}
	return out, nil
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
