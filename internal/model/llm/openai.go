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

package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient OpenAI 兼容的 /chat/completions 客户端
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIClient(provider, model, apiKey, baseURL string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 仅对网络错误、429 与 5xx 重试
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat 实现 Client
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	var (
		result chatResponse
		failed apiError
	)
	response, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: options.Temperature,
			MaxTokens:   options.MaxTokens,
			TopP:        options.TopP,
			Stop:        options.Stop,
		}).
		SetResult(&result).
		SetError(&failed).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("调用 %s API failed: %w", c.provider, err)
	}
	if response.StatusCode() != http.StatusOK {
		if failed.Error.Message != "" {
			return "", fmt.Errorf("%s API 返回错误 (%d): %s", c.provider, response.StatusCode(), failed.Error.Message)
		}
		return "", fmt.Errorf("%s API 返回错误 (%d): %s", c.provider, response.StatusCode(), response.String())
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s API 没有返回结果", c.provider)
	}
	return result.Choices[0].Message.Content, nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string { return c.provider }
