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
	"time"

	"voice-agent/pkg/metrics"
)

// RateLimitedClient 包装任意 Client，在真实调用前后执行限流
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

// NewRateLimitedClient 创建带限流的 LLM 客户端。rateLimiter 为 nil 时退化为直接调用。
func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// Chat 实现 Client：限流等待 -> 调用 -> 记录耗时与结果
func (c *RateLimitedClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	provider := c.inner.Provider()
	if c.rateLimiter != nil {
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider, estimateTokens(messages, options.MaxTokens)); err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(provider, "rate_limited").Inc()
			return "", err
		}
		metrics.RateLimitWaitSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())
		defer c.rateLimiter.Release(provider)
	}

	start := time.Now()
	out, err := c.inner.Chat(ctx, messages, options)
	metrics.LLMRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(provider, outcome).Inc()
	return out, err
}

// Model 返回底层 Client 的模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// estimateTokens 粗略估算请求的 token 数（4 字符 ≈ 1 token）
func estimateTokens(msgs []Message, maxTokens int) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	estimated := total / 4
	if maxTokens > 0 {
		estimated += maxTokens
	}
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
