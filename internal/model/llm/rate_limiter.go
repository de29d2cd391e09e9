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
	"sync"
	"time"

	"golang.org/x/time/rate"

	"voice-agent/pkg/config"
)

// LLMRateLimiter LLM Provider 维度的限流器：请求速率、token 预算与并发
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*llmLimiter // provider -> limiter
	defaults config.LLMRateLimitConfig
}

type llmLimiter struct {
	requestLimiter *rate.Limiter
	tokenLimiter   *rate.Limiter
	semaphore      chan struct{}
	config         config.LLMRateLimitConfig

	mu               sync.Mutex
	tokensUsedMinute int
	minuteStart      time.Time
}

// DefaultLLMLimit 未配置 provider 时使用的限额
var DefaultLLMLimit = config.LLMRateLimitConfig{
	TokensPerMinute:   90000,
	RequestsPerMinute: 3500,
	MaxConcurrent:     50,
}

// NewLLMRateLimiter 创建 LLM 限流器；defaults 为 nil 时使用 DefaultLLMLimit
func NewLLMRateLimiter(configs map[string]config.LLMRateLimitConfig, defaults *config.LLMRateLimitConfig) *LLMRateLimiter {
	d := DefaultLLMLimit
	if defaults != nil {
		d = *defaults
	}
	l := &LLMRateLimiter{
		limiters: make(map[string]*llmLimiter),
		defaults: d,
	}
	for provider, c := range configs {
		l.limiters[provider] = newLLMLimiter(c)
	}
	return l
}

func newLLMLimiter(c config.LLMRateLimitConfig) *llmLimiter {
	limiter := &llmLimiter{config: c, minuteStart: time.Now()}

	// burst = 2 秒的配额
	if c.RequestsPerMinute > 0 {
		burst := int(c.RequestsPerMinute / 60.0 * 2)
		if burst < 1 {
			burst = 1
		}
		limiter.requestLimiter = rate.NewLimiter(rate.Limit(c.RequestsPerMinute/60.0), burst)
	}
	if c.TokensPerMinute > 0 {
		burst := c.TokensPerMinute / 60 * 2
		if burst < 1 {
			burst = 1
		}
		limiter.tokenLimiter = rate.NewLimiter(rate.Limit(float64(c.TokensPerMinute)/60.0), burst)
	}
	if c.MaxConcurrent > 0 {
		limiter.semaphore = make(chan struct{}, c.MaxConcurrent)
	}
	return limiter
}

func (l *LLMRateLimiter) get(provider string) *llmLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[provider]
	if !ok {
		limiter = newLLMLimiter(l.defaults)
		l.limiters[provider] = limiter
	}
	return limiter
}

// Wait 阻塞直到获得执行许可；成功后必须调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	limiter := l.get(provider)

	if limiter.requestLimiter != nil {
		if err := limiter.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if limiter.tokenLimiter != nil && estimatedTokens > 0 {
		// 单次请求不能超过 burst，否则 WaitN 直接报错
		n := estimatedTokens
		if b := limiter.tokenLimiter.Burst(); n > b {
			n = b
		}
		if err := limiter.tokenLimiter.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if limiter.semaphore != nil {
		select {
		case limiter.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	limiter.record(estimatedTokens)
	return nil
}

// Release 释放并发 slot
func (l *LLMRateLimiter) Release(provider string) {
	limiter := l.get(provider)
	if limiter.semaphore == nil {
		return
	}
	select {
	case <-limiter.semaphore:
	default:
	}
}

func (limiter *llmLimiter) record(tokens int) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	now := time.Now()
	if now.Sub(limiter.minuteStart) > time.Minute {
		limiter.tokensUsedMinute = tokens
		limiter.minuteStart = now
		return
	}
	limiter.tokensUsedMinute += tokens
}

// Stats 获取限流统计信息
func (l *LLMRateLimiter) Stats(provider string) map[string]interface{} {
	limiter := l.get(provider)
	limiter.mu.Lock()
	tokensUsed := limiter.tokensUsedMinute
	limiter.mu.Unlock()

	stats := map[string]interface{}{
		"requests_per_minute": limiter.config.RequestsPerMinute,
		"tokens_per_minute":   limiter.config.TokensPerMinute,
		"tokens_used_minute":  tokensUsed,
		"max_concurrent":      limiter.config.MaxConcurrent,
	}
	if limiter.semaphore != nil {
		stats["current_concurrent"] = len(limiter.semaphore)
		stats["available_slots"] = cap(limiter.semaphore) - len(limiter.semaphore)
	}
	return stats
}
