// Package llm 提供语言模型客户端：OpenAI 兼容 HTTP、eino ChatModel 适配以及按 provider 限流。
package llm

import (
	"context"
	"fmt"

	"voice-agent/pkg/config"
)

// Client LLM 客户端接口
type Client interface {
	// Chat 聊天，返回纯文本
	Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 创建 HTTP LLM 客户端；openai 与 qwen 等 OpenAI 兼容端点共用实现。
// type=eino 的客户端需要 context 构造 ChatModel，见 NewEinoClientFromConfig。
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai", "qwen", "deepseek":
		provider := cfg.Provider
		if provider == "" {
			provider = "openai"
		}
		return NewOpenAIClient(provider, cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("不支持的 LLM provider: %s", cfg.Provider)
	}
}
