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

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"voice-agent/pkg/config"
)

// EinoClient 将 eino ChatModel 适配为 Client
type EinoClient struct {
	chatModel einomodel.BaseChatModel
	provider  string
	model     string
}

// NewEinoClient 包装已构造的 eino ChatModel
func NewEinoClient(chatModel einomodel.BaseChatModel, provider, model string) *EinoClient {
	if provider == "" {
		provider = "eino"
	}
	return &EinoClient{chatModel: chatModel, provider: provider, model: model}
}

// NewEinoClientFromConfig 用 eino-ext 的 OpenAI ChatModel 构造客户端
func NewEinoClientFromConfig(ctx context.Context, cfg config.LLMConfig) (*EinoClient, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 eino ChatModel 失败: %w", err)
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return NewEinoClient(chatModel, provider, cfg.Model), nil
}

// Chat 实现 Client
func (c *EinoClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	var opts []einomodel.Option
	if options.Temperature > 0 {
		opts = append(opts, einomodel.WithTemperature(float32(options.Temperature)))
	}
	if options.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(options.MaxTokens))
	}
	if options.TopP > 0 {
		opts = append(opts, einomodel.WithTopP(float32(options.TopP)))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, einomodel.WithStop(options.Stop))
	}
	out, err := c.chatModel.Generate(ctx, ToSchemaMessages(messages), opts...)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("eino ChatModel 没有返回结果")
	}
	return out.Content, nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *EinoClient) Provider() string { return c.provider }

// ToSchemaMessages 转为 eino schema 消息
func ToSchemaMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, &schema.Message{Role: roleToSchema(m.Role), Content: m.Content})
	}
	return out
}

func roleToSchema(role string) schema.RoleType {
	switch role {
	case "user":
		return schema.User
	case "assistant":
		return schema.Assistant
	case "system":
		return schema.System
	default:
		return schema.RoleType(role)
	}
}
