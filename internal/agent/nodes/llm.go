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

package nodes

import (
	"context"
	"encoding/json"

	"voice-agent/internal/agent/state"
	"voice-agent/internal/model/llm"
)

const classifierPrompt = "You supervise a conversation between two agents: researcher and greeting. " +
	"If the user asks a question or requests specific information, answer RESEARCHER. " +
	"If the user makes a general statement or small talk, answer GREETING. " +
	"Reply with exactly one word: RESEARCHER or GREETING."

const researchPrompt = "You are a researcher. Analyse the request and answer with useful, factual information."

const refinePrompt = "Rewrite the research findings below as a short answer suitable for being read aloud. " +
	"Keep the key facts, drop lists and markup."

// LLMClassifier 基于 LLM 的 Classifier
type LLMClassifier struct {
	client llm.Client
	opts   llm.GenerateOptions
}

// NewLLMClassifier 创建分类器；温度固定为 0
func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client, opts: llm.GenerateOptions{Temperature: 0, MaxTokens: 8}}
}

// Classify 实现 Classifier；用户消息为 JSON 形式的上下文
func (c *LLMClassifier) Classify(ctx context.Context, in ClassifyInput) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return c.client.Chat(ctx, []llm.Message{
		{Role: state.RoleSystem, Content: classifierPrompt},
		{Role: state.RoleUser, Content: string(payload)},
	}, c.opts)
}

// LLMResearcher 基于 LLM 的 ResearchProvider
type LLMResearcher struct {
	client llm.Client
	opts   llm.GenerateOptions
}

// NewLLMResearcher 创建研究者
func NewLLMResearcher(client llm.Client, opts llm.GenerateOptions) *LLMResearcher {
	return &LLMResearcher{client: client, opts: opts}
}

// Research 实现 ResearchProvider
func (r *LLMResearcher) Research(ctx context.Context, query string) (string, error) {
	return r.client.Chat(ctx, []llm.Message{
		{Role: state.RoleSystem, Content: researchPrompt},
		{Role: state.RoleUser, Content: query},
	}, r.opts)
}

// Refine 实现 ResearchProvider
func (r *LLMResearcher) Refine(ctx context.Context, query, raw string) (string, error) {
	return r.client.Chat(ctx, []llm.Message{
		{Role: state.RoleSystem, Content: refinePrompt},
		{Role: state.RoleUser, Content: "Question: " + query + "\n\nFindings:\n" + raw},
	}, r.opts)
}

// LLMGenerator 基于 LLM 的 Generator
type LLMGenerator struct {
	client llm.Client
	opts   llm.GenerateOptions
}

// NewLLMGenerator 创建回复生成器
func NewLLMGenerator(client llm.Client, opts llm.GenerateOptions) *LLMGenerator {
	return &LLMGenerator{client: client, opts: opts}
}

// Generate 实现 Generator
func (g *LLMGenerator) Generate(ctx context.Context, systemPrompt string, contextMessages []state.Message) (string, error) {
	msgs := make([]llm.Message, 0, len(contextMessages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: state.RoleSystem, Content: systemPrompt})
	}
	for _, m := range contextMessages {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return g.client.Chat(ctx, msgs, g.opts)
}
