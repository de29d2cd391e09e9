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
	"log/slog"

	"voice-agent/internal/agent/graph"
	"voice-agent/internal/agent/memory"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
)

// 节点名
const (
	Supervisor        = "supervisor"
	Researcher        = "researcher"
	Greeting          = "greeting"
	MemoryConsolidate = "memoryConsolidate"
	Error             = "error"
)

// 分类标签
const (
	LabelResearcher = "RESEARCHER"
	LabelGreeting   = "GREETING"
)

// DefaultErrorMessage 错误节点在未记录错误信息时使用的文案
const DefaultErrorMessage = "Error in processing flow"

// DefaultSystemPrompt Greeting 节点的默认系统提示
const DefaultSystemPrompt = "You are a friendly voice assistant. Answer briefly and naturally, " +
	"using the conversation context and any research findings provided."

// ClassifyInput 分类上下文
type ClassifyInput struct {
	RecentUser  []string `json:"recent_user_messages"`
	RecentAgent []string `json:"recent_agent_messages"`
	LastAgent   string   `json:"last_agent"`
	Message     string   `json:"current_message"`
}

// Classifier 将当前消息分类为 RESEARCHER 或 GREETING
type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (string, error)
}

// ResearchProvider 执行研究并将结果改写为适合语音回复的文本
type ResearchProvider interface {
	Research(ctx context.Context, query string) (string, error)
	Refine(ctx context.Context, query, raw string) (string, error)
}

// Generator 根据系统提示与上下文消息生成回复
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, contextMessages []state.Message) (string, error)
}

// Nodes 对话图的节点集合，持有节点依赖的协作者
type Nodes struct {
	memory     *memory.Manager
	classifier Classifier
	research   ResearchProvider
	generator  Generator

	systemPrompt string
	searchK      int
	maxDistance  float64
	factK        int
	logger       *slog.Logger
}

// Option 配置 Nodes
type Option func(*Nodes)

// WithLogger 指定日志
func WithLogger(l *slog.Logger) Option {
	return func(n *Nodes) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithSystemPrompt 覆盖 Greeting 系统提示
func WithSystemPrompt(p string) Option {
	return func(n *Nodes) {
		if p != "" {
			n.systemPrompt = p
		}
	}
}

// WithSearch 设置 Supervisor 语义检索的 k 与距离阈值
func WithSearch(k int, maxDistance float64) Option {
	return func(n *Nodes) {
		n.searchK = k
		n.maxDistance = maxDistance
	}
}

// WithFactRecall 设置 Greeting 召回的事实条数，0 表示关闭
func WithFactRecall(k int) Option {
	return func(n *Nodes) { n.factK = k }
}

// New 创建节点集合
func New(mem *memory.Manager, classifier Classifier, research ResearchProvider, generator Generator, opts ...Option) *Nodes {
	n := &Nodes{
		memory:       mem,
		classifier:   classifier,
		research:     research,
		generator:    generator,
		systemPrompt: DefaultSystemPrompt,
		searchK:      memory.DefaultSearchK,
		maxDistance:  memory.DefaultMaxDistance,
		factK:        memory.DefaultSearchK,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Register 将节点与边注册到图上。
// Supervisor 通过条件边按 NextAgent 路由；其余节点显式返回 Next，静态边作为兜底。
func (n *Nodes) Register(g *graph.Graph) *graph.Graph {
	return g.
		AddNode(Supervisor, n.Supervisor).
		AddNode(Researcher, n.Researcher).
		AddNode(Greeting, n.Greeting).
		AddNode(MemoryConsolidate, n.MemoryConsolidate).
		AddNode(Error, n.Error).
		AddConditionalEdge(Supervisor, func(st *state.ConversationState) string { return st.NextAgent }).
		AddEdge(Researcher, MemoryConsolidate).
		AddEdge(Greeting, MemoryConsolidate).
		AddEdge(MemoryConsolidate, graph.End).
		AddEdge(Error, graph.End)
}

// invalid 输入校验失败时路由到错误节点
func (n *Nodes) invalid(ctx context.Context, node, msg string) graph.Result {
	err := verrors.Validation("nodes."+node, msg)
	n.logger.WarnContext(ctx, "节点输入校验失败", "node", node, "error", err)
	return graph.Result{
		Next: Error,
		Update: state.Update{
			Error:        state.Ptr(true),
			ErrorMessage: state.Ptr(err.Error()),
		},
	}
}
