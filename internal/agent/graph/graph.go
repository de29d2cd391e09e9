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

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"voice-agent/internal/agent/runtime"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
	"voice-agent/pkg/metrics"
	"voice-agent/pkg/tracing"
)

// End 终止标记，节点返回 Next=End 时本轮结束
const End = "__end__"

// DefaultMaxSteps 单轮最多执行的节点次数
const DefaultMaxSteps = 10

const (
	defaultEntry     = "supervisor"
	defaultErrorNode = "error"
)

// Result 节点返回值：下一节点与对状态的部分更新
type Result struct {
	// Next 显式下一节点；为空时按条件边、静态边解析
	Next   string
	Update state.Update
}

// NodeFunc 节点函数，接收状态快照，不得修改入参
type NodeFunc func(ctx context.Context, st *state.ConversationState) (Result, error)

// RouteFunc 条件边，基于合并后的状态返回下一节点
type RouteFunc func(st *state.ConversationState) string

// FallbackLoader State Store 与 checkpoint 均无记录时的兜底加载（如 session_logs）
type FallbackLoader func(ctx context.Context, threadID string) (*state.ConversationState, bool)

// Graph 有向图编排器：节点注册表 + 条件边 + 静态边 + 迭代上限
type Graph struct {
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]RouteFunc

	entry     string
	errorNode string
	maxSteps  int

	store       state.Store
	checkpoints runtime.CheckpointStore
	fallback    FallbackLoader
	logger      *slog.Logger
}

// Option 配置 Graph
type Option func(*Graph)

// WithStore 指定 State Store；未指定时使用内存实现
func WithStore(s state.Store) Option {
	return func(g *Graph) {
		if s != nil {
			g.store = s
		}
	}
}

// WithCheckpoints 每步合并后写 checkpoint
func WithCheckpoints(cs runtime.CheckpointStore) Option {
	return func(g *Graph) { g.checkpoints = cs }
}

// WithMaxSteps 迭代上限，<=0 使用 DefaultMaxSteps
func WithMaxSteps(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxSteps = n
		}
	}
}

// WithLogger 指定日志
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithEntry 入口节点，默认 supervisor
func WithEntry(name string) Option {
	return func(g *Graph) { g.entry = name }
}

// WithErrorNode 错误节点，默认 error
func WithErrorNode(name string) Option {
	return func(g *Graph) { g.errorNode = name }
}

// WithFallbackLoader 恢复状态的兜底来源
func WithFallbackLoader(fn FallbackLoader) Option {
	return func(g *Graph) { g.fallback = fn }
}

// New 创建空图，节点与边通过 AddNode/AddEdge/AddConditionalEdge 注册
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string]string),
		conditional: make(map[string]RouteFunc),
		entry:       defaultEntry,
		errorNode:   defaultErrorNode,
		maxSteps:    DefaultMaxSteps,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.store == nil {
		g.store = state.NewMemoryStore(0, g.logger)
	}
	return g
}

// AddNode 注册节点；同名覆盖
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// AddEdge 静态边 from -> to
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdge 条件边，优先于静态边
func (g *Graph) AddConditionalEdge(from string, route RouteFunc) *Graph {
	g.conditional[from] = route
	return g
}

// Store 返回 State Store
func (g *Graph) Store() state.Store { return g.store }

// MaxSteps 返回迭代上限
func (g *Graph) MaxSteps() int { return g.maxSteps }

// Nodes 已注册节点名（排序）
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate 检查入口节点已注册、静态边目标存在
func (g *Graph) Validate() error {
	if _, ok := g.nodes[g.entry]; !ok {
		return verrors.Validation("graph.validate", fmt.Sprintf("entry node %q not registered", g.entry))
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return verrors.Validation("graph.validate", fmt.Sprintf("edge from unknown node %q", from))
		}
		if _, ok := g.nodes[to]; !ok && to != End {
			return verrors.Validation("graph.validate", fmt.Sprintf("edge %s -> unknown node %q", from, to))
		}
	}
	return nil
}

// Execute 执行一轮：恢复状态、写入用户消息，然后按路由依次调用节点直到 End 或达到迭代上限。
// 仅调用方误用（thread_id 为空、入口节点未注册）返回 error；节点失败体现在返回状态中。
func (g *Graph) Execute(ctx context.Context, threadID, userMessage string) (*state.ConversationState, error) {
	if threadID == "" {
		return nil, verrors.Validation("graph.execute", "thread_id is empty")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, verrors.Validation("graph.execute", fmt.Sprintf("entry node %q not registered", g.entry))
	}

	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, threadID)
	defer func() {
		metrics.TurnDuration.Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, nil)
	}()

	g.resume(ctx, threadID)
	g.store.BeginTurn(ctx, threadID)
	g.store.Apply(ctx, threadID, seed(threadID, userMessage))

	current := g.entry
	for step := 1; step <= g.maxSteps; step++ {
		snap, _ := g.store.Load(ctx, threadID)
		res, err := g.invoke(ctx, current, step, snap)
		if err != nil {
			g.logger.WarnContext(ctx, "节点执行失败，转入错误节点", "thread_id", threadID, "node", current, "error", err)
			res = g.failure(current, err)
		}
		merged := g.store.Apply(ctx, threadID, res.Update)

		next, rerr := g.resolve(current, res, merged)
		if rerr != nil {
			g.logger.WarnContext(ctx, "路由失败，转入错误节点", "thread_id", threadID, "node", current, "error", rerr)
			fail := g.failure(current, rerr)
			merged = g.store.Apply(ctx, threadID, fail.Update)
			next = fail.Next
		}
		g.checkpoint(ctx, step, current, next, merged)
		if next == End {
			return merged, nil
		}
		current = next
	}

	g.logger.WarnContext(ctx, "达到迭代上限，强制终止",
		"thread_id", threadID, "max_steps", g.maxSteps,
		"error", verrors.LoopExhaustion("graph.execute", g.maxSteps))
	metrics.LoopExhaustionTotal.Inc()
	final := g.store.Apply(ctx, threadID, state.Update{Terminate: state.Ptr(true)})
	g.checkpoint(ctx, g.maxSteps, current, End, final)
	return final, nil
}

// seed 本轮初始更新：追加用户消息并重置本轮临时字段
func seed(threadID, msg string) state.Update {
	u := state.Update{
		ThreadID:         state.Ptr(threadID),
		LastUserMessage:  state.Ptr(msg),
		LastAgent:        state.Ptr(""),
		Query:            state.Ptr(""),
		ResearchResult:   state.Ptr(""),
		ModifiedResponse: state.Ptr(""),
		Response:         state.Ptr(""),
		Terminate:        state.Ptr(false),
		Error:            state.Ptr(false),
		ErrorMessage:     state.Ptr(""),
	}
	if msg != "" {
		u.UserMessages = []state.Message{state.UserMessage(msg)}
	}
	return u
}

// resume 按 State Store -> 最新 checkpoint -> 兜底加载 的顺序恢复规范状态
func (g *Graph) resume(ctx context.Context, threadID string) {
	if _, ok := g.store.Load(ctx, threadID); ok {
		return
	}
	if g.checkpoints != nil {
		cp, err := g.checkpoints.Latest(ctx, threadID)
		if err != nil {
			metrics.StorageFaultsTotal.WithLabelValues("checkpoint.latest").Inc()
			g.logger.WarnContext(ctx, "读取 checkpoint 失败", "thread_id", threadID, "error", verrors.Storage("checkpoint.latest", err))
		} else if cp != nil {
			st, err := state.Unmarshal(cp.State)
			if err == nil {
				st.ThreadID = threadID
				g.store.Put(ctx, st)
				g.logger.InfoContext(ctx, "从 checkpoint 恢复状态", "thread_id", threadID, "checkpoint_id", cp.ID, "step", cp.Step)
				return
			}
			g.logger.WarnContext(ctx, "checkpoint 状态无法解析", "thread_id", threadID, "checkpoint_id", cp.ID, "error", err)
		}
	}
	if g.fallback != nil {
		if st, ok := g.fallback(ctx, threadID); ok && st != nil {
			st.ThreadID = threadID
			g.store.Put(ctx, st)
			g.logger.InfoContext(ctx, "从兜底来源恢复状态", "thread_id", threadID)
		}
	}
}

// invoke 在 span 与指标中执行单个节点，panic 转为 error
func (g *Graph) invoke(ctx context.Context, node string, step int, snap *state.ConversationState) (res Result, err error) {
	fn, ok := g.nodes[node]
	if !ok {
		return Result{}, verrors.Validation("graph.invoke", fmt.Sprintf("unknown node %q", node))
	}
	nctx, span := tracing.StartNodeSpan(ctx, node, step)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panic: %v", node, r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.NodeDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
		metrics.NodeTotal.WithLabelValues(node, outcome).Inc()
		tracing.EndSpan(span, err)
	}()
	g.logger.DebugContext(ctx, "执行节点", "thread_id", snap.ThreadID, "node", node, "step", step)
	return fn(nctx, snap)
}

// failure 将错误转为路由到错误节点的结果；错误节点自身失败时直接结束
func (g *Graph) failure(current string, err error) Result {
	u := state.Update{Error: state.Ptr(true), ErrorMessage: state.Ptr(err.Error())}
	if current == g.errorNode {
		u.Terminate = state.Ptr(true)
		return Result{Next: End, Update: u}
	}
	if _, ok := g.nodes[g.errorNode]; !ok {
		u.Terminate = state.Ptr(true)
		return Result{Next: End, Update: u}
	}
	return Result{Next: g.errorNode, Update: u}
}

// resolve 路由优先级：显式 Next > 条件边 > 静态边；均无或目标未注册返回 ValidationError
func (g *Graph) resolve(current string, res Result, merged *state.ConversationState) (string, error) {
	next := res.Next
	if next == "" {
		if route, ok := g.conditional[current]; ok {
			next = route(merged)
		}
	}
	if next == "" {
		next = g.edges[current]
	}
	if next == "" {
		return "", verrors.Validation("graph.route", fmt.Sprintf("no transition from %s", current))
	}
	if next == End {
		return End, nil
	}
	if _, ok := g.nodes[next]; !ok {
		return "", verrors.Validation("graph.route", fmt.Sprintf("unknown node %q after %s", next, current))
	}
	return next, nil
}

func (g *Graph) checkpoint(ctx context.Context, step int, node, next string, st *state.ConversationState) {
	if g.checkpoints == nil || st == nil {
		return
	}
	data, err := st.Marshal()
	if err != nil {
		g.logger.WarnContext(ctx, "状态序列化失败，跳过 checkpoint", "thread_id", st.ThreadID, "error", err)
		return
	}
	if _, err := g.checkpoints.Save(ctx, runtime.NewCheckpoint(st.ThreadID, step, node, next, data)); err != nil {
		metrics.StorageFaultsTotal.WithLabelValues("checkpoint.save").Inc()
		g.logger.WarnContext(ctx, "写入 checkpoint 失败", "thread_id", st.ThreadID, "step", step, "error", verrors.Storage("checkpoint.save", err))
	}
}
