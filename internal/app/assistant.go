package app

import (
	"context"

	"voice-agent/internal/agent"
	"voice-agent/internal/agent/graph"
	"voice-agent/internal/agent/memory"
	"voice-agent/internal/agent/nodes"
	"voice-agent/internal/agent/state"
	"voice-agent/internal/model/llm"
)

// NewAssistant 用 Bootstrap 的依赖装配记忆管理器、节点、编排图与 Assistant。
// 事实索引为空时先从 long_term_memory 重建，重建失败只记录告警。
func NewAssistant(ctx context.Context, b *Bootstrap) *agent.Assistant {
	cfg := b.Config
	logger := b.Logger.Logger

	memOpts := []memory.Option{
		memory.WithBound(cfg.Memory.ShortTermBound),
		memory.WithLogger(logger),
		memory.WithKeywords(cfg.Memory.Keywords),
		memory.WithSearchDefaults(cfg.Memory.SearchK, cfg.Memory.MaxDistance),
	}
	if b.Facts != nil {
		memOpts = append(memOpts, memory.WithFactIndex(b.Facts))
	}
	mem := memory.NewManager(b.KV, b.Embedder, memOpts...)
	if n, err := mem.RebuildFacts(ctx); err != nil {
		logger.WarnContext(ctx, "事实索引重建失败", "error", err)
	} else if n > 0 {
		logger.InfoContext(ctx, "事实索引已从长期记忆重建", "facts", n)
	}

	genOpts := llm.GenerateOptions{Temperature: cfg.Model.LLM.Temperature, MaxTokens: cfg.Model.LLM.MaxTokens}
	n := nodes.New(mem,
		nodes.NewLLMClassifier(b.LLM),
		nodes.NewLLMResearcher(b.LLM, genOpts),
		nodes.NewLLMGenerator(b.LLM, genOpts),
		nodes.WithLogger(logger),
		nodes.WithSearch(cfg.Memory.SearchK, cfg.Memory.MaxDistance),
	)

	store := state.NewMemoryStore(cfg.Memory.ShortTermBound, logger)
	g := n.Register(graph.New(
		graph.WithStore(store),
		graph.WithCheckpoints(b.Checkpoints),
		graph.WithMaxSteps(cfg.Graph.MaxSteps),
		graph.WithLogger(logger),
		graph.WithFallbackLoader(agent.SessionLogLoader(mem)),
	))
	return agent.NewAssistant(g, mem, memory.NewThreadIDAllocator(mem), store, logger)
}
