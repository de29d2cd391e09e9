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

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"voice-agent/internal/agent/state"
	"voice-agent/internal/storage/vector"
	"voice-agent/pkg/metrics"
)

// 长期事实的 key
const (
	FactUserPreferences = "user_preferences"
	FactResearchHistory = "research_history"
)

// Consolidate 将本轮的用户消息与本轮回复（Response）写入短期缓冲，并提升可提升的长期事实。
// 返回新的短期缓冲与本轮新增的长期事实（无提升时为 nil）。
func (m *Manager) Consolidate(ctx context.Context, st *state.ConversationState) ([]state.Record, map[string]any) {
	rec := state.Record{
		ThreadID:     st.ThreadID,
		UserMessage:  st.LastUserMessage,
		AgentMessage: st.Response,
	}
	if rec.UserMessage == "" {
		rec.UserMessage = st.LastUser()
	}
	if st.ResearchResult != "" {
		rec.Query = rec.UserMessage
		rec.ResearchResult = st.ResearchResult
	}
	shortTerm := m.AppendShortTerm(st.ShortTermMemory, rec)

	fact, ok := m.ExtractRelevant(rec)
	if !ok {
		return shortTerm, nil
	}
	merged := state.ShallowMerge(st.LongTermMemory, fact)
	if err := m.Persist(ctx, NamespaceLongTerm, st.ThreadID, merged); err != nil {
		m.logger.WarnContext(ctx, "长期记忆持久化失败", "thread_id", st.ThreadID, "error", err)
	}
	for _, kind := range sortedKeys(fact) {
		metrics.MemoryPromotionsTotal.WithLabelValues(kind).Inc()
	}
	m.indexFacts(ctx, st.ThreadID, fact)
	return shortTerm, fact
}

// indexFacts 将提升的事实写入向量索引；失败只记录告警
func (m *Manager) indexFacts(ctx context.Context, threadID string, fact map[string]any) {
	if m.facts == nil {
		return
	}
	if err := m.addFacts(ctx, threadID, fact); err != nil {
		m.logger.WarnContext(ctx, "事实索引写入失败", "thread_id", threadID, "error", err)
	}
}

func (m *Manager) addFacts(ctx context.Context, threadID string, fact map[string]any) error {
	kinds := sortedKeys(fact)
	texts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		texts = append(texts, factText(kind, fact[kind]))
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed facts: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("embed facts: got %d vectors for %d texts", len(vecs), len(texts))
	}
	vectors := make([]*vector.Vector, len(texts))
	for i, kind := range kinds {
		vectors[i] = &vector.Vector{
			ID:       "fact-" + uuid.New().String(),
			Content:  texts[i],
			Values:   vecs[i],
			Metadata: map[string]string{"thread_id": threadID, "kind": kind},
		}
	}
	return m.facts.Add(ctx, vectors)
}

// RebuildFacts 事实索引为空时，从 long_term_memory 的记录重建索引，返回写入的事实条数。
// 每个 thread 只保留各类事实的最新一条；索引已有数据（如 chromem 持久化目录）时直接返回。
func (m *Manager) RebuildFacts(ctx context.Context) (int, error) {
	if m.facts == nil || m.facts.Count() > 0 {
		return 0, nil
	}
	keys, err := m.store.Keys(ctx, NamespaceLongTerm)
	if err != nil {
		return 0, m.storageFault(ctx, "rebuild_facts", err, "namespace", NamespaceLongTerm)
	}
	sort.Strings(keys)
	n := 0
	for _, threadID := range keys {
		data := m.Retrieve(ctx, NamespaceLongTerm, threadID)
		fact := map[string]any{}
		for _, kind := range []string{FactUserPreferences, FactResearchHistory} {
			if v, ok := data[kind]; ok {
				fact[kind] = v
			}
		}
		if len(fact) == 0 {
			continue
		}
		if err := m.addFacts(ctx, threadID, fact); err != nil {
			return n, fmt.Errorf("rebuild facts for %s: %w", threadID, err)
		}
		n += len(fact)
	}
	return n, nil
}

// RecallFacts 按语义从事实索引召回最多 k 条事实文本；事实跨 thread 共享
func (m *Manager) RecallFacts(ctx context.Context, query string, k int) []string {
	if m.facts == nil || m.facts.Count() == 0 || query == "" {
		return nil
	}
	if k <= 0 {
		k = m.searchK
	}
	vecs, err := m.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		m.logger.WarnContext(ctx, "事实召回 embedding 失败", "error", err)
		return nil
	}
	results, err := m.facts.Search(ctx, vecs[0], k)
	if err != nil {
		m.logger.WarnContext(ctx, "事实召回失败", "error", err)
		return nil
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}
	return out
}

func factText(kind string, v any) string {
	m, _ := v.(map[string]any)
	switch kind {
	case FactUserPreferences:
		return fmt.Sprintf("User said: %v", m["user_message"])
	case FactResearchHistory:
		return fmt.Sprintf("Researched %q: %v", m["query"], m["result"])
	default:
		return fmt.Sprintf("%s: %v", kind, v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
