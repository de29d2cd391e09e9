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
	"sort"

	"voice-agent/internal/agent/state"
	"voice-agent/internal/storage/vector"
	verrors "voice-agent/pkg/errors"
)

// SemanticSearch 从 candidates 中找出与 query 最近的 k 条，丢弃距离超过 maxDistance 的，按距离升序返回。
// 无候选时直接返回空结果且不调用 embedding；embedding 失败时记录告警并返回空结果。
// k<=0 或 maxDistance<=0 时使用 Manager 的默认值。
func (m *Manager) SemanticSearch(ctx context.Context, query string, candidates []state.Message, k int, maxDistance float64) []state.Message {
	out := []state.Message{}
	if len(candidates) == 0 {
		return out
	}
	if k <= 0 {
		k = m.searchK
	}
	if maxDistance <= 0 {
		maxDistance = m.maxDistance
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, c := range candidates {
		texts = append(texts, c.Content)
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = verrors.Validation("embed", "vector count mismatch")
	}
	if err != nil {
		m.logger.WarnContext(ctx, "语义检索 embedding 失败，返回空结果", "error", verrors.Upstream("memory.semantic_search", err))
		return out
	}

	type scored struct {
		idx      int
		distance float64
	}
	ranked := make([]scored, len(candidates))
	for i := range candidates {
		ranked[i] = scored{idx: i, distance: vector.Euclidean(vecs[0], vecs[i+1])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].distance < ranked[j].distance })

	if k > len(ranked) {
		k = len(ranked)
	}
	for _, r := range ranked[:k] {
		if r.distance > maxDistance {
			continue
		}
		out = append(out, candidates[r.idx])
	}
	return out
}
