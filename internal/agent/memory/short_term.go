package memory

import (
	"strings"

	"voice-agent/internal/agent/state"
)

// AppendShortTerm 追加记录后按上限截断（FIFO 淘汰），不修改 buf
func (m *Manager) AppendShortTerm(buf []state.Record, records ...state.Record) []state.Record {
	return state.Bounded(buf, records, m.bound)
}

// ExtractRelevant 启发式判断记录是否值得提升为长期事实：
// 用户消息包含关键词（不区分大小写）或带有非空研究结果。
func (m *Manager) ExtractRelevant(rec state.Record) (map[string]any, bool) {
	fact := map[string]any{}
	lower := strings.ToLower(rec.UserMessage)
	for _, kw := range m.keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			fact[FactUserPreferences] = map[string]any{
				"thread_id":     rec.ThreadID,
				"user_message":  rec.UserMessage,
				"agent_message": rec.AgentMessage,
			}
			break
		}
	}
	if rec.ResearchResult != "" {
		fact[FactResearchHistory] = map[string]any{
			"query":  rec.Query,
			"result": rec.ResearchResult,
		}
	}
	if len(fact) == 0 {
		return nil, false
	}
	return fact, true
}
