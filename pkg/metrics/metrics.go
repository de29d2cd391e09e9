package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, NodeDuration, NodeTotal,
		LoopExhaustionTotal, StorageFaultsTotal,
		MemoryPromotionsTotal, RateLimitWaitSeconds,
		LLMRequestsTotal, LLMRequestDuration,
	)
}

// TurnDuration 单轮对话（一次 Execute）耗时（秒）
var TurnDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "voice_agent_turn_duration_seconds",
		Help:    "单轮对话耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// NodeDuration 节点执行耗时（秒）
var NodeDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "voice_agent_node_duration_seconds",
		Help:    "节点执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"node"},
)

// NodeTotal 节点执行次数（按结果）
var NodeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "voice_agent_node_total",
		Help: "节点执行次数",
	},
	[]string{"node", "outcome"}, // ok | error
)

// LoopExhaustionTotal 达到迭代上限被强制终止的轮次
var LoopExhaustionTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "voice_agent_loop_exhaustion_total",
		Help: "达到迭代上限的轮次数",
	},
)

// StorageFaultsTotal 存储故障（已降级）次数
var StorageFaultsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "voice_agent_storage_faults_total",
		Help: "存储故障次数",
	},
	[]string{"op"},
)

// MemoryPromotionsTotal 提升到长期记忆的事实数
var MemoryPromotionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "voice_agent_memory_promotions_total",
		Help: "提升到长期记忆的事实数",
	},
	[]string{"kind"}, // user_preferences | research_history
)

// RateLimitWaitSeconds LLM 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "voice_agent_rate_limit_wait_seconds",
		Help:    "LLM 限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// LLMRequestsTotal LLM 调用次数（按 provider 与结果）
var LLMRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "voice_agent_llm_requests_total",
		Help: "LLM 调用次数",
	},
	[]string{"provider", "outcome"}, // ok | error | rate_limited
)

// LLMRequestDuration LLM 调用耗时（秒，不含限流等待）
var LLMRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "voice_agent_llm_request_duration_seconds",
		Help:    "LLM 调用耗时（秒）",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
