package http

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"voice-agent/internal/agent"
	"voice-agent/internal/agent/state"
	verrors "voice-agent/pkg/errors"
	"voice-agent/pkg/metrics"
)

// Assistant 对话入口
type Assistant interface {
	Chat(ctx context.Context, threadID, text string) (*agent.Reply, error)
	NewThread(ctx context.Context) string
	State(ctx context.Context, threadID string) (*state.ConversationState, error)
}

// MemoryReader 按 namespace/key 读取持久化记忆
type MemoryReader interface {
	Retrieve(ctx context.Context, namespace, key string) map[string]any
}

// ChatRequest POST /api/chat 请求体
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// ChatResponse POST /api/chat 响应体
type ChatResponse struct {
	ThreadID     string `json:"thread_id"`
	Response     string `json:"response"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// Handler HTTP 处理器
type Handler struct {
	assistant Assistant
	memory    MemoryReader
	logger    *slog.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(assistant Assistant, memory MemoryReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{assistant: assistant, memory: memory, logger: logger}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "voice-agent",
	})
}

// Chat 执行一轮对话
// POST /api/chat
func (h *Handler) Chat(ctx context.Context, c *app.RequestContext) {
	var req ChatRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	if h.assistant == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "assistant is not configured"})
		return
	}
	reply, err := h.assistant.Chat(ctx, req.ThreadID, req.Message)
	if err != nil {
		h.logger.ErrorContext(ctx, "对话失败", "thread_id", req.ThreadID, "error", err)
		c.JSON(statusOf(err), map[string]string{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, ChatResponse{
		ThreadID:     reply.ThreadID,
		Response:     reply.Text,
		Error:        reply.Error,
		ErrorMessage: reply.ErrorMessage,
		DurationMS:   reply.Duration.Milliseconds(),
	})
}

// CreateThread 分配新的 thread
// POST /api/threads
func (h *Handler) CreateThread(ctx context.Context, c *app.RequestContext) {
	if h.assistant == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "assistant is not configured"})
		return
	}
	c.JSON(consts.StatusCreated, map[string]string{"thread_id": h.assistant.NewThread(ctx)})
}

// ThreadState 返回 thread 的规范状态
// GET /api/threads/:id/state
func (h *Handler) ThreadState(ctx context.Context, c *app.RequestContext) {
	threadID := c.Param("id")
	if threadID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "thread_id is required"})
		return
	}
	if h.assistant == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "assistant is not configured"})
		return
	}
	st, err := h.assistant.State(ctx, threadID)
	if err != nil {
		c.JSON(statusOf(err), map[string]string{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, st)
}

// GetMemory 读取持久化记忆，未命中返回 {}
// GET /api/memory/:namespace/:key
func (h *Handler) GetMemory(ctx context.Context, c *app.RequestContext) {
	ns, key := c.Param("namespace"), c.Param("key")
	if ns == "" || key == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "namespace and key are required"})
		return
	}
	if h.memory == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "memory is not configured"})
		return
	}
	c.JSON(consts.StatusOK, h.memory.Retrieve(ctx, ns, key))
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.logger.ErrorContext(ctx, "导出指标失败", "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to gather metrics"})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

func statusOf(err error) int {
	switch {
	case verrors.Is(err, verrors.ErrNotFound):
		return consts.StatusNotFound
	case verrors.KindOf(err) == verrors.KindValidation, verrors.Is(err, verrors.ErrInvalidArg):
		return consts.StatusBadRequest
	default:
		return consts.StatusInternalServerError
	}
}
