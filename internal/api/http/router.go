package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"voice-agent/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	extra      []app.HandlerFunc
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: middleware}
}

// Use 追加全局中间件（如 tracing），须在 Build 之前调用，路由注册后添加的中间件不生效
func (r *Router) Use(mw ...app.HandlerFunc) {
	r.extra = append(r.extra, mw...)
}

// Build 创建 hertz 服务并注册路由；opts 用于追加 tracer 等服务端选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	hopts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(hopts...)
	h.Use(r.middleware.RequestID(), r.middleware.CORS(), r.middleware.AccessLog())
	if len(r.extra) > 0 {
		h.Use(r.extra...)
	}
	r.SetupRoutes(h)
	return h
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(h *server.Hertz) {
	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/chat", r.handler.Chat)

	api.POST("/threads", r.handler.CreateThread)
	api.GET("/threads/:id/state", r.handler.ThreadState)
	api.GET("/memory/:namespace/:key", r.handler.GetMemory)

	h.GET("/metrics", r.handler.Metrics)
}
