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

package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"golang.org/x/sync/errgroup"

	"voice-agent/internal/agent"
	"voice-agent/internal/api/http"
	"voice-agent/internal/api/http/middleware"
	"voice-agent/internal/app"
	pkglog "voice-agent/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与 Assistant）
type App struct {
	config       *app.Bootstrap
	assistant    *agent.Assistant
	router       *http.Router
	handler      *http.Handler
	hertz        *server.Hertz
	metrics      *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil {
		return nil, fmt.Errorf("bootstrap is nil")
	}
	logger := bootstrap.Logger.Logger
	assistant := app.NewAssistant(ctx, bootstrap)
	handler := http.NewHandler(assistant, assistant.Memory(), logger)
	router := http.NewRouter(handler, middleware.NewMiddleware(logger))
	return &App{
		config:    bootstrap,
		assistant: assistant,
		router:    router,
		handler:   handler,
	}, nil
}

// Assistant 返回对话入口
func (a *App) Assistant() *agent.Assistant { return a.assistant }

// Run 启动 HTTP 服务（阻塞）；monitoring.prometheus.port>0 时在独立端口暴露 /metrics
func (a *App) Run(addr string) error {
	cfg := a.config.Config
	levelVar := &slog.LevelVar{}
	levelVar.Set(pkglog.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(a.config.Logger.Output()),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tracingCfg := cfg.Monitoring.Tracing
	if tracingCfg.Enable && tracingCfg.ExportEndpoint != "" {
		serviceName := tracingCfg.ServiceName
		if serviceName == "" {
			serviceName = "voice-agent-api"
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(tracingCfg.ExportEndpoint),
		}
		if tracingCfg.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.router.Use(hertztracing.ServerMiddleware(tcfg))
		a.hertz = a.router.Build(addr, tracerOpt)
		a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", tracingCfg.ExportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}

	var g errgroup.Group
	g.Go(a.hertz.Run)
	if p := cfg.Monitoring.Prometheus; p.Enable && p.Port > 0 {
		a.metrics = server.Default(server.WithHostPorts(fmt.Sprintf(":%d", p.Port)))
		a.metrics.GET("/metrics", a.handler.Metrics)
		g.Go(a.metrics.Run)
		a.config.Logger.Info("指标端口已启用", "port", p.Port)
	}
	return g.Wait()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.config.Close()
}
