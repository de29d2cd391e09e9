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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"voice-agent/internal/app"
	"voice-agent/pkg/config"
	"voice-agent/pkg/tracing"
)

// runLocal 在进程内装配 Assistant 并进入对话循环，配置同 API 服务
func runLocal(args []string, in io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	ctx := context.Background()

	if t := cfg.Monitoring.Tracing; t.Enable {
		shutdown, err := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    t.ServiceName,
			ServiceVersion: version,
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			fmt.Fprintf(stderr, "初始化 tracing 失败: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	bootstrap, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "初始化失败: %v\n", err)
		return 1
	}
	defer bootstrap.Close()
	assistant := app.NewAssistant(ctx, bootstrap)

	threadID := os.Getenv("VOICE_AGENT_THREAD_ID")
	if len(args) > 0 {
		threadID = args[0]
	}
	chatLoop(in, stdout, stderr, threadID, func(id, msg string) (*chatReply, error) {
		reply, err := assistant.Chat(ctx, id, msg)
		if err != nil {
			return nil, err
		}
		return &chatReply{
			ThreadID:     reply.ThreadID,
			Response:     reply.Text,
			Error:        reply.Error,
			ErrorMessage: reply.ErrorMessage,
			DurationMS:   reply.Duration.Milliseconds(),
		}, nil
	})
	return 0
}
