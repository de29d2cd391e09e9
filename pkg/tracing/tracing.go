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

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "voice-agent"

// StartTurnSpan 开始一轮对话的 span
func StartTurnSpan(ctx context.Context, threadID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn.execute",
		trace.WithAttributes(attribute.String("thread.id", threadID)),
	)
}

// StartNodeSpan 开始节点执行 span
func StartNodeSpan(ctx context.Context, node string, step int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "node.execute",
		trace.WithAttributes(
			attribute.String("node.name", node),
			attribute.Int("node.step", step),
		),
	)
}

// EndSpan 结束 span，err 非空时记录错误状态
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
