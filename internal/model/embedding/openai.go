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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIEmbedder OpenAI 兼容 /embeddings 端点
type OpenAIEmbedder struct {
	model     string
	apiKey    string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewOpenAIEmbedder 创建 OpenAI Embedding 客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIEmbedder(model, apiKey, baseURL string, dimension int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 1536
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIEmbedder{
		model:     model,
		apiKey:    apiKey,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}
}

// Dimension 返回向量维度
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed 批量调用 embeddings API，结果按 index 还原为输入顺序
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+e.apiKey).
		SetBody(map[string]interface{}{
			"model": e.model,
			"input": texts,
		}).
		Post(e.baseURL + "/embeddings")
	if err != nil {
		return nil, fmt.Errorf("调用 embeddings API failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("embeddings API 返回错误: %s", response.String())
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 embeddings 响应failed: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API 返回 %d 个向量，期望 %d", len(result.Data), len(texts))
	}
	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	out := make([][]float64, len(result.Data))
	for i, d := range result.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
