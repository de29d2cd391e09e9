package embedding

import (
	"fmt"

	"voice-agent/pkg/config"
)

// NewEmbedder 根据配置创建 Embedder（不含缓存）
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Type {
	case "", "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("不支持的 embedding 类型: %s", cfg.Type)
	}
}
