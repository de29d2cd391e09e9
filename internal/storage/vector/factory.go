package vector

import (
	"fmt"

	"voice-agent/pkg/config"
)

// NewIndex 根据配置创建事实索引；type 为 none 时返回 nil
func NewIndex(cfg config.VectorConfig, dimension int) (Index, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryIndex(dimension, DistanceCosine), nil
	case "chromem":
		return NewChromemIndex(cfg.Collection, cfg.Path, cfg.Compress)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("不支持的向量索引类型: %s", cfg.Type)
	}
}
