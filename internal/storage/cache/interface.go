// Package cache 缓存 embedding 结果，避免对相同文本重复调用上游。
package cache

import "context"

// Store 向量缓存接口
type Store interface {
	// Get 获取缓存；未命中或已过期时 ok=false
	Get(ctx context.Context, key string) (vec []float64, ok bool, err error)
	// Set 设置缓存，使用存储的默认过期时间
	Set(ctx context.Context, key string, vec []float64) error
	// Close 关闭缓存连接
	Close() error
}
