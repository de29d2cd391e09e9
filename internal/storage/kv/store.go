// Package kv 提供按 namespace/key 寻址的持久化键值存储（upsert、点查、子串搜索）。
package kv

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound Get 未命中时返回
var ErrNotFound = errors.New("kv: record not found")

// Record 一条持久化记录，(Namespace, Key) 唯一
type Record struct {
	Namespace string         `json:"namespace"`
	Key       string         `json:"key"`
	Data      map[string]any `json:"data"`
}

// Store 键值存储接口，实现需并发安全；Upsert 对单个 key 原子
type Store interface {
	// Upsert 插入或整体覆盖 data
	Upsert(ctx context.Context, namespace, key string, data map[string]any) error
	// Get 点查；未命中返回 nil, ErrNotFound
	Get(ctx context.Context, namespace, key string) (map[string]any, error)
	// SearchContains 返回 namespace 下任一字符串叶子值包含 substring 的记录（不区分大小写）。
	// 只比较值，不比较键与 JSON 序列化形式，各后端结果一致。
	SearchContains(ctx context.Context, namespace, substring string) ([]Record, error)
	// Keys 列出 namespace 下所有 key
	Keys(ctx context.Context, namespace string) ([]string, error)
	// Close 关闭存储连接
	Close() error
}

// containsValue 递归检查 v 中的字符串叶子值是否包含 needle（needle 已小写）
func containsValue(v any, needle string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), needle)
	case map[string]any:
		for _, e := range t {
			if containsValue(e, needle) {
				return true
			}
		}
	case []any:
		for _, e := range t {
			if containsValue(e, needle) {
				return true
			}
		}
	}
	return false
}
