// Package errors 提供统一错误辅助与错误分类，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// Kind 错误分类，决定错误在编排核心中的传播方式
type Kind string

const (
	// KindValidation 节点入口处状态字段缺失或格式错误，路由到 error 节点
	KindValidation Kind = "validation"
	// KindUpstream LLM / embedding / research 调用失败，路由到 error 节点
	KindUpstream Kind = "upstream"
	// KindStorage 持久化存储或 thread id 分配失败，降级为空结果
	KindStorage Kind = "storage"
	// KindLoopExhaustion 达到迭代上限，仅告警，不视为错误
	KindLoopExhaustion Kind = "loop_exhaustion"
	// KindUnknown 未分类
	KindUnknown Kind = "unknown"
)

// Error 带分类与操作名的错误
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation 创建 ValidationError
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

// Upstream 包装外部调用失败；err 为 nil 时返回 nil
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// Storage 包装存储故障；err 为 nil 时返回 nil
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// LoopExhaustion 迭代上限错误，仅用于日志
func LoopExhaustion(op string, steps int) error {
	return &Error{Kind: KindLoopExhaustion, Op: op, Err: fmt.Errorf("iteration cap %d reached", steps)}
}

// KindOf 返回错误链中第一个 *Error 的分类
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is 转发到标准库，便于调用方只导入本包
func Is(err, target error) bool { return errors.Is(err, target) }

// As 转发到标准库
func As(err error, target any) bool { return errors.As(err, target) }

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
