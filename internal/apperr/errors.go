// Package apperr 定义业务错误分类，handler 层据此映射 HTTP 状态码
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 错误类别
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInvalidArgument     Kind = "invalid_argument"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindPartialFailure      Kind = "partial_failure"
)

// ItemError 多条目操作中单个条目的失败描述
type ItemError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}

// Error 业务错误
type Error struct {
	Kind    Kind
	Message string
	Items   []ItemError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按类别比较，使 errors.Is(err, apperr.ErrNotFound) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// 哨兵值，仅用于 errors.Is 比较
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrPartialFailure      = &Error{Kind: KindPartialFailure}
)

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Upstream 包装外部目录服务的失败
func Upstream(err error, format string, args ...any) error {
	return &Error{Kind: KindUpstreamUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// Partial 汇总多条目失败；items 为空时返回 nil
func Partial(message string, items []ItemError) error {
	if len(items) == 0 {
		return nil
	}
	return &Error{Kind: KindPartialFailure, Message: message, Items: items}
}

// KindOf 取出错误类别，非业务错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ItemsOf 取出 PartialFailure 的条目
func ItemsOf(err error) []ItemError {
	var e *Error
	if errors.As(err, &e) {
		return e.Items
	}
	return nil
}

// Summary 把条目拼成一行，用于日志
func Summary(items []ItemError) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Item+": "+it.Message)
	}
	return strings.Join(parts, "; ")
}
