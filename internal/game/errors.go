package game

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类，由 api 层映射为 HTTP 状态码
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindInvalid      Kind = "INVALID"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidPhase Kind = "INVALID_PHASE"
	KindConflict     Kind = "CONFLICT"
	KindGone         Kind = "GONE"
	KindInternal     Kind = "INTERNAL"
)

// Error 带分类的业务错误，Message 可直接返回给客户端
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 只比较分类，便于 errors.Is(err, game.ErrConflict)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// 分类哨兵，仅用于 errors.Is 比较
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrInvalid      = &Error{Kind: KindInvalid}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrInvalidPhase = &Error{Kind: KindInvalidPhase}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrGone         = &Error{Kind: KindGone}
)

func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Invalid(format string, args ...interface{}) *Error {
	return newError(KindInvalid, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func InvalidPhase(format string, args ...interface{}) *Error {
	return newError(KindInvalidPhase, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func Gone(format string, args ...interface{}) *Error {
	return newError(KindGone, format, args...)
}

// KindOf 返回错误分类，非业务错误一律视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
