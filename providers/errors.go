package providers

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure for retry decisions and for the
// user-visible failure text.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindEmptyResponse
	KindBadStatus
	KindMalformed
)

// Error is a provider failure with a classified kind. Status is set for
// KindBadStatus only.
type Error struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "provider timeout"
	case KindEmptyResponse:
		return "provider returned empty response"
	case KindBadStatus:
		return fmt.Sprintf("provider status %d", e.Status)
	case KindMalformed:
		return "provider response malformed"
	default:
		if e.Err != nil {
			return "provider network error: " + e.Err.Error()
		}
		return "provider network error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, defaulting to KindNetwork for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}

// FailureText renders the chat reply for an exhausted provider call. The
// wording names the failure class and invites a later retry; it never leaks
// internals.
func FailureText(err error) string {
	var pe *Error
	if !errors.As(err, &pe) {
		return "网络请求错误，请稍后再试"
	}
	switch pe.Kind {
	case KindTimeout:
		return "AI接口请求超时，请稍后再试"
	case KindEmptyResponse:
		return "AI接口返回空内容，请稍后再试"
	case KindMalformed:
		return "AI接口响应格式错误，请稍后再试"
	case KindBadStatus:
		switch pe.Status {
		case 400:
			return "请求错误，请稍后再试"
		case 403:
			return "请求被服务器拒绝，请稍后再试"
		case 408:
			return "请求时间过长，请稍后再试"
		case 500:
			return "服务器内部出现错误，请稍后再试"
		case 503:
			return "系统维护中，请稍后再试"
		default:
			return fmt.Sprintf("AI接口调用失败，状态码: %d", pe.Status)
		}
	default:
		return "网络请求错误，请稍后再试"
	}
}
