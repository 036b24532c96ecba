package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind buckets upstream failures into the small closed set the
// bridge reports to callers. Nothing outside this set escapes the
// dispatch boundary.
type ErrorKind string

const (
	KindRange      ErrorKind = "range"
	KindAuth       ErrorKind = "auth"
	KindPermission ErrorKind = "permission"
	KindTransient  ErrorKind = "transient"
	KindUnknown    ErrorKind = "unknown"
)

// UpstreamError is a normalized upstream failure. Message carries the
// user-facing guidance, Detail the raw diagnostics, Status the HTTP
// status the bridge answers with. Only transient errors are retryable.
type UpstreamError struct {
	Kind      ErrorKind
	Action    string
	Message   string
	Detail    string
	Status    int
	Retryable bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Action, e.Kind, e.Detail)
}

func NewRangeError(action, detail string) *UpstreamError {
	return &UpstreamError{
		Kind:    KindRange,
		Action:  action,
		Message: "指定したシート名や範囲が見つかりません。設定を確認してください。",
		Detail:  detail,
		Status:  http.StatusBadRequest,
	}
}

func NewAuthError(action, detail string) *UpstreamError {
	return &UpstreamError{
		Kind:    KindAuth,
		Action:  action,
		Message: "Google連携の有効期限が切れています。再度連携をやり直してください。",
		Detail:  detail,
		Status:  http.StatusUnauthorized,
	}
}

func NewPermissionError(action, detail string) *UpstreamError {
	return &UpstreamError{
		Kind:    KindPermission,
		Action:  action,
		Message: "権限が不足しています。共有設定を確認してください。",
		Detail:  detail,
		Status:  http.StatusForbidden,
	}
}

func NewTransientError(action, detail string) *UpstreamError {
	return &UpstreamError{
		Kind:      KindTransient,
		Action:    action,
		Message:   "しばらくしてから再度お試しください。",
		Detail:    detail,
		Status:    http.StatusServiceUnavailable,
		Retryable: true,
	}
}

func NewUnknownError(action, detail string) *UpstreamError {
	return &UpstreamError{
		Kind:    KindUnknown,
		Action:  action,
		Message: "入力内容や設定を見直してください。",
		Detail:  detail,
		Status:  http.StatusBadRequest,
	}
}

// FromStatus maps an upstream HTTP response onto the taxonomy. Client
// errors are never retryable; rate-limit and server-error classes are.
func FromStatus(action string, status int, body string) *UpstreamError {
	switch {
	case status == http.StatusUnauthorized:
		return NewAuthError(action, body)
	case status == http.StatusForbidden:
		return NewPermissionError(action, body)
	case status == http.StatusBadRequest && strings.Contains(body, "Unable to parse range"):
		return NewRangeError(action, body)
	case status == http.StatusTooManyRequests || status >= 500:
		return NewTransientError(action, fmt.Sprintf("status %d: %s", status, body))
	default:
		return NewUnknownError(action, fmt.Sprintf("status %d: %s", status, body))
	}
}

// AsUpstreamError unwraps err into the taxonomy, if it belongs to it.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
