package n8n

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindNotFound: the referenced remote workflow no longer exists.
	// Not retryable; callers skip the item.
	KindNotFound ErrorKind = "not_found"
	// KindUnreachable: network failure, timeout or a 5xx from the
	// engine. Retryable on the next scheduled run.
	KindUnreachable ErrorKind = "unreachable"
	// KindAuthFailed: the credential was rejected. Not retryable and
	// poisons every call for the same client.
	KindAuthFailed ErrorKind = "auth_failed"
	// KindRateLimited: the engine asked us to back off. Retryable on
	// the next scheduled run.
	KindRateLimited ErrorKind = "rate_limited"
)

type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("n8n: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("n8n: %s: %s (status %d)", e.Op, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("n8n: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindOf(err error) ErrorKind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

func IsNotFound(err error) bool    { return kindOf(err) == KindNotFound }
func IsUnreachable(err error) bool { return kindOf(err) == KindUnreachable }
func IsAuthFailed(err error) bool  { return kindOf(err) == KindAuthFailed }
func IsRateLimited(err error) bool { return kindOf(err) == KindRateLimited }
