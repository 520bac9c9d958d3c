package progression

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConsistency   ErrorKind = "consistency"
	KindDependency    ErrorKind = "dependency"
)

// Error is the structured failure returned to callers. Compare kinds with
// errors.Is(err, ErrValidation) and friends.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConsistency   = &Error{Kind: KindConsistency}
	ErrDependency    = &Error{Kind: KindDependency}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when the target carries no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Op == ""
}

// Retryable 只有依赖失败允许重试，其余均为业务或缺陷错误
func (e *Error) Retryable() bool {
	return e.Kind == KindDependency
}

// KindOf returns the kind of a progression error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationf(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func authorizationf(op, format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Op: op, Message: fmt.Sprintf(format, args...)}
}

func notFound(op string, projectID int64) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("project %d not found", projectID)}
}

func consistencyf(op, format string, args ...any) error {
	return &Error{Kind: KindConsistency, Op: op, Message: fmt.Sprintf(format, args...)}
}

// mapStoreError turns a missing row into NotFound and leaves other errors wrapped.
func mapStoreError(op string, projectID int64, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return notFound(op, projectID)
	}
	return fmt.Errorf("%s: %w", op, err)
}
