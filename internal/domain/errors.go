package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind - класс ошибки, по которому вызывающая сторона решает, что показать пользователю
type ErrorKind string

const (
	KindPermission  ErrorKind = "permission_denied"
	KindNotFound    ErrorKind = "not_found"
	KindValidation  ErrorKind = "validation"
	KindStorage     ErrorKind = "storage"
	KindMetadata    ErrorKind = "metadata"
	KindUpstream    ErrorKind = "upstream"
	KindRateLimited ErrorKind = "rate_limited"
)

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду, чтобы работал errors.Is(err, ErrNotFound)
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrPermissionDenied = &Error{Kind: KindPermission, Message: "permission denied"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation       = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrStorage          = &Error{Kind: KindStorage, Message: "storage operation failed"}
	ErrMetadata         = &Error{Kind: KindMetadata, Message: "metadata operation failed"}
	ErrUpstream         = &Error{Kind: KindUpstream, Message: "upstream call failed"}
	ErrRateLimited      = &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}
)

func PermissionDenied(op, message string) error {
	return &Error{Kind: KindPermission, Op: op, Message: message}
}

func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: what + " not found"}
}

func Invalid(op, message string) error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func StorageFailure(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Message: "storage operation failed", Err: err}
}

func UpstreamFailure(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Message: "upstream call failed", Err: err}
}

func RateLimited(op string) error {
	return &Error{Kind: KindRateLimited, Op: op, Message: "rate limit exceeded"}
}

// MetadataFailure оборачивает ошибку БД; типизированные ошибки возвращаются как есть
func MetadataFailure(op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindMetadata, Op: op, Message: "metadata operation failed", Err: err}
}

// KindOf возвращает вид ошибки; неизвестные ошибки считаются ошибками метаданных
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindMetadata
}
