package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindIntegrity         ErrorKind = "INTEGRITY"
	KindBusy              ErrorKind = "BUSY"
)

// AppError is the typed error returned by every business operation.
// Two AppErrors match under errors.Is when their kinds match.
type AppError struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrInsufficientStock = &AppError{Kind: KindInsufficientStock}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrForbidden         = &AppError{Kind: KindForbidden}
	ErrIntegrity         = &AppError{Kind: KindIntegrity}
	ErrBusy              = &AppError{Kind: KindBusy}

	ErrorRecordNotFound = ErrNotFound
)

func NewValidationError(message string, fields map[string]string) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

func NewFieldError(field, message string) *AppError {
	return &AppError{Kind: KindValidation, Message: "invalid input", Fields: map[string]string{field: message}}
}

func NewInsufficientStockError(format string, args ...any) *AppError {
	return &AppError{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

// NewBusyError reports contention the caller can retry.
func NewBusyError(message string) *AppError {
	return &AppError{Kind: KindBusy, Message: message}
}

func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NewIntegrityError(message string, cause error) *AppError {
	return &AppError{Kind: KindIntegrity, Message: message, Err: cause}
}

// KindOf returns the kind of the first AppError in err's chain, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
