package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can tell "retry me" from "fix
// your input" from "this is simply not possible"
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientStock   ErrorKind = "insufficient_stock"
	KindBusinessRule        ErrorKind = "business_rule"
	KindIdempotencyConflict ErrorKind = "idempotency_conflict"
	KindTransient           ErrorKind = "transient"
)

// AppError carries the kind, a human message and the offending field where
// one applies
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match two AppErrors by kind
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

func Validationf(field, format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStockf(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func BusinessRulef(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

func Transientf(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindTransient, Message: fmt.Sprintf(format, args...)}
}

// ErrTooManySessions is returned when an owner is at the concurrent active
// session cap
var ErrTooManySessions = &AppError{Kind: KindBusinessRule, Message: "too many active sessions"}

// ErrIdempotencyConflict is returned when a key is replayed with a
// different request body
var ErrIdempotencyConflict = &AppError{Kind: KindIdempotencyConflict, Message: "idempotency key reused with a different request"}

// KindOf extracts the kind from any error in the chain; unknown errors are
// reported as transient internals
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
