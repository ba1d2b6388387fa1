package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError so callers can branch without string matching.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindAlreadyExists     Kind = "already_exists"
	KindValidation        Kind = "validation"
	KindWriteFailure      Kind = "write_failure"
	KindTransportFailure  Kind = "transport_failure"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUnauthorized      Kind = "unauthorized"
	KindInternal          Kind = "internal"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Code: http.StatusNotFound, Message: msg}
}

func ErrAlreadyExists(msg string) *AppError {
	return &AppError{Kind: KindAlreadyExists, Code: http.StatusConflict, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Kind: KindValidation, Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Kind: KindValidation, Code: http.StatusBadRequest, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: http.StatusUnauthorized, Message: msg}
}

func ErrInsufficientFunds(msg string) *AppError {
	return &AppError{Kind: KindInsufficientFunds, Code: http.StatusPaymentRequired, Message: msg}
}

func ErrWriteFailure(msg string, err error) *AppError {
	return &AppError{Kind: KindWriteFailure, Code: http.StatusInternalServerError, Message: msg, Err: err}
}

func ErrTransportFailure(msg string, err error) *AppError {
	return &AppError{Kind: KindTransportFailure, Code: http.StatusBadGateway, Message: msg, Err: err}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
