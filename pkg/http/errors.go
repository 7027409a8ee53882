package http

import (
	"fmt"
	"net/http"
)

// Codes carried by AppError and FieldError.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeNotFound    = "ERR_NOT_FOUND"
	CodeConflict    = "ERR_CONFLICT"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeUnavailable = "ERR_UNAVAILABLE"
	CodeInternal    = "ERR_INTERNAL"
)

// AppError is an error the API reports to clients verbatim.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches another *AppError by code, so errors.Is(err, &AppError{Code: CodeNotFound}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithError attaches the cause. It is logged, never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func errorf(code string, status int) func(string, ...any) *AppError {
	return func(format string, a ...any) *AppError {
		return &AppError{Code: code, Status: status, Message: fmt.Sprintf(format, a...)}
	}
}

var (
	BadRequestErrorf  = errorf(CodeBadRequest, http.StatusBadRequest)
	NotFoundErrorf    = errorf(CodeNotFound, http.StatusNotFound)
	ConflictErrorf    = errorf(CodeConflict, http.StatusConflict)
	TooManyErrorf     = errorf(CodeRateLimited, http.StatusTooManyRequests)
	UnavailableErrorf = errorf(CodeUnavailable, http.StatusServiceUnavailable)
	InternalErrorf    = errorf(CodeInternal, http.StatusInternalServerError)
)

// codeFor maps a bare HTTP status (echo router errors, middleware) to an error code.
func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
