package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrTermNotFound      = errors.New("term not found")
	ErrNotFound          = errors.New("term or document not found")
	ErrTermNotInDocument = errors.New("term not found in document")
	ErrMalformedIndex    = errors.New("malformed index")
	ErrCorpusIO          = errors.New("corpus i/o error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
)

// Process exit codes returned by ExitCode.
const (
	ExitLookupFailed   = 1
	ExitIOFailed       = 2
	ExitMalformedIndex = 3
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsNotFound reports whether err is any of the lookup-miss errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrTermNotFound) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTermNotInDocument)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps err to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrMalformedIndex):
		return ExitMalformedIndex
	case errors.Is(err, ErrCorpusIO):
		return ExitIOFailed
	default:
		return ExitLookupFailed
	}
}
