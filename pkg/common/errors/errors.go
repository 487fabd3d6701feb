package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinel errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
)

// Fatal pipeline errors. Each one aborts the request; none are retried.
var (
	// ErrNoContentExtracted is returned before the model is invoked when no
	// source was requested or every requested source failed.
	ErrNoContentExtracted = errors.New("could not extract any content from the provided sources")
	// ErrMissingCredential marks a configuration-class failure.
	ErrMissingCredential = errors.New("missing credential")
	// ErrAssetProcessing is returned when the remote store reports a
	// non-ACTIVE terminal state for an uploaded document.
	ErrAssetProcessing = errors.New("asset processing failed")
	// ErrAssetTimeout is returned when an uploaded document never became ACTIVE
	// within the configured number of status checks.
	ErrAssetTimeout = errors.New("asset processing timeout")
	// ErrGeneration covers model call failures and malformed model output.
	ErrGeneration = errors.New("failed to generate path")
)

// AppError represents an application-specific error with an HTTP status code.
type AppError struct {
	Code    int
	Message string
	Err     error
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

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapError maps a common error to an AppError with an appropriate HTTP status code.
func MapError(err error) *AppError {
	if err == nil {
		return nil
	}

	// Check for existing AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// Map sentinel errors
	switch {
	case errors.Is(err, ErrNoContentExtracted):
		return NewAppError(http.StatusBadRequest, "Could not extract any content from the provided sources.", err)
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, "Resource not found", err)
	case errors.Is(err, ErrUnauthorized):
		return NewAppError(http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, ErrMissingCredential):
		return NewAppError(http.StatusServiceUnavailable, "Model credentials are not configured", err)
	case errors.Is(err, ErrAssetTimeout):
		return NewAppError(http.StatusGatewayTimeout, "Document processing timed out", err)
	case errors.Is(err, ErrAssetProcessing):
		return NewAppError(http.StatusBadGateway, "Document processing failed", err)
	case errors.Is(err, ErrGeneration):
		return NewAppError(http.StatusBadGateway, "Failed to generate learning path", err)
	}

	// Default to internal server error
	return NewAppError(http.StatusInternalServerError, "Internal server error", err)
}
