// Package errors provides the typed error taxonomy shared by the portrait
// pipeline, the entry store, and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies what failed, at the granularity the API reports.
type ErrorCode string

const (
	// Validation errors: client-detected bad input, never retried.
	ErrCodeInvalidParaName    ErrorCode = "INVALID_PARA_NAME"
	ErrCodeDuplicateParaName  ErrorCode = "DUPLICATE_PARA_NAME"
	ErrCodeMissingExperience  ErrorCode = "MISSING_EXPERIENCE"
	ErrCodeExperienceTooLong  ErrorCode = "EXPERIENCE_TOO_LONG"
	ErrCodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	ErrCodeMissingMergeField  ErrorCode = "MISSING_MERGE_FIELD"
	ErrCodeMissingPhotoUpload ErrorCode = "MISSING_PHOTO_UPLOAD"

	// Pipeline phase errors, in pipeline order.
	ErrCodeSceneGenerationFailed   ErrorCode = "SCENE_GENERATION_FAILED"
	ErrCodeBackgroundRemovalFailed ErrorCode = "BACKGROUND_REMOVAL_FAILED"
	ErrCodeUploadFailed            ErrorCode = "UPLOAD_FAILED"
	ErrCodeIngestFailed            ErrorCode = "INGEST_FAILED"
	ErrCodeRenderFailed            ErrorCode = "RENDER_FAILED"
	ErrCodeCompositeFailed         ErrorCode = "COMPOSITE_FAILED"
	ErrCodeAssetLoadFailed         ErrorCode = "ASSET_LOAD_FAILED"

	// Other upstream integrations.
	ErrCodeDescriptionFailed   ErrorCode = "DESCRIPTION_GENERATION_FAILED"
	ErrCodeTagSuggestionFailed ErrorCode = "TAG_SUGGESTION_FAILED"
	ErrCodeGeocodeFailed       ErrorCode = "GEOCODE_FAILED"
	ErrCodeEntryInsertFailed   ErrorCode = "ENTRY_INSERT_FAILED"
	ErrCodeNearbyQueryFailed   ErrorCode = "NEARBY_QUERY_FAILED"
	ErrCodeSearchFailed        ErrorCode = "SEARCH_FAILED"

	ErrCodeJobNotFound ErrorCode = "JOB_NOT_FOUND"

	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// Category groups codes by how the caller should react.
type Category string

const (
	CategoryValidation Category = "VALIDATION"
	CategoryUpstream   Category = "UPSTREAM"
	CategoryTransient  Category = "TRANSIENT"
	CategoryState      Category = "STATE"
	CategoryInternal   Category = "INTERNAL"
)

// AppError is the structured application error.
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	// Status carries the upstream HTTP status when the error wraps a
	// non-2xx response, 0 otherwise.
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("AppError[%s]: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable client input error.
func NewValidationError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamError wraps a non-2xx or malformed upstream response. The raw
// body is kept in Details so nothing is silently dropped.
func NewUpstreamError(code ErrorCode, service string, status int, body string) *AppError {
	return &AppError{
		Code:      code,
		Message:   fmt.Sprintf("upstream service %q error", service),
		Details:   body,
		Retryable: status >= 500 || status == 429,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError marks a retryable upstream timeout.
func NewTimeoutError(service string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   fmt.Sprintf("service %q timeout", service),
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPhaseError wraps a pipeline phase failure, preserving the cause.
func NewPhaseError(code ErrorCode, phase string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{
		Code:      code,
		Message:   fmt.Sprintf("%s failed", phase),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateError marks a flow precondition failure (missing navigation
// state, missing merge field). The current flow is unrecoverable.
func NewStateError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{
		Code:      ErrCodeInternal,
		Message:   "unexpected error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CategoryOf classifies an error code per the taxonomy.
func CategoryOf(code ErrorCode) Category {
	switch code {
	case ErrCodeInvalidParaName, ErrCodeDuplicateParaName, ErrCodeMissingExperience,
		ErrCodeExperienceTooLong, ErrCodeInvalidPayload, ErrCodeMissingPhotoUpload:
		return CategoryValidation
	case ErrCodeMissingMergeField, ErrCodeJobNotFound:
		return CategoryState
	case ErrCodeUpstreamTimeout, ErrCodeRateLimited:
		return CategoryTransient
	case ErrCodeInternal:
		return CategoryInternal
	default:
		return CategoryUpstream
	}
}

// AsAppError normalizes any error to an *AppError.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// Phase returns the human-readable pipeline phase for a code, or "" when the
// code is not a phase failure. Callers use it to report which phase failed
// first.
func Phase(code ErrorCode) string {
	switch code {
	case ErrCodeSceneGenerationFailed:
		return "scene generation"
	case ErrCodeBackgroundRemovalFailed:
		return "background removal"
	case ErrCodeUploadFailed:
		return "upload"
	case ErrCodeIngestFailed:
		return "ingest"
	case ErrCodeRenderFailed:
		return "render"
	case ErrCodeCompositeFailed, ErrCodeAssetLoadFailed:
		return "composite"
	default:
		return ""
	}
}
