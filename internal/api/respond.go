package api

import (
	"encoding/json"
	"net/http"

	apperrors "iamkolkata/internal/common/errors"
)

type errorBody struct {
	Error *apperrors.AppError `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps the error taxonomy onto HTTP status codes and returns
// the structured error as the body.
func respondError(w http.ResponseWriter, err error) {
	appErr := apperrors.AsAppError(err)
	respondJSON(w, httpStatus(appErr), errorBody{Error: appErr})
}

func httpStatus(appErr *apperrors.AppError) int {
	switch apperrors.CategoryOf(appErr.Code) {
	case apperrors.CategoryValidation:
		return http.StatusBadRequest
	case apperrors.CategoryState:
		if appErr.Code == apperrors.ErrCodeJobNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case apperrors.CategoryTransient:
		if appErr.Code == apperrors.ErrCodeRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusGatewayTimeout
	case apperrors.CategoryUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
