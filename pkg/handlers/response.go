package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
)

// ApiResponse wraps successful payloads.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// errorMapping pairs a sentinel with the HTTP status and code it is reported as.
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrInvalidBarcode, http.StatusBadRequest, "invalid_barcode"},
	{apperrors.ErrNegativeNutrient, http.StatusBadRequest, "validation_error"},
	{apperrors.ErrInvalidNutrientValue, http.StatusBadRequest, "validation_error"},
	{apperrors.ErrUnknownNutrient, http.StatusBadRequest, "validation_error"},
	{apperrors.ErrEmptyNutrients, http.StatusBadRequest, "validation_error"},
	{apperrors.ErrInvalidProfile, http.StatusBadRequest, "invalid_profile"},
	{apperrors.ErrInvalidProfileIndex, http.StatusBadRequest, "invalid_profile_index"},
	{apperrors.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "image_too_large"},
	{apperrors.ErrNoProfile, http.StatusNotFound, "no_profile"},
	{apperrors.ErrReferenceDataMissing, http.StatusServiceUnavailable, "reference_data_missing"},
}

// isMappedError reports whether err wraps one of the sentinels reported as a client error.
func isMappedError(err error) bool {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}

// writeServiceError maps a service error onto a JSON error response. Unknown errors are
// logged and reported as internal errors without their detail.
func writeServiceError(w http.ResponseWriter, err error, fallbackCode string, logger *zap.Logger) {
	status, code, message := http.StatusInternalServerError, fallbackCode, "Internal server error"
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			status, code, message = m.status, m.code, err.Error()
			break
		}
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("code", code), zap.Error(err))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
