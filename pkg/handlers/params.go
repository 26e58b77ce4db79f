package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/ocr"
)

// UserIDHeader carries the caller's user id. Authentication happens upstream; requests
// without the header are analyzed anonymously.
const UserIDHeader = "X-User-ID"

// ParseUserID extracts and validates the user ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: uid
func ParseUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r.PathValue("uid"), "invalid_user_id", "Invalid user ID format", logger)
}

// OptionalUserID reads the X-User-ID header. A missing header yields uuid.Nil and true.
func OptionalUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if raw == "" {
		return uuid.Nil, true
	}
	return parseUUID(w, raw, "invalid_user_id", "Invalid "+UserIDHeader+" header", logger)
}

// ParseBarcode extracts the barcode from the request path. Only digits are accepted.
// Expects path parameter: barcode
func ParseBarcode(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	barcode := strings.TrimSpace(r.PathValue("barcode"))
	if !isDigits(barcode) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_barcode", "Barcode must contain digits only"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return barcode, true
}

// parseProfileIndex reads an optional recognition profile index. Empty means "all profiles".
func parseProfileIndex(w http.ResponseWriter, raw string, logger *zap.Logger) (*int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 || idx >= len(ocr.Profiles) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_profile_index",
			"profile must be between 0 and "+strconv.Itoa(len(ocr.Profiles)-1)); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return &idx, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, raw, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
