package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/imaging"
	"github.com/nutriscan/nutriscan-engine/pkg/jsonutil"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/ocr"
	"github.com/nutriscan/nutriscan-engine/pkg/services"
)

// LabelAnalysisResponse is returned for label photos. NextProfile is the recognition
// profile a client should retry with when the reading looks wrong.
type LabelAnalysisResponse struct {
	*models.ProductAnalysis
	NextProfile int `json:"next_profile"`
}

// GradeRequest is the body of POST /api/grade.
type GradeRequest struct {
	Nutrients models.NutrientRecord `json:"nutrients"`
	NovaGroup int                   `json:"nova_group,omitempty"`
}

// GradeResponse is the result of POST /api/grade.
type GradeResponse struct {
	Grade models.GradeBreakdown `json:"grade"`
	Nova  models.NovaInfo       `json:"nova"`
}

// AlternativesResponse lists better rated products for a barcode.
type AlternativesResponse struct {
	Barcode      string               `json:"barcode"`
	Alternatives []models.Alternative `json:"alternatives"`
}

// UploadLimits bounds label photo uploads: MaxBytes caps the request body and
// MaxPixels caps the decoded image size.
type UploadLimits struct {
	MaxBytes  int64
	MaxPixels int
}

// AnalysisHandler exposes product analysis over HTTP.
type AnalysisHandler struct {
	analysis     services.AnalysisService
	grader       services.GradeCalculator
	alternatives services.AlternativesFinder
	limits       UploadLimits
	logger       *zap.Logger
}

// NewAnalysisHandler creates an AnalysisHandler. alternatives may be nil, in which case
// the alternatives endpoint returns an empty list.
func NewAnalysisHandler(
	analysis services.AnalysisService,
	grader services.GradeCalculator,
	alternatives services.AlternativesFinder,
	limits UploadLimits,
	logger *zap.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		analysis:     analysis,
		grader:       grader,
		alternatives: alternatives,
		limits:       limits,
		logger:       logger.Named("analysis-handler"),
	}
}

// RegisterRoutes registers the analysis routes on the given mux.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products/{barcode}/analysis", h.AnalyzeBarcode)
	mux.HandleFunc("GET /api/products/{barcode}/alternatives", h.Alternatives)
	mux.HandleFunc("POST /api/analysis/label", h.AnalyzeLabel)
	mux.HandleFunc("POST /api/analysis/manual", h.AnalyzeManual)
	mux.HandleFunc("POST /api/grade", h.Grade)
}

// AnalyzeBarcode handles GET /api/products/{barcode}/analysis.
func (h *AnalysisHandler) AnalyzeBarcode(w http.ResponseWriter, r *http.Request) {
	barcode, ok := ParseBarcode(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := OptionalUserID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.analysis.AnalyzeBarcode(r.Context(), barcode, userID)
	if err != nil {
		writeServiceError(w, err, "analysis_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AnalyzeLabel handles POST /api/analysis/label with a multipart form:
// image (file, required), barcode (optional), profile (optional recognition profile index).
func (h *AnalysisHandler) AnalyzeLabel(w http.ResponseWriter, r *http.Request) {
	userID, ok := OptionalUserID(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxBytes)
	if err := r.ParseMultipartForm(h.limits.MaxBytes); err != nil {
		status, message := http.StatusBadRequest, "Expected a multipart form with an image field"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status, message = http.StatusRequestEntityTooLarge, "Image is too large"
		}
		if err := ErrorResponse(w, status, "invalid_request", message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_image", "image field is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeServiceError(w, err, "upload_failed", h.logger)
		return
	}
	img, err := imaging.Decode(data, h.limits.MaxPixels)
	if errors.Is(err, apperrors.ErrImageTooLarge) {
		writeServiceError(w, err, "invalid_image", h.logger)
		return
	}
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_image", "Unsupported or corrupt image"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	barcode := strings.TrimSpace(r.FormValue("barcode"))
	if barcode != "" && !isDigits(barcode) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_barcode", "Barcode must contain digits only"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	profileIndex, ok := parseProfileIndex(w, r.FormValue("profile"), h.logger)
	if !ok {
		return
	}

	result, err := h.analysis.AnalyzeLabel(r.Context(), img, barcode, userID, profileIndex)
	if err != nil {
		writeServiceError(w, err, "analysis_failed", h.logger)
		return
	}

	current := -1
	if profileIndex != nil {
		current = *profileIndex
	}
	response := LabelAnalysisResponse{ProductAnalysis: result, NextProfile: ocr.NextProfile(current)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AnalyzeManual handles POST /api/analysis/manual. The body is either a JSON object of
// nutrient names to numbers or numeric strings, or an urlencoded form with the same fields.
func (h *AnalysisHandler) AnalyzeManual(w http.ResponseWriter, r *http.Request) {
	userID, ok := OptionalUserID(w, r, h.logger)
	if !ok {
		return
	}

	form, err := h.readManualForm(r)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.analysis.AnalyzeManual(r.Context(), form, userID)
	if err != nil {
		writeServiceError(w, err, "analysis_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *AnalysisHandler) readManualForm(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		form := make(map[string]string, len(r.PostForm))
		for name := range r.PostForm {
			form[name] = r.PostForm.Get(name)
		}
		return form, nil
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	form := make(map[string]string, len(raw))
	for name, value := range raw {
		form[name] = jsonutil.FlexibleStringValue(value)
	}
	return form, nil
}

// Grade handles POST /api/grade. The body carries a nutrient record and an optional
// NOVA group; the response is the points breakdown and the processing classification.
func (h *AnalysisHandler) Grade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isMappedError(err) {
			writeServiceError(w, err, "invalid_request", h.logger)
			return
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Nutrients.IsEmpty() {
		writeServiceError(w, apperrors.ErrEmptyNutrients, "invalid_request", h.logger)
		return
	}

	response := GradeResponse{
		Grade: h.grader.Breakdown(req.Nutrients),
		Nova:  h.grader.NovaScore(req.NovaGroup),
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Alternatives handles GET /api/products/{barcode}/alternatives?grade=C.
func (h *AnalysisHandler) Alternatives(w http.ResponseWriter, r *http.Request) {
	barcode, ok := ParseBarcode(w, r, h.logger)
	if !ok {
		return
	}

	response := AlternativesResponse{Barcode: barcode, Alternatives: []models.Alternative{}}
	if h.alternatives != nil {
		grade := models.Grade(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("grade"))))
		response.Alternatives = h.alternatives.Find(r.Context(), barcode, grade)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
