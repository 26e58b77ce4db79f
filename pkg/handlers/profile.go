package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/services"
)

// DietPlanRequest is the body of POST /api/users/{uid}/diet-plan.
type DietPlanRequest struct {
	// Diseases are conditions beyond the profile flags, e.g. "kidney disease".
	Diseases []string `json:"diseases"`
}

// ProfileHandler handles health profile endpoints.
type ProfileHandler struct {
	profiles services.HealthProfileService
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles services.HealthProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger.Named("profile-handler"),
	}
}

// RegisterRoutes registers the profile handler's routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{uid}/profile", h.Get)
	mux.HandleFunc("PUT /api/users/{uid}/profile", h.Put)
	mux.HandleFunc("DELETE /api/users/{uid}/profile", h.Delete)
	mux.HandleFunc("POST /api/users/{uid}/diet-plan", h.DietPlan)
}

// Get handles GET /api/users/{uid}/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "get_profile_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: profile}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Put handles PUT /api/users/{uid}/profile. The user id in the path wins over any in the body.
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	var profile models.HealthProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	profile.UserID = userID

	if err := h.profiles.Save(r.Context(), &profile); err != nil {
		writeServiceError(w, err, "save_profile_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: profile}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/users/{uid}/profile.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.profiles.Delete(r.Context(), userID); err != nil {
		writeServiceError(w, err, "delete_profile_failed", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DietPlan handles POST /api/users/{uid}/diet-plan. An empty body is allowed.
func (h *ProfileHandler) DietPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req DietPlanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	plan, err := h.profiles.DietPlan(r.Context(), userID, req.Diseases)
	if err != nil {
		writeServiceError(w, err, "diet_plan_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: plan}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
