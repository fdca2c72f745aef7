package handlers

import (
	"errors"
	"net/http"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

type SettingsHandler struct {
	service *privacysvc.Service
}

func NewSettingsHandler(service *privacysvc.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PRIVACY_SERVICE_UNAVAILABLE", "privacy service is unavailable")
		return
	}

	settings, err := h.service.GetSettings(r.Context(), identity.UserID)
	if err != nil {
		handlePrivacyError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toSettingsResponse(settings))
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PRIVACY_SERVICE_UNAVAILABLE", "privacy service is unavailable")
		return
	}

	var req dto.UpdatePrivacySettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), identity.UserID, pgrepo.PrivacyPreferencesUpdate{
		ShowOnlyTodayShip:         req.ShowOnlyTodayShip,
		AllowFutureShipVisibility: req.AllowFutureShipVisibility,
		DeclineRequestsSilently:   req.DeclineRequestsSilently,
		BlockEnforcesInvisibility: req.BlockEnforcesInvisibility,
	})
	if err != nil {
		handlePrivacyError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toSettingsResponse(settings))
}

func toSettingsResponse(settings pgrepo.PrivacySettingsRecord) dto.PrivacySettingsResponse {
	return dto.PrivacySettingsResponse{
		UserID:                    settings.UserID,
		Verified:                  settings.Verified,
		Active:                    settings.Active,
		ShowOnlyTodayShip:         settings.ShowOnlyTodayShip,
		AllowFutureShipVisibility: settings.AllowFutureShipVisibility,
		DeclineRequestsSilently:   settings.DeclineRequestsSilently,
		BlockEnforcesInvisibility: settings.BlockEnforcesInvisibility,
		VerificationStatus:        settings.VerificationStatus,
		VerifiedAt:                settings.VerifiedAt,
		LastActiveAt:              settings.LastActiveAt,
		UpdatedAt:                 settings.UpdatedAt,
	}
}

func handlePrivacyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, privacysvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid privacy request")
	case errors.Is(err, privacysvc.ErrSettingsNotFound):
		writeNotFound(w, "SETTINGS_NOT_FOUND", "privacy settings not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
