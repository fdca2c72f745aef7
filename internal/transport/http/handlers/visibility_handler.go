package handlers

import (
	"net/http"

	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

type VisibilityHandler struct {
	service *privacysvc.Service
}

func NewVisibilityHandler(service *privacysvc.Service) *VisibilityHandler {
	return &VisibilityHandler{service: service}
}

// Get resolves what the caller may see of the target user. A blocked or
// opted-out target comes back with every tier false rather than an
// error, so the response never reveals why.
func (h *VisibilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PRIVACY_SERVICE_UNAVAILABLE", "privacy service is unavailable")
		return
	}

	targetID := pathID(r, "userID")
	if targetID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	visibility, err := h.service.VisibilityBetween(r.Context(), identity.UserID, targetID)
	if err != nil {
		handlePrivacyError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.VisibilityResponse{
		TargetUserID:      targetID,
		CanSeeRoster:      visibility.CanSeeRoster,
		CanSeeTodayShip:   visibility.CanSeeTodayShip,
		CanSeeFutureShips: visibility.CanSeeFutureShips,
	})
}
