package handlers

import (
	"net/http"

	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

// InternalHandler serves the trusted service-to-service surface: the
// main crew application provisions users here and exchanges its own
// identity assertions for API sessions.
type InternalHandler struct {
	auth    *authsvc.Service
	privacy *privacysvc.Service
}

func NewInternalHandler(auth *authsvc.Service, privacy *privacysvc.Service) *InternalHandler {
	return &InternalHandler{auth: auth, privacy: privacy}
}

func (h *InternalHandler) IssueSession(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.SessionIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.auth.IssueForUser(r.Context(), req.UserID, req.Role)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	if h.privacy != nil {
		// Best effort: a user with a session should always have a
		// settings row.
		_ = h.privacy.EnsureSettings(r.Context(), req.UserID)
	}

	writeAuthTokens(w, res)
}

func (h *InternalHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	if h.privacy == nil {
		writeInternal(w, "PRIVACY_SERVICE_UNAVAILABLE", "privacy service is unavailable")
		return
	}

	var req dto.ProvisionUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	if err := h.privacy.EnsureSettings(r.Context(), req.UserID); err != nil {
		handlePrivacyError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ProvisionUserResponse{OK: true})
}
