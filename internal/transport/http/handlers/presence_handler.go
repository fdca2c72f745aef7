package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	presencesvc "github.com/prymskiwen/crewvar-sub001/internal/services/presence"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

type PresenceHandler struct {
	tracker *presencesvc.Tracker
}

func NewPresenceHandler(tracker *presencesvc.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

func (h *PresenceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.tracker == nil {
		writeInternal(w, "PRESENCE_SERVICE_UNAVAILABLE", "presence service is unavailable")
		return
	}

	var req dto.PresenceUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.tracker.SetStatus(r.Context(), identity.UserID, req.State); err != nil {
		handlePresenceError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PresenceResponse{
		UserID: identity.UserID,
		State:  req.State,
	})
}

func (h *PresenceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.tracker == nil {
		writeInternal(w, "PRESENCE_SERVICE_UNAVAILABLE", "presence service is unavailable")
		return
	}

	userID := pathID(r, "userID")
	if userID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	state, err := h.tracker.Status(r.Context(), userID)
	if err != nil {
		handlePresenceError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PresenceResponse{
		UserID: userID,
		State:  string(state),
	})
}

func (h *PresenceHandler) StartTyping(w http.ResponseWriter, r *http.Request) {
	h.typing(w, r, func(userID, roomID int64) error {
		return h.tracker.StartTyping(userID, roomID)
	})
}

func (h *PresenceHandler) StopTyping(w http.ResponseWriter, r *http.Request) {
	h.typing(w, r, func(userID, roomID int64) error {
		return h.tracker.StopTyping(userID, roomID)
	})
}

func (h *PresenceHandler) typing(w http.ResponseWriter, r *http.Request, apply func(userID, roomID int64) error) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.tracker == nil {
		writeInternal(w, "PRESENCE_SERVICE_UNAVAILABLE", "presence service is unavailable")
		return
	}

	var req dto.TypingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := apply(identity.UserID, req.RoomID); err != nil {
		handlePresenceError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *PresenceHandler) RoomTyping(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.tracker == nil {
		writeInternal(w, "PRESENCE_SERVICE_UNAVAILABLE", "presence service is unavailable")
		return
	}

	roomID := pathID(r, "roomID")
	if roomID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid room id")
		return
	}

	userIDs := h.tracker.TypingInRoom(roomID)
	if userIDs == nil {
		userIDs = []int64{}
	}

	httperrors.Write(w, http.StatusOK, dto.RoomTypingResponse{
		RoomID:  roomID,
		UserIDs: userIDs,
	})
}

func handlePresenceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presencesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid presence request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
