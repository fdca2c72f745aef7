package handlers

import (
	"errors"
	"net/http"
	"time"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	requestssvc "github.com/prymskiwen/crewvar-sub001/internal/services/requests"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

type RequestsHandler struct {
	service *requestssvc.Service
}

func NewRequestsHandler(service *requestssvc.Service) *RequestsHandler {
	return &RequestsHandler{service: service}
}

func (h *RequestsHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	var req dto.SendConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.service.Send(r.Context(), identity.UserID, req.ToUserID, req.Message)
	if err != nil {
		handleRequestsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, toRequestResponse(record))
}

func (h *RequestsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	requestID := pathID(r, "requestID")
	if requestID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	res, err := h.service.Accept(r.Context(), requestID, identity.UserID)
	if err != nil {
		handleRequestsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AcceptConnectionResponse{
		Request:    toRequestResponse(res.Request),
		Connection: toConnectionResponse(res.Connection),
	})
}

func (h *RequestsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	requestID := pathID(r, "requestID")
	if requestID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	record, err := h.service.Decline(r.Context(), requestID, identity.UserID)
	if err != nil {
		handleRequestsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toRequestResponse(record))
}

func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	requestID := pathID(r, "requestID")
	if requestID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	if err := h.service.Cancel(r.Context(), requestID, identity.UserID); err != nil {
		handleRequestsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *RequestsHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(r *http.Request, userID int64) ([]pgrepo.RequestRecord, error) {
		return h.service.ListIncoming(r.Context(), userID)
	})
}

func (h *RequestsHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(r *http.Request, userID int64) ([]pgrepo.RequestRecord, error) {
		return h.service.ListOutgoing(r.Context(), userID)
	})
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request, load func(*http.Request, int64) ([]pgrepo.RequestRecord, error)) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	records, err := load(r, identity.UserID)
	if err != nil {
		handleRequestsError(w, err)
		return
	}

	items := make([]dto.ConnectionRequestResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toRequestResponse(record))
	}

	httperrors.Write(w, http.StatusOK, dto.ConnectionRequestsResponse{Items: items})
}

func (h *RequestsHandler) Connections(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	records, err := h.service.ListConnections(r.Context(), identity.UserID)
	if err != nil {
		handleRequestsError(w, err)
		return
	}

	items := make([]dto.ConnectionResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toConnectionResponse(record))
	}

	httperrors.Write(w, http.StatusOK, dto.ConnectionsResponse{Items: items})
}

func toRequestResponse(record pgrepo.RequestRecord) dto.ConnectionRequestResponse {
	return dto.ConnectionRequestResponse{
		ID:         record.ID,
		FromUserID: record.FromUserID,
		ToUserID:   record.ToUserID,
		Status:     record.Status,
		Message:    record.Message,
		CreatedAt:  record.CreatedAt,
	}
}

func toConnectionResponse(record pgrepo.ConnectionRecord) dto.ConnectionResponse {
	return dto.ConnectionResponse{
		ID:        record.ID,
		UserAID:   record.UserLoID,
		UserBID:   record.UserHiID,
		Status:    record.Status,
		CreatedAt: record.CreatedAt,
	}
}

func handleRequestsError(w http.ResponseWriter, err error) {
	var cooldown *requestssvc.CooldownError
	var tooFast *requestssvc.TooFastError

	switch {
	case errors.As(err, &cooldown):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "DECLINE_COOLDOWN",
			Message:       "recipient declined a recent request, try again later",
			RetryAfterSec: maxInt64(0, int64(time.Until(cooldown.Until).Seconds())),
			CooldownUntil: &cooldown.Until,
		})
	case errors.As(err, &tooFast):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       "too many connection requests, slow down",
			RetryAfterSec: tooFast.RetryAfterSec,
		})
	case errors.Is(err, requestssvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid connection request")
	case errors.Is(err, requestssvc.ErrBlocked):
		writeForbidden(w, "BLOCKED", "cannot send a request to this user")
	case errors.Is(err, requestssvc.ErrNotAllowed):
		writeForbidden(w, "NOT_ALLOWED", "not allowed to act on this request")
	case errors.Is(err, requestssvc.ErrRequestNotFound):
		writeNotFound(w, "REQUEST_NOT_FOUND", "connection request not found")
	case errors.Is(err, requestssvc.ErrDuplicateRequest):
		writeConflict(w, "DUPLICATE_REQUEST", "a pending request already exists")
	case errors.Is(err, requestssvc.ErrAlreadyConnected):
		writeConflict(w, "ALREADY_CONNECTED", "users are already connected")
	case errors.Is(err, requestssvc.ErrAlreadyHandled):
		writeConflict(w, "ALREADY_HANDLED", "request was already handled")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
