package handlers

import (
	"errors"
	"net/http"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	blockssvc "github.com/prymskiwen/crewvar-sub001/internal/services/blocks"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

type BlocksHandler struct {
	service *blockssvc.Service
}

func NewBlocksHandler(service *blockssvc.Service) *BlocksHandler {
	return &BlocksHandler{service: service}
}

func (h *BlocksHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCKS_SERVICE_UNAVAILABLE", "blocks service is unavailable")
		return
	}

	var req dto.BlockUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.service.Block(r.Context(), identity.UserID, req.TargetID, req.Reason)
	if err != nil {
		handleBlocksError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httperrors.Write(w, status, dto.BlockCreatedResponse{
		Block:   toBlockResponse(res.Block),
		Created: res.Created,
	})
}

func (h *BlocksHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCKS_SERVICE_UNAVAILABLE", "blocks service is unavailable")
		return
	}

	targetID := pathID(r, "userID")
	if targetID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	if err := h.service.Unblock(r.Context(), identity.UserID, targetID); err != nil {
		handleBlocksError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func (h *BlocksHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCKS_SERVICE_UNAVAILABLE", "blocks service is unavailable")
		return
	}

	records, err := h.service.ListBlocked(r.Context(), identity.UserID)
	if err != nil {
		handleBlocksError(w, err)
		return
	}

	items := make([]dto.BlockResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toBlockResponse(record))
	}

	httperrors.Write(w, http.StatusOK, dto.BlockedListResponse{Items: items})
}

func toBlockResponse(record pgrepo.BlockRecord) dto.BlockResponse {
	return dto.BlockResponse{
		ID:            record.ID,
		BlockedUserID: record.BlockedUserID,
		Reason:        record.Reason,
		Mutual:        record.Mutual,
		CreatedAt:     record.CreatedAt,
	}
}

func handleBlocksError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, blockssvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid block request")
	case errors.Is(err, blockssvc.ErrBlockNotFound):
		writeNotFound(w, "BLOCK_NOT_FOUND", "block not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
