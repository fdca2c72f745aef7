package handlers

import (
	"errors"
	"net/http"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	moderationsvc "github.com/prymskiwen/crewvar-sub001/internal/services/moderation"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

type ReportsHandler struct {
	service *moderationsvc.Service
}

func NewReportsHandler(service *moderationsvc.Service) *ReportsHandler {
	return &ReportsHandler{service: service}
}

func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	var req dto.SubmitReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.service.SubmitReport(r.Context(), identity.UserID, req.ReportedUserID, req.ReportType, req.Description, req.EvidenceKeys)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, toReportResponse(record))
}

func toReportResponse(record pgrepo.ReportRecord) dto.ReportResponse {
	return dto.ReportResponse{
		ID:               record.ID,
		ReporterUserID:   record.ReporterUserID,
		ReportedUserID:   record.ReportedUserID,
		ReportType:       record.ReportType,
		Description:      record.Description,
		Status:           record.Status,
		Priority:         record.Priority,
		ReviewedByUserID: record.ReviewedByUserID,
		ResolutionNotes:  record.ResolutionNotes,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func handleModerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moderationsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid moderation request")
	case errors.Is(err, moderationsvc.ErrReportNotFound):
		writeNotFound(w, "REPORT_NOT_FOUND", "report not found")
	case errors.Is(err, moderationsvc.ErrActivityNotFound):
		writeNotFound(w, "ACTIVITY_NOT_FOUND", "suspicious activity not found")
	case errors.Is(err, moderationsvc.ErrInvalidTransition):
		writeConflict(w, "INVALID_TRANSITION", "report status transition not allowed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
