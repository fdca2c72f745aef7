package handlers

import (
	"net/http"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	moderationsvc "github.com/prymskiwen/crewvar-sub001/internal/services/moderation"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/http/dto"
	httperrors "github.com/prymskiwen/crewvar-sub001/internal/transport/http/errors"
)

// AdminModerationHandler is the staff review surface. Routes mounting it
// sit behind the role middleware, so handlers only read the identity for
// attribution.
type AdminModerationHandler struct {
	moderation *moderationsvc.Service
	privacy    *privacysvc.Service
}

func NewAdminModerationHandler(moderation *moderationsvc.Service, privacy *privacysvc.Service) *AdminModerationHandler {
	return &AdminModerationHandler{moderation: moderation, privacy: privacy}
}

func (h *AdminModerationHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	records, err := h.moderation.ListReports(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		handleModerationError(w, err)
		return
	}

	writeReportList(w, records)
}

func (h *AdminModerationHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	reportID := pathID(r, "reportID")
	if reportID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid report id")
		return
	}

	view, err := h.moderation.GetReport(r.Context(), reportID)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ReportViewResponse{
		Report:       toReportResponse(view.Report),
		EvidenceURLs: view.EvidenceURLs,
	})
}

func (h *AdminModerationHandler) ReportsAgainstUser(w http.ResponseWriter, r *http.Request) {
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	userID := pathID(r, "userID")
	if userID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	records, err := h.moderation.ListReportsAgainstUser(r.Context(), userID)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	writeReportList(w, records)
}

func (h *AdminModerationHandler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	reportID := pathID(r, "reportID")
	if reportID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid report id")
		return
	}

	var req dto.UpdateReportStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.moderation.UpdateReportStatus(r.Context(), reportID, req.Status, identity.UserID, req.Notes)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toReportResponse(record))
}

func (h *AdminModerationHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	var req dto.ModerationActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.moderation.PerformAction(r.Context(), req.TargetUserID, req.ActionType, req.Reason, identity.UserID, req.RelatedReportID)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, toActionResponse(record))
}

func (h *AdminModerationHandler) ActionsForUser(w http.ResponseWriter, r *http.Request) {
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	userID := pathID(r, "userID")
	if userID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	records, err := h.moderation.ListActionsForUser(r.Context(), userID)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	items := make([]dto.ModerationActionResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toActionResponse(record))
	}

	httperrors.Write(w, http.StatusOK, dto.ModerationActionsResponse{Items: items})
}

func (h *AdminModerationHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	records, err := h.moderation.ListOpenActivities(r.Context())
	if err != nil {
		handleModerationError(w, err)
		return
	}

	items := make([]dto.SuspiciousActivityResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toActivityResponse(record))
	}

	httperrors.Write(w, http.StatusOK, dto.SuspiciousActivitiesResponse{Items: items})
}

func (h *AdminModerationHandler) ResolveActivity(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	activityID := pathID(r, "activityID")
	if activityID == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid activity id")
		return
	}

	record, err := h.moderation.ResolveActivity(r.Context(), activityID, identity.UserID)
	if err != nil {
		handleModerationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toActivityResponse(record))
}

func (h *AdminModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.moderation == nil {
		writeInternal(w, "MODERATION_SERVICE_UNAVAILABLE", "moderation service is unavailable")
		return
	}

	stats, err := h.moderation.GetStats(r.Context())
	if err != nil {
		handleModerationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ModerationStatsResponse{
		ReportsByStatus: stats.ReportsByStatus,
		ReportsByType:   stats.ReportsByType,
		OpenActivities:  stats.OpenActivities,
		ActiveBans:      stats.ActiveBans,
	})
}

func (h *AdminModerationHandler) SetVerification(w http.ResponseWriter, r *http.Request) {
	if h.privacy == nil {
		writeInternal(w, "PRIVACY_SERVICE_UNAVAILABLE", "privacy service is unavailable")
		return
	}

	var req dto.SetVerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.privacy.SetVerification(r.Context(), req.UserID, req.Status); err != nil {
		handlePrivacyError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

func writeReportList(w http.ResponseWriter, records []pgrepo.ReportRecord) {
	items := make([]dto.ReportResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toReportResponse(record))
	}
	httperrors.Write(w, http.StatusOK, dto.ReportsResponse{Items: items})
}

func toActionResponse(record pgrepo.ActionRecord) dto.ModerationActionResponse {
	return dto.ModerationActionResponse{
		ID:              record.ID,
		TargetUserID:    record.TargetUserID,
		ActionType:      record.ActionType,
		Reason:          record.Reason,
		PerformedByID:   record.PerformedByID,
		RelatedReportID: record.RelatedReportID,
		ExpiresAt:       record.ExpiresAt,
		RevokedAt:       record.RevokedAt,
		CreatedAt:       record.CreatedAt,
	}
}

func toActivityResponse(record pgrepo.ActivityRecord) dto.SuspiciousActivityResponse {
	return dto.SuspiciousActivityResponse{
		ID:               record.ID,
		UserID:           record.UserID,
		ActivityType:     record.ActivityType,
		Severity:         record.Severity,
		Details:          record.Details,
		Resolved:         record.Resolved,
		ResolvedByUserID: record.ResolvedByUserID,
		ResolvedAt:       record.ResolvedAt,
		CreatedAt:        record.CreatedAt,
	}
}
