package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
)

const (
	maxDescriptionLength = 2000
	maxEvidenceKeys      = 10
)

var (
	ErrValidation        = errors.New("validation error")
	ErrReportNotFound    = errors.New("report not found")
	ErrActivityNotFound  = errors.New("suspicious activity not found")
	ErrInvalidTransition = errors.New("invalid report status transition")
)

type TxRunner interface {
	InTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type ReportStore interface {
	Create(ctx context.Context, reporterUserID, reportedUserID int64, reportType, description, status, priority string, evidenceKeys []string, now time.Time) (pgrepo.ReportRecord, error)
	GetByID(ctx context.Context, reportID int64) (pgrepo.ReportRecord, error)
	UpdateStatus(ctx context.Context, reportID int64, status string, reviewedByUserID int64, resolutionNotes string, now time.Time) (pgrepo.ReportRecord, error)
	List(ctx context.Context, status string, limit int) ([]pgrepo.ReportRecord, error)
	ListAgainstUser(ctx context.Context, reportedUserID int64, limit int) ([]pgrepo.ReportRecord, error)
	CountsByStatus(ctx context.Context) (map[string]int64, error)
	CountsByType(ctx context.Context) (map[string]int64, error)
}

type ActionStore interface {
	Create(ctx context.Context, tx pgx.Tx, targetUserID int64, actionType, reason string, performedByUserID int64, relatedReportID *int64, expiresAt *time.Time, now time.Time) (pgrepo.ActionRecord, error)
	ListForUser(ctx context.Context, targetUserID int64, limit int) ([]pgrepo.ActionRecord, error)
	CountActiveBans(ctx context.Context, now time.Time) (int64, error)
	ExpireTemporaryBans(ctx context.Context, tx pgx.Tx, now time.Time) ([]int64, error)
}

type ActivityStore interface {
	Create(ctx context.Context, userID int64, activityType, severity, details string, now time.Time) (pgrepo.ActivityRecord, error)
	MarkResolved(ctx context.Context, activityID, resolvedByUserID int64, now time.Time) (pgrepo.ActivityRecord, error)
	ListOpen(ctx context.Context, limit int) ([]pgrepo.ActivityRecord, error)
	CountOpen(ctx context.Context) (int64, error)
}

// SettingsStore is the slice of the privacy settings repo the ban
// cascade needs: flipping the active flag inside the action transaction.
type SettingsStore interface {
	SetActive(ctx context.Context, tx pgx.Tx, userID int64, active bool, now time.Time) error
}

// WindowStore is the redis sliding window behind burst detection.
type WindowStore interface {
	RecordSend(ctx context.Context, userID int64, now time.Time, window time.Duration, threshold int) (int64, bool, error)
}

type EvidenceSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	DetectionThreshold int
	DetectionWindow    time.Duration
	TempBanDuration    time.Duration
	EvidenceURLTTL     time.Duration
	ListLimit          int
}

// ReportView is a report plus presigned evidence URLs for staff.
type ReportView struct {
	Report       pgrepo.ReportRecord
	EvidenceURLs []string
}

type Stats struct {
	ReportsByStatus map[string]int64
	ReportsByType   map[string]int64
	OpenActivities  int64
	ActiveBans      int64
}

type Service struct {
	runner     TxRunner
	reports    ReportStore
	actions    ActionStore
	activities ActivityStore
	settings   SettingsStore
	window     WindowStore
	evidence   EvidenceSigner
	log        *zap.Logger
	cfg        Config
	now        func() time.Time
}

type Dependencies struct {
	Runner     TxRunner
	Reports    ReportStore
	Actions    ActionStore
	Activities ActivityStore
	Settings   SettingsStore
	Window     WindowStore
	Evidence   EvidenceSigner
	Logger     *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DetectionThreshold <= 0 {
		cfg.DetectionThreshold = 15
	}
	if cfg.DetectionWindow <= 0 {
		cfg.DetectionWindow = 10 * time.Minute
	}
	if cfg.TempBanDuration <= 0 {
		cfg.TempBanDuration = 7 * 24 * time.Hour
	}
	if cfg.EvidenceURLTTL <= 0 {
		cfg.EvidenceURLTTL = defaultEvidenceURLTTL
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		runner:     deps.Runner,
		reports:    deps.Reports,
		actions:    deps.Actions,
		activities: deps.Activities,
		settings:   deps.Settings,
		window:     deps.Window,
		evidence:   deps.Evidence,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SubmitReport files a report against another user. Priority is derived
// from the type at submission and never edited afterwards.
func (s *Service) SubmitReport(ctx context.Context, reporterID, reportedID int64, rawType, description string, evidenceKeys []string) (pgrepo.ReportRecord, error) {
	if reporterID <= 0 || reportedID <= 0 || reporterID == reportedID {
		return pgrepo.ReportRecord{}, ErrValidation
	}
	reportType, ok := enums.ParseReportType(rawType)
	if !ok {
		return pgrepo.ReportRecord{}, ErrValidation
	}
	description = strings.TrimSpace(description)
	if description == "" || len(description) > maxDescriptionLength {
		return pgrepo.ReportRecord{}, ErrValidation
	}
	if len(evidenceKeys) > maxEvidenceKeys {
		return pgrepo.ReportRecord{}, ErrValidation
	}
	for _, key := range evidenceKeys {
		if strings.TrimSpace(key) == "" {
			return pgrepo.ReportRecord{}, ErrValidation
		}
	}

	priority := enums.PriorityForReportType(reportType)
	rec, err := s.reports.Create(ctx, reporterID, reportedID,
		string(reportType), description,
		string(enums.ReportStatusPending), string(priority),
		evidenceKeys, s.now())
	if err != nil {
		return pgrepo.ReportRecord{}, fmt.Errorf("submit report: %w", err)
	}

	s.log.Info("report submitted",
		zap.Int64("report_id", rec.ID),
		zap.String("type", rec.ReportType),
		zap.String("priority", rec.Priority),
	)

	return rec, nil
}

// GetReport loads a report and signs its evidence keys for viewing.
// A key that fails to sign is skipped rather than failing the view.
func (s *Service) GetReport(ctx context.Context, reportID int64) (ReportView, error) {
	if reportID <= 0 {
		return ReportView{}, ErrValidation
	}

	rec, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrReportNotFound) {
			return ReportView{}, ErrReportNotFound
		}
		return ReportView{}, fmt.Errorf("get report: %w", err)
	}

	view := ReportView{Report: rec}
	if s.evidence != nil {
		for _, key := range rec.EvidenceKeys {
			url, err := s.evidence.PresignGet(ctx, key, s.cfg.EvidenceURLTTL)
			if err != nil {
				s.log.Warn("presign evidence", zap.Int64("report_id", rec.ID), zap.String("key", key), zap.Error(err))
				continue
			}
			view.EvidenceURLs = append(view.EvidenceURLs, url)
		}
	}

	return view, nil
}

func (s *Service) ListReports(ctx context.Context, rawStatus string) ([]pgrepo.ReportRecord, error) {
	status := ""
	if strings.TrimSpace(rawStatus) != "" {
		parsed, ok := enums.ParseReportStatus(rawStatus)
		if !ok {
			return nil, ErrValidation
		}
		status = string(parsed)
	}

	records, err := s.reports.List(ctx, status, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return records, nil
}

func (s *Service) ListReportsAgainstUser(ctx context.Context, reportedID int64) ([]pgrepo.ReportRecord, error) {
	if reportedID <= 0 {
		return nil, ErrValidation
	}
	records, err := s.reports.ListAgainstUser(ctx, reportedID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list reports against user: %w", err)
	}
	return records, nil
}

// UpdateReportStatus moves a report through review. Transitions run
// forward only; resolved and dismissed reports are immutable.
func (s *Service) UpdateReportStatus(ctx context.Context, reportID int64, rawStatus string, moderatorID int64, notes string) (pgrepo.ReportRecord, error) {
	if reportID <= 0 || moderatorID <= 0 {
		return pgrepo.ReportRecord{}, ErrValidation
	}
	next, ok := enums.ParseReportStatus(rawStatus)
	if !ok {
		return pgrepo.ReportRecord{}, ErrValidation
	}

	current, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrReportNotFound) {
			return pgrepo.ReportRecord{}, ErrReportNotFound
		}
		return pgrepo.ReportRecord{}, fmt.Errorf("load report: %w", err)
	}
	if !enums.ReportStatus(current.Status).CanTransitionTo(next) {
		return pgrepo.ReportRecord{}, ErrInvalidTransition
	}

	rec, err := s.reports.UpdateStatus(ctx, reportID, string(next), moderatorID, notes, s.now())
	if err != nil {
		if errors.Is(err, pgrepo.ErrReportNotFound) {
			return pgrepo.ReportRecord{}, ErrReportNotFound
		}
		return pgrepo.ReportRecord{}, fmt.Errorf("update report status: %w", err)
	}

	s.log.Info("report status updated",
		zap.Int64("report_id", reportID),
		zap.String("from", current.Status),
		zap.String("to", rec.Status),
		zap.Int64("moderator_id", moderatorID),
	)

	return rec, nil
}

// PerformAction records a moderation action against a user. Ban actions
// deactivate the target's settings in the same transaction, which makes
// the user invisible everywhere at once.
func (s *Service) PerformAction(ctx context.Context, targetID int64, rawType, reason string, moderatorID int64, relatedReportID *int64) (pgrepo.ActionRecord, error) {
	if targetID <= 0 || moderatorID <= 0 || targetID == moderatorID {
		return pgrepo.ActionRecord{}, ErrValidation
	}
	actionType, ok := enums.ParseActionType(rawType)
	if !ok {
		return pgrepo.ActionRecord{}, ErrValidation
	}
	if strings.TrimSpace(reason) == "" {
		return pgrepo.ActionRecord{}, ErrValidation
	}
	if relatedReportID != nil && *relatedReportID <= 0 {
		return pgrepo.ActionRecord{}, ErrValidation
	}

	var created pgrepo.ActionRecord
	err := s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := s.now()

		var expiresAt *time.Time
		if actionType == enums.ActionTypeTemporaryBan {
			at := now.Add(s.cfg.TempBanDuration)
			expiresAt = &at
		}

		rec, err := s.actions.Create(ctx, tx, targetID, string(actionType), reason, moderatorID, relatedReportID, expiresAt, now)
		if err != nil {
			return err
		}

		if actionType.Ban() {
			if err := s.settings.SetActive(ctx, tx, targetID, false, now); err != nil {
				return err
			}
		}

		created = rec
		return nil
	})
	if err != nil {
		return pgrepo.ActionRecord{}, err
	}

	s.log.Info("moderation action performed",
		zap.Int64("target_id", targetID),
		zap.String("action", created.ActionType),
		zap.Int64("moderator_id", moderatorID),
	)

	return created, nil
}

func (s *Service) ListActionsForUser(ctx context.Context, targetID int64) ([]pgrepo.ActionRecord, error) {
	if targetID <= 0 {
		return nil, ErrValidation
	}
	records, err := s.actions.ListForUser(ctx, targetID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	return records, nil
}

// RecordRequestSent feeds one connection-request send into the burst
// detector. Best effort: detection failures are logged, never surfaced
// to the sender.
func (s *Service) RecordRequestSent(ctx context.Context, userID int64) {
	if userID <= 0 || s.window == nil {
		return
	}

	count, fired, err := s.window.RecordSend(ctx, userID, s.now(), s.cfg.DetectionWindow, s.cfg.DetectionThreshold)
	if err != nil {
		s.log.Warn("record request send", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if !fired {
		return
	}

	details := fmt.Sprintf("%d connection requests within %s", count, s.cfg.DetectionWindow)
	if _, err := s.recordActivity(ctx, userID, enums.ActivityTypeRapidRequests, details); err != nil {
		s.log.Warn("record rapid request activity", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// RecordActivity files a suspicious-activity entry directly, for
// signals raised outside the request window detector.
func (s *Service) RecordActivity(ctx context.Context, userID int64, rawType, details string) (pgrepo.ActivityRecord, error) {
	if userID <= 0 {
		return pgrepo.ActivityRecord{}, ErrValidation
	}
	activityType, ok := enums.ParseActivityType(rawType)
	if !ok {
		return pgrepo.ActivityRecord{}, ErrValidation
	}

	return s.recordActivity(ctx, userID, activityType, details)
}

func (s *Service) recordActivity(ctx context.Context, userID int64, activityType enums.ActivityType, details string) (pgrepo.ActivityRecord, error) {
	severity := enums.SeverityForActivityType(activityType)
	rec, err := s.activities.Create(ctx, userID, string(activityType), string(severity), details, s.now())
	if err != nil {
		return pgrepo.ActivityRecord{}, fmt.Errorf("record suspicious activity: %w", err)
	}

	s.log.Info("suspicious activity recorded",
		zap.Int64("user_id", userID),
		zap.String("type", rec.ActivityType),
		zap.String("severity", rec.Severity),
	)

	return rec, nil
}

func (s *Service) ResolveActivity(ctx context.Context, activityID, moderatorID int64) (pgrepo.ActivityRecord, error) {
	if activityID <= 0 || moderatorID <= 0 {
		return pgrepo.ActivityRecord{}, ErrValidation
	}

	rec, err := s.activities.MarkResolved(ctx, activityID, moderatorID, s.now())
	if err != nil {
		if errors.Is(err, pgrepo.ErrActivityNotFound) {
			return pgrepo.ActivityRecord{}, ErrActivityNotFound
		}
		return pgrepo.ActivityRecord{}, fmt.Errorf("resolve activity: %w", err)
	}

	return rec, nil
}

func (s *Service) ListOpenActivities(ctx context.Context) ([]pgrepo.ActivityRecord, error) {
	records, err := s.activities.ListOpen(ctx, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list open activities: %w", err)
	}
	return records, nil
}

func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	byStatus, err := s.reports.CountsByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("report status counts: %w", err)
	}
	byType, err := s.reports.CountsByType(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("report type counts: %w", err)
	}
	openActivities, err := s.activities.CountOpen(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("open activity count: %w", err)
	}
	activeBans, err := s.actions.CountActiveBans(ctx, s.now())
	if err != nil {
		return Stats{}, fmt.Errorf("active ban count: %w", err)
	}

	return Stats{
		ReportsByStatus: byStatus,
		ReportsByType:   byType,
		OpenActivities:  openActivities,
		ActiveBans:      activeBans,
	}, nil
}

// ExpireLapsedBans revokes temporary bans past their expiry and
// reactivates the affected users in one transaction. Run by the cleanup
// job.
func (s *Service) ExpireLapsedBans(ctx context.Context) (int, error) {
	var reactivated int
	err := s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := s.now()
		userIDs, err := s.actions.ExpireTemporaryBans(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			if err := s.settings.SetActive(ctx, tx, userID, true, now); err != nil {
				if errors.Is(err, pgrepo.ErrPrivacySettingsNotFound) {
					continue
				}
				return err
			}
		}
		reactivated = len(userIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if reactivated > 0 {
		s.log.Info("expired temporary bans", zap.Int("count", reactivated))
	}

	return reactivated, nil
}
