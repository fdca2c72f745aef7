package requests

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

const maxMessageLength = 500

var (
	ErrValidation       = errors.New("validation error")
	ErrNotAllowed       = errors.New("request not allowed")
	ErrBlocked          = errors.New("pair is blocked")
	ErrRequestNotFound  = errors.New("request not found")
	ErrDuplicateRequest = errors.New("pending request already exists")
	ErrAlreadyConnected = errors.New("users are already connected")
	ErrAlreadyHandled   = errors.New("request already handled")
)

// CooldownError rejects a resend while the recipient's decline window
// is still open.
type CooldownError struct {
	Until time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("decline cooldown active until %s", e.Until.Format(time.RFC3339))
}

// TooFastError carries the retry hint from the rate limiter.
type TooFastError struct {
	RetryAfterSec int64
}

func (e *TooFastError) Error() string {
	return fmt.Sprintf("too many requests, retry after %ds", e.RetryAfterSec)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type RequestStore interface {
	Create(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64, message string, now time.Time) (pgrepo.RequestRecord, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, requestID int64) (pgrepo.RequestRecord, error)
	GetPendingBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (pgrepo.RequestRecord, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, requestID int64, status string, now time.Time) error
	DeleteByID(ctx context.Context, tx pgx.Tx, requestID int64) error
	ListIncoming(ctx context.Context, toUserID int64, limit int) ([]pgrepo.RequestRecord, error)
	ListOutgoing(ctx context.Context, fromUserID int64, limit int) ([]pgrepo.RequestRecord, error)
}

type ConnectionStore interface {
	Activate(ctx context.Context, tx pgx.Tx, userA, userB int64, now time.Time) (pgrepo.ConnectionRecord, error)
	GetBetween(ctx context.Context, userA, userB int64) (pgrepo.ConnectionRecord, error)
	ListActiveForUser(ctx context.Context, userID int64, limit int) ([]pgrepo.ConnectionRecord, error)
}

type CooldownStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, declinerUserID, requesterUserID int64, declinedAt, cooldownUntil time.Time, durationHours int) error
}

type PrivacyGate interface {
	IsBlocked(ctx context.Context, userA, userB int64) (bool, error)
	CooldownUntil(ctx context.Context, declinerID, requesterID int64) (*time.Time, error)
	GetSettings(ctx context.Context, userID int64) (pgrepo.PrivacySettingsRecord, error)
}

type RateLimiter interface {
	AllowRequestSend(ctx context.Context, userID int64) (int64, bool, error)
}

type Notifier interface {
	RequestReceived(ctx context.Context, toUserID, fromUserID, requestID int64)
	RequestAccepted(ctx context.Context, toUserID, byUserID, requestID, connectionID int64)
	RequestDeclined(ctx context.Context, toUserID, byUserID, requestID int64)
}

// SendRecorder feeds the burst detector. Recording is best effort and
// never fails a send.
type SendRecorder interface {
	RecordRequestSent(ctx context.Context, userID int64)
}

type Config struct {
	CooldownHours int
	ListLimit     int
}

type AcceptResult struct {
	Request    pgrepo.RequestRecord
	Connection pgrepo.ConnectionRecord
	// Transitioned is false when the request was already accepted and
	// this call was a repeat.
	Transitioned bool
}

type Service struct {
	runner      TxRunner
	requests    RequestStore
	connections ConnectionStore
	cooldowns   CooldownStore
	privacy     PrivacyGate
	rateLimiter RateLimiter
	notifier    Notifier
	recorder    SendRecorder
	log         *zap.Logger
	cfg         Config
	now         func() time.Time
}

type Dependencies struct {
	Runner      TxRunner
	Requests    RequestStore
	Connections ConnectionStore
	Cooldowns   CooldownStore
	Privacy     PrivacyGate
	RateLimiter RateLimiter
	Notifier    Notifier
	Recorder    SendRecorder
	Logger      *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.CooldownHours <= 0 {
		cfg.CooldownHours = 24
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		runner:      deps.Runner,
		requests:    deps.Requests,
		connections: deps.Connections,
		cooldowns:   deps.Cooldowns,
		privacy:     deps.Privacy,
		rateLimiter: deps.RateLimiter,
		notifier:    deps.Notifier,
		recorder:    deps.Recorder,
		log:         log,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Send creates a pending request from sender to recipient. Roster
// visibility is not required: an accepted request is how two crew
// members become visible to each other in the first place. Only a
// block, an active decline cooldown or a duplicate stops the send.
func (s *Service) Send(ctx context.Context, fromUserID, toUserID int64, message string) (pgrepo.RequestRecord, error) {
	if fromUserID <= 0 || toUserID <= 0 || fromUserID == toUserID {
		return pgrepo.RequestRecord{}, ErrValidation
	}
	if len(strings.TrimSpace(message)) > maxMessageLength {
		return pgrepo.RequestRecord{}, ErrValidation
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.AllowRequestSend(ctx, fromUserID)
		if err != nil {
			return pgrepo.RequestRecord{}, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			return pgrepo.RequestRecord{}, &TooFastError{RetryAfterSec: retryAfter}
		}
	}

	blocked, err := s.privacy.IsBlocked(ctx, fromUserID, toUserID)
	if err != nil {
		return pgrepo.RequestRecord{}, fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return pgrepo.RequestRecord{}, ErrBlocked
	}

	until, err := s.privacy.CooldownUntil(ctx, toUserID, fromUserID)
	if err != nil {
		return pgrepo.RequestRecord{}, fmt.Errorf("cooldown check: %w", err)
	}
	if until != nil {
		return pgrepo.RequestRecord{}, &CooldownError{Until: *until}
	}

	// A row left behind by a block does not count as connected; after an
	// unblock the pair reconnects through a fresh request cycle.
	conn, err := s.connections.GetBetween(ctx, fromUserID, toUserID)
	if err == nil {
		if conn.Status == string(enums.ConnectionStatusActive) {
			return pgrepo.RequestRecord{}, ErrAlreadyConnected
		}
	} else if !errors.Is(err, pgrepo.ErrConnectionNotFound) {
		return pgrepo.RequestRecord{}, fmt.Errorf("connection check: %w", err)
	}

	var created pgrepo.RequestRecord
	err = s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.requests.GetPendingBetween(ctx, tx, fromUserID, toUserID); err == nil {
			return ErrDuplicateRequest
		} else if !errors.Is(err, pgrepo.ErrRequestNotFound) {
			return fmt.Errorf("pending request check: %w", err)
		}

		rec, err := s.requests.Create(ctx, tx, fromUserID, toUserID, message, s.now())
		if err != nil {
			return err
		}
		created = rec
		return nil
	})
	if err != nil {
		return pgrepo.RequestRecord{}, err
	}

	if s.recorder != nil {
		s.recorder.RecordRequestSent(ctx, fromUserID)
	}
	if s.notifier != nil {
		s.notifier.RequestReceived(ctx, toUserID, fromUserID, created.ID)
	}

	return created, nil
}

// Accept transitions a pending request to accepted and creates the
// connection. Accepting an already accepted request returns the
// existing connection without another notification.
func (s *Service) Accept(ctx context.Context, requestID, userID int64) (AcceptResult, error) {
	if requestID <= 0 || userID <= 0 {
		return AcceptResult{}, ErrValidation
	}

	var result AcceptResult
	err := s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rec, err := s.requests.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrRequestNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if rec.ToUserID != userID {
			return ErrNotAllowed
		}

		status := enums.RequestStatus(rec.Status)
		if status == enums.RequestStatusAccepted {
			// A repeat accept hands back whatever row exists; it must not
			// reactivate a connection that a later block froze.
			conn, err := s.connections.GetBetween(ctx, rec.FromUserID, rec.ToUserID)
			if errors.Is(err, pgrepo.ErrConnectionNotFound) {
				conn, err = s.connections.Activate(ctx, tx, rec.FromUserID, rec.ToUserID, s.now())
			}
			if err != nil {
				return err
			}
			result = AcceptResult{Request: rec, Connection: conn, Transitioned: false}
			return nil
		}
		if status.Terminal() {
			return ErrAlreadyHandled
		}

		now := s.now()
		if err := s.requests.UpdateStatus(ctx, tx, rec.ID, string(enums.RequestStatusAccepted), now); err != nil {
			return err
		}
		conn, err := s.connections.Activate(ctx, tx, rec.FromUserID, rec.ToUserID, now)
		if err != nil {
			return err
		}

		rec.Status = string(enums.RequestStatusAccepted)
		result = AcceptResult{Request: rec, Connection: conn, Transitioned: true}
		return nil
	})
	if err != nil {
		return AcceptResult{}, err
	}

	if result.Transitioned && s.notifier != nil {
		s.notifier.RequestAccepted(ctx, result.Request.FromUserID, userID, result.Request.ID, result.Connection.ID)
	}

	return result, nil
}

// Decline moves a pending request to declined and always opens the
// resend cooldown. Whether the sender is told depends on the
// recipient's silent-decline setting; the cooldown applies either way.
func (s *Service) Decline(ctx context.Context, requestID, userID int64) (pgrepo.RequestRecord, error) {
	if requestID <= 0 || userID <= 0 {
		return pgrepo.RequestRecord{}, ErrValidation
	}

	var declined pgrepo.RequestRecord
	err := s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rec, err := s.requests.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrRequestNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if rec.ToUserID != userID {
			return ErrNotAllowed
		}
		if enums.RequestStatus(rec.Status).Terminal() {
			return ErrAlreadyHandled
		}

		now := s.now()
		if err := s.requests.UpdateStatus(ctx, tx, rec.ID, string(enums.RequestStatusDeclined), now); err != nil {
			return err
		}

		cooldownUntil := now.Add(time.Duration(s.cfg.CooldownHours) * time.Hour)
		if err := s.cooldowns.Upsert(ctx, tx, userID, rec.FromUserID, now, cooldownUntil, s.cfg.CooldownHours); err != nil {
			return err
		}

		rec.Status = string(enums.RequestStatusDeclined)
		declined = rec
		return nil
	})
	if err != nil {
		return pgrepo.RequestRecord{}, err
	}

	if s.notifier != nil && !s.declineIsSilent(ctx, userID) {
		s.notifier.RequestDeclined(ctx, declined.FromUserID, userID, declined.ID)
	}

	return declined, nil
}

// Cancel lets the sender withdraw a pending request. The row is deleted
// so a later resend starts clean, with no cooldown against the sender.
func (s *Service) Cancel(ctx context.Context, requestID, userID int64) error {
	if requestID <= 0 || userID <= 0 {
		return ErrValidation
	}

	return s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rec, err := s.requests.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrRequestNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if rec.FromUserID != userID {
			return ErrNotAllowed
		}
		if enums.RequestStatus(rec.Status).Terminal() {
			return ErrAlreadyHandled
		}

		return s.requests.DeleteByID(ctx, tx, rec.ID)
	})
}

func (s *Service) ListIncoming(ctx context.Context, userID int64) ([]pgrepo.RequestRecord, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	records, err := s.requests.ListIncoming(ctx, userID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return records, nil
}

func (s *Service) ListOutgoing(ctx context.Context, userID int64) ([]pgrepo.RequestRecord, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	records, err := s.requests.ListOutgoing(ctx, userID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	return records, nil
}

// ListConnections returns the user's active connections.
func (s *Service) ListConnections(ctx context.Context, userID int64) ([]pgrepo.ConnectionRecord, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	records, err := s.connections.ListActiveForUser(ctx, userID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return records, nil
}

func (s *Service) declineIsSilent(ctx context.Context, userID int64) bool {
	settings, err := s.privacy.GetSettings(ctx, userID)
	if err != nil {
		s.log.Warn("load decline settings", zap.Int64("user_id", userID), zap.Error(err))
		return true
	}
	return settings.DeclineRequestsSilently
}
