package privacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
	"github.com/prymskiwen/crewvar-sub001/internal/domain/rules"
	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrSettingsNotFound = errors.New("privacy settings not found")
)

type SettingsStore interface {
	Create(ctx context.Context, userID int64, now time.Time) error
	Get(ctx context.Context, userID int64) (pgrepo.PrivacySettingsRecord, error)
	UpdatePreferences(ctx context.Context, userID int64, update pgrepo.PrivacyPreferencesUpdate, now time.Time) (pgrepo.PrivacySettingsRecord, error)
	SetVerification(ctx context.Context, userID int64, status string, now time.Time) error
	TouchLastActive(ctx context.Context, userID int64, now time.Time) error
}

type BlockStore interface {
	ExistsBetween(ctx context.Context, userA, userB int64) (bool, error)
}

type CooldownStore interface {
	ActiveUntil(ctx context.Context, declinerUserID, requesterUserID int64, now time.Time) (*time.Time, error)
}

// Visibility is the per-pair answer handed to roster and profile views.
// The tiers nest: future ship dates are never visible without today's
// ship, and today's ship never without roster presence.
type Visibility struct {
	CanSeeRoster      bool
	CanSeeTodayShip   bool
	CanSeeFutureShips bool
}

type Service struct {
	settings  SettingsStore
	blocks    BlockStore
	cooldowns CooldownStore
	now       func() time.Time
}

type Dependencies struct {
	Settings  SettingsStore
	Blocks    BlockStore
	Cooldowns CooldownStore
}

func NewService(deps Dependencies) *Service {
	return &Service{
		settings:  deps.Settings,
		blocks:    deps.Blocks,
		cooldowns: deps.Cooldowns,
		now:       time.Now,
	}
}

// EnsureSettings writes the default settings row for a new account.
// Safe to repeat.
func (s *Service) EnsureSettings(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrValidation
	}
	if err := s.settings.Create(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("ensure privacy settings: %w", err)
	}
	return nil
}

func (s *Service) GetSettings(ctx context.Context, userID int64) (pgrepo.PrivacySettingsRecord, error) {
	if userID <= 0 {
		return pgrepo.PrivacySettingsRecord{}, ErrValidation
	}

	rec, err := s.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPrivacySettingsNotFound) {
			return pgrepo.PrivacySettingsRecord{}, ErrSettingsNotFound
		}
		return pgrepo.PrivacySettingsRecord{}, fmt.Errorf("get privacy settings: %w", err)
	}

	return rec, nil
}

func (s *Service) UpdateSettings(ctx context.Context, userID int64, update pgrepo.PrivacyPreferencesUpdate) (pgrepo.PrivacySettingsRecord, error) {
	if userID <= 0 {
		return pgrepo.PrivacySettingsRecord{}, ErrValidation
	}

	rec, err := s.settings.UpdatePreferences(ctx, userID, update, s.now())
	if err != nil {
		if errors.Is(err, pgrepo.ErrPrivacySettingsNotFound) {
			return pgrepo.PrivacySettingsRecord{}, ErrSettingsNotFound
		}
		return pgrepo.PrivacySettingsRecord{}, fmt.Errorf("update privacy settings: %w", err)
	}

	return rec, nil
}

// SetVerification records a verification decision for the user.
func (s *Service) SetVerification(ctx context.Context, userID int64, rawStatus string) error {
	if userID <= 0 {
		return ErrValidation
	}
	status, ok := enums.ParseVerificationStatus(rawStatus)
	if !ok {
		return ErrValidation
	}

	if err := s.settings.SetVerification(ctx, userID, string(status), s.now()); err != nil {
		if errors.Is(err, pgrepo.ErrPrivacySettingsNotFound) {
			return ErrSettingsNotFound
		}
		return fmt.Errorf("set verification: %w", err)
	}

	return nil
}

func (s *Service) TouchLastActive(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrValidation
	}
	if err := s.settings.TouchLastActive(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	return nil
}

// VisibilityBetween evaluates all three tiers for viewer looking at
// target. A user whose settings row is missing is invisible and sees
// nobody; storage errors other than not-found propagate.
func (s *Service) VisibilityBetween(ctx context.Context, viewerID, targetID int64) (Visibility, error) {
	if viewerID <= 0 || targetID <= 0 {
		return Visibility{}, ErrValidation
	}
	if viewerID == targetID {
		return Visibility{CanSeeRoster: true, CanSeeTodayShip: true, CanSeeFutureShips: true}, nil
	}

	viewer, err := s.snapshotFor(ctx, viewerID)
	if err != nil {
		return Visibility{}, err
	}
	target, err := s.snapshotFor(ctx, targetID)
	if err != nil {
		return Visibility{}, err
	}

	blocked, err := s.blocks.ExistsBetween(ctx, viewerID, targetID)
	if err != nil {
		return Visibility{}, fmt.Errorf("check block state: %w", err)
	}

	return Visibility{
		CanSeeRoster:      rules.CanSeeRoster(viewer, target, blocked),
		CanSeeTodayShip:   rules.CanSeeTodayShip(viewer, target, blocked),
		CanSeeFutureShips: rules.CanSeeFutureShips(viewer, target, blocked),
	}, nil
}

// IsBlocked reports whether a block edge exists between the pair in
// either direction. Connection requests are gated on this alone, not on
// roster visibility: the request cycle is how visibility gets
// established.
func (s *Service) IsBlocked(ctx context.Context, userA, userB int64) (bool, error) {
	if userA <= 0 || userB <= 0 {
		return false, ErrValidation
	}

	blocked, err := s.blocks.ExistsBetween(ctx, userA, userB)
	if err != nil {
		return false, fmt.Errorf("check block state: %w", err)
	}

	return blocked, nil
}

// CooldownUntil returns the expiry of an active decline cooldown that
// decliner holds against requester, nil when none is active.
func (s *Service) CooldownUntil(ctx context.Context, declinerID, requesterID int64) (*time.Time, error) {
	if declinerID <= 0 || requesterID <= 0 {
		return nil, ErrValidation
	}

	until, err := s.cooldowns.ActiveUntil(ctx, declinerID, requesterID, s.now())
	if err != nil {
		return nil, fmt.Errorf("check decline cooldown: %w", err)
	}

	return until, nil
}

func (s *Service) snapshotFor(ctx context.Context, userID int64) (rules.Snapshot, error) {
	rec, err := s.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPrivacySettingsNotFound) {
			return rules.Snapshot{UserID: userID}, nil
		}
		return rules.Snapshot{}, fmt.Errorf("load settings snapshot: %w", err)
	}

	return rules.Snapshot{
		UserID:                    rec.UserID,
		Verified:                  rec.Verified,
		Active:                    rec.Active,
		ShowOnlyTodayShip:         rec.ShowOnlyTodayShip,
		AllowFutureShipVisibility: rec.AllowFutureShipVisibility,
		DeclineRequestsSilently:   rec.DeclineRequestsSilently,
		Exists:                    true,
	}, nil
}
