package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
)

var ErrValidation = errors.New("validation error")

type StatusStore interface {
	SetStatus(ctx context.Context, userID int64, state string, ttl time.Duration) error
	GetStatus(ctx context.Context, userID int64) (string, error)
	Delete(ctx context.Context, userID int64) error
}

type Config struct {
	StatusTTL time.Duration
	TypingTTL time.Duration
}

type typingKey struct {
	UserID int64
	RoomID int64
}

// Tracker keeps presence state in redis and typing indicators in
// process memory. Typing is deliberately ephemeral: a renewed heartbeat
// restarts the timer, and a quiet socket decays to not-typing on its
// own.
type Tracker struct {
	store StatusStore
	log   *zap.Logger
	cfg   Config

	mu     sync.Mutex
	typing map[typingKey]*time.Timer
	closed bool
}

func NewTracker(store StatusStore, log *zap.Logger, cfg Config) *Tracker {
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 5 * time.Minute
	}
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Tracker{
		store:  store,
		log:    log,
		cfg:    cfg,
		typing: make(map[typingKey]*time.Timer),
	}
}

// SetStatus records the user's presence state. Offline removes the key
// instead of writing it, so lookups and TTL decay agree on what absence
// means.
func (t *Tracker) SetStatus(ctx context.Context, userID int64, rawState string) error {
	if userID <= 0 {
		return ErrValidation
	}
	state, ok := enums.ParsePresenceState(rawState)
	if !ok {
		return ErrValidation
	}

	if state == enums.PresenceStateOffline {
		if err := t.store.Delete(ctx, userID); err != nil {
			return fmt.Errorf("clear presence: %w", err)
		}
		return nil
	}

	if err := t.store.SetStatus(ctx, userID, string(state), t.cfg.StatusTTL); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}

	return nil
}

// Status returns the user's current state; an expired or missing key
// reads as offline.
func (t *Tracker) Status(ctx context.Context, userID int64) (enums.PresenceState, error) {
	if userID <= 0 {
		return "", ErrValidation
	}

	raw, err := t.store.GetStatus(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get presence: %w", err)
	}
	if raw == "" {
		return enums.PresenceStateOffline, nil
	}

	state, ok := enums.ParsePresenceState(raw)
	if !ok {
		t.log.Warn("unknown presence state in store", zap.Int64("user_id", userID), zap.String("state", raw))
		return enums.PresenceStateOffline, nil
	}

	return state, nil
}

// StartTyping marks the user as typing in a room and restarts the decay
// timer if one is already running.
func (t *Tracker) StartTyping(userID, roomID int64) error {
	if userID <= 0 || roomID <= 0 {
		return ErrValidation
	}

	key := typingKey{UserID: userID, RoomID: roomID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}

	if timer, ok := t.typing[key]; ok {
		timer.Stop()
	}
	t.typing[key] = time.AfterFunc(t.cfg.TypingTTL, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.typing, key)
	})

	return nil
}

func (t *Tracker) StopTyping(userID, roomID int64) error {
	if userID <= 0 || roomID <= 0 {
		return ErrValidation
	}

	key := typingKey{UserID: userID, RoomID: roomID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.typing[key]; ok {
		timer.Stop()
		delete(t.typing, key)
	}

	return nil
}

func (t *Tracker) IsTyping(userID, roomID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.typing[typingKey{UserID: userID, RoomID: roomID}]
	return ok
}

// TypingInRoom lists users currently typing in the room.
func (t *Tracker) TypingInRoom(roomID int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var userIDs []int64
	for key := range t.typing {
		if key.RoomID == roomID {
			userIDs = append(userIDs, key.UserID)
		}
	}
	return userIDs
}

// Close stops all typing timers. Safe to call once at shutdown.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, timer := range t.typing {
		timer.Stop()
		delete(t.typing, key)
	}
}
