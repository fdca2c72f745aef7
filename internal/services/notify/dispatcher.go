package notify

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultChannel = "notifications"

// Event is the wire shape published for the delivery workers. UserID is
// the recipient.
type Event struct {
	Type         string    `json:"type"`
	UserID       int64     `json:"user_id"`
	ActorUserID  int64     `json:"actor_user_id,omitempty"`
	RequestID    int64     `json:"request_id,omitempty"`
	ConnectionID int64     `json:"connection_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Dispatcher publishes notification events over redis pub/sub. Delivery
// is best effort: a failed publish is logged and dropped, it never
// fails the operation that produced it.
type Dispatcher struct {
	client  *goredis.Client
	log     *zap.Logger
	channel string
	now     func() time.Time
}

func NewDispatcher(client *goredis.Client, log *zap.Logger, channel string) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if channel == "" {
		channel = defaultChannel
	}

	return &Dispatcher{
		client:  client,
		log:     log,
		channel: channel,
		now:     time.Now,
	}
}

func (d *Dispatcher) RequestReceived(ctx context.Context, toUserID, fromUserID, requestID int64) {
	d.publish(ctx, Event{
		Type:        "connection_request_received",
		UserID:      toUserID,
		ActorUserID: fromUserID,
		RequestID:   requestID,
	})
}

func (d *Dispatcher) RequestAccepted(ctx context.Context, toUserID, byUserID, requestID, connectionID int64) {
	d.publish(ctx, Event{
		Type:         "connection_request_accepted",
		UserID:       toUserID,
		ActorUserID:  byUserID,
		RequestID:    requestID,
		ConnectionID: connectionID,
	})
}

func (d *Dispatcher) RequestDeclined(ctx context.Context, toUserID, byUserID, requestID int64) {
	d.publish(ctx, Event{
		Type:        "connection_request_declined",
		UserID:      toUserID,
		ActorUserID: byUserID,
		RequestID:   requestID,
	})
}

func (d *Dispatcher) publish(ctx context.Context, event Event) {
	if d.client == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Warn("marshal notification event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	if err := d.client.Publish(ctx, d.channel, payload).Err(); err != nil {
		d.log.Warn("publish notification event",
			zap.String("type", event.Type),
			zap.Int64("user_id", event.UserID),
			zap.Error(err),
		)
	}
}
