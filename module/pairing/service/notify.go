package service

import (
	"context"
	"encoding/json"
	"time"

	"PairLink/service/natsx"
)

// Notifier delivers informational pairing events to the other party.
// Delivery is best-effort everywhere it is used: failures are logged by
// the caller and never block or roll back a pairing transition.
type Notifier interface {
	PartnerPaired(ctx context.Context, toUserID, withUserID, withName string) error
	PartnerUnpaired(ctx context.Context, toUserID, byUserID string) error
}

const notifyBiz = "pairing.notify"

type pairingEvent struct {
	Event       string    `json:"event"` // paired | unpaired
	ToUserID    string    `json:"toUserId"`
	OtherUserID string    `json:"otherUserId"`
	OtherName   string    `json:"otherName,omitempty"`
	At          time.Time `json:"at"`
}

// NatsNotifier publishes pairing events over NATS for the push layer to
// fan out.
type NatsNotifier struct {
	p *natsx.NatsxProducer
}

func NewNatsNotifier(p *natsx.NatsxProducer) *NatsNotifier {
	return &NatsNotifier{p: p}
}

func (n *NatsNotifier) publish(ctx context.Context, ev pairingEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.p.Publish(ctx, notifyBiz, b, map[string]string{"to": ev.ToUserID})
}

func (n *NatsNotifier) PartnerPaired(ctx context.Context, toUserID, withUserID, withName string) error {
	return n.publish(ctx, pairingEvent{
		Event:       "paired",
		ToUserID:    toUserID,
		OtherUserID: withUserID,
		OtherName:   withName,
		At:          time.Now(),
	})
}

func (n *NatsNotifier) PartnerUnpaired(ctx context.Context, toUserID, byUserID string) error {
	return n.publish(ctx, pairingEvent{
		Event:       "unpaired",
		ToUserID:    toUserID,
		OtherUserID: byUserID,
		At:          time.Now(),
	})
}

// NopNotifier is used by tests and when NATS is not configured.
type NopNotifier struct{}

func (NopNotifier) PartnerPaired(context.Context, string, string, string) error { return nil }
func (NopNotifier) PartnerUnpaired(context.Context, string, string) error       { return nil }
