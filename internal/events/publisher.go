package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing usage events to JetStream.
// A nil Publisher is valid and drops every event, so callers never need to
// branch on whether the event stream is configured.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishMinutesRecorded publishes a conversation-minutes ledger event.
func (p *Publisher) PublishMinutesRecorded(ctx context.Context, ev MinutesRecorded) error {
	return p.publish(ctx, SubjectMinutesRecorded, ev)
}

// PublishTTSRecorded publishes a TTS-call ledger event.
func (p *Publisher) PublishTTSRecorded(ctx context.Context, ev TTSRecorded) error {
	return p.publish(ctx, SubjectTTSRecorded, ev)
}

// PublishQuotaDenied publishes an admission denial event.
func (p *Publisher) PublishQuotaDenied(ctx context.Context, ev QuotaDenied) error {
	return p.publish(ctx, SubjectQuotaDenied, ev)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
