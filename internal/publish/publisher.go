package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LendLedger/internal/event"
	"LendLedger/internal/observability"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Publisher forwards committed ledger events to NATS for downstream
// indexers and auditors. Subjects follow the pattern
// lend.ledger.events.{event_type}. Publishing is best effort: the
// event log in Postgres is the source of truth, a consumer that missed
// a publish rebuilds from there.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan *event.Record
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// Message is the wire shape of one published event.
type Message struct {
	Sequence   int64     `json:"sequence"`
	EventType  string    `json:"event_type"`
	EventID    string    `json:"event_id"`
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	Collateral string    `json:"collateral,omitempty"`
	Principal  string    `json:"principal,omitempty"`
	Interest   string    `json:"interest,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func messageFromRecord(rec *event.Record) Message {
	msg := Message{
		Sequence:  rec.Sequence,
		EventType: rec.Type.String(),
		EventID:   rec.EventID.String(),
		Account:   rec.Account.String(),
		Amount:    rec.Amount.String(),
		Timestamp: rec.Timestamp,
	}
	if rec.Collateral != nil {
		msg.Collateral = rec.Collateral.String()
	}
	if rec.Principal != nil {
		msg.Principal = rec.Principal.String()
	}
	if rec.Interest != nil {
		msg.Interest = rec.Interest.String()
	}
	return msg
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan *event.Record, metrics *observability.Metrics, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run drains the publish channel until ctx is cancelled or the channel
// closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, rec); err != nil {
				// Non-fatal: consumers can query the event log directly.
				p.log.Warn().Err(err).Int64("sequence", rec.Sequence).Msg("outbound publish failed")
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, rec *event.Record) error {
	data, err := json.Marshal(messageFromRecord(rec))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("lend.ledger.events.%s", rec.Type.String())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.PublishedEvents.WithLabelValues(rec.Type.String()).Inc()
	}
	return nil
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "LEND_LEDGER_EVENTS",
		Subjects:  []string{"lend.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Str("stream", "LEND_LEDGER_EVENTS").Msg("ensured outbound stream")
	return nil
}
