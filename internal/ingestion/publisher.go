package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/observability"
)

// OutboundPublisher pushes processed event envelopes to NATS for
// downstream consumers. Subjects follow omnisol.events.{event_type}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
}

// envelopeJSON is the outbound wire shape of one event envelope.
type envelopeJSON struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	InstructionKey string          `json:"instruction_key"`
	Pool           *string         `json:"pool,omitempty"`
	SourceSequence int64           `json:"source_sequence"`
	TimestampUs    int64           `json:"timestamp_us"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"`
	PrevHash       string          `json:"prev_hash"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Output) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop. Publish failures are logged
// and dropped; the event log in Postgres remains the durable record.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	log := observability.NewLogger("publisher")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, out); err != nil {
				log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out engine.Output) error {
	env := out.Envelope

	j := envelopeJSON{
		Sequence:       env.Sequence,
		EventType:      env.Type.String(),
		InstructionKey: env.InstructionKey,
		SourceSequence: env.SourceSequence,
		TimestampUs:    env.Timestamp.UnixMicro(),
		Payload:        env.Payload,
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		PrevHash:       hex.EncodeToString(env.PrevHash[:]),
	}
	if env.Pool != nil {
		s := env.Pool.String()
		j.Pool = &s
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("omnisol.events.%s", env.Type)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}
