// Package ingestion is the shell between NATS and the deterministic
// engine: it subscribes to the instruction stream, parses wire JSON into
// typed instructions, and feeds them to the engine in delivery order.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mfactory-lab/omnisol/internal/observability"
)

const (
	// InstructionStream holds every submitted instruction, one subject
	// per kind.
	InstructionStream = "OMNISOL_INSTRUCTIONS"

	// InstructionSubjects is the wildcard the engine consumer filters
	// on; the suffix is the instruction kind.
	InstructionSubjects = "omnisol.instructions.>"

	// EventStream holds the outbound event envelopes.
	EventStream = "OMNISOL_EVENTS"

	// EventSubjects covers the outbound envelope subjects, suffixed by
	// event type.
	EventSubjects = "omnisol.events.>"

	consumerName = "omnisol-engine"
)

// RawInstruction is one delivered-but-unparsed instruction. The subject
// suffix carries the kind; AckFunc and NakFunc settle the JetStream
// delivery.
type RawInstruction struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func()
	NakFunc   func()
}

// NATSSubscriber pulls instructions off JetStream and queues them for the
// pipeline. A single durable consumer keeps delivery ordered; explicit
// ACK with bounded redelivery covers shell crashes mid-batch.
type NATSSubscriber struct {
	js        jetstream.JetStream
	inputChan chan<- RawInstruction
	consumer  jetstream.ConsumeContext
}

func NewNATSSubscriber(js jetstream.JetStream, inputChan chan<- RawInstruction) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		inputChan: inputChan,
	}
}

// Subscribe creates the durable engine consumer and starts delivery.
func (ns *NATSSubscriber) Subscribe(ctx context.Context) error {
	log := observability.NewLogger("ingest")

	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, InstructionStream, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: InstructionSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawInstruction{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			AckFunc:   func() { msg.Ack() },
			NakFunc:   func() { msg.Nak() },
		}

		select {
		case ns.inputChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	ns.consumer = cc
	log.Info().Str("subject", InstructionSubjects).Str("consumer", consumerName).Msg("subscribed")
	return nil
}

// EnsureStreams creates the instruction and event streams if missing.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	log := observability.NewLogger("ingest")

	streams := []jetstream.StreamConfig{
		{
			Name:      InstructionStream,
			Subjects:  []string{InstructionSubjects},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      EventStream,
			Subjects:  []string{EventSubjects},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}
	return nil
}

// Stop gracefully stops the consumer.
func (ns *NATSSubscriber) Stop() {
	if ns.consumer != nil {
		ns.consumer.Stop()
	}
}

// ConnectNATS establishes a NATS connection and returns a JetStream
// context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	log := observability.NewLogger("nats")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
