package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/observability"
)

const subjectPrefix = "omnisol.instructions."

// Pipeline parses delivered instructions and applies them to the engine.
// Everything the engine decides is deterministic, so both applied and
// rejected instructions are ACKed: redelivering a rejection would only
// produce the same rejection again. Only poison messages that cannot be
// parsed are dropped, with an error log.
type Pipeline struct {
	engine    *engine.Engine
	inputChan <-chan RawInstruction
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewPipeline(eng *engine.Engine, inputChan <-chan RawInstruction, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		engine:    eng,
		inputChan: inputChan,
		metrics:   metrics,
		log:       observability.NewLogger("pipeline"),
	}
}

// Run consumes raw instructions until the context is cancelled or the
// input channel closes.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			p.handle(raw)
		}
	}
}

func (p *Pipeline) handle(raw RawInstruction) {
	kind := strings.TrimPrefix(raw.Subject, subjectPrefix)

	inst, err := instruction.Parse(raw.Data, kind)
	if err != nil {
		// Unparseable payloads never become parseable on redelivery.
		p.log.Error().Err(err).Str("subject", raw.Subject).Msg("dropping unparseable instruction")
		if p.metrics != nil {
			p.metrics.InstructionsRejected.WithLabelValues(kind, "parse").Inc()
		}
		raw.AckFunc()
		return
	}

	if err := p.engine.Process(inst); err != nil {
		// The engine already counts the rejection by reason.
		p.log.Warn().
			Err(err).
			Str("kind", kind).
			Stringer("authority", inst.Signer()).
			Msg("instruction rejected")
		raw.AckFunc()
		return
	}

	// Apply counts and durations belong to the engine; the pipeline only
	// tracks the queue-to-apply latency it is responsible for.
	if p.metrics != nil {
		p.metrics.IngestToApply.WithLabelValues(kind).Observe(time.Since(raw.Timestamp).Seconds())
	}
	raw.AckFunc()
}
