package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfactory-lab/omnisol/internal/chain"
	"github.com/mfactory-lab/omnisol/internal/observability"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// ChunkSize is how many queue entries fit into one update_oracle_info
// submission.
const ChunkSize = 25

// Publisher recomputes the priority queue and pushes it to the ledger in
// chunks. The first chunk of a cycle carries the clear flag so the
// stored queue is wiped before the new ranking is appended; observers
// may see a partial queue between chunks, which liquidation tolerates by
// re-validating every entry against the live remainder.
type Publisher struct {
	client  chain.Client
	log     zerolog.Logger
	metrics *observability.Metrics

	// prev is the last published queue; an unchanged recomputation is
	// skipped entirely.
	prev []state.QueueMember
}

func NewPublisher(client chain.Client, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		client:  client,
		log:     observability.NewLogger("oracle"),
		metrics: metrics,
	}
}

// RunCycle performs one fetch-compute-publish pass.
func (p *Publisher) RunCycle(ctx context.Context) error {
	start := time.Now()

	users, err := p.client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	collaterals, err := p.client.ListCollaterals(ctx)
	if err != nil {
		return fmt.Errorf("list collaterals: %w", err)
	}

	queue := GeneratePriorityQueue(users, collaterals)
	if p.metrics != nil {
		p.metrics.OracleQueueSize.Set(float64(len(queue)))
	}

	if queuesEqual(queue, p.prev) {
		if p.metrics != nil {
			p.metrics.OraclePublishSkipped.Inc()
		}
		p.log.Debug().Int("entries", len(queue)).Msg("queue unchanged, publish skipped")
		return nil
	}

	// An empty recomputation cannot be published (the ledger rejects
	// empty chunks); the stored queue goes stale instead, which is safe
	// because liquidation re-validates every entry.
	if len(queue) == 0 {
		p.prev = queue
		p.log.Info().Msg("queue empty, nothing to publish")
		return nil
	}

	if err := p.publish(ctx, queue); err != nil {
		return err
	}

	p.prev = queue
	if p.metrics != nil {
		p.metrics.OraclePublishes.Inc()
		p.metrics.OracleCycleDuration.Observe(time.Since(start).Seconds())
	}
	p.log.Info().
		Int("entries", len(queue)).
		Dur("took", time.Since(start)).
		Msg("priority queue published")
	return nil
}

// publish sends the queue in ChunkSize pieces, clearing on the first.
// Chunk order matters: the stored queue must equal the computed ranking
// once the last chunk lands.
func (p *Publisher) publish(ctx context.Context, queue []state.QueueMember) error {
	for i := 0; i < len(queue); i += ChunkSize {
		end := i + ChunkSize
		if end > len(queue) {
			end = len(queue)
		}
		chunk := queue[i:end]

		addresses := make([]string, len(chunk))
		values := make([]uint64, len(chunk))
		for j, m := range chunk {
			addresses[j] = m.Collateral.String()
			values[j] = m.Amount
		}

		body := map[string]any{
			"addresses": addresses,
			"values":    values,
			"clear":     i == 0,
		}
		if err := p.client.Submit(ctx, "UpdateOracleInfo", body); err != nil {
			return fmt.Errorf("publish chunk %d: %w", i/ChunkSize, err)
		}
	}
	return nil
}

// Worker runs the publisher on a fixed interval. Each cycle is fully
// sequential; a failed cycle is logged and the next one starts fresh.
type Worker struct {
	publisher *Publisher
	interval  time.Duration
	log       zerolog.Logger
}

func NewWorker(publisher *Publisher, interval time.Duration) *Worker {
	return &Worker{
		publisher: publisher,
		interval:  interval,
		log:       observability.NewLogger("oracle-worker"),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("oracle worker started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.publisher.RunCycle(ctx); err != nil {
			w.log.Warn().Err(err).Msg("oracle cycle failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info().Msg("oracle worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
