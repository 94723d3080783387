// Package persistence drains the engine's persist channel into Postgres:
// the append-only event log, the snapshot table, and the second dedup
// tier all live here.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mfactory-lab/omnisol/internal/engine"
)

// EventLogWriter writes event envelopes to Postgres using multi-row
// INSERT. ON CONFLICT (sequence) DO NOTHING keeps replays idempotent.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row of event_log.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	InstructionKey string
	Pool           *string
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// RowFromOutput flattens an engine output into its storage row.
func RowFromOutput(out engine.Output) EventRow {
	env := out.Envelope
	row := EventRow{
		Sequence:       env.Sequence,
		EventType:      env.Type.String(),
		InstructionKey: env.InstructionKey,
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		PrevHash:       env.PrevHash[:],
		Timestamp:      env.Timestamp,
		SourceSequence: env.SourceSequence,
	}
	if env.Pool != nil {
		s := env.Pool.String()
		row.Pool = &s
	}
	return row
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch inserts a batch of envelopes inside the given
// transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, instruction_key, pool, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.InstructionKey, e.Pool,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
