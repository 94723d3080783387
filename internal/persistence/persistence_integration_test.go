package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/persistence"
	"github.com/mfactory-lab/omnisol/internal/state"
	"github.com/mfactory-lab/omnisol/internal/testutil"
)

// --- Test helpers ---

func setupLog(t *testing.T) (*persistence.EventLogWriter, *persistence.SnapshotManager, *persistence.PostgresIdempotencyChecker, func(context.Context, []persistence.EventRow) error) {
	t.Helper()
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewEventLogWriter(db)
	write := func(ctx context.Context, rows []persistence.EventRow) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := writer.WriteEventBatch(ctx, tx, rows); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	return writer, persistence.NewSnapshotManager(db), persistence.NewPostgresIdempotencyChecker(db), write
}

func eventRow(seq int64, key string) persistence.EventRow {
	pool := uuid.New().String()
	return persistence.EventRow{
		Sequence:       seq,
		EventType:      "DepositStakeEvent",
		InstructionKey: key,
		Pool:           &pool,
		Payload:        []byte(`{"amount":100}`),
		StateHash:      make([]byte, 32),
		PrevHash:       make([]byte, 32),
		Timestamp:      time.Now().UTC(),
		SourceSequence: seq,
	}
}

// ============ Event log ============

func TestEventLog_WriteAndReadBack(t *testing.T) {
	_, snapMgr, _, write := setupLog(t)
	ctx := context.Background()

	rows := []persistence.EventRow{eventRow(0, "k0"), eventRow(1, "k1"), eventRow(2, "k2")}
	if err := write(ctx, rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	got, err := snapMgr.LoadEventsFrom(ctx, 0, 10)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d events, want 3", len(got))
	}
	for i, row := range got {
		if row.Sequence != int64(i) {
			t.Errorf("event %d: sequence = %d, want %d", i, row.Sequence, i)
		}
	}

	latest, err := snapMgr.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if latest != 2 {
		t.Errorf("latest sequence = %d, want 2", latest)
	}
}

func TestEventLog_DuplicateSequenceIgnored(t *testing.T) {
	_, snapMgr, _, write := setupLog(t)
	ctx := context.Background()

	first := eventRow(0, "original")
	if err := write(ctx, []persistence.EventRow{first}); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := write(ctx, []persistence.EventRow{eventRow(0, "replay")}); err != nil {
		t.Fatalf("write replay: %v", err)
	}

	got, err := snapMgr.LoadEventsFrom(ctx, 0, 10)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d events, want 1", len(got))
	}
	if got[0].InstructionKey != "original" {
		t.Errorf("instruction key = %q, want %q", got[0].InstructionKey, "original")
	}
}

func TestIdempotencyChecker_SeesWrittenKeys(t *testing.T) {
	_, _, checker, write := setupLog(t)
	ctx := context.Background()

	if err := write(ctx, []persistence.EventRow{eventRow(0, "seen-key")}); err != nil {
		t.Fatalf("write: %v", err)
	}

	dup, err := checker.IsDuplicate("DepositStake", "seen-key")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup {
		t.Error("written key not reported as duplicate")
	}

	dup, err = checker.IsDuplicate("DepositStake", "never-seen")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if dup {
		t.Error("unknown key reported as duplicate")
	}
}

// ============ Snapshots ============

func TestSnapshot_RoundTrip(t *testing.T) {
	_, snapMgr, _, _ := setupLog(t)
	ctx := context.Background()

	persistChan := make(chan engine.Output, 16)
	publishChan := make(chan engine.Output, 16)
	eng := engine.NewEngine(0, persistChan, publishChan, nil, nil)

	pool := state.Pool{Address: uuid.New(), Authority: uuid.New(), Active: true}
	eng.Store().PutPool(pool)

	snap := persistence.FromEngineState(eng.CreateSnapshotState(), time.Now().UTC())
	snap.Sequence = 41
	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	// Unverified snapshots must not be offered for restore.
	loaded, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded != nil {
		t.Fatal("unverified snapshot returned by load")
	}

	if err := snapMgr.MarkVerified(ctx, snap.Sequence); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	loaded, err = snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("verified snapshot not returned by load")
	}
	if loaded.Sequence != 41 {
		t.Errorf("sequence = %d, want 41", loaded.Sequence)
	}

	restored := engine.NewEngine(0, persistChan, publishChan, nil, nil)
	restored.RestoreFromSnapshot(loaded.ToEngineState())
	if restored.GetSequence() != 42 {
		t.Errorf("restored sequence = %d, want 42", restored.GetSequence())
	}
	if _, ok := restored.Store().GetPool(pool.Address); !ok {
		t.Error("pool missing after restore")
	}
}
