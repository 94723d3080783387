package oracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/engine"
	"github.com/mfactory-lab/omnisol/internal/oracle"
	"github.com/mfactory-lab/omnisol/internal/state"
	"github.com/mfactory-lab/omnisol/internal/testutil"
)

// --- Test helpers ---

type publisherFixture struct {
	engine    *engine.Engine
	client    *testutil.FakeChainClient
	publisher *oracle.Publisher
	wallet    uuid.UUID
}

func newPublisherFixture(t *testing.T) *publisherFixture {
	t.Helper()

	persistCh := make(chan engine.Output, 1024)
	publishCh := make(chan engine.Output, 1024)
	eng := engine.NewEngine(0, persistCh, publishCh, nil, nil)

	wallet := uuid.New()
	eng.Store().PutOracle(state.Oracle{Authority: wallet})

	client := testutil.NewFakeChainClient(eng, wallet, queueBase)
	return &publisherFixture{
		engine:    eng,
		client:    client,
		publisher: oracle.NewPublisher(client, nil),
		wallet:    wallet,
	}
}

// seed writes one user with n collaterals straight into the store. The
// publisher only reads state, so the instruction path is not needed for
// setup.
func (f *publisherFixture) seed(rate uint64, remainders ...uint64) []uuid.UUID {
	u := state.User{Wallet: uuid.New(), Rate: rate, Registered: true}
	f.engine.Store().PutUser(u)

	addrs := make([]uuid.UUID, len(remainders))
	for i, r := range remainders {
		c := state.Collateral{
			Address:         uuid.New(),
			User:            u.Wallet,
			DelegationStake: r,
			CreatedAt:       queueBase.Add(time.Duration(i) * time.Second),
		}
		f.engine.Store().PutCollateral(c)
		addrs[i] = c.Address
	}
	return addrs
}

func storedQueue(t *testing.T, eng *engine.Engine) []state.QueueMember {
	t.Helper()
	o, ok := eng.Store().GetOracle()
	if !ok {
		t.Fatal("oracle record missing")
	}
	return o.PriorityQueue
}

// ============================================================
// Publisher cycles
// ============================================================

func TestPublisher_PublishesQueueToLedger(t *testing.T) {
	f := newPublisherFixture(t)
	c1 := f.seed(0, 300)
	c2 := f.seed(100, 150)

	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if got := f.client.SubmitCount(); got != 1 {
		t.Fatalf("expected 1 submit, got %d", got)
	}
	if clear := f.client.Submits[0].Body["clear"]; clear != true {
		t.Errorf("first chunk must clear, got %v", clear)
	}

	queue := storedQueue(t, f.engine)
	want := []state.QueueMember{
		{Collateral: c1[0], Amount: 300},
		{Collateral: c2[0], Amount: 150},
	}
	if len(queue) != len(want) {
		t.Fatalf("stored queue has %d entries, want %d", len(queue), len(want))
	}
	for i := range want {
		if queue[i] != want[i] {
			t.Errorf("entry %d: %v, want %v", i, queue[i], want[i])
		}
	}
}

func TestPublisher_SkipsUnchangedQueue(t *testing.T) {
	f := newPublisherFixture(t)
	f.seed(0, 300)

	for i := 0; i < 3; i++ {
		if err := f.publisher.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
	}
	if got := f.client.SubmitCount(); got != 1 {
		t.Errorf("unchanged queue republished: %d submits, want 1", got)
	}
}

func TestPublisher_RepublishesAfterChange(t *testing.T) {
	f := newPublisherFixture(t)
	addrs := f.seed(0, 300)

	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	col, ok := f.engine.Store().GetCollateral(addrs[0])
	if !ok {
		t.Fatal("collateral missing")
	}
	col.LiquidatedAmount = 100
	f.engine.Store().PutCollateral(col)

	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	if got := f.client.SubmitCount(); got != 2 {
		t.Fatalf("expected 2 submits, got %d", got)
	}
	if clear := f.client.Submits[1].Body["clear"]; clear != true {
		t.Errorf("republish must start with a clearing chunk, got %v", clear)
	}
	queue := storedQueue(t, f.engine)
	if len(queue) != 1 || queue[0].Amount != 200 {
		t.Errorf("stored queue not refreshed: %v", queue)
	}
}

func TestPublisher_ChunksLargeQueue(t *testing.T) {
	f := newPublisherFixture(t)
	var want []uint64
	for i := 0; i < oracle.ChunkSize+1; i++ {
		amount := uint64(1000 + i)
		f.seed(uint64(i), amount)
		want = append(want, amount)
	}

	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if got := f.client.SubmitCount(); got != 2 {
		t.Fatalf("expected 2 chunk submits, got %d", got)
	}
	if f.client.Submits[0].Body["clear"] != true {
		t.Error("first chunk must clear")
	}
	if f.client.Submits[1].Body["clear"] != false {
		t.Error("second chunk must append without clearing")
	}

	queue := storedQueue(t, f.engine)
	if len(queue) != len(want) {
		t.Fatalf("stored queue has %d entries, want %d", len(queue), len(want))
	}
	for i, amount := range want {
		if queue[i].Amount != amount {
			t.Errorf("entry %d: amount %d, want %d", i, queue[i].Amount, amount)
		}
	}
}

func TestPublisher_EmptyQueueNotPublished(t *testing.T) {
	f := newPublisherFixture(t)
	f.seed(0, 500)

	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	// Fully liquidate the only collateral; the recomputed queue is
	// empty and must not be pushed.
	cols := f.engine.Store().ListCollaterals()
	for _, c := range cols {
		c.LiquidatedAmount = c.DelegationStake
		f.engine.Store().PutCollateral(c)
	}

	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if got := f.client.SubmitCount(); got != 1 {
		t.Errorf("empty queue was published: %d submits, want 1", got)
	}

	// The stale stored queue is tolerated; a third cycle with the same
	// empty recomputation stays quiet too.
	if err := f.publisher.RunCycle(context.Background()); err != nil {
		t.Fatalf("third cycle failed: %v", err)
	}
	if got := f.client.SubmitCount(); got != 1 {
		t.Errorf("expected no further submits, got %d", got)
	}
}

func TestWorker_StopsOnCancel(t *testing.T) {
	f := newPublisherFixture(t)
	worker := oracle.NewWorker(f.publisher, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
