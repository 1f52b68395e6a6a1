package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polydata/esports-collector/internal/discovery"
	"github.com/polydata/esports-collector/internal/historical"
	"github.com/polydata/esports-collector/internal/model"
	"github.com/polydata/esports-collector/internal/storage"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	results []discovery.Result
	errs    []error
	calls   int
}

func (f *fakeDiscoverer) Run(context.Context) (discovery.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	var res discovery.Result
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func (f *fakeDiscoverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBackfiller struct {
	mu   sync.Mutex
	seen [][]model.Market
	err  error
}

func (f *fakeBackfiller) Collect(_ context.Context, markets []model.Market) (historical.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, markets)
	return historical.Result{}, f.err
}

func (f *fakeBackfiller) batches() [][]model.Market {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]model.Market, len(f.seen))
	copy(out, f.seen)
	return out
}

type fakePoller struct {
	polls   atomic.Int64
	stopped atomic.Bool
}

func (f *fakePoller) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		f.polls.Add(1)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.polls.Add(1)
			}
		}
	}()
	return nil
}

func (f *fakePoller) Stop(context.Context) error {
	f.stopped.Store(true)
	return nil
}

type fakeStreamer struct {
	running      atomic.Bool
	resubscribes atomic.Int64
}

func (f *fakeStreamer) Run(ctx context.Context) {
	f.running.Store(true)
	<-ctx.Done()
	f.running.Store(false)
}

func (f *fakeStreamer) Resubscribe(context.Context) error {
	f.resubscribes.Add(1)
	return nil
}

func testOrchestrator(disc Discoverer, backfill Backfiller, store MarketLister) (*Orchestrator, *fakePoller, *fakeStreamer) {
	poller := &fakePoller{}
	streamer := &fakeStreamer{}
	cfg := Config{DiscoveryInterval: 20 * time.Millisecond}
	return New(cfg, disc, backfill, poller, streamer, store, nil), poller, streamer
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRunStartupSequence(t *testing.T) {
	store := storage.NewMemory()
	m1 := model.Market{MarketID: "m1", ConditionID: "c1", YesTokenID: "y1"}
	if _, err := store.UpsertMarket(context.Background(), m1); err != nil {
		t.Fatal(err)
	}

	disc := &fakeDiscoverer{}
	backfill := &fakeBackfiller{}
	o, poller, streamer := testOrchestrator(disc, backfill, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// Initial backfill covers the full known set.
	waitFor(t, func() bool { return len(backfill.batches()) >= 1 }, "initial backfill not run")
	first := backfill.batches()[0]
	if len(first) != 1 || first[0].MarketID != "m1" {
		t.Errorf("initial backfill markets = %v, want [m1]", first)
	}

	waitFor(t, func() bool { return streamer.running.Load() }, "streamer not started")
	waitFor(t, func() bool { return poller.polls.Load() >= 2 }, "orderbook poller not ticking")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if streamer.running.Load() {
		t.Error("streamer still running after shutdown")
	}
	if !poller.stopped.Load() {
		t.Error("orderbook poller not stopped on shutdown")
	}
}

func TestRunBackfillsOnlyNewMarkets(t *testing.T) {
	store := storage.NewMemory()
	newMarket := model.Market{MarketID: "m2", ConditionID: "c2", YesTokenID: "y2"}

	disc := &fakeDiscoverer{
		results: []discovery.Result{
			{}, // initial cycle finds nothing
			{Found: 2, New: 1, Known: 1, NewMarkets: []model.Market{newMarket}},
			{}, // later cycles quiet
		},
	}
	backfill := &fakeBackfiller{}
	o, _, streamer := testOrchestrator(disc, backfill, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	waitFor(t, func() bool { return len(backfill.batches()) >= 2 }, "incremental backfill not run")
	cancel()
	<-done

	batches := backfill.batches()
	// Batch 0 is the initial full backfill (empty store). Batch 1 must be
	// exactly the cycle's new markets.
	if len(batches[1]) != 1 || batches[1][0].MarketID != "m2" {
		t.Errorf("incremental batch = %v, want [m2]", batches[1])
	}
	// The growing token set reaches the live stream without a reconnect.
	if streamer.resubscribes.Load() < 1 {
		t.Error("streamer not resubscribed after discovery added markets")
	}
}

func TestRunDiscoveryFailureKeepsLoopsAlive(t *testing.T) {
	store := storage.NewMemory()
	disc := &fakeDiscoverer{
		errs: []error{nil, errors.New("gamma down"), nil},
	}
	backfill := &fakeBackfiller{}
	o, poller, _ := testOrchestrator(disc, backfill, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// The loop survives the failed cycle and runs again.
	waitFor(t, func() bool { return disc.callCount() >= 3 }, "discovery loop stopped after failure")
	waitFor(t, func() bool { return poller.polls.Load() >= 1 }, "orderbook loop not running")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}
