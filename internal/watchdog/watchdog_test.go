package watchdog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"shadowprism/go-core/internal/gateway"
	"shadowprism/go-core/internal/ledger"
)

type fakeStore struct {
	records  []ledger.Record
	scanErr  error
	statusOf map[string]ledger.Status
	setErr   map[string]error
	updates  []string
}

func (f *fakeStore) Unresolved(context.Context) ([]ledger.Record, error) {
	return f.records, f.scanErr
}

func (f *fakeStore) SetStatus(_ context.Context, id string, status ledger.Status, _, _ string) error {
	if err, ok := f.setErr[id]; ok {
		return err
	}
	if f.statusOf == nil {
		f.statusOf = map[string]ledger.Status{}
	}
	f.statusOf[id] = status
	f.updates = append(f.updates, id)
	return nil
}

type fakeNetwork struct {
	statuses map[string]gateway.TxStatus
	errFor   map[string]error
	queries  []string
}

func (f *fakeNetwork) SignatureStatus(_ context.Context, signature string) (gateway.TxStatus, error) {
	f.queries = append(f.queries, signature)
	if err, ok := f.errFor[signature]; ok {
		return gateway.StatusUnknown, err
	}
	return f.statuses[signature], nil
}

func testWatchdog(store *fakeStore, network *fakeNetwork) *Watchdog {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, network, time.Minute, log)
}

func TestCycleResolvesByNetworkStatus(t *testing.T) {
	store := &fakeStore{records: []ledger.Record{
		{ID: "a", Status: ledger.StatusPending, TxHash: "sigA"},
		{ID: "b", Status: ledger.StatusBroadcast, TxHash: "sigB"},
		{ID: "c", Status: ledger.StatusPending, TxHash: "sigC"},
	}}
	network := &fakeNetwork{statuses: map[string]gateway.TxStatus{
		"sigA": gateway.StatusConfirmed,
		"sigB": gateway.StatusFailed,
		"sigC": gateway.StatusUnknown,
	}}

	testWatchdog(store, network).cycle(context.Background())

	if got := store.statusOf["a"]; got != ledger.StatusConfirmed {
		t.Errorf("record a resolved to %q, want Confirmed", got)
	}
	if got := store.statusOf["b"]; got != ledger.StatusFailed {
		t.Errorf("record b resolved to %q, want Failed", got)
	}
	if _, touched := store.statusOf["c"]; touched {
		t.Error("record with unknown network status must stay untouched")
	}
}

func TestCycleSkipsRecordsWithoutSignature(t *testing.T) {
	store := &fakeStore{records: []ledger.Record{
		{ID: "a", Status: ledger.StatusPending, TxHash: ""},
	}}
	network := &fakeNetwork{}

	testWatchdog(store, network).cycle(context.Background())

	if len(network.queries) != 0 {
		t.Fatalf("queried network for unreconcilable record: %v", network.queries)
	}
	if len(store.updates) != 0 {
		t.Fatalf("updated unreconcilable record: %v", store.updates)
	}
}

func TestCycleIgnoresLostTerminalRace(t *testing.T) {
	store := &fakeStore{
		records: []ledger.Record{{ID: "a", Status: ledger.StatusPending, TxHash: "sigA"}},
		setErr:  map[string]error{"a": ledger.ErrTerminal},
	}
	network := &fakeNetwork{statuses: map[string]gateway.TxStatus{"sigA": gateway.StatusConfirmed}}

	// Must not panic or retry; the dispatch path already settled the record.
	testWatchdog(store, network).cycle(context.Background())

	if len(store.updates) != 0 {
		t.Fatalf("unexpected successful updates: %v", store.updates)
	}
}

func TestCycleContinuesPastQueryFailures(t *testing.T) {
	store := &fakeStore{records: []ledger.Record{
		{ID: "a", Status: ledger.StatusPending, TxHash: "sigA"},
		{ID: "b", Status: ledger.StatusPending, TxHash: "sigB"},
	}}
	network := &fakeNetwork{
		statuses: map[string]gateway.TxStatus{"sigB": gateway.StatusConfirmed},
		errFor:   map[string]error{"sigA": errors.New("rpc unreachable")},
	}

	testWatchdog(store, network).cycle(context.Background())

	if got := store.statusOf["b"]; got != ledger.StatusConfirmed {
		t.Fatalf("record after failed query not resolved, got %q", got)
	}
}

func TestCycleSurvivesScanFailure(t *testing.T) {
	store := &fakeStore{scanErr: errors.New("database is locked")}
	testWatchdog(store, &fakeNetwork{}).cycle(context.Background())
	if len(store.updates) != 0 {
		t.Fatal("no updates expected when the scan fails")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	w := New(store, &fakeNetwork{}, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop after cancellation")
	}
}

func TestDefaultInterval(t *testing.T) {
	w := New(&fakeStore{}, &fakeNetwork{}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if w.interval != 30*time.Second {
		t.Fatalf("default interval = %v, want 30s", w.interval)
	}
}
