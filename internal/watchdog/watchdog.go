// Package watchdog closes the gap between broadcast and ledger update. The
// dispatch path persists intent before broadcasting, but nothing makes the
// two steps atomic; a crash or dropped response between them leaves a record
// stuck in Pending. This loop independently polls the network for every
// unresolved record with a signature and writes the outcome it finds.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shadowprism/go-core/internal/gateway"
	"shadowprism/go-core/internal/ledger"
	"shadowprism/go-core/internal/metrics"
)

// StatusQuerier is the slice of the network gateway the watchdog needs.
type StatusQuerier interface {
	SignatureStatus(ctx context.Context, signature string) (gateway.TxStatus, error)
}

// Ledger is the slice of the transaction store the watchdog touches.
type Ledger interface {
	Unresolved(ctx context.Context) ([]ledger.Record, error)
	SetStatus(ctx context.Context, id string, status ledger.Status, txHash, note string) error
}

type Watchdog struct {
	store    Ledger
	network  StatusQuerier
	interval time.Duration
	log      *slog.Logger
}

func New(store Ledger, network StatusQuerier, interval time.Duration, log *slog.Logger) *Watchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watchdog{store: store, network: network, interval: interval, log: log}
}

// Run polls forever at the configured interval until ctx is cancelled. A
// failing cycle is logged and retried on the next tick; it never takes the
// process down.
func (w *Watchdog) Run(ctx context.Context) {
	w.log.Info("transaction watchdog started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("transaction watchdog stopped")
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle resolves every unresolved record that carries a signature. Records
// without one cannot be reconciled against the network and stay untouched.
func (w *Watchdog) cycle(ctx context.Context) {
	records, err := w.store.Unresolved(ctx)
	if err != nil {
		w.log.Warn("watchdog could not scan ledger", "err", err)
		return
	}

	for _, rec := range records {
		if rec.TxHash == "" {
			continue
		}
		status, err := w.network.SignatureStatus(ctx, rec.TxHash)
		if err != nil {
			w.log.Warn("watchdog status query failed", "tx_id", rec.ID, "err", err)
			continue
		}

		switch status {
		case gateway.StatusConfirmed:
			w.resolve(ctx, rec, ledger.StatusConfirmed)
		case gateway.StatusFailed:
			w.resolve(ctx, rec, ledger.StatusFailed)
		default:
			// Not found yet; deferred to the next cycle.
		}
	}
}

func (w *Watchdog) resolve(ctx context.Context, rec ledger.Record, status ledger.Status) {
	err := w.store.SetStatus(ctx, rec.ID, status, rec.TxHash, "")
	switch {
	case err == nil:
		metrics.ReconciliationsTotal.WithLabelValues(string(status)).Inc()
		w.log.Info("watchdog resolved transaction", "tx_id", rec.ID, "status", status)
	case errors.Is(err, ledger.ErrTerminal):
		// The dispatch path won the race; terminal states stay untouched.
	default:
		w.log.Warn("watchdog could not update record", "tx_id", rec.ID, "err", err)
	}
}
