// Package dispatch orchestrates one intent end to end: compliance gate,
// durable record, provider execution, terminal ledger update — strictly in
// that order. An intent is never executed before it is durably recorded.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"shadowprism/go-core/internal/ledger"
	"shadowprism/go-core/internal/metrics"
	"shadowprism/go-core/internal/providers"
	"shadowprism/go-core/internal/txcraft"
)

// RiskChecker is the compliance collaborator boundary.
type RiskChecker interface {
	CheckRisk(ctx context.Context, address string) int
}

// Ledger is the slice of the transaction store the dispatcher mutates.
type Ledger interface {
	Create(ctx context.Context, amount uint64, destination, provider string) (string, error)
	SetStatus(ctx context.Context, id string, status ledger.Status, txHash, note string) error
}

type ShieldRequest struct {
	Amount      uint64 `json:"amount_lamports"`
	Destination string `json:"destination_addr"`
	Strategy    string `json:"strategy"`
	Force       bool   `json:"force,omitempty"`
}

type ShieldResult struct {
	Status   string `json:"status"`
	TxID     string `json:"tx_id"`
	TxHash   string `json:"tx_hash"`
	Provider string `json:"provider"`
	Note     string `json:"note,omitempty"`
}

type SwapRequest struct {
	Amount    uint64 `json:"amount_lamports"`
	FromToken string `json:"from_token"`
	ToToken   string `json:"to_token"`
}

type SwapResult struct {
	Status     string `json:"status"`
	TxID       string `json:"tx_id"`
	TxHash     string `json:"tx_hash"`
	FromAmount uint64 `json:"from_amount"`
	ToAmount   uint64 `json:"to_amount"`
}

type PayRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     uint64 `json:"amount_lamports"`
}

type PayResult struct {
	Status    string `json:"status"`
	TxID      string `json:"tx_id"`
	TxHash    string `json:"tx_hash"`
	ReceiptID string `json:"receipt_id"`
}

type Dispatcher struct {
	registry  *providers.Registry
	swap      providers.Provider
	pay       providers.Provider
	store     Ledger
	risk      RiskChecker
	signer    txcraft.Signer
	gateway   providers.Gateway
	threshold int
	log       *slog.Logger
}

// New wires the dispatcher. registry holds the shield strategies; swap and
// pay each have exactly one configured provider.
func New(registry *providers.Registry, swap, pay providers.Provider, store Ledger,
	risk RiskChecker, signer txcraft.Signer, gw providers.Gateway,
	riskThreshold int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		swap:      swap,
		pay:       pay,
		store:     store,
		risk:      risk,
		signer:    signer,
		gateway:   gw,
		threshold: riskThreshold,
		log:       log,
	}
}

// Shield dispatches a shielding intent through the strategy named in the
// request.
func (d *Dispatcher) Shield(ctx context.Context, req ShieldRequest) (*ShieldResult, error) {
	provider, ok := d.registry.Lookup(req.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownStrategy, req.Strategy, d.registry.Names())
	}
	if _, err := txcraft.ParseAddress(req.Destination); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := d.checkCompliance(ctx, req.Destination, req.Force); err != nil {
		return nil, err
	}

	intent := providers.Intent{Amount: req.Amount, Destination: req.Destination}
	id, outcome, err := d.run(ctx, provider, intent, req.Destination)
	if err != nil {
		return nil, err
	}
	return &ShieldResult{
		Status:   "success",
		TxID:     id,
		TxHash:   outcome.TxHash,
		Provider: outcome.Provider,
		Note:     outcome.Note,
	}, nil
}

// Swap dispatches a private swap through the single configured swap provider.
func (d *Dispatcher) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	intent := providers.Intent{Amount: req.Amount, FromToken: req.FromToken, ToToken: req.ToToken}
	if err := providers.ValidatePair(req.FromToken, req.ToToken); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	destination := req.FromToken + "->" + req.ToToken
	id, outcome, err := d.run(ctx, d.swap, intent, destination)
	if err != nil {
		return nil, err
	}
	return &SwapResult{
		Status:     "success",
		TxID:       id,
		TxHash:     outcome.TxHash,
		FromAmount: req.Amount,
		ToAmount:   outcome.ToAmount,
	}, nil
}

// Pay dispatches a merchant payment through the single configured payment
// provider.
func (d *Dispatcher) Pay(ctx context.Context, req PayRequest) (*PayResult, error) {
	if _, err := txcraft.ParseAddress(req.MerchantID); err != nil {
		return nil, &ValidationError{Reason: "invalid merchant id: " + err.Error()}
	}
	if err := d.checkCompliance(ctx, req.MerchantID, false); err != nil {
		return nil, err
	}

	intent := providers.Intent{Amount: req.Amount, Destination: req.MerchantID}
	id, outcome, err := d.run(ctx, d.pay, intent, req.MerchantID)
	if err != nil {
		return nil, err
	}
	return &PayResult{
		Status:    "success",
		TxID:      id,
		TxHash:    outcome.TxHash,
		ReceiptID: outcome.ReceiptID,
	}, nil
}

func (d *Dispatcher) checkCompliance(ctx context.Context, destination string, force bool) error {
	score := d.risk.CheckRisk(ctx, destination)
	if score <= d.threshold {
		return nil
	}
	if !force {
		metrics.ComplianceRejections.Inc()
		return &ComplianceError{Score: score, Threshold: d.threshold}
	}
	// Override set: proceed, but leave an audit trail.
	d.log.Warn("compliance override used for high-risk destination",
		"destination", destination, "score", score, "threshold", d.threshold)
	return nil
}

// run persists the intent, executes it, and records the terminal outcome.
// The terminal write uses a context detached from the caller so a dropped
// response path cannot leave the record dangling in Pending.
func (d *Dispatcher) run(ctx context.Context, provider providers.Provider, intent providers.Intent, destination string) (string, *providers.Outcome, error) {
	id, err := d.store.Create(ctx, intent.Amount, destination, provider.Name())
	if err != nil {
		// Persistence failure is fatal to the request: never broadcast an
		// intent that is not durably recorded first.
		return "", nil, fmt.Errorf("persist intent: %w", err)
	}

	outcome, execErr := provider.Execute(ctx, intent, d.signer, d.gateway)

	writeCtx := context.WithoutCancel(ctx)
	if execErr != nil {
		metrics.IntentsTotal.WithLabelValues(provider.Name(), "failed").Inc()
		if uerr := d.store.SetStatus(writeCtx, id, ledger.StatusFailed, "", ""); uerr != nil {
			d.log.Error("failed to record terminal failure", "tx_id", id, "err", uerr)
		}
		return "", nil, fmt.Errorf("execution failed: %w", execErr)
	}

	metrics.IntentsTotal.WithLabelValues(provider.Name(), "confirmed").Inc()
	if uerr := d.store.SetStatus(writeCtx, id, ledger.StatusConfirmed, outcome.TxHash, outcome.Note); uerr != nil {
		d.log.Error("failed to record confirmation; watchdog will reconcile", "tx_id", id, "err", uerr)
	}
	return id, outcome, nil
}
