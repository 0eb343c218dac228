// Package gateway is the daemon's view of the ledger network: a primary RPC
// endpoint, an optional secondary for broadcast fail-over, and the handful of
// calls the engine needs (recent blockhash, fee bid, broadcast, signature
// status). Each call is independent; no health state survives between calls.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"shadowprism/go-core/internal/config"
	"shadowprism/go-core/internal/metrics"
)

// BaselineFee is the fixed fee bid (micro-lamports per compute unit) used
// when the network offers no usable samples. A missing estimate must never
// block a transfer.
const BaselineFee uint64 = 5000

const confirmPollInterval = 500 * time.Millisecond

// TxStatus is the network's verdict on a previously broadcast signature.
type TxStatus int

const (
	// StatusUnknown means the network has not (yet) seen the signature.
	StatusUnknown TxStatus = iota
	StatusConfirmed
	StatusFailed
)

var ErrNotConfirmed = errors.New("transaction not confirmed before deadline")

type Client struct {
	primary        *endpoint
	secondary      *endpoint
	confirmTimeout time.Duration
	log            *slog.Logger
}

func New(cfg config.Network, log *slog.Logger) *Client {
	c := &Client{
		primary:        newEndpoint(cfg.PrimaryURL, cfg.RequestTimeout),
		confirmTimeout: cfg.ConfirmTimeout,
		log:            log,
	}
	if cfg.SecondaryURL != "" {
		c.secondary = newEndpoint(cfg.SecondaryURL, cfg.RequestTimeout)
	}
	return c
}

func newEndpoint(url string, timeout time.Duration) *endpoint {
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &endpoint{
		url:  url,
		http: resty.New().SetTimeout(timeout),
	}
}

// LatestBlockhash returns the anchor a transaction must reference. Read
// against the primary only.
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.primary.call(ctx, "getLatestBlockhash", nil, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", errors.New("getLatestBlockhash: empty blockhash")
	}
	return result.Value.Blockhash, nil
}

// EstimateFee returns a priority-fee bid. It degrades to BaselineFee on any
// internal failure instead of propagating an error.
func (c *Client) EstimateFee(ctx context.Context) uint64 {
	var samples []struct {
		Slot              uint64 `json:"slot"`
		PrioritizationFee uint64 `json:"prioritizationFee"`
	}
	if err := c.primary.call(ctx, "getRecentPrioritizationFees", nil, &samples); err != nil {
		c.log.Warn("fee estimation unavailable, using baseline", "err", err)
		return BaselineFee
	}
	if len(samples) == 0 {
		return BaselineFee
	}
	var sum uint64
	for _, s := range samples {
		sum += s.PrioritizationFee
	}
	fee := sum / uint64(len(samples))
	if fee == 0 {
		return BaselineFee
	}
	return fee
}

// BroadcastReliable submits and confirms the signed transaction on the
// primary endpoint, falling over to the secondary on any failure. When both
// endpoints fail the returned error carries both underlying reasons.
func (c *Client) BroadcastReliable(ctx context.Context, wireBase64 string) (string, error) {
	sig, primaryErr := c.submitAndConfirm(ctx, c.primary, wireBase64)
	if primaryErr == nil {
		return sig, nil
	}
	if c.secondary == nil {
		return "", fmt.Errorf("primary endpoint failed: %w", primaryErr)
	}

	c.log.Warn("primary endpoint failed, routing broadcast to secondary", "err", primaryErr)
	metrics.BroadcastFailovers.Inc()

	sig, secondaryErr := c.submitAndConfirm(ctx, c.secondary, wireBase64)
	if secondaryErr == nil {
		return sig, nil
	}
	return "", fmt.Errorf("both endpoints failed: primary: %v; secondary: %v", primaryErr, secondaryErr)
}

func (c *Client) submitAndConfirm(ctx context.Context, ep *endpoint, wireBase64 string) (string, error) {
	var sig string
	params := []any{wireBase64, map[string]any{"encoding": "base64"}}
	if err := ep.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.confirmTimeout)
	for time.Now().Before(deadline) {
		status, err := c.signatureStatus(ctx, ep, sig)
		if err != nil {
			return "", err
		}
		switch status {
		case StatusConfirmed:
			return sig, nil
		case StatusFailed:
			return "", fmt.Errorf("transaction %s rejected by the network", sig)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotConfirmed, sig)
}

// SignatureStatus asks the primary endpoint what became of a broadcast
// signature. Used by the reconciliation loop to close lost confirmations.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (TxStatus, error) {
	return c.signatureStatus(ctx, c.primary, signature)
}

func (c *Client) signatureStatus(ctx context.Context, ep *endpoint, signature string) (TxStatus, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}
	if err := ep.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return StatusUnknown, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return StatusUnknown, nil
	}
	entry := result.Value[0]
	if len(entry.Err) > 0 && string(entry.Err) != "null" {
		return StatusFailed, nil
	}
	switch entry.ConfirmationStatus {
	case "confirmed", "finalized":
		return StatusConfirmed, nil
	default:
		return StatusUnknown, nil
	}
}
