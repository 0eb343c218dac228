// Package providers holds the pluggable execution strategies that turn an
// accepted intent into a signed, broadcast transaction against one external
// privacy, swap or payment program.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"shadowprism/go-core/internal/txcraft"
)

// ErrUnsupportedPair rejects swap intents over token pairs no configured
// market serves.
var ErrUnsupportedPair = errors.New("unsupported swap pair")

// Intent is one caller request to move value. Destination carries the
// recipient address for shield and payment flows; FromToken/ToToken are set
// for swaps only.
type Intent struct {
	Amount      uint64
	Destination string
	FromToken   string
	ToToken     string
}

// Outcome is the result of a successful execution. Note is set only by
// shielding strategies; its loss is unrecoverable by the engine. ToAmount is
// set by swaps, ReceiptID by payments.
type Outcome struct {
	TxHash    string
	Provider  string
	Note      string
	ToAmount  uint64
	ReceiptID string
}

// Gateway is the slice of the network client a provider needs.
type Gateway interface {
	LatestBlockhash(ctx context.Context) (string, error)
	EstimateFee(ctx context.Context) uint64
	BroadcastReliable(ctx context.Context, wireBase64 string) (string, error)
}

// Provider executes one intent end to end: validate, anchor, build, sign,
// broadcast.
type Provider interface {
	Name() string
	Execute(ctx context.Context, intent Intent, signer txcraft.Signer, gw Gateway) (*Outcome, error)
}

// Registry maps strategy names to providers. Built once at startup; an
// unknown name there is a configuration error, not a runtime surprise.
type Registry struct {
	byName map[string]Provider
}

func NewRegistry(providers ...Provider) (*Registry, error) {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		name := p.Name()
		if name == "" {
			return nil, fmt.Errorf("provider with empty name")
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", name)
		}
		byName[name] = p
	}
	return &Registry{byName: byName}, nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names lists registered strategy names, sorted for stable error messages.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// anchorAndFee fetches the blockhash required to build a transaction and the
// current fee bid. The fee quote is recomputed per request, never cached.
func anchorAndFee(ctx context.Context, gw Gateway) (txcraft.Address, uint64, error) {
	blockhash, err := gw.LatestBlockhash(ctx)
	if err != nil {
		return txcraft.Address{}, 0, fmt.Errorf("fetch blockhash: %w", err)
	}
	anchor, err := txcraft.ParseAddress(blockhash)
	if err != nil {
		return txcraft.Address{}, 0, fmt.Errorf("malformed blockhash %q: %w", blockhash, err)
	}
	return anchor, gw.EstimateFee(ctx), nil
}
