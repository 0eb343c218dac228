package providers

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

type recordingGateway struct {
	blockhash    string
	blockhashErr error
	fee          uint64
	sig          string
	broadcastErr error

	broadcasts []string
	calls      int
}

func (g *recordingGateway) LatestBlockhash(context.Context) (string, error) {
	g.calls++
	return g.blockhash, g.blockhashErr
}

func (g *recordingGateway) EstimateFee(context.Context) uint64 { return g.fee }

func (g *recordingGateway) BroadcastReliable(_ context.Context, wire string) (string, error) {
	g.calls++
	g.broadcasts = append(g.broadcasts, wire)
	return g.sig, g.broadcastErr
}

type seedSigner struct{ priv ed25519.PrivateKey }

func newSeedSigner(b byte) seedSigner {
	return seedSigner{priv: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))}
}

func (s seedSigner) Sign(msg []byte) []byte       { return ed25519.Sign(s.priv, msg) }
func (s seedSigner) PublicKey() ed25519.PublicKey { return s.priv.Public().(ed25519.PublicKey) }

func testGateway() *recordingGateway {
	return &recordingGateway{
		blockhash: base58.Encode(bytes.Repeat([]byte{7}, 32)),
		fee:       5000,
		sig:       "sigOK",
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validAddr() string {
	return base58.Encode(bytes.Repeat([]byte{3}, 32))
}

func TestPrivacyCashProducesVerifiableWire(t *testing.T) {
	gw := testGateway()
	signer := newSeedSigner(0x21)
	p := NewPrivacyCash(discard())

	outcome, err := p.Execute(context.Background(), Intent{Amount: 1_000_000, Destination: validAddr()}, signer, gw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.TxHash != "sigOK" || outcome.Provider != "privacy_cash" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !strings.HasPrefix(outcome.Note, "prism-note-1000000-") {
		t.Fatalf("note missing amount prefix: %q", outcome.Note)
	}
	if len(gw.broadcasts) != 1 {
		t.Fatalf("broadcast %d times, want 1", len(gw.broadcasts))
	}

	// The broadcast wire must carry a signature over the message that the
	// payer's key verifies.
	raw, err := base64.StdEncoding.DecodeString(gw.broadcasts[0])
	if err != nil {
		t.Fatalf("wire is not base64: %v", err)
	}
	if raw[0] != 1 {
		t.Fatalf("wire carries %d signatures, want 1", raw[0])
	}
	sig, msg := raw[1:65], raw[65:]
	if !ed25519.Verify(signer.PublicKey(), msg, sig) {
		t.Fatal("wire signature does not verify against the payer key")
	}
}

func TestPrivacyCashNotesAreUnique(t *testing.T) {
	gw := testGateway()
	p := NewPrivacyCash(discard())
	signer := newSeedSigner(0x21)

	a, err := p.Execute(context.Background(), Intent{Amount: 10, Destination: validAddr()}, signer, gw)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	b, err := p.Execute(context.Background(), Intent{Amount: 10, Destination: validAddr()}, signer, gw)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if a.Note == b.Note {
		t.Fatal("two deposits produced the same note")
	}
}

func TestProvidersRejectMalformedDestinationBeforeNetwork(t *testing.T) {
	for _, p := range []Provider{NewPrivacyCash(discard()), NewRadr(discard()), NewStarpay(discard())} {
		t.Run(p.Name(), func(t *testing.T) {
			gw := testGateway()
			_, err := p.Execute(context.Background(), Intent{Amount: 10, Destination: "not-an-address"}, newSeedSigner(0x21), gw)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if gw.calls != 0 {
				t.Fatalf("gateway touched %d times before validation failed", gw.calls)
			}
		})
	}
}

func TestRadrNoteFormat(t *testing.T) {
	gw := testGateway()
	outcome, err := NewRadr(discard()).Execute(context.Background(),
		Intent{Amount: 77, Destination: validAddr()}, newSeedSigner(0x21), gw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(outcome.Note, "ghost-receipt-") {
		t.Fatalf("unexpected receipt: %q", outcome.Note)
	}
}

func TestStarpayReceiptFormat(t *testing.T) {
	gw := testGateway()
	outcome, err := NewStarpay(discard()).Execute(context.Background(),
		Intent{Amount: 77, Destination: validAddr()}, newSeedSigner(0x21), gw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(outcome.ReceiptID, "STAR-") {
		t.Fatalf("unexpected receipt id: %q", outcome.ReceiptID)
	}
	if outcome.ReceiptID != strings.ToUpper(outcome.ReceiptID) {
		t.Fatalf("receipt id not uppercase: %q", outcome.ReceiptID)
	}
}

func TestBroadcastFailurePropagates(t *testing.T) {
	gw := testGateway()
	gw.broadcastErr = errors.New("both endpoints failed")
	_, err := NewPrivacyCash(discard()).Execute(context.Background(),
		Intent{Amount: 10, Destination: validAddr()}, newSeedSigner(0x21), gw)
	if err == nil || !strings.Contains(err.Error(), "both endpoints failed") {
		t.Fatalf("want broadcast error, got %v", err)
	}
}

func TestValidatePair(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{"SOL", "USDC", true},
		{"USDC", "SOL", true},
		{"SOL", "SOL", false},
		{"USDC", "USDC", false},
		{"SOL", "BTC", false},
		{"", "USDC", false},
	}
	for _, c := range cases {
		err := ValidatePair(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("ValidatePair(%q, %q) = %v, want nil", c.from, c.to, err)
		}
		if !c.ok && !errors.Is(err, ErrUnsupportedPair) {
			t.Errorf("ValidatePair(%q, %q) = %v, want ErrUnsupportedPair", c.from, c.to, err)
		}
	}
}

func TestSilentSwapEstimatesOutput(t *testing.T) {
	gw := testGateway()
	price := func(context.Context) float64 { return 100.0 }
	swap := NewSilentSwap(price, discard())

	// 1 SOL at $100 with the 0.5% fee is 99.5 USDC.
	outcome, err := swap.Execute(context.Background(),
		Intent{Amount: 1_000_000_000, FromToken: "SOL", ToToken: "USDC"}, newSeedSigner(0x21), gw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.ToAmount != 99_500_000 {
		t.Fatalf("SOL->USDC output = %d, want 99500000", outcome.ToAmount)
	}

	// 100 USDC at $100 with the fee is 0.995 SOL.
	outcome, err = swap.Execute(context.Background(),
		Intent{Amount: 100_000_000, FromToken: "USDC", ToToken: "SOL"}, newSeedSigner(0x21), gw)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.ToAmount != 995_000_000 {
		t.Fatalf("USDC->SOL output = %d, want 995000000", outcome.ToAmount)
	}
}

func TestSilentSwapRejectsBadPairBeforeNetwork(t *testing.T) {
	gw := testGateway()
	swap := NewSilentSwap(func(context.Context) float64 { return 100 }, discard())
	_, err := swap.Execute(context.Background(),
		Intent{Amount: 10, FromToken: "SOL", ToToken: "DOGE"}, newSeedSigner(0x21), gw)
	if !errors.Is(err, ErrUnsupportedPair) {
		t.Fatalf("want ErrUnsupportedPair, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatal("gateway touched for an unsupported pair")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a := NewPrivacyCash(discard())
	if _, err := NewRegistry(a, a); err == nil {
		t.Fatal("duplicate names must be rejected")
	}
	reg, err := NewRegistry(NewPrivacyCash(discard()), NewRadr(discard()))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if _, ok := reg.Lookup("privacy_cash"); !ok {
		t.Fatal("privacy_cash not registered")
	}
	if _, ok := reg.Lookup("tornado"); ok {
		t.Fatal("unknown name resolved")
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "privacy_cash" || names[1] != "radr_shadow_wire" {
		t.Fatalf("names = %v", names)
	}
}
