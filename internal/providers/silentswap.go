package providers

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"shadowprism/go-core/internal/txcraft"
)

// SilentSwapProgramID is the private swap program.
var SilentSwapProgramID = txcraft.MustAddress("SSwapX1111111111111111111111111111111111111")

// silentSwapMarket is the routed market account.
var silentSwapMarket = txcraft.MustAddress("JUP6LkbZbjS1jKKpphsRLSKE6t124vR9f8jP26CAtv6")

var silentSwapTag = [8]byte{248, 198, 137, 82, 225, 242, 182, 35}

const swapFeeFactor = 0.995

// SilentSwap executes a private token swap between SOL and USDC. The quoted
// output amount is an estimate for display; settlement happens on-chain.
type SilentSwap struct {
	priceFn func(ctx context.Context) float64
	log     *slog.Logger
}

// NewSilentSwap takes a price function used only to estimate the output
// amount in the outcome.
func NewSilentSwap(priceFn func(ctx context.Context) float64, log *slog.Logger) *SilentSwap {
	return &SilentSwap{priceFn: priceFn, log: log}
}

func (s *SilentSwap) Name() string { return "silent_swap" }

func (s *SilentSwap) Execute(ctx context.Context, intent Intent, signer txcraft.Signer, gw Gateway) (*Outcome, error) {
	if err := ValidatePair(intent.FromToken, intent.ToToken); err != nil {
		return nil, err
	}

	anchor, fee, err := anchorAndFee(ctx, gw)
	if err != nil {
		return nil, err
	}

	// Swap payload: tag(8) || amount(8, LE).
	data := make([]byte, 0, 16)
	data = append(data, silentSwapTag[:]...)
	data = binary.LittleEndian.AppendUint64(data, intent.Amount)

	var payerAddr txcraft.Address
	copy(payerAddr[:], signer.PublicKey())

	instrs := []txcraft.Instruction{
		txcraft.SetComputeUnitPrice(fee),
		{
			ProgramID: SilentSwapProgramID,
			Accounts: []txcraft.AccountMeta{
				{Address: payerAddr, IsSigner: true, IsWritable: true},
				{Address: silentSwapMarket, IsWritable: true},
				{Address: txcraft.SystemProgramID},
			},
			Data: data,
		},
	}

	wire, _, err := txcraft.BuildSigned(signer, anchor, instrs)
	if err != nil {
		return nil, err
	}
	sig, err := gw.BroadcastReliable(ctx, wire)
	if err != nil {
		return nil, err
	}

	toAmount := estimateOutput(intent.FromToken, intent.Amount, s.priceFn(ctx))
	s.log.Info("private swap confirmed",
		"provider", s.Name(), "from", intent.FromToken, "to", intent.ToToken, "tx_hash", sig)
	return &Outcome{TxHash: sig, Provider: s.Name(), ToAmount: toAmount}, nil
}

// ValidatePair rejects token pairs the swap market does not serve.
func ValidatePair(from, to string) error {
	valid := func(t string) bool { return t == "SOL" || t == "USDC" }
	if !valid(from) || !valid(to) || from == to {
		return fmt.Errorf("%w: unsupported swap pair %s->%s", ErrUnsupportedPair, from, to)
	}
	return nil
}

// estimateOutput converts between SOL base units (1e9) and USDC base units
// (1e6) at the given price, minus the swap fee.
func estimateOutput(fromToken string, amount uint64, solPrice float64) uint64 {
	if fromToken == "SOL" {
		return uint64(float64(amount) / 1e9 * solPrice * swapFeeFactor * 1e6)
	}
	return uint64(float64(amount) / 1e6 / solPrice * swapFeeFactor * 1e9)
}
