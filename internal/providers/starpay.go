package providers

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"shadowprism/go-core/internal/txcraft"
)

// StarpayProgramID is the merchant settlement program.
var StarpayProgramID = txcraft.MustAddress("SPayX11111111111111111111111111111111111111")

var starpaySettleTag = [8]byte{105, 12, 110, 212, 21, 12, 21, 10}

// Starpay settles a payment to a merchant account and issues a receipt
// identifier for the merchant's books.
type Starpay struct {
	log *slog.Logger
}

func NewStarpay(log *slog.Logger) *Starpay {
	return &Starpay{log: log}
}

func (s *Starpay) Name() string { return "starpay" }

func (s *Starpay) Execute(ctx context.Context, intent Intent, signer txcraft.Signer, gw Gateway) (*Outcome, error) {
	merchant, err := txcraft.ParseAddress(intent.Destination)
	if err != nil {
		return nil, fmt.Errorf("invalid merchant id: %w", err)
	}

	anchor, fee, err := anchorAndFee(ctx, gw)
	if err != nil {
		return nil, err
	}

	// Settle payload: tag(8) || amount(8, LE).
	data := make([]byte, 0, 16)
	data = append(data, starpaySettleTag[:]...)
	data = binary.LittleEndian.AppendUint64(data, intent.Amount)

	var payerAddr txcraft.Address
	copy(payerAddr[:], signer.PublicKey())

	instrs := []txcraft.Instruction{
		txcraft.SetComputeUnitPrice(fee),
		{
			ProgramID: StarpayProgramID,
			Accounts: []txcraft.AccountMeta{
				{Address: payerAddr, IsSigner: true, IsWritable: true},
				{Address: merchant, IsWritable: true},
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

	receipt := "STAR-" + strings.ToUpper(uuid.NewString())
	s.log.Info("merchant payment settled",
		"provider", s.Name(), "amount", intent.Amount, "tx_hash", sig, "receipt_id", receipt)
	return &Outcome{TxHash: sig, Provider: s.Name(), ReceiptID: receipt}, nil
}
