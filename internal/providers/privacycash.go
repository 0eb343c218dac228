package providers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log/slog"

	"shadowprism/go-core/internal/txcraft"
)

// PrivacyCashProgramID is the on-chain mixer program.
var PrivacyCashProgramID = txcraft.MustAddress("PCashX1111111111111111111111111111111111111")

// privacyCashDepositTag is the program's 8-byte dispatch tag for Deposit.
var privacyCashDepositTag = [8]byte{242, 35, 198, 137, 82, 225, 242, 182}

// PrivacyCash deposits value into a shielding pool. Redemption requires the
// note returned in the outcome; the note is generated locally from
// cryptographic randomness and cannot be re-derived from the signature.
type PrivacyCash struct {
	log *slog.Logger
}

func NewPrivacyCash(log *slog.Logger) *PrivacyCash {
	return &PrivacyCash{log: log}
}

func (p *PrivacyCash) Name() string { return "privacy_cash" }

func (p *PrivacyCash) Execute(ctx context.Context, intent Intent, signer txcraft.Signer, gw Gateway) (*Outcome, error) {
	pool, err := txcraft.ParseAddress(intent.Destination)
	if err != nil {
		return nil, err
	}

	anchor, fee, err := anchorAndFee(ctx, gw)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, 32)
	nullifier := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if _, err := rand.Read(nullifier); err != nil {
		return nil, err
	}
	note := fmt.Sprintf("prism-note-%d-%s-%s",
		intent.Amount,
		base64.StdEncoding.EncodeToString(secret),
		base64.StdEncoding.EncodeToString(nullifier))

	// Deposit payload: tag(8) || amount(8, LE) || commitment(32).
	data := make([]byte, 0, 48)
	data = append(data, privacyCashDepositTag[:]...)
	data = binary.LittleEndian.AppendUint64(data, intent.Amount)
	data = append(data, secret...)

	var payerAddr txcraft.Address
	copy(payerAddr[:], signer.PublicKey())

	instrs := []txcraft.Instruction{
		txcraft.SetComputeUnitPrice(fee),
		{
			ProgramID: PrivacyCashProgramID,
			Accounts: []txcraft.AccountMeta{
				{Address: payerAddr, IsSigner: true, IsWritable: true},
				{Address: pool, IsWritable: true},
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

	p.log.Info("shielded deposit confirmed", "provider", p.Name(), "amount", intent.Amount, "tx_hash", sig)
	return &Outcome{TxHash: sig, Provider: p.Name(), Note: note}, nil
}
