// Package txcraft assembles and signs wire transactions for the ledger
// network. It implements the legacy message layout: a three-byte header,
// compact arrays of account keys and compiled instructions, and a recent
// blockhash anchoring the transaction to a short validity window.
package txcraft

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
)

// SystemProgramID is the native transfer program present in every account set.
var SystemProgramID = MustAddress("11111111111111111111111111111111")

// ComputeBudgetProgramID receives fee-bid instructions.
var ComputeBudgetProgramID = MustAddress("ComputeBudget111111111111111111111111111111")

var ErrNoInstructions = errors.New("transaction has no instructions")

// AccountMeta describes how an instruction touches one account.
type AccountMeta struct {
	Address    Address
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

// SetComputeUnitPrice builds the compute-budget instruction that attaches a
// priority-fee bid (micro-lamports per compute unit) to a transaction.
func SetComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = 3 // SetComputeUnitPrice variant
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// Signer produces ed25519 signatures for a single fee-payer identity.
type Signer interface {
	Sign(message []byte) []byte
	PublicKey() ed25519.PublicKey
}

type compiledAccount struct {
	address  Address
	signer   bool
	writable bool
}

// BuildSigned compiles instructions into a message with payer as fee payer,
// signs it, and returns the base64 wire form plus the base58 signature used
// as the transaction hash on the network.
func BuildSigned(payer Signer, recentBlockhash Address, instrs []Instruction) (wireBase64, signature string, err error) {
	if len(instrs) == 0 {
		return "", "", ErrNoInstructions
	}
	var payerAddr Address
	copy(payerAddr[:], payer.PublicKey())

	accounts := compileAccounts(payerAddr, instrs)
	msg := serializeMessage(accounts, recentBlockhash, instrs)

	sig := payer.Sign(msg)

	// Wire form: compact count of signatures, the signatures, the message.
	wire := appendCompactU16(nil, 1)
	wire = append(wire, sig...)
	wire = append(wire, msg...)

	return base64.StdEncoding.EncodeToString(wire), base58.Encode(sig), nil
}

// compileAccounts produces the ordered unique account list: the fee payer,
// remaining writable signers, readonly signers, writable non-signers, then
// readonly non-signers (program ids among them).
func compileAccounts(payer Address, instrs []Instruction) []compiledAccount {
	merged := map[Address]*compiledAccount{
		payer: {address: payer, signer: true, writable: true},
	}
	order := []Address{payer}

	touch := func(addr Address, signer, writable bool) {
		acc, ok := merged[addr]
		if !ok {
			acc = &compiledAccount{address: addr}
			merged[addr] = acc
			order = append(order, addr)
		}
		acc.signer = acc.signer || signer
		acc.writable = acc.writable || writable
	}

	for _, ix := range instrs {
		for _, meta := range ix.Accounts {
			touch(meta.Address, meta.IsSigner, meta.IsWritable)
		}
		touch(ix.ProgramID, false, false)
	}

	rank := func(a *compiledAccount) int {
		switch {
		case a.address == payer:
			return 0
		case a.signer && a.writable:
			return 1
		case a.signer:
			return 2
		case a.writable:
			return 3
		default:
			return 4
		}
	}

	out := make([]compiledAccount, 0, len(order))
	for r := 0; r <= 4; r++ {
		for _, addr := range order {
			if acc := merged[addr]; rank(acc) == r {
				out = append(out, *acc)
			}
		}
	}
	return out
}

func serializeMessage(accounts []compiledAccount, blockhash Address, instrs []Instruction) []byte {
	var numSigners, numReadonlySigned, numReadonlyUnsigned byte
	index := make(map[Address]byte, len(accounts))
	for i, acc := range accounts {
		index[acc.address] = byte(i)
		if acc.signer {
			numSigners++
			if !acc.writable {
				numReadonlySigned++
			}
		} else if !acc.writable {
			numReadonlyUnsigned++
		}
	}

	msg := []byte{numSigners, numReadonlySigned, numReadonlyUnsigned}
	msg = appendCompactU16(msg, len(accounts))
	for _, acc := range accounts {
		msg = append(msg, acc.address[:]...)
	}
	msg = append(msg, blockhash[:]...)

	msg = appendCompactU16(msg, len(instrs))
	for _, ix := range instrs {
		msg = append(msg, index[ix.ProgramID])
		msg = appendCompactU16(msg, len(ix.Accounts))
		for _, meta := range ix.Accounts {
			msg = append(msg, index[meta.Address])
		}
		msg = appendCompactU16(msg, len(ix.Data))
		msg = append(msg, ix.Data...)
	}
	return msg
}

// appendCompactU16 writes the network's variable-length count encoding:
// little-endian 7-bit groups with a continuation bit.
func appendCompactU16(dst []byte, n int) []byte {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
