package txcraft

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Address is a 32-byte account key in its raw form.
type Address [32]byte

var ErrInvalidAddress = errors.New("invalid base58 address")

// ParseAddress decodes a base58 account key. Anything that does not decode to
// exactly 32 bytes is rejected before it can reach a network call.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return Address{}, fmt.Errorf("%w: decoded to %d bytes", ErrInvalidAddress, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustAddress parses a compile-time constant key and panics on failure. Only
// used for program identifiers baked into provider adapters.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("txcraft: bad constant address %q: %v", s, err))
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}
