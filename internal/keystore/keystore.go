// Package keystore owns the daemon signing identity. The secret key lives in
// process memory for the daemon lifetime and on disk only inside an
// authenticated encryption envelope.
package keystore

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrPassphraseRequired = errors.New("keystore passphrase is required")
	ErrInvalidMnemonic    = errors.New("invalid recovery mnemonic")
)

// Keystore holds the decrypted signing key. Read-only after construction, so
// concurrent Sign calls need no lock.
type Keystore struct {
	priv ed25519.PrivateKey
}

// LoadOrCreate opens the encrypted key file at path, or generates a fresh
// identity when none exists. On generation the recovery mnemonic is returned
// exactly once; it is never persisted and cannot be re-derived later.
func LoadOrCreate(path, passphrase string) (ks *Keystore, mnemonic string, err error) {
	if passphrase == "" {
		return nil, "", ErrPassphraseRequired
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		seed, err := openSecret(passphrase, data)
		if err != nil {
			return nil, "", err
		}
		if len(seed) != ed25519.SeedSize {
			// Authenticated decrypt with a wrong-length payload means the
			// file was written by something else entirely.
			return nil, "", ErrDecryptFailed
		}
		return &Keystore{priv: ed25519.NewKeyFromSeed(seed)}, "", nil

	case os.IsNotExist(err):
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return nil, "", err
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, "", err
		}
		ks := &Keystore{priv: ed25519.NewKeyFromSeed(entropy)}
		if err := save(path, passphrase, entropy); err != nil {
			return nil, "", err
		}
		return ks, mnemonic, nil

	default:
		return nil, "", fmt.Errorf("read key file: %w", err)
	}
}

// Restore rebuilds the identity from a recovery mnemonic and re-encrypts it
// at path, replacing whatever was stored there.
func Restore(path, passphrase, mnemonic string) (*Keystore, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	if len(entropy) != ed25519.SeedSize {
		return nil, ErrInvalidMnemonic
	}
	if err := save(path, passphrase, entropy); err != nil {
		return nil, err
	}
	return &Keystore{priv: ed25519.NewKeyFromSeed(entropy)}, nil
}

func save(path, passphrase string, seed []byte) error {
	sealed, err := sealSecret(passphrase, seed)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	// Owner-only permissions from the first byte: open with 0600 before any
	// secret material is written.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(sealed); err != nil {
		_ = f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}
	return nil
}

// Sign signs an assembled transaction message.
func (k *Keystore) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

func (k *Keystore) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// Address is the base58 public identity used as fee payer on the network.
func (k *Keystore) Address() string {
	return base58.Encode(k.PublicKey())
}
