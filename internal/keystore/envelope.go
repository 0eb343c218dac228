package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize = 16
	// kdfIterations keeps offline guessing deliberately slow.
	kdfIterations = 200_000
)

// ErrDecryptFailed covers wrong passphrase, truncation and tampering alike.
// The error is intentionally generic: the store must not act as an oracle for
// passphrase correctness.
var ErrDecryptFailed = errors.New("keystore decryption failed")

// sealSecret encrypts raw secret bytes into the at-rest form:
// base64( salt(16) || nonce(12) || aead ciphertext ).
func sealSecret(passphrase string, secret []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, secret, nil)

	blob := make([]byte, 0, saltSize+chacha20poly1305.NonceSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(blob)))
	base64.StdEncoding.Encode(out, blob)
	return out, nil
}

func openSecret(passphrase string, data []byte) ([]byte, error) {
	blob := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(blob, data)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	blob = blob[:n]
	if len(blob) < saltSize+chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, ErrDecryptFailed
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+chacha20poly1305.NonceSize]
	ciphertext := blob[saltSize+chacha20poly1305.NonceSize:]

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	secret, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return secret, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, chacha20poly1305.KeySize, sha256.New)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
