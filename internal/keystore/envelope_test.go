package keystore

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	secret := bytes.Repeat([]byte{7}, 32)
	sealed, err := sealSecret("pw", secret)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	opened, err := openSecret("pw", sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(secret, opened) {
		t.Fatal("round trip changed the secret")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	sealed, err := sealSecret("pw", []byte("secret-key-material"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	sealed[len(sealed)-2] ^= 0x01
	if _, err := openSecret("pw", sealed); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("want ErrDecryptFailed for tampered envelope, got %v", err)
	}
}

func TestOpenRejectsTruncation(t *testing.T) {
	for _, n := range []int{0, 1, 10, 30} {
		if _, err := openSecret("pw", bytes.Repeat([]byte{'A'}, n)); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("truncated input of %d bytes: want ErrDecryptFailed, got %v", n, err)
		}
	}
}

func TestSealUsesFreshSaltAndNonce(t *testing.T) {
	a, err := sealSecret("pw", []byte("same secret"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := sealSecret("pw", []byte("same secret"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same secret must not be identical")
	}
}
