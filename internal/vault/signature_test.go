package vault

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func TestRecoverSignerRejectsBadLengths(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("payload"))
	for _, n := range []int{0, 1, 32, 64, 66, 130} {
		if got := RecoverSigner(digest, make([]byte, n)); got != (common.Address{}) {
			t.Fatalf("length %d: expected null identity, got %s", n, got.Hex())
		}
	}
}

func TestRecoverSignerNormalizesRecoveryID(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)
	digest := crypto.Keccak256Hash([]byte("payload"))
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// crypto.Sign yields v in {0,1}; the canonical form adds 27. Both
	// encodings must recover identically.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	canonical := make([]byte, len(sig))
	copy(canonical, sig)
	canonical[64] += 27

	if got := RecoverSigner(digest, legacy); got != want {
		t.Fatalf("legacy v=%d: got %s, want %s", legacy[64], got.Hex(), want.Hex())
	}
	if got := RecoverSigner(digest, canonical); got != want {
		t.Fatalf("canonical v=%d: got %s, want %s", canonical[64], got.Hex(), want.Hex())
	}
}

func TestRecoverSignerRejectsInvalidRecoveryID(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("payload"))
	sig := make([]byte, 65)
	for _, v := range []byte{2, 26, 29, 255} {
		sig[64] = v
		if got := RecoverSigner(digest, sig); got != (common.Address{}) {
			t.Fatalf("v=%d: expected null identity, got %s", v, got.Hex())
		}
	}
}

func TestRecoverSignerNeverPanicsOnGarbage(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("payload"))
	garbage := make([]byte, 65)
	for i := range garbage {
		garbage[i] = 0xff
	}
	garbage[64] = 27
	// Recovery fails inside the curve math; the verifier must degrade to
	// the null identity instead of erroring.
	if got := RecoverSigner(digest, garbage); got != (common.Address{}) {
		t.Fatalf("expected null identity for unrecoverable signature, got %s", got.Hex())
	}
}
