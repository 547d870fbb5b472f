package chain

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Dvl-es/tradevault/internal/vault"
)

const testTriggerKeyHex = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func newTestTrigger(t *testing.T) *TriggerSigner {
	t.Helper()
	pk, err := crypto.HexToECDSA(testTriggerKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	return NewTriggerSigner(pk)
}

func TestAuthorizeProducesVerifiablePayload(t *testing.T) {
	trigger := newTestTrigger(t)
	callData := []byte{0x01, 0x02, 0x03, 0x04}

	payload, err := trigger.Authorize(callData)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if payload.Digest != crypto.Keccak256Hash(callData) {
		t.Fatal("digest is not the keccak hash of the call data")
	}
	if len(payload.Signature) != 65 {
		t.Fatalf("signature length = %d, want 65", len(payload.Signature))
	}
	if v := payload.Signature[64]; v != 27 && v != 28 {
		t.Fatalf("recovery id = %d, want canonical 27/28", v)
	}
	// The payload must pass the same verification the vault applies.
	if got := vault.RecoverSigner(payload.Digest, payload.Signature); got != trigger.Address() {
		t.Fatalf("recovered %s, want trigger %s", got.Hex(), trigger.Address().Hex())
	}
}

func TestBuildInstructionRoundTrips(t *testing.T) {
	trigger := newTestTrigger(t)
	swapper := common.HexToAddress("0x3000000000000000000000000000000000000001")
	tokenIn := common.HexToAddress("0x2000000000000000000000000000000000000001")
	tokenOut := common.HexToAddress("0x2000000000000000000000000000000000000002")
	callData := []byte{0xaa, 0xbb, 0xcc}

	raw, err := trigger.BuildInstruction(swapper, tokenIn, tokenOut, big.NewInt(12345), callData)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}

	in, err := vault.UnpackSwapInstruction(raw)
	if err != nil {
		t.Fatalf("unpack instruction: %v", err)
	}
	if in.Swapper != swapper || in.TokenIn != tokenIn || in.TokenOut != tokenOut {
		t.Fatal("instruction addresses mismatch")
	}
	if in.AmountIn.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("amountIn = %s", in.AmountIn)
	}

	payload, err := vault.UnpackSwapPayload(in.Payload)
	if err != nil {
		t.Fatalf("unpack payload: %v", err)
	}
	if payload.Digest != crypto.Keccak256Hash(callData) {
		t.Fatal("payload digest mismatch after round trip")
	}
	if got := vault.RecoverSigner(payload.Digest, payload.Signature); got != trigger.Address() {
		t.Fatalf("recovered %s, want trigger", got.Hex())
	}
}

func TestNewTriggerSignerFromEnv(t *testing.T) {
	t.Setenv(EnvTriggerKey, testTriggerKeyHex)
	t.Setenv(EnvTriggerKeyFile, "")
	trigger, err := NewTriggerSignerFromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	want := newTestTrigger(t).Address()
	if trigger.Address() != want {
		t.Fatalf("address = %s, want %s", trigger.Address().Hex(), want.Hex())
	}
}

func TestNewTriggerSignerFromKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger.key")
	if err := os.WriteFile(path, []byte("0x"+testTriggerKeyHex+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvTriggerKey, "")
	t.Setenv(EnvTriggerKeyFile, path)
	trigger, err := NewTriggerSignerFromEnv()
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if trigger.Address() != newTestTrigger(t).Address() {
		t.Fatal("address mismatch loading from file")
	}
}

func TestNewTriggerSignerFromEnvMissing(t *testing.T) {
	t.Setenv(EnvTriggerKey, "")
	t.Setenv(EnvTriggerKeyFile, "")
	if _, err := NewTriggerSignerFromEnv(); err == nil {
		t.Fatal("expected error when no trigger key is configured")
	}
}
