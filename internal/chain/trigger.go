package chain

import (
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/chain/signer"
	"github.com/Dvl-es/tradevault/internal/vault"
)

const (
	EnvTriggerKey     = "TRADEVAULT_TRIGGER_KEY"
	EnvTriggerKeyFile = "TRADEVAULT_TRIGGER_KEY_FILE"
)

// TriggerSigner holds the off-chain trigger identity that co-authorizes
// every swap instruction. The vault accepts a swap only when the payload's
// digest is the keccak hash of the inner call data and the signature over
// that digest recovers to this identity.
type TriggerSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func NewTriggerSigner(pk *ecdsa.PrivateKey) *TriggerSigner {
	return &TriggerSigner{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
	}
}

// NewTriggerSignerFromEnv loads the trigger key from TRADEVAULT_TRIGGER_KEY
// (hex) or TRADEVAULT_TRIGGER_KEY_FILE.
func NewTriggerSignerFromEnv() (*TriggerSigner, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvTriggerKey)); raw != "" {
		pk, err := signer.ParseHexKey(raw)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeSigner, "parse trigger key", err)
		}
		return NewTriggerSigner(pk), nil
	}
	if path := strings.TrimSpace(os.Getenv(EnvTriggerKeyFile)); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeSigner, "read trigger key file", err)
		}
		pk, err := signer.ParseHexKey(string(buf))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeSigner, "parse trigger key", err)
		}
		return NewTriggerSigner(pk), nil
	}
	return nil, clierr.New(clierr.CodeSigner, "missing trigger key: set "+EnvTriggerKey+" or "+EnvTriggerKeyFile)
}

func (t *TriggerSigner) Address() common.Address { return t.address }

// Authorize produces the signed payload for one inner call: digest, a
// 65-byte signature in the canonical 27/28 form, and the call data itself.
func (t *TriggerSigner) Authorize(callData []byte) (vault.SwapPayload, error) {
	digest := crypto.Keccak256Hash(callData)
	sig, err := crypto.Sign(digest.Bytes(), t.privateKey)
	if err != nil {
		return vault.SwapPayload{}, clierr.Wrap(clierr.CodeSigner, "sign swap digest", err)
	}
	sig[64] += 27
	return vault.SwapPayload{Digest: digest, Signature: sig, CallData: callData}, nil
}

// BuildInstruction assembles and packs one dual-authorized swap instruction.
func (t *TriggerSigner) BuildInstruction(swapper, tokenIn, tokenOut common.Address, amountIn *big.Int, callData []byte) ([]byte, error) {
	payload, err := t.Authorize(callData)
	if err != nil {
		return nil, err
	}
	packed, err := vault.PackSwapPayload(payload)
	if err != nil {
		return nil, err
	}
	return vault.PackSwapInstruction(vault.SwapInstruction{
		Swapper:  swapper,
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		AmountIn: amountIn,
		Payload:  packed,
	})
}
