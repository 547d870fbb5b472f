package vault_test

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Dvl-es/tradevault/internal/ledger"
	"github.com/Dvl-es/tradevault/internal/vault"
)

const triggerKeyHex = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

var (
	vaultAddr    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	managerAddr  = common.HexToAddress("0x1000000000000000000000000000000000000002")
	outsiderAddr = common.HexToAddress("0x1000000000000000000000000000000000000003")
	tokenInAddr  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	tokenOutAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	swapperAddr  = common.HexToAddress("0x3000000000000000000000000000000000000001")
	poolAddr     = common.HexToAddress("0x4000000000000000000000000000000000000001")
	providerAddr = common.HexToAddress("0x4000000000000000000000000000000000000002")
	gatewayAddr  = common.HexToAddress("0x4000000000000000000000000000000000000003")
	routerAddr   = common.HexToAddress("0x5000000000000000000000000000000000000001")
	posRouteAddr = common.HexToAddress("0x5000000000000000000000000000000000000002")
)

type world struct {
	ledger     *ledger.Ledger
	vault      *vault.Vault
	triggerKey *ecdsa.PrivateKey
	tokenIn    *ledger.Token
	tokenOut   *ledger.Token
}

func newWorld(t *testing.T) *world {
	t.Helper()
	l := ledger.New()
	tokenIn := ledger.NewToken()
	tokenOut := ledger.NewToken()
	l.Register(tokenInAddr, tokenIn)
	l.Register(tokenOutAddr, tokenOut)

	key, err := crypto.HexToECDSA(triggerKeyHex)
	if err != nil {
		t.Fatalf("parse trigger key: %v", err)
	}
	v := vault.New(l.EnvFor(vaultAddr), vaultAddr)
	err = v.Initialize(vault.CallCtx{Caller: managerAddr}, vault.InitConfig{
		Manager:              managerAddr,
		Trigger:              crypto.PubkeyToAddress(key.PublicKey),
		LendingPool:          poolAddr,
		LendingDataProvider:  providerAddr,
		LendingGateway:       gatewayAddr,
		MarginRouter:         routerAddr,
		MarginPositionRouter: posRouteAddr,
	})
	if err != nil {
		t.Fatalf("initialize vault: %v", err)
	}
	return &world{ledger: l, vault: v, triggerKey: key, tokenIn: tokenIn, tokenOut: tokenOut}
}

func managerCtx() vault.CallCtx { return vault.CallCtx{Caller: managerAddr} }

// signedPayload builds a payload authorized by key over callData.
func signedPayload(t *testing.T, key *ecdsa.PrivateKey, callData []byte) []byte {
	t.Helper()
	digest := crypto.Keccak256Hash(callData)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	sig[64] += 27
	packed, err := vault.PackSwapPayload(vault.SwapPayload{Digest: digest, Signature: sig, CallData: callData})
	if err != nil {
		t.Fatalf("pack payload: %v", err)
	}
	return packed
}

// registerSwapper installs a swapper that pulls pullIn of tokenIn from the
// vault and pays payOut of tokenOut back, like a real exchange adapter.
func (w *world) registerSwapper(t *testing.T, pullIn, payOut *big.Int) {
	t.Helper()
	w.tokenOut.Mint(swapperAddr, new(big.Int).Lsh(big.NewInt(1), 128))
	w.ledger.Register(swapperAddr, ledger.ContractFunc(func(call ledger.Call) ([]byte, error) {
		if err := w.tokenIn.TransferFrom(vaultAddr, swapperAddr, swapperAddr, pullIn); err != nil {
			return nil, err
		}
		if err := w.tokenOut.Transfer(swapperAddr, vaultAddr, payOut); err != nil {
			return nil, err
		}
		return nil, nil
	}))
}

func lastEvent(t *testing.T, l *ledger.Ledger) vault.Event {
	t.Helper()
	events := l.Events()
	if len(events) == 0 {
		t.Fatal("expected at least one event")
	}
	return events[len(events)-1]
}
