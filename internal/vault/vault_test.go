package vault_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/ledger"
	"github.com/Dvl-es/tradevault/internal/vault"
)

func TestInitializeOnce(t *testing.T) {
	w := newWorld(t)
	err := w.vault.Initialize(managerCtx(), vault.InitConfig{Manager: managerAddr})
	if !clierr.Is(err, clierr.CodeAlreadyInitialized) {
		t.Fatalf("second initialize: expected AlreadyInitialized, got %v", err)
	}
}

func TestInitializeGrantsBothManagers(t *testing.T) {
	l := ledger.New()
	deployer := common.HexToAddress("0x1000000000000000000000000000000000000009")
	v := vault.New(l.EnvFor(vaultAddr), vaultAddr)
	err := v.Initialize(vault.CallCtx{Caller: deployer}, vault.InitConfig{Manager: managerAddr})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !v.IsManager(deployer) {
		t.Fatal("initializer caller must become a manager")
	}
	if !v.IsManager(managerAddr) {
		t.Fatal("configured manager must become a manager")
	}
	if v.IsManager(outsiderAddr) {
		t.Fatal("unrelated identity must not be a manager")
	}
}

func TestSetManagerGuarded(t *testing.T) {
	w := newWorld(t)

	err := w.vault.SetManager(vault.CallCtx{Caller: outsiderAddr}, outsiderAddr, true)
	if !clierr.Is(err, clierr.CodeUnauthorized) {
		t.Fatalf("outsider grant: expected Unauthorized, got %v", err)
	}
	if w.vault.IsManager(outsiderAddr) {
		t.Fatal("outsider must not be able to grant itself manager")
	}

	if err := w.vault.SetManager(managerCtx(), outsiderAddr, true); err != nil {
		t.Fatalf("manager grant: %v", err)
	}
	if !w.vault.IsManager(outsiderAddr) {
		t.Fatal("grant by an existing manager must take effect")
	}
	ev, ok := lastEvent(t, w.ledger).(vault.ManagerAdded)
	if !ok || ev.Manager != outsiderAddr {
		t.Fatalf("expected ManagerAdded for outsider, got %#v", lastEvent(t, w.ledger))
	}

	if err := w.vault.SetManager(managerCtx(), outsiderAddr, false); err != nil {
		t.Fatalf("manager revoke: %v", err)
	}
	if w.vault.IsManager(outsiderAddr) {
		t.Fatal("revoke must take effect")
	}
	rev, ok := lastEvent(t, w.ledger).(vault.ManagerRemoved)
	if !ok || rev.Manager != outsiderAddr {
		t.Fatalf("expected ManagerRemoved for outsider, got %#v", lastEvent(t, w.ledger))
	}
}

func TestSetManagerLegacyIsOpen(t *testing.T) {
	w := newWorld(t)
	// The legacy entry point has no caller check at all.
	w.vault.SetManagerLegacy(vault.CallCtx{Caller: outsiderAddr}, outsiderAddr, true)
	if !w.vault.IsManager(outsiderAddr) {
		t.Fatal("legacy setter must apply regardless of caller")
	}
}

func TestRevokedManagerLosesAccess(t *testing.T) {
	w := newWorld(t)
	if err := w.vault.SetManager(managerCtx(), outsiderAddr, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := w.vault.SetManager(managerCtx(), outsiderAddr, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	err := w.vault.SetAaveReferralCode(vault.CallCtx{Caller: outsiderAddr}, 5)
	if !clierr.Is(err, clierr.CodeUnauthorized) {
		t.Fatalf("revoked manager: expected Unauthorized, got %v", err)
	}
}

func TestAssetSizesReportsHeldBalances(t *testing.T) {
	w := newWorld(t)
	w.tokenIn.Mint(vaultAddr, big.NewInt(250))
	w.tokenOut.Mint(vaultAddr, big.NewInt(7))
	w.tokenIn.Mint(outsiderAddr, big.NewInt(9000)) // other holders must not leak in

	sizes, err := w.vault.AssetSizes([]common.Address{tokenOutAddr, tokenInAddr, tokenOutAddr})
	if err != nil {
		t.Fatalf("asset sizes: %v", err)
	}
	want := []int64{7, 250, 7}
	if len(sizes) != len(want) {
		t.Fatalf("got %d sizes, want %d", len(sizes), len(want))
	}
	for i, exp := range want {
		if sizes[i].Cmp(big.NewInt(exp)) != 0 {
			t.Fatalf("sizes[%d] = %s, want %d", i, sizes[i], exp)
		}
	}
}

func TestAssetSizesUnknownToken(t *testing.T) {
	w := newWorld(t)
	unknown := common.HexToAddress("0x2000000000000000000000000000000000000099")
	_, err := w.vault.AssetSizes([]common.Address{unknown})
	if !clierr.Is(err, clierr.CodeUnavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestTriggerFixedAtInitialization(t *testing.T) {
	w := newWorld(t)
	key, err := crypto.HexToECDSA(triggerKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	if got := w.vault.Trigger(); got != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("trigger = %s", got.Hex())
	}
}
