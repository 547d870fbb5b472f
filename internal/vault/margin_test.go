package vault_test

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/ledger"
	"github.com/Dvl-es/tradevault/internal/registry"
	"github.com/Dvl-es/tradevault/internal/vault"
)

// routerFake records the plugin address passed to approvePlugin.
type routerFake struct {
	abi    abi.ABI
	plugin common.Address
}

func newRouterFake(t *testing.T) *routerFake {
	return &routerFake{abi: mustParseABI(t, registry.GmxRouterABI)}
}

func (r *routerFake) Run(call ledger.Call) ([]byte, error) {
	method, err := r.abi.MethodById(call.Input[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Input[4:])
	if err != nil {
		return nil, err
	}
	if method.Name != "approvePlugin" {
		return nil, errors.New("unexpected method")
	}
	r.plugin = args[0].(common.Address)
	return nil, nil
}

// positionRouterFake answers minExecutionFee and rejects writes.
type positionRouterFake struct {
	abi abi.ABI
	fee *big.Int
}

func newPositionRouterFake(t *testing.T, fee *big.Int) *positionRouterFake {
	return &positionRouterFake{abi: mustParseABI(t, registry.GmxPositionRouterABI), fee: fee}
}

func (p *positionRouterFake) Run(call ledger.Call) ([]byte, error) {
	method, err := p.abi.MethodById(call.Input[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != "minExecutionFee" {
		return nil, errors.New("unexpected method")
	}
	return method.Outputs.Pack(p.fee)
}

func TestGmxApprovePluginGuarded(t *testing.T) {
	w := newWorld(t)
	router := newRouterFake(t)
	w.ledger.Register(routerAddr, router)

	err := w.vault.GmxApprovePlugin(vault.CallCtx{Caller: outsiderAddr})
	if !clierr.Is(err, clierr.CodeUnauthorized) {
		t.Fatalf("outsider: expected Unauthorized, got %v", err)
	}
	if router.plugin != (common.Address{}) {
		t.Fatal("router must not be reached on an unauthorized call")
	}

	if err := w.vault.GmxApprovePlugin(managerCtx()); err != nil {
		t.Fatalf("manager: %v", err)
	}
	if router.plugin != posRouteAddr {
		t.Fatalf("approved plugin = %s, want the position router", router.plugin.Hex())
	}
}

func TestGmxApprovePluginLegacyIsOpen(t *testing.T) {
	w := newWorld(t)
	router := newRouterFake(t)
	w.ledger.Register(routerAddr, router)

	if err := w.vault.GmxApprovePluginLegacy(vault.CallCtx{Caller: outsiderAddr}); err != nil {
		t.Fatalf("legacy approve: %v", err)
	}
	if router.plugin != posRouteAddr {
		t.Fatal("legacy entry point must reach the router regardless of caller")
	}
}

func TestGmxMinExecutionFee(t *testing.T) {
	w := newWorld(t)
	w.ledger.Register(posRouteAddr, newPositionRouterFake(t, big.NewInt(180000000000000)))

	fee, err := w.vault.GmxMinExecutionFee()
	if err != nil {
		t.Fatalf("min execution fee: %v", err)
	}
	if fee.Cmp(big.NewInt(180000000000000)) != 0 {
		t.Fatalf("fee = %s", fee)
	}
}

func TestGmxMinExecutionFeeUnavailable(t *testing.T) {
	w := newWorld(t)
	// Nothing registered at the position router address.
	_, err := w.vault.GmxMinExecutionFee()
	if !clierr.Is(err, clierr.CodeUnavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	typed, _ := clierr.As(err)
	if !strings.Contains(typed.Message, vault.SilentRevertMessage) {
		t.Fatalf("message = %q", typed.Message)
	}
}
