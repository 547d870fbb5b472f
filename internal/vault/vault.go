package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
)

// MaxApproval is the default spending approval granted to swapper contracts.
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Vault is the executable model of the Trade contract: pooled token balances
// owned exclusively by the vault address, mutated only through manager-gated
// entry points. External protocols never retain ownership, only transient
// allowances granted immediately before each operation.
type Vault struct {
	env     Env
	address common.Address

	initialized bool
	managers    map[common.Address]bool
	trigger     common.Address

	lendingPool         common.Address
	lendingDataProvider common.Address
	lendingGateway      common.Address
	lendingReferralCode uint16

	marginRouter         common.Address
	marginPositionRouter common.Address
	marginReferralCode   [32]byte

	// Approval granted to a swapper before dispatching its payload.
	// Defaults to MaxApproval; tunable because unbounded approvals are a
	// deliberate but risky simplification of the deployed contract.
	swapApproval *big.Int
}

// InitConfig carries the one-time deployment parameters.
type InitConfig struct {
	Manager              common.Address
	Trigger              common.Address
	LendingPool          common.Address
	LendingDataProvider  common.Address
	LendingGateway       common.Address
	LendingReferralCode  uint16
	MarginRouter         common.Address
	MarginPositionRouter common.Address
	MarginReferralCode   [32]byte
	SwapApproval         *big.Int
}

// New creates an uninitialized vault bound to its own address on env.
func New(env Env, address common.Address) *Vault {
	return &Vault{
		env:          env,
		address:      address,
		managers:     make(map[common.Address]bool),
		swapApproval: MaxApproval,
	}
}

// Address returns the vault's own on-ledger address.
func (v *Vault) Address() common.Address { return v.address }

// Trigger returns the off-chain co-signer identity. Set once at
// initialization; no setter exists.
func (v *Vault) Trigger() common.Address { return v.trigger }

// Initialize is the proxy-pattern initializer: distinct from construction,
// callable exactly once. The caller and cfg.Manager both become managers.
func (v *Vault) Initialize(ctx CallCtx, cfg InitConfig) error {
	if v.initialized {
		return clierr.New(clierr.CodeAlreadyInitialized, "vault already initialized")
	}
	v.initialized = true
	v.trigger = cfg.Trigger
	v.lendingPool = cfg.LendingPool
	v.lendingDataProvider = cfg.LendingDataProvider
	v.lendingGateway = cfg.LendingGateway
	v.lendingReferralCode = cfg.LendingReferralCode
	v.marginRouter = cfg.MarginRouter
	v.marginPositionRouter = cfg.MarginPositionRouter
	v.marginReferralCode = cfg.MarginReferralCode
	if cfg.SwapApproval != nil {
		v.swapApproval = new(big.Int).Set(cfg.SwapApproval)
	}
	v.setManagerFlag(ctx.Caller, true)
	if cfg.Manager != ctx.Caller {
		v.setManagerFlag(cfg.Manager, true)
	}
	return nil
}

// IsManager reports manager-set membership.
func (v *Vault) IsManager(id common.Address) bool { return v.managers[id] }

func (v *Vault) requireManager(caller common.Address) error {
	if !v.managers[caller] {
		return clierr.New(clierr.CodeUnauthorized, "caller is not a manager")
	}
	return nil
}

// SetManager flips an identity's manager flag. Manager-gated: the deployed
// contract omits this guard (see SetManagerLegacy), but new deployments
// should not ship an open membership setter.
func (v *Vault) SetManager(ctx CallCtx, id common.Address, enabled bool) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	v.setManagerFlag(id, enabled)
	return nil
}

// SetManagerLegacy preserves the observed on-chain behavior: no caller check.
// Kept under its own name so the trust gap stays visible at call sites.
func (v *Vault) SetManagerLegacy(_ CallCtx, id common.Address, enabled bool) {
	v.setManagerFlag(id, enabled)
}

func (v *Vault) setManagerFlag(id common.Address, enabled bool) {
	v.managers[id] = enabled
	if enabled {
		v.env.Emit(ManagerAdded{Manager: id})
	} else {
		v.env.Emit(ManagerRemoved{Manager: id})
	}
}

// AssetSizes reads the vault's held balance of each token, positionally
// aligned with the input. Read-only, ungated; the lending-side counterpart
// is AavePositionSizes.
func (v *Vault) AssetSizes(assets []common.Address) ([]*big.Int, error) {
	sizes := make([]*big.Int, len(assets))
	for i, asset := range assets {
		ok, ret := v.env.StaticCall(asset, packBalanceOf(v.address))
		if !ok {
			return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("read asset balance: %s", DecodeRevert(ret)))
		}
		balance, ok2 := unpackBalance(ret)
		if !ok2 {
			return nil, clierr.New(clierr.CodeInternal, "malformed balanceOf return data")
		}
		sizes[i] = balance
	}
	return sizes, nil
}

// SetAaveReferralCode updates the referral tag attached to future
// supply/borrow calls.
func (v *Vault) SetAaveReferralCode(ctx CallCtx, code uint16) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	v.lendingReferralCode = code
	return nil
}
