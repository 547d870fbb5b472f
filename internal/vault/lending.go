package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/registry"
)

// AaveSupply deposits amount of asset into the lending pool on the vault's
// behalf. The referral parameter of the deployed entry point is unused; the
// configured referral code is what reaches the pool.
func (v *Vault) AaveSupply(ctx CallCtx, asset common.Address, amount *big.Int, _ uint16) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	held, err := v.balanceOf(asset)
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return clierr.New(clierr.CodeInsufficientBalance, "vault balance below requested supply amount")
	}
	// Exact allowance, unlike the swap path's configurable max approval.
	if ok, ret := v.env.Call(asset, packApprove(v.lendingPool, amount), nil); !ok {
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("approve lending pool: %s", DecodeRevert(ret)))
	}
	data, err := poolABI.Pack("supply", asset, amount, v.address, v.lendingReferralCode)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "pack supply calldata", err)
	}
	if ok, ret := v.env.Call(v.lendingPool, data, nil); !ok {
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("pool supply: %s", DecodeRevert(ret)))
	}
	v.env.Emit(AaveSupply{Asset: asset, Amount: amount})
	return nil
}

// AaveWithdraw pulls amount of asset from the pool directly to the vault.
// No pre-balance check: the pool itself rejects over-withdrawal.
func (v *Vault) AaveWithdraw(ctx CallCtx, asset common.Address, amount *big.Int) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	data, err := poolABI.Pack("withdraw", asset, amount, v.address)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "pack withdraw calldata", err)
	}
	if ok, ret := v.env.Call(v.lendingPool, data, nil); !ok {
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("pool withdraw: %s", DecodeRevert(ret)))
	}
	v.env.Emit(AaveWithdraw{Asset: asset, Amount: amount})
	return nil
}

// AaveBorrow borrows amount of asset at the given rate mode. Borrowing the
// native currency is unsupported.
func (v *Vault) AaveBorrow(ctx CallCtx, asset common.Address, amount, rateMode *big.Int) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	if registry.IsNativeAsset(asset) {
		return clierr.New(clierr.CodeUnsupportedAsset, "native-currency borrow is unsupported")
	}
	data, err := poolABI.Pack("borrow", asset, amount, rateMode, v.lendingReferralCode, v.address)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "pack borrow calldata", err)
	}
	if ok, ret := v.env.Call(v.lendingPool, data, nil); !ok {
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("pool borrow: %s", DecodeRevert(ret)))
	}
	v.env.Emit(AaveBorrow{Asset: asset, Amount: amount})
	return nil
}

// AaveRepay repays a borrow position. Native repayments must attach exactly
// amount as call value and route through the gateway adapter; ERC20
// repayments approve the pool for the exact amount and repay directly.
func (v *Vault) AaveRepay(ctx CallCtx, asset common.Address, amount, rateMode *big.Int) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	if registry.IsNativeAsset(asset) {
		if ctx.value().Cmp(amount) != 0 {
			return clierr.New(clierr.CodeValueMismatch, "attached value must equal repay amount")
		}
		data, err := gatewayABI.Pack("repayETH", v.lendingPool, amount, rateMode, v.address)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "pack gateway repay calldata", err)
		}
		if ok, ret := v.env.Call(v.lendingGateway, data, amount); !ok {
			return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("gateway repay: %s", DecodeRevert(ret)))
		}
	} else {
		if ok, ret := v.env.Call(asset, packApprove(v.lendingPool, amount), nil); !ok {
			return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("approve lending pool: %s", DecodeRevert(ret)))
		}
		data, err := poolABI.Pack("repay", asset, amount, rateMode, v.address)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "pack repay calldata", err)
		}
		if ok, ret := v.env.Call(v.lendingPool, data, nil); !ok {
			return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("pool repay: %s", DecodeRevert(ret)))
		}
	}
	v.env.Emit(AaveRepay{Asset: asset, Amount: amount})
	return nil
}

// AavePositionSizes reads the vault's held aToken balance for each asset,
// positionally aligned with the input. Read-only, ungated.
func (v *Vault) AavePositionSizes(assets []common.Address) ([]*big.Int, error) {
	sizes := make([]*big.Int, len(assets))
	for i, asset := range assets {
		data, err := dataProviderABI.Pack("getUserReserveData", asset, v.address)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "pack reserve data calldata", err)
		}
		ok, ret := v.env.StaticCall(v.lendingDataProvider, data)
		if !ok {
			return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("read reserve data: %s", DecodeRevert(ret)))
		}
		values, err := dataProviderABI.Unpack("getUserReserveData", ret)
		if err != nil || len(values) == 0 {
			return nil, clierr.New(clierr.CodeInternal, "malformed reserve data")
		}
		balance, ok2 := values[0].(*big.Int)
		if !ok2 {
			return nil, clierr.New(clierr.CodeInternal, "malformed reserve data")
		}
		sizes[i] = balance
	}
	return sizes, nil
}
