package vault

import (
	"fmt"
	"math/big"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
)

// The margin integration is a thin boundary: position open/close happens
// off-chain via signed orders. Only plugin approval and the fee query live
// on the vault.

// GmxApprovePlugin authorizes the position router as a plugin of the margin
// router on the vault's behalf. Manager-gated by default; the deployed
// contract leaves it open (see GmxApprovePluginLegacy).
func (v *Vault) GmxApprovePlugin(ctx CallCtx) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	return v.approvePlugin()
}

// GmxApprovePluginLegacy preserves the observed unguarded behavior.
func (v *Vault) GmxApprovePluginLegacy(_ CallCtx) error {
	return v.approvePlugin()
}

func (v *Vault) approvePlugin() error {
	data, err := gmxRouterABI.Pack("approvePlugin", v.marginPositionRouter)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "pack approvePlugin calldata", err)
	}
	if ok, ret := v.env.Call(v.marginRouter, data, nil); !ok {
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("approve plugin: %s", DecodeRevert(ret)))
	}
	return nil
}

// GmxMinExecutionFee is a read-only pass-through to the position router.
func (v *Vault) GmxMinExecutionFee() (*big.Int, error) {
	data, err := gmxPositionABI.Pack("minExecutionFee")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack minExecutionFee calldata", err)
	}
	ok, ret := v.env.StaticCall(v.marginPositionRouter, data)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("read min execution fee: %s", DecodeRevert(ret)))
	}
	values, err := gmxPositionABI.Unpack("minExecutionFee", ret)
	if err != nil || len(values) != 1 {
		return nil, clierr.New(clierr.CodeInternal, "malformed minExecutionFee return data")
	}
	fee, ok2 := values[0].(*big.Int)
	if !ok2 {
		return nil, clierr.New(clierr.CodeInternal, "malformed minExecutionFee return data")
	}
	return fee, nil
}
