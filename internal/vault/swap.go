package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
)

// Swap executes one dual-authorized swap instruction. Manager-gated.
//
// The inner call is a generic dispatch: target and method come entirely from
// the trigger-signed payload, not from any fixed interface. amountIn, tokenIn
// and tokenOut are advisory — they feed the accounting event but are not
// cross-checked against what the payload actually does on-chain. That trust
// boundary is deliberate in the deployed contract and preserved here; the
// off-chain signer is the sole authority over the call's content. Likewise
// nothing tracks consumed digests, so replay safety belongs to the off-chain
// signer (e.g. a nonce inside CallData enforced by the target).
//
// The returned amountOut is the measured tokenOut balance delta across the
// inner call. An adversarial tokenOut with callback hooks could manipulate
// balances inside that window; the measurement is accounting, not defense.
func (v *Vault) Swap(ctx CallCtx, swapper, tokenIn, tokenOut common.Address, amountIn *big.Int, payload []byte) (*big.Int, error) {
	if err := v.requireManager(ctx.Caller); err != nil {
		return nil, err
	}

	// Approval is granted before the payload is even decoded, mirroring the
	// deployed contract's step order. The swapper is whitelisted by
	// convention only; no on-chain allowlist exists.
	if ok, ret := v.env.Call(tokenIn, packApprove(swapper, v.swapApproval), nil); !ok {
		return nil, clierr.New(clierr.CodeSwapFailed, fmt.Sprintf("approve swapper: %s", DecodeRevert(ret)))
	}

	balanceBefore, err := v.balanceOf(tokenOut)
	if err != nil {
		return nil, err
	}

	decoded, err := UnpackSwapPayload(payload)
	if err != nil {
		return nil, err
	}
	if crypto.Keccak256Hash(decoded.CallData) != decoded.Digest {
		return nil, clierr.New(clierr.CodeHashMismatch, "payload digest does not match call data")
	}
	if RecoverSigner(decoded.Digest, decoded.Signature) != v.trigger {
		return nil, clierr.New(clierr.CodeInvalidSignature, "payload signature does not recover to trigger")
	}

	ok, ret := v.env.Call(swapper, decoded.CallData, nil)
	if !ok {
		return nil, clierr.New(clierr.CodeSwapFailed, DecodeRevert(ret))
	}

	balanceAfter, err := v.balanceOf(tokenOut)
	if err != nil {
		return nil, err
	}
	amountOut := new(big.Int).Sub(balanceAfter, balanceBefore)
	v.env.Emit(SwapSuccess{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, AmountOut: amountOut})
	return amountOut, nil
}

// MultiSwap decodes each instruction independently and replays Swap for each,
// in order. The first failure aborts the whole batch with that element's
// error; the host ledger's transaction semantics make the abort atomic, so
// there is no partial-success mode.
func (v *Vault) MultiSwap(ctx CallCtx, instructions [][]byte) error {
	if err := v.requireManager(ctx.Caller); err != nil {
		return err
	}
	for _, raw := range instructions {
		in, err := UnpackSwapInstruction(raw)
		if err != nil {
			return err
		}
		if _, err := v.Swap(ctx, in.Swapper, in.TokenIn, in.TokenOut, in.AmountIn, in.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vault) balanceOf(token common.Address) (*big.Int, error) {
	ok, ret := v.env.StaticCall(token, packBalanceOf(v.address))
	if !ok {
		return nil, clierr.New(clierr.CodeSwapFailed, fmt.Sprintf("read balance: %s", DecodeRevert(ret)))
	}
	balance, ok2 := unpackBalance(ret)
	if !ok2 {
		return nil, clierr.New(clierr.CodeInternal, "malformed balanceOf return data")
	}
	return balance, nil
}
