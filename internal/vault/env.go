package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Env is the vault's window onto the host ledger. Every external interaction
// (token approvals and balance reads, the raw swapper dispatch, lending-pool
// and margin-router calls) goes through it as ABI-encoded calldata, so the
// whole contract shares one call boundary and one revert-decoding path.
//
// Call and StaticCall return ok=false with the target's raw revert data when
// the callee fails; they never return a Go error. Atomicity across a failed
// entry point is the host ledger's job, not Env's.
type Env interface {
	Call(target common.Address, input []byte, value *big.Int) (ok bool, ret []byte)
	StaticCall(target common.Address, input []byte) (ok bool, ret []byte)
	Emit(ev Event)
}

// CallCtx carries the message context of an entry-point invocation.
type CallCtx struct {
	Caller common.Address
	Value  *big.Int
}

func (c CallCtx) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

// Event is an append-only log record consumed off-chain for accounting.
type Event interface {
	EventName() string
}

type SwapSuccess struct {
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (SwapSuccess) EventName() string { return "SwapSuccess" }

type ManagerAdded struct {
	Manager common.Address
}

func (ManagerAdded) EventName() string { return "ManagerAdded" }

type ManagerRemoved struct {
	Manager common.Address
}

func (ManagerRemoved) EventName() string { return "ManagerRemoved" }

type AaveSupply struct {
	Asset  common.Address
	Amount *big.Int
}

func (AaveSupply) EventName() string { return "AaveSupply" }

type AaveWithdraw struct {
	Asset  common.Address
	Amount *big.Int
}

func (AaveWithdraw) EventName() string { return "AaveWithdraw" }

type AaveBorrow struct {
	Asset  common.Address
	Amount *big.Int
}

func (AaveBorrow) EventName() string { return "AaveBorrow" }

type AaveRepay struct {
	Asset  common.Address
	Amount *big.Int
}

func (AaveRepay) EventName() string { return "AaveRepay" }
