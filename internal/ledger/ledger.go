// Package ledger is an in-memory model of the host chain: contracts
// registered at addresses, native balances, an append-only event log, and
// snapshot/restore giving the serialized, all-or-nothing transaction
// semantics the vault core inherits on a real chain. It backs the vault's
// tests and dry runs; it is not a consensus engine.
package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dvl-es/tradevault/internal/vault"
)

// Call carries the context of one message dispatched to a contract.
type Call struct {
	Ledger *Ledger
	Caller common.Address
	Self   common.Address
	Value  *big.Int
	Input  []byte
	Static bool
}

// Forward dispatches a nested call with the receiving contract as caller.
func (c Call) Forward(target common.Address, input []byte, value *big.Int) (bool, []byte) {
	return c.Ledger.dispatch(c.Self, target, input, value, c.Static)
}

// Contract handles calls at a ledger address. A non-nil error reverts the
// call; its message is surfaced as standard Error(string) revert data.
type Contract interface {
	Run(call Call) ([]byte, error)
}

// ContractFunc adapts a function to the Contract interface.
type ContractFunc func(call Call) ([]byte, error)

func (f ContractFunc) Run(call Call) ([]byte, error) { return f(call) }

type snapshotter interface {
	snapshot() any
	restore(state any)
}

type Ledger struct {
	contracts map[common.Address]Contract
	native    map[common.Address]*big.Int
	events    []vault.Event
}

func New() *Ledger {
	return &Ledger{
		contracts: make(map[common.Address]Contract),
		native:    make(map[common.Address]*big.Int),
	}
}

// Register installs a contract at an address, replacing any previous one.
func (l *Ledger) Register(addr common.Address, c Contract) {
	l.contracts[addr] = c
}

// CreditNative adds native currency to an account.
func (l *Ledger) CreditNative(addr common.Address, amount *big.Int) {
	current, ok := l.native[addr]
	if !ok {
		current = new(big.Int)
	}
	l.native[addr] = new(big.Int).Add(current, amount)
}

// NativeBalance returns the account's native balance.
func (l *Ledger) NativeBalance(addr common.Address) *big.Int {
	if b, ok := l.native[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Events returns the accumulated event log.
func (l *Ledger) Events() []vault.Event { return l.events }

// Execute runs fn as one host-ledger transaction: if fn fails, every state
// mutation and emitted event from inside it is rolled back.
func (l *Ledger) Execute(fn func() error) error {
	snap := l.takeSnapshot()
	if err := fn(); err != nil {
		l.restoreSnapshot(snap)
		return err
	}
	return nil
}

type ledgerSnapshot struct {
	native    map[common.Address]*big.Int
	contracts map[common.Address]any
	events    int
}

func (l *Ledger) takeSnapshot() ledgerSnapshot {
	snap := ledgerSnapshot{
		native:    make(map[common.Address]*big.Int, len(l.native)),
		contracts: make(map[common.Address]any),
		events:    len(l.events),
	}
	for addr, b := range l.native {
		snap.native[addr] = new(big.Int).Set(b)
	}
	for addr, c := range l.contracts {
		if s, ok := c.(snapshotter); ok {
			snap.contracts[addr] = s.snapshot()
		}
	}
	return snap
}

func (l *Ledger) restoreSnapshot(snap ledgerSnapshot) {
	l.native = snap.native
	for addr, state := range snap.contracts {
		if s, ok := l.contracts[addr].(snapshotter); ok {
			s.restore(state)
		}
	}
	l.events = l.events[:snap.events]
}

func (l *Ledger) dispatch(caller, target common.Address, input []byte, value *big.Int, static bool) (bool, []byte) {
	contract, ok := l.contracts[target]
	if !ok {
		// Calling an empty address reverts without a reason.
		return false, nil
	}
	if value == nil {
		value = new(big.Int)
	}
	snap := l.takeSnapshot()
	if value.Sign() > 0 {
		if static {
			return false, RevertData("value transfer in static call")
		}
		held := l.NativeBalance(caller)
		if held.Cmp(value) < 0 {
			return false, RevertData("insufficient native balance")
		}
		l.native[caller] = new(big.Int).Sub(held, value)
		l.CreditNative(target, value)
	}
	out, err := contract.Run(Call{Ledger: l, Caller: caller, Self: target, Value: value, Input: input, Static: static})
	if err != nil {
		// A reverted call unwinds its own effects, value transfer included.
		l.restoreSnapshot(snap)
		return false, RevertData(err.Error())
	}
	return true, out
}

// EnvFor binds the ledger to one contract identity, yielding the vault.Env
// view where that identity is the caller of every outbound message.
func (l *Ledger) EnvFor(self common.Address) vault.Env {
	return &boundEnv{ledger: l, self: self}
}

type boundEnv struct {
	ledger *Ledger
	self   common.Address
}

func (e *boundEnv) Call(target common.Address, input []byte, value *big.Int) (bool, []byte) {
	return e.ledger.dispatch(e.self, target, input, value, false)
}

func (e *boundEnv) StaticCall(target common.Address, input []byte) (bool, []byte) {
	return e.ledger.dispatch(e.self, target, input, nil, true)
}

func (e *boundEnv) Emit(ev vault.Event) {
	e.ledger.events = append(e.ledger.events, ev)
}
