package ledger

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Dvl-es/tradevault/internal/registry"
)

var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(registry.ERC20MinimalABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Token is an in-memory ERC20: balances, allowances, and the calldata
// dispatch the vault's Env-based token operations expect.
type Token struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewToken() *Token {
	return &Token{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Mint(owner common.Address, amount *big.Int) {
	t.credit(owner, amount)
}

func (t *Token) BalanceOf(owner common.Address) *big.Int {
	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	if inner, ok := t.allowances[owner]; ok {
		if a, ok := inner[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// Transfer moves tokens directly. Exported for contract fakes that act on
// tokens they hold references to instead of round-tripping calldata.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	return t.move(from, to, amount)
}

// TransferFrom moves tokens on behalf of owner, spending spender's allowance.
func (t *Token) TransferFrom(owner, spender, to common.Address, amount *big.Int) error {
	if err := t.spendAllowance(owner, spender, amount); err != nil {
		return err
	}
	return t.move(owner, to, amount)
}

func (t *Token) Run(call Call) ([]byte, error) {
	if len(call.Input) < 4 {
		return nil, errors.New("missing selector")
	}
	method, err := erc20ABI.MethodById(call.Input[:4])
	if err != nil {
		return nil, errors.New("unknown selector")
	}
	args, err := method.Inputs.Unpack(call.Input[4:])
	if err != nil {
		return nil, errors.New("malformed calldata")
	}
	if call.Static && method.StateMutability != "view" && method.StateMutability != "pure" {
		return nil, errors.New("state change in static call")
	}

	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(t.BalanceOf(args[0].(common.Address)))
	case "allowance":
		return method.Outputs.Pack(t.Allowance(args[0].(common.Address), args[1].(common.Address)))
	case "approve":
		t.setAllowance(call.Caller, args[0].(common.Address), args[1].(*big.Int))
		return method.Outputs.Pack(true)
	case "transfer":
		if err := t.move(call.Caller, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "transferFrom":
		from := args[0].(common.Address)
		to := args[1].(common.Address)
		amount := args[2].(*big.Int)
		if err := t.spendAllowance(from, call.Caller, amount); err != nil {
			return nil, err
		}
		if err := t.move(from, to, amount); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	}
	return nil, errors.New("unknown selector")
}

func (t *Token) setAllowance(owner, spender common.Address, amount *big.Int) {
	inner, ok := t.allowances[owner]
	if !ok {
		inner = make(map[common.Address]*big.Int)
		t.allowances[owner] = inner
	}
	inner[spender] = new(big.Int).Set(amount)
}

func (t *Token) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	allowed := t.Allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return errors.New("insufficient allowance")
	}
	t.setAllowance(owner, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	held := t.BalanceOf(from)
	if held.Cmp(amount) < 0 {
		return errors.New("transfer amount exceeds balance")
	}
	t.balances[from] = new(big.Int).Sub(held, amount)
	t.credit(to, amount)
	return nil
}

func (t *Token) credit(owner common.Address, amount *big.Int) {
	t.balances[owner] = new(big.Int).Add(t.BalanceOf(owner), amount)
}

type tokenState struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func (t *Token) snapshot() any {
	state := tokenState{
		balances:   make(map[common.Address]*big.Int, len(t.balances)),
		allowances: make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
	}
	for addr, b := range t.balances {
		state.balances[addr] = new(big.Int).Set(b)
	}
	for owner, inner := range t.allowances {
		copied := make(map[common.Address]*big.Int, len(inner))
		for spender, a := range inner {
			copied[spender] = new(big.Int).Set(a)
		}
		state.allowances[owner] = copied
	}
	return state
}

func (t *Token) restore(state any) {
	s := state.(tokenState)
	t.balances = s.balances
	t.allowances = s.allowances
}
