package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/Dvl-es/tradevault/internal/errors"
)

// SwapInstruction is the batch element consumed by MultiSwap: the swap
// arguments plus the trigger-signed payload authorizing the inner call.
type SwapInstruction struct {
	Swapper  common.Address
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	Payload  []byte
}

// SwapPayload proves trigger authorization for a specific inner call:
// Digest must equal keccak256(CallData) and Signature must recover to the
// vault's trigger identity.
type SwapPayload struct {
	Digest    common.Hash
	Signature []byte
	CallData  []byte
}

var (
	addressType = mustType("address")
	uint256Type = mustType("uint256")
	bytesType   = mustType("bytes")
	bytes32Type = mustType("bytes32")

	instructionArgs = abi.Arguments{
		{Type: addressType},
		{Type: addressType},
		{Type: addressType},
		{Type: uint256Type},
		{Type: bytesType},
	}
	payloadArgs = abi.Arguments{
		{Type: bytes32Type},
		{Type: bytesType},
		{Type: bytesType},
	}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func PackSwapInstruction(in SwapInstruction) ([]byte, error) {
	data, err := instructionArgs.Pack(in.Swapper, in.TokenIn, in.TokenOut, in.AmountIn, in.Payload)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack swap instruction", err)
	}
	return data, nil
}

func UnpackSwapInstruction(data []byte) (SwapInstruction, error) {
	values, err := instructionArgs.Unpack(data)
	if err != nil {
		return SwapInstruction{}, clierr.Wrap(clierr.CodeUsage, "decode swap instruction", err)
	}
	return SwapInstruction{
		Swapper:  values[0].(common.Address),
		TokenIn:  values[1].(common.Address),
		TokenOut: values[2].(common.Address),
		AmountIn: values[3].(*big.Int),
		Payload:  values[4].([]byte),
	}, nil
}

func PackSwapPayload(p SwapPayload) ([]byte, error) {
	data, err := payloadArgs.Pack([32]byte(p.Digest), p.Signature, p.CallData)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack swap payload", err)
	}
	return data, nil
}

func UnpackSwapPayload(data []byte) (SwapPayload, error) {
	values, err := payloadArgs.Unpack(data)
	if err != nil {
		return SwapPayload{}, clierr.Wrap(clierr.CodeUsage, "decode swap payload", err)
	}
	return SwapPayload{
		Digest:    common.Hash(values[0].([32]byte)),
		Signature: values[1].([]byte),
		CallData:  values[2].([]byte),
	}, nil
}
