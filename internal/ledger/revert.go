package ledger

import "github.com/ethereum/go-ethereum/accounts/abi"

// errorStringSelector is the 4-byte selector of Error(string).
var errorStringSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

var stringArgs = func() abi.Arguments {
	t, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// RevertData encodes a reason as standard Error(string) revert data. An
// empty reason yields nil, modeling a silent revert.
func RevertData(reason string) []byte {
	if reason == "" {
		return nil
	}
	encoded, err := stringArgs.Pack(reason)
	if err != nil {
		return nil
	}
	return append(append([]byte{}, errorStringSelector...), encoded...)
}
