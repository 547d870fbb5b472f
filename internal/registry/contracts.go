package registry

import "github.com/ethereum/go-ethereum/common"

// NativeAsset is the conventional sentinel address protocols use for the
// chain's native currency in place of an ERC20 address.
var NativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// IsNativeAsset reports whether asset denotes the native currency.
func IsNativeAsset(asset common.Address) bool {
	return asset == NativeAsset
}
