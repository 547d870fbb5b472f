package vault

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Dvl-es/tradevault/internal/registry"
)

var (
	erc20ABI        = mustABI(registry.ERC20MinimalABI)
	poolABI         = mustABI(registry.AavePoolABI)
	dataProviderABI = mustABI(registry.AaveDataProviderABI)
	gatewayABI      = mustABI(registry.AaveGatewayABI)
	gmxRouterABI    = mustABI(registry.GmxRouterABI)
	gmxPositionABI  = mustABI(registry.GmxPositionRouterABI)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

func packApprove(spender common.Address, amount *big.Int) []byte {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		panic(err)
	}
	return data
}

func packBalanceOf(owner common.Address) []byte {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		panic(err)
	}
	return data
}

func unpackBalance(ret []byte) (*big.Int, bool) {
	out, err := erc20ABI.Unpack("balanceOf", ret)
	if err != nil || len(out) != 1 {
		return nil, false
	}
	balance, ok := out[0].(*big.Int)
	return balance, ok
}
