package registry

// ABI fragments shared by the vault core and the off-chain client.

const (
	ERC20MinimalABI = `[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"transferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	AavePoolABI = `[
		{"name":"supply","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
		{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"borrow","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"interestRateMode","type":"uint256"},{"name":"referralCode","type":"uint16"},{"name":"onBehalfOf","type":"address"}],"outputs":[]},
		{"name":"repay","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"interestRateMode","type":"uint256"},{"name":"onBehalfOf","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	AaveDataProviderABI = `[
		{"name":"getUserReserveData","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],"outputs":[{"name":"currentATokenBalance","type":"uint256"},{"name":"currentStableDebt","type":"uint256"},{"name":"currentVariableDebt","type":"uint256"},{"name":"principalStableDebt","type":"uint256"},{"name":"scaledVariableDebt","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},{"name":"liquidityRate","type":"uint256"},{"name":"stableRateLastUpdated","type":"uint40"},{"name":"usageAsCollateralEnabled","type":"bool"}]}
	]`

	AaveGatewayABI = `[
		{"name":"repayETH","type":"function","stateMutability":"payable","inputs":[{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},{"name":"rateMode","type":"uint256"},{"name":"onBehalfOf","type":"address"}],"outputs":[]}
	]`

	GmxRouterABI = `[
		{"name":"approvePlugin","type":"function","stateMutability":"nonpayable","inputs":[{"name":"plugin","type":"address"}],"outputs":[]}
	]`

	GmxPositionRouterABI = `[
		{"name":"minExecutionFee","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`

	// TradeABI is the on-chain surface of the Trade vault. The off-chain
	// client packs calldata against it; the vault core in internal/vault is
	// the executable model of the same entry points.
	TradeABI = `[
		{"name":"swap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"swapper","type":"address"},{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"payload","type":"bytes"}],"outputs":[{"name":"amountOut","type":"uint256"}]},
		{"name":"multiSwap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"instructions","type":"bytes[]"}],"outputs":[]},
		{"name":"aaveSupply","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
		{"name":"aaveWithdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"aaveBorrow","type":"function","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"rateMode","type":"uint256"}],"outputs":[]},
		{"name":"aaveRepay","type":"function","stateMutability":"payable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"rateMode","type":"uint256"}],"outputs":[]},
		{"name":"setAaveReferralCode","type":"function","stateMutability":"nonpayable","inputs":[{"name":"referralCode","type":"uint16"}],"outputs":[]},
		{"name":"getAavePositionSizes","type":"function","stateMutability":"view","inputs":[{"name":"assets","type":"address[]"}],"outputs":[{"name":"","type":"uint256[]"}]},
		{"name":"getAssetsSizes","type":"function","stateMutability":"view","inputs":[{"name":"assets","type":"address[]"}],"outputs":[{"name":"","type":"uint256[]"}]},
		{"name":"setManager","type":"function","stateMutability":"nonpayable","inputs":[{"name":"manager","type":"address"},{"name":"enabled","type":"bool"}],"outputs":[]},
		{"name":"gmxApprovePlugin","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]},
		{"name":"gmxMinExecutionFee","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`
)
