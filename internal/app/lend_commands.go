package app

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Dvl-es/tradevault/internal/amount"
	clierr "github.com/Dvl-es/tradevault/internal/errors"
)

func (s *runtimeState) newAaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aave",
		Short: "Lending-market operations through the vault",
	}
	cmd.AddCommand(
		s.newAaveSupplyCommand(),
		s.newAaveWithdrawCommand(),
		s.newAaveBorrowCommand(),
		s.newAaveRepayCommand(),
		s.newAavePositionsCommand(),
		s.newAaveReferralCommand(),
	)
	return cmd
}

type lendFlags struct {
	asset      string
	baseUnits  string
	decAmount  string
	decimals   int32
	rateMode   int64
}

func (f *lendFlags) register(cmd *cobra.Command, withRateMode bool) {
	cmd.Flags().StringVar(&f.asset, "asset", "", "asset address")
	cmd.Flags().StringVar(&f.baseUnits, "amount", "", "amount in base units")
	cmd.Flags().StringVar(&f.decAmount, "amount-decimal", "", "amount in decimal form")
	cmd.Flags().Int32Var(&f.decimals, "decimals", amount.DefaultDecimals, "asset decimals for --amount-decimal")
	if withRateMode {
		cmd.Flags().Int64Var(&f.rateMode, "rate-mode", 2, "interest rate mode: 1 stable, 2 variable")
	}
	_ = cmd.MarkFlagRequired("asset")
}

func (f *lendFlags) resolve() (common.Address, *big.Int, *big.Int, error) {
	value, err := amount.Parse(f.baseUnits, f.decAmount, f.decimals)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	if f.rateMode != 0 && f.rateMode != 1 && f.rateMode != 2 {
		return common.Address{}, nil, nil, clierr.New(clierr.CodeUsage, "rate-mode must be 1 (stable) or 2 (variable)")
	}
	return common.HexToAddress(f.asset), value, big.NewInt(f.rateMode), nil
}

func (s *runtimeState) newAaveSupplyCommand() *cobra.Command {
	var flags lendFlags
	cmd := &cobra.Command{
		Use:   "supply",
		Short: "Supply an asset to the lending pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			asset, value, _, err := flags.resolve()
			if err != nil {
				return err
			}
			hash, err := interactor.AaveSupply(cmd.Context(), s.chainID(), asset, value)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (s *runtimeState) newAaveWithdrawCommand() *cobra.Command {
	var flags lendFlags
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw an asset from the lending pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			asset, value, _, err := flags.resolve()
			if err != nil {
				return err
			}
			hash, err := interactor.AaveWithdraw(cmd.Context(), s.chainID(), asset, value)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (s *runtimeState) newAaveBorrowCommand() *cobra.Command {
	var flags lendFlags
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Borrow an asset against the vault's collateral",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			asset, value, rateMode, err := flags.resolve()
			if err != nil {
				return err
			}
			hash, err := interactor.AaveBorrow(cmd.Context(), s.chainID(), asset, value, rateMode)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func (s *runtimeState) newAaveRepayCommand() *cobra.Command {
	var flags lendFlags
	cmd := &cobra.Command{
		Use:   "repay",
		Short: "Repay a borrow position",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			asset, value, rateMode, err := flags.resolve()
			if err != nil {
				return err
			}
			hash, err := interactor.AaveRepay(cmd.Context(), s.chainID(), asset, value, rateMode)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	flags.register(cmd, true)
	return cmd
}

type positionsResult struct {
	Chain     int64    `json:"chain_id"`
	Assets    []string `json:"assets"`
	BaseUnits []string `json:"base_units"`
	Decimal   []string `json:"decimal"`
}

func (s *runtimeState) newAavePositionsCommand() *cobra.Command {
	var (
		assetsCSV string
		decimals  int32
		allChains bool
	)
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Read the vault's lending position sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			assets := splitCSV(assetsCSV)
			if len(assets) == 0 {
				return clierr.New(clierr.CodeUsage, "at least one asset is required")
			}
			if allChains {
				byChain, err := interactor.AavePositionSizesAll(cmd.Context(), assets)
				if err != nil {
					return err
				}
				results := make([]positionsResult, 0, len(byChain))
				for chainID, sizes := range byChain {
					results = append(results, newPositionsResult(chainID, assets, sizes, decimals))
				}
				return s.render(results)
			}
			sizes, err := interactor.AavePositionSizes(cmd.Context(), s.chainID(), assets)
			if err != nil {
				return err
			}
			return s.render(newPositionsResult(s.chainID(), assets, sizes, decimals))
		},
	}
	cmd.Flags().StringVar(&assetsCSV, "assets", "", "comma-separated asset addresses (empty entry means the chain's USDC)")
	cmd.Flags().Int32Var(&decimals, "decimals", amount.DefaultDecimals, "decimals used for human-readable output")
	cmd.Flags().BoolVar(&allChains, "all-chains", false, "query every configured chain in parallel")
	return cmd
}

func newPositionsResult(chainID int64, assets []string, sizes []*big.Int, decimals int32) positionsResult {
	result := positionsResult{Chain: chainID, Assets: assets}
	for _, size := range sizes {
		result.BaseUnits = append(result.BaseUnits, size.String())
		result.Decimal = append(result.Decimal, amount.ToDecimal(size, decimals).String())
	}
	return result
}

func (s *runtimeState) newBalancesCommand() *cobra.Command {
	var (
		assetsCSV string
		decimals  int32
	)
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Read the vault's held token balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			assets := splitCSV(assetsCSV)
			if len(assets) == 0 {
				return clierr.New(clierr.CodeUsage, "at least one asset is required")
			}
			sizes, err := interactor.AssetSizes(cmd.Context(), s.chainID(), assets)
			if err != nil {
				return err
			}
			return s.render(newPositionsResult(s.chainID(), assets, sizes, decimals))
		},
	}
	cmd.Flags().StringVar(&assetsCSV, "assets", "", "comma-separated asset addresses (empty entry means the chain's USDC)")
	cmd.Flags().Int32Var(&decimals, "decimals", amount.DefaultDecimals, "decimals used for human-readable output")
	return cmd
}

func (s *runtimeState) newAaveReferralCommand() *cobra.Command {
	var code uint16
	cmd := &cobra.Command{
		Use:   "set-referral",
		Short: "Set the referral code attached to supply/borrow calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			hash, err := interactor.SetAaveReferralCode(cmd.Context(), s.chainID(), code)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	cmd.Flags().Uint16Var(&code, "code", 0, "referral code")
	return cmd
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
