package app

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Dvl-es/tradevault/internal/chain"
	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/quote"
)

type swapResult struct {
	Chain  int64  `json:"chain_id"`
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var (
		swapper  string
		tokenIn  string
		tokenOut string
		amountIn string
		callData string
		slippage float64
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Submit one dual-authorized swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			var req chain.SwapRequest
			if strings.TrimSpace(callData) == "" {
				// No hand-supplied calldata: build the swap from the
				// aggregator, executed on behalf of the vault.
				req, err = s.aggregatorSwapRequest(cmd, swapper, tokenIn, tokenOut, amountIn, slippage)
			} else {
				req, err = buildSwapRequest(swapper, tokenIn, tokenOut, amountIn, callData)
			}
			if err != nil {
				return err
			}
			hash, err := interactor.Swap(cmd.Context(), s.chainID(), req)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	cmd.Flags().StringVar(&swapper, "swapper", "", "swapper contract address (defaults to the chain's configured swapper)")
	cmd.Flags().StringVar(&tokenIn, "token-in", "", "token sold by the vault")
	cmd.Flags().StringVar(&tokenOut, "token-out", "", "token bought by the vault")
	cmd.Flags().StringVar(&amountIn, "amount-in", "0", "advisory input amount in base units")
	cmd.Flags().StringVar(&callData, "calldata", "", "hex inner call data for the swapper (fetched from the aggregator when omitted)")
	cmd.Flags().Float64Var(&slippage, "slippage", 1, "slippage tolerance percent for aggregator-built swaps")
	_ = cmd.MarkFlagRequired("token-in")
	_ = cmd.MarkFlagRequired("token-out")
	return cmd
}

// aggregatorSwapRequest fetches router calldata for the swap and, unless a
// swapper was named explicitly, targets the aggregator's router.
func (s *runtimeState) aggregatorSwapRequest(cmd *cobra.Command, swapper, tokenIn, tokenOut, amountIn string, slippage float64) (chain.SwapRequest, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(amountIn), 10)
	if !ok || amount.Sign() <= 0 {
		return chain.SwapRequest{}, clierr.New(clierr.CodeUsage, "amount-in must be positive when calldata is fetched from the aggregator")
	}
	settings, err := s.settings.Chain(s.chainID())
	if err != nil {
		return chain.SwapRequest{}, clierr.Wrap(clierr.CodeUsage, "resolve chain", err)
	}
	cd, err := s.ensureQuotes().SwapCalldata(cmd.Context(), quote.Request{
		ChainID:  settings.ChainID,
		TokenIn:  common.HexToAddress(tokenIn),
		TokenOut: common.HexToAddress(tokenOut),
		AmountIn: amount,
	}, common.HexToAddress(settings.TradeAddress), slippage)
	if err != nil {
		return chain.SwapRequest{}, err
	}
	target := common.HexToAddress(swapper)
	if target == (common.Address{}) {
		target = cd.Router
	}
	return chain.SwapRequest{
		Swapper:  target,
		TokenIn:  common.HexToAddress(tokenIn),
		TokenOut: common.HexToAddress(tokenOut),
		AmountIn: amount,
		CallData: cd.Data,
	}, nil
}

type quoteResult struct {
	Chain     int64  `json:"chain_id"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Cached    bool   `json:"cached"`
	AgeMillis int64  `json:"age_ms,omitempty"`
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var (
		tokenIn  string
		tokenOut string
		amountIn string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch the aggregator's expected output for a swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, ok := new(big.Int).SetString(strings.TrimSpace(amountIn), 10)
			if !ok || amount.Sign() <= 0 {
				return clierr.New(clierr.CodeUsage, "amount-in must be a positive integer string")
			}
			settings, err := s.settings.Chain(s.chainID())
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "resolve chain", err)
			}
			est, err := s.ensureQuotes().Estimate(cmd.Context(), quote.Request{
				ChainID:  settings.ChainID,
				TokenIn:  common.HexToAddress(tokenIn),
				TokenOut: common.HexToAddress(tokenOut),
				AmountIn: amount,
			})
			if err != nil {
				return err
			}
			return s.render(quoteResult{
				Chain:     settings.ChainID,
				TokenIn:   tokenIn,
				TokenOut:  tokenOut,
				AmountIn:  amount.String(),
				AmountOut: est.AmountOut.String(),
				Cached:    est.Cached,
				AgeMillis: est.Age.Milliseconds(),
			})
		},
	}
	cmd.Flags().StringVar(&tokenIn, "token-in", "", "token sold by the vault")
	cmd.Flags().StringVar(&tokenOut, "token-out", "", "token bought by the vault")
	cmd.Flags().StringVar(&amountIn, "amount-in", "", "input amount in base units")
	_ = cmd.MarkFlagRequired("token-in")
	_ = cmd.MarkFlagRequired("token-out")
	_ = cmd.MarkFlagRequired("amount-in")
	return cmd
}

type multiSwapFileEntry struct {
	Swapper  string `json:"swapper"`
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	AmountIn string `json:"amount_in"`
	CallData string `json:"calldata"`
}

func (s *runtimeState) newMultiSwapCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "multiswap",
		Short: "Submit a batch of swaps as one atomic transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			buf, err := os.ReadFile(file)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "read instruction file", err)
			}
			var entries []multiSwapFileEntry
			if err := json.Unmarshal(buf, &entries); err != nil {
				return clierr.Wrap(clierr.CodeUsage, "parse instruction file", err)
			}
			if len(entries) == 0 {
				return clierr.New(clierr.CodeUsage, "instruction file is empty")
			}
			requests := make([]chain.SwapRequest, len(entries))
			for i, e := range entries {
				req, err := buildSwapRequest(e.Swapper, e.TokenIn, e.TokenOut, e.AmountIn, e.CallData)
				if err != nil {
					return err
				}
				requests[i] = req
			}
			hash, err := interactor.MultiSwap(cmd.Context(), s.chainID(), requests)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with the swap instruction batch")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildSwapRequest(swapper, tokenIn, tokenOut, amountIn, callData string) (chain.SwapRequest, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(amountIn), 10)
	if !ok || amount.Sign() < 0 {
		return chain.SwapRequest{}, clierr.New(clierr.CodeUsage, "amount-in must be a non-negative integer string")
	}
	data, err := decodeHex(callData)
	if err != nil {
		return chain.SwapRequest{}, clierr.Wrap(clierr.CodeUsage, "decode calldata", err)
	}
	if len(data) == 0 {
		return chain.SwapRequest{}, clierr.New(clierr.CodeUsage, "calldata is required")
	}
	return chain.SwapRequest{
		Swapper:  common.HexToAddress(swapper),
		TokenIn:  common.HexToAddress(tokenIn),
		TokenOut: common.HexToAddress(tokenOut),
		AmountIn: amount,
		CallData: data,
	}, nil
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimSpace(v)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	return hex.DecodeString(clean)
}
