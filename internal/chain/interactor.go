package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dvl-es/tradevault/internal/chain/signer"
	"github.com/Dvl-es/tradevault/internal/config"
	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/registry"
	"github.com/Dvl-es/tradevault/internal/vault"
)

var tradeABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(registry.TradeABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Interactor is the off-chain orchestration client: it builds, signs and
// submits manager transactions against the Trade vault on every configured
// chain, and co-signs swap instructions with the trigger key.
type Interactor struct {
	signer  signer.Signer
	trigger *TriggerSigner
	chains  map[int64]*Client
	store   *Store
	log     *zap.Logger
}

func NewInteractor(ctx context.Context, settings config.Settings, txSigner signer.Signer, trigger *TriggerSigner, store *Store, logger *zap.Logger) (*Interactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chains := make(map[int64]*Client, len(settings.Chains))
	for _, cs := range settings.Chains {
		eth, err := ethclient.DialContext(ctx, cs.RPCURL)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc for "+cs.Name, err)
		}
		chains[cs.ChainID] = &Client{
			Name:          cs.Name,
			ChainID:       big.NewInt(cs.ChainID),
			Trade:         common.HexToAddress(cs.TradeAddress),
			USDC:          common.HexToAddress(cs.USDCAddress),
			Swapper:       common.HexToAddress(cs.SwapperAddress),
			eth:           eth,
			signer:        txSigner,
			log:           logger,
			gasMultiplier: settings.GasMultiplier,
			txTimeout:     settings.TxTimeout,
			pollInterval:  settings.PollInterval,
		}
		logger.Info("chain initialized",
			zap.String("chain", cs.Name),
			zap.Int64("chain_id", cs.ChainID),
			zap.String("trade", cs.TradeAddress))
	}
	return &Interactor{signer: txSigner, trigger: trigger, chains: chains, store: store, log: logger}, nil
}

func (i *Interactor) Chain(chainID int64) (*Client, error) {
	c, ok := i.chains[chainID]
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "chain is not configured")
	}
	return c, nil
}

func (i *Interactor) Trigger() *TriggerSigner { return i.trigger }

func (i *Interactor) Close() {
	for _, c := range i.chains {
		c.Close()
	}
}

// SwapRequest describes one swap to submit: the inner call data is what the
// trigger signs; everything else is advisory accounting input.
type SwapRequest struct {
	Swapper  common.Address
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	CallData []byte
}

// Swap submits a single dual-authorized swap.
func (i *Interactor) Swap(ctx context.Context, chainID int64, req SwapRequest) (common.Hash, error) {
	c, err := i.Chain(chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if i.trigger == nil {
		return common.Hash{}, clierr.New(clierr.CodeSigner, "trigger signer is not configured")
	}
	if req.Swapper == (common.Address{}) {
		req.Swapper = c.Swapper
	}
	payload, err := i.trigger.Authorize(req.CallData)
	if err != nil {
		return common.Hash{}, err
	}
	packedPayload, err := vault.PackSwapPayload(payload)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := tradeABI.Pack("swap", req.Swapper, req.TokenIn, req.TokenOut, req.AmountIn, packedPayload)
	if err != nil {
		return common.Hash{}, clierr.Wrap(clierr.CodeInternal, "pack swap calldata", err)
	}
	return i.submit(ctx, c, "swap", data, nil)
}

// MultiSwap packs the instruction batch and submits it as one transaction.
// Atomicity is the chain's: either every instruction lands or none do.
func (i *Interactor) MultiSwap(ctx context.Context, chainID int64, requests []SwapRequest) (common.Hash, error) {
	c, err := i.Chain(chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if i.trigger == nil {
		return common.Hash{}, clierr.New(clierr.CodeSigner, "trigger signer is not configured")
	}
	instructions := make([][]byte, len(requests))
	for idx, req := range requests {
		if req.Swapper == (common.Address{}) {
			req.Swapper = c.Swapper
		}
		packed, err := i.trigger.BuildInstruction(req.Swapper, req.TokenIn, req.TokenOut, req.AmountIn, req.CallData)
		if err != nil {
			return common.Hash{}, err
		}
		instructions[idx] = packed
	}
	data, err := tradeABI.Pack("multiSwap", instructions)
	if err != nil {
		return common.Hash{}, clierr.Wrap(clierr.CodeInternal, "pack multiSwap calldata", err)
	}
	return i.submit(ctx, c, "multiswap", data, nil)
}

func (i *Interactor) AaveSupply(ctx context.Context, chainID int64, asset common.Address, amount *big.Int) (common.Hash, error) {
	return i.submitTradeCall(ctx, chainID, "aave_supply", nil, "aaveSupply", asset, amount, uint16(0))
}

func (i *Interactor) AaveWithdraw(ctx context.Context, chainID int64, asset common.Address, amount *big.Int) (common.Hash, error) {
	return i.submitTradeCall(ctx, chainID, "aave_withdraw", nil, "aaveWithdraw", asset, amount)
}

func (i *Interactor) AaveBorrow(ctx context.Context, chainID int64, asset common.Address, amount, rateMode *big.Int) (common.Hash, error) {
	return i.submitTradeCall(ctx, chainID, "aave_borrow", nil, "aaveBorrow", asset, amount, rateMode)
}

// AaveRepay attaches value when repaying the native asset; the vault
// requires the attached value to equal the repay amount exactly.
func (i *Interactor) AaveRepay(ctx context.Context, chainID int64, asset common.Address, amount, rateMode *big.Int) (common.Hash, error) {
	var value *big.Int
	if registry.IsNativeAsset(asset) {
		value = amount
	}
	return i.submitTradeCall(ctx, chainID, "aave_repay", value, "aaveRepay", asset, amount, rateMode)
}

func (i *Interactor) SetAaveReferralCode(ctx context.Context, chainID int64, code uint16) (common.Hash, error) {
	return i.submitTradeCall(ctx, chainID, "set_referral", nil, "setAaveReferralCode", code)
}

func (i *Interactor) SetManager(ctx context.Context, chainID int64, manager common.Address, enabled bool) (common.Hash, error) {
	return i.submitTradeCall(ctx, chainID, "set_manager", nil, "setManager", manager, enabled)
}

func (i *Interactor) GmxApprovePlugin(ctx context.Context, chainID int64) (common.Hash, error) {
	return i.submitTradeCall(ctx, chainID, "gmx_approve_plugin", nil, "gmxApprovePlugin")
}

// AavePositionSizes reads the vault's lending positions for the given
// assets, order-preserving. An empty asset string resolves to the chain's
// USDC address, as the original accounting client did.
func (i *Interactor) AavePositionSizes(ctx context.Context, chainID int64, assets []string) ([]*big.Int, error) {
	return i.querySizes(ctx, chainID, "getAavePositionSizes", assets)
}

// AssetSizes reads the vault's held token balance for each asset, order
// preserving. Same resolution rules as AavePositionSizes.
func (i *Interactor) AssetSizes(ctx context.Context, chainID int64, assets []string) ([]*big.Int, error) {
	return i.querySizes(ctx, chainID, "getAssetsSizes", assets)
}

func (i *Interactor) querySizes(ctx context.Context, chainID int64, method string, assets []string) ([]*big.Int, error) {
	c, err := i.Chain(chainID)
	if err != nil {
		return nil, err
	}
	resolved := make([]common.Address, len(assets))
	for idx, a := range assets {
		if strings.TrimSpace(a) == "" {
			resolved[idx] = c.USDC
		} else {
			resolved[idx] = common.HexToAddress(a)
		}
	}
	data, err := tradeABI.Pack(method, resolved)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack "+method+" query", err)
	}
	out, err := c.call(ctx, c.Trade, data)
	if err != nil {
		return nil, err
	}
	values, err := tradeABI.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return nil, clierr.New(clierr.CodeInternal, "malformed "+method+" return data")
	}
	sizes, ok := values[0].([]*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeInternal, "malformed "+method+" return data")
	}
	return sizes, nil
}

// AavePositionSizesAll fans the position query out to every configured
// chain concurrently. Submission nonces stay serialized per chain; reads
// have no such constraint.
func (i *Interactor) AavePositionSizesAll(ctx context.Context, assets []string) (map[int64][]*big.Int, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make(map[int64][]*big.Int, len(i.chains))
	var mu sync.Mutex
	for chainID := range i.chains {
		g.Go(func() error {
			sizes, err := i.AavePositionSizes(gctx, chainID, assets)
			if err != nil {
				return err
			}
			mu.Lock()
			results[chainID] = sizes
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (i *Interactor) GmxMinExecutionFee(ctx context.Context, chainID int64) (*big.Int, error) {
	c, err := i.Chain(chainID)
	if err != nil {
		return nil, err
	}
	data, err := tradeABI.Pack("gmxMinExecutionFee")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack fee query", err)
	}
	out, err := c.call(ctx, c.Trade, data)
	if err != nil {
		return nil, err
	}
	values, err := tradeABI.Unpack("gmxMinExecutionFee", out)
	if err != nil || len(values) != 1 {
		return nil, clierr.New(clierr.CodeInternal, "malformed fee query return data")
	}
	fee, ok := values[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeInternal, "malformed fee query return data")
	}
	return fee, nil
}

func (i *Interactor) submitTradeCall(ctx context.Context, chainID int64, kind string, value *big.Int, method string, args ...interface{}) (common.Hash, error) {
	c, err := i.Chain(chainID)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := tradeABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, clierr.Wrap(clierr.CodeInternal, "pack "+method+" calldata", err)
	}
	return i.submit(ctx, c, kind, data, value)
}

func (i *Interactor) submit(ctx context.Context, c *Client, kind string, data []byte, value *big.Int) (common.Hash, error) {
	tx, err := c.Submit(ctx, c.Trade, data, value)
	if err != nil {
		return common.Hash{}, err
	}
	record := NewSubmission(c.Name, c.ChainID.Int64(), kind, tx.Hash(), data, value)
	if i.store != nil {
		if err := i.store.Save(record); err != nil {
			i.log.Warn("record submission", zap.Error(err))
		}
	}
	waitErr := c.WaitMined(ctx, tx.Hash())
	if i.store != nil {
		record.Status = statusFromWait(waitErr)
		if err := i.store.Save(record); err != nil {
			i.log.Warn("update submission", zap.Error(err))
		}
	}
	return tx.Hash(), waitErr
}

func statusFromWait(err error) string {
	switch {
	case err == nil:
		return SubmissionConfirmed
	case clierr.Is(err, clierr.CodeTimeout):
		// Unknown, not failed: the tx may still be mined after the deadline.
		return SubmissionUnknown
	default:
		return SubmissionFailed
	}
}
