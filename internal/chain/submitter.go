package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/Dvl-es/tradevault/internal/chain/signer"
	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/metrics"
)

// Client drives one chain's Trade vault. Chains are independent actors:
// each client owns its connection and its monotonic nonce counter, so
// submissions on one chain serialize while different chains run in parallel.
type Client struct {
	Name    string
	ChainID *big.Int
	Trade   common.Address
	USDC    common.Address
	Swapper common.Address

	eth    *ethclient.Client
	signer signer.Signer
	log    *zap.Logger

	gasMultiplier float64
	txTimeout     time.Duration
	pollInterval  time.Duration

	nonceMu   sync.Mutex
	nonceNext uint64
	nonceInit bool
}

// Submit signs and broadcasts one transaction against the chain. Nonce
// allocation is serialized per chain; a failed broadcast drops the cached
// counter so the next submission re-reads the pending nonce.
func (c *Client) Submit(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if value == nil {
		value = new(big.Int)
	}
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	if !c.nonceInit {
		pending, err := c.eth.PendingNonceAt(ctx, c.signer.Address())
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
		}
		c.nonceNext = pending
		c.nonceInit = true
	}
	nonce := c.nonceNext

	msg := ethereum.CallMsg{From: c.signer.Address(), To: &to, Value: value, Data: data}
	gasLimit, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * c.gasMultiplier)

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000) // 2 gwei fallback
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.ChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := c.signer.SignTx(c.ChainID, tx)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		c.nonceInit = false
		return nil, clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
	}
	c.nonceNext = nonce + 1

	metrics.IncSubmitted(c.Name)
	c.log.Info("transaction submitted",
		zap.String("chain", c.Name),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce))
	return signed, nil
}

// WaitMined polls for the transaction's receipt until the confirmation
// deadline. A timeout does NOT mean failure: the transaction may still be
// mined later, so callers must re-query state before retrying, or they risk
// a duplicate submission.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				metrics.IncConfirmed(c.Name)
				c.log.Info("transaction mined", zap.String("chain", c.Name), zap.String("tx", hash.Hex()))
				return nil
			}
			metrics.IncReverted(c.Name)
			return clierr.New(clierr.CodeUnavailable, "transaction reverted on-chain")
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			c.log.Warn("receipt retrieval failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}
		select {
		case <-waitCtx.Done():
			metrics.IncTimeout(c.Name)
			return clierr.Wrap(clierr.CodeTimeout, "confirmation not observed within deadline; final state unknown", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// call performs a read-only eth_call against the Trade contract.
func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "eth_call", err)
	}
	return out, nil
}

func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}
