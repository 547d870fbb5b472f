// Package quote talks to a 1inch-style swap aggregator. It serves two
// needs of the orchestrator: price estimates for operators deciding whether
// to trade, and ready-made router calldata for the swap entry point when no
// calldata is supplied by hand.
package quote

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dvl-es/tradevault/internal/cache"
	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/httpx"
)

const (
	DefaultBaseURL = "https://api.1inch.dev"
	EnvAPIKey      = "TRADEVAULT_QUOTE_API_KEY"

	// Quotes drift with the market; anything older than this is stale.
	estimateTTL = 15 * time.Second
)

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	cache   *cache.Store
}

// New builds an aggregator client. cacheStore may be nil to disable the
// estimate cache.
func New(httpClient *httpx.Client, baseURL, apiKey string, cacheStore *cache.Store) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, cache: cacheStore}
}

type Request struct {
	ChainID  int64
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
}

// Estimate is the aggregator's expected output for a swap.
type Estimate struct {
	AmountOut *big.Int
	Cached    bool
	Age       time.Duration
}

// Calldata is an executable swap: the router to call and the bytes to send.
// The router address is what the vault knows as the swapper.
type Calldata struct {
	Router    common.Address
	Data      []byte
	AmountOut *big.Int
}

type quoteResponse struct {
	DstAmount string `json:"dstAmount"`
}

type swapResponse struct {
	DstAmount string `json:"dstAmount"`
	Tx        struct {
		To   string `json:"to"`
		Data string `json:"data"`
	} `json:"tx"`
}

// Estimate returns the expected tokenOut amount for req. Fresh cache hits
// short-circuit the aggregator; on aggregator failure a stale hit is
// returned rather than nothing.
func (c *Client) Estimate(ctx context.Context, req Request) (Estimate, error) {
	key := fmt.Sprintf("quote:%d:%s:%s:%s", req.ChainID, req.TokenIn.Hex(), req.TokenOut.Hex(), req.AmountIn)
	var stale *Estimate
	if c.cache != nil {
		if entry, err := c.cache.Get(key); err == nil && entry.Hit {
			if out, ok := new(big.Int).SetString(string(entry.Value), 10); ok {
				est := Estimate{AmountOut: out, Cached: true, Age: entry.Age}
				if entry.Fresh {
					return est, nil
				}
				stale = &est
			}
		}
	}

	vals := url.Values{}
	vals.Set("src", req.TokenIn.Hex())
	vals.Set("dst", req.TokenOut.Hex())
	vals.Set("amount", req.AmountIn.String())

	var resp quoteResponse
	endpoint := fmt.Sprintf("%s/swap/v6.0/%d/quote?%s", c.baseURL, req.ChainID, vals.Encode())
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		if stale != nil {
			return *stale, nil
		}
		return Estimate{}, err
	}
	out, ok := new(big.Int).SetString(resp.DstAmount, 10)
	if !ok {
		return Estimate{}, clierr.New(clierr.CodeUnavailable, "aggregator quote missing destination amount")
	}
	if c.cache != nil {
		_ = c.cache.Set(key, []byte(out.String()), estimateTTL)
	}
	return Estimate{AmountOut: out}, nil
}

// SwapCalldata fetches executable router calldata for req on behalf of the
// vault. Never cached: the calldata embeds market state and expiry.
func (c *Client) SwapCalldata(ctx context.Context, req Request, vault common.Address, slippagePct float64) (Calldata, error) {
	vals := url.Values{}
	vals.Set("src", req.TokenIn.Hex())
	vals.Set("dst", req.TokenOut.Hex())
	vals.Set("amount", req.AmountIn.String())
	vals.Set("from", vault.Hex())
	vals.Set("slippage", fmt.Sprintf("%g", slippagePct))
	vals.Set("disableEstimate", "true")

	var resp swapResponse
	endpoint := fmt.Sprintf("%s/swap/v6.0/%d/swap?%s", c.baseURL, req.ChainID, vals.Encode())
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return Calldata{}, err
	}
	if resp.Tx.To == "" || resp.Tx.Data == "" {
		return Calldata{}, clierr.New(clierr.CodeUnavailable, "aggregator swap response missing transaction")
	}
	data, err := hex.DecodeString(strings.TrimPrefix(resp.Tx.Data, "0x"))
	if err != nil {
		return Calldata{}, clierr.Wrap(clierr.CodeUnavailable, "decode aggregator calldata", err)
	}
	out := new(big.Int)
	if resp.DstAmount != "" {
		if v, ok := new(big.Int).SetString(resp.DstAmount, 10); ok {
			out = v
		}
	}
	return Calldata{
		Router:    common.HexToAddress(resp.Tx.To),
		Data:      data,
		AmountOut: out,
	}, nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}
