package quote

import (
	"context"
	"encoding/hex"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dvl-es/tradevault/internal/cache"
	"github.com/Dvl-es/tradevault/internal/httpx"
)

var (
	testTokenIn  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	testTokenOut = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testVault    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testRouter   = common.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582")
)

func testRequest() Request {
	return Request{ChainID: 42161, TokenIn: testTokenIn, TokenOut: testTokenOut, AmountIn: big.NewInt(1000000)}
}

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, "quotes.db"), filepath.Join(dir, "quotes.lock"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEstimateFetchesAndCaches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if !strings.Contains(r.URL.Path, "/swap/v6.0/42161/quote") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("src"); got != testTokenIn.Hex() {
			t.Errorf("src = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"dstAmount":"987654"}`))
	}))
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL, "key", newTestCache(t))
	est, err := client.Estimate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.AmountOut.Cmp(big.NewInt(987654)) != 0 {
		t.Fatalf("amount out = %s", est.AmountOut)
	}
	if est.Cached {
		t.Fatal("first fetch must not be a cache hit")
	}

	// The second call within the TTL must come from the cache.
	est, err = client.Estimate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("cached estimate: %v", err)
	}
	if !est.Cached {
		t.Fatal("expected a cache hit")
	}
	if calls != 1 {
		t.Fatalf("aggregator calls = %d, want 1", calls)
	}
}

func TestEstimateWithoutCache(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"dstAmount":"5"}`))
	}))
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL, "", nil)
	for i := 0; i < 2; i++ {
		if _, err := client.Estimate(context.Background(), testRequest()); err != nil {
			t.Fatalf("estimate %d: %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("aggregator calls = %d, want 2 without a cache", calls)
	}
}

func TestEstimateMalformedAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dstAmount":""}`))
	}))
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL, "", nil)
	if _, err := client.Estimate(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for missing destination amount")
	}
}

func TestSwapCalldata(t *testing.T) {
	wantData := []byte{0x12, 0x34, 0x56}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/swap/v6.0/42161/swap") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from") != testVault.Hex() {
			t.Errorf("from = %q", q.Get("from"))
		}
		if q.Get("slippage") != "0.5" {
			t.Errorf("slippage = %q", q.Get("slippage"))
		}
		if q.Get("disableEstimate") != "true" {
			t.Error("disableEstimate must be set")
		}
		_, _ = w.Write([]byte(`{"dstAmount":"990000","tx":{"to":"` +
			testRouter.Hex() + `","data":"0x` + hex.EncodeToString(wantData) + `"}}`))
	}))
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL, "", nil)
	cd, err := client.SwapCalldata(context.Background(), testRequest(), testVault, 0.5)
	if err != nil {
		t.Fatalf("swap calldata: %v", err)
	}
	if cd.Router != testRouter {
		t.Fatalf("router = %s", cd.Router.Hex())
	}
	if string(cd.Data) != string(wantData) {
		t.Fatalf("data = %x", cd.Data)
	}
	if cd.AmountOut.Cmp(big.NewInt(990000)) != 0 {
		t.Fatalf("amount out = %s", cd.AmountOut)
	}
}

func TestSwapCalldataMissingTx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dstAmount":"1"}`))
	}))
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL, "", nil)
	if _, err := client.SwapCalldata(context.Background(), testRequest(), testVault, 1); err == nil {
		t.Fatal("expected error for response without transaction")
	}
}
