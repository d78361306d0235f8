package detect

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/model"
)

var (
	router   = common.HexToAddress("0x10ed43c718714eb63d5aa57b78b54704e256024e")
	wrapped  = common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	self     = common.HexToAddress("0x5555555555555555555555555555555555555555")
	dev      = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	tokenA   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenC   = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	stranger = common.HexToAddress("0x9999999999999999999999999999999999999999")
	deadline = big.NewInt(1_900_000_000)
)

type fakeMarket struct {
	decimals  map[common.Address]uint8
	price     *big.Int
	liquidity map[common.Address]*big.Int
}

func (m *fakeMarket) Decimals(_ context.Context, token common.Address) (uint8, error) {
	d, ok := m.decimals[token]
	if !ok {
		return 0, errors.New("not a token")
	}
	return d, nil
}

func (m *fakeMarket) Price(context.Context, common.Address, common.Address) (*big.Int, error) {
	if m.price == nil {
		return nil, errors.New("no price")
	}
	return new(big.Int).Set(m.price), nil
}

func (m *fakeMarket) AmountsOut(_ context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if _, ok := m.liquidity[path[len(path)-1]]; !ok {
		return nil, dex.ErrNoPair
	}
	return []*big.Int{amountIn, big.NewInt(1)}, nil
}

func (m *fakeMarket) PoolLiquidity(_ context.Context, _ common.Address, liquidityToken common.Address) (*big.Int, error) {
	liq, ok := m.liquidity[liquidityToken]
	if !ok {
		return nil, dex.ErrNoPair
	}
	return new(big.Int).Set(liq), nil
}

type confirmed struct{ err error }

func (c confirmed) WaitConfirmed(context.Context, common.Hash) error { return c.err }

func newTestDecoder(t *testing.T) *dex.CallDecoder {
	t.Helper()
	decoder, err := dex.NewCallDecoder("ETH")
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder
}

func packRouter(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	parsed, err := dex.RouterABI("ETH")
	if err != nil {
		t.Fatalf("router abi: %v", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return data
}

func legacyTx(from common.Address, to common.Address, input []byte) *model.PendingTransaction {
	return &model.PendingTransaction{
		Hash:     common.BytesToHash(append([]byte{0x01}, input...)),
		From:     from,
		To:       &to,
		Input:    input,
		Value:    new(big.Int),
		GasPrice: big.NewInt(5_000_000_000),
	}
}

func feeMarketTx(from common.Address, to common.Address, input []byte) *model.PendingTransaction {
	tx := legacyTx(from, to, input)
	tx.GasPrice = nil
	tx.GasFeeCap = big.NewInt(30_000_000_000)
	tx.GasTipCap = big.NewInt(2_000_000_000)
	return tx
}

func baseContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		Self:                   self,
		Router:                 router,
		WrappedNative:          wrapped,
		PurchaseToken:          model.AddressPtr(tokenA),
		DevWallet:              model.AddressPtr(dev),
		GasMultiplier:          decimal.RequireFromString("1.5"),
		MinimumLiquidity:       big.NewInt(40),
		BalanceCheckMultiplier: decimal.NewFromInt(1),
		DevActionSelectors:     model.SelectorSet{{0xde, 0xad, 0xbe, 0xef}},
		FollowWallets:          []common.Address{stranger},
		AutoMagic:              AutoMagicOptions{LiquidityAdd: true, MethodID: true, Pinksale: true},
		Candidates: []LiquidityCandidate{
			{Token: tokenB, Minimum: big.NewInt(40), Maximum: big.NewInt(100)},
			{Token: wrapped, Minimum: big.NewInt(1), Maximum: big.NewInt(50)},
		},
		Decoder: newTestDecoder(t),
		Market: &fakeMarket{
			decimals:  map[common.Address]uint8{tokenA: 18},
			price:     big.NewInt(1e18),
			liquidity: map[common.Address]*big.Int{tokenB: big.NewInt(80)},
		},
		Confirmer: confirmed{},
	}
}

func allDetectors() []Detector {
	return []Detector{
		ListingAdd{}, RugPull{}, PercentageGain{}, DevAction{},
		FollowWallet{}, FollowWalletSell{}, Pinksale{}, AutoMagic{},
	}
}

func TestDetectorsIgnoreMalformedInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := [][]byte{nil, {0x01}, {0xe8, 0xe3, 0x37}}
	addLiquidity := packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)
	inputs = append(inputs, addLiquidity[:4+32*3], addLiquidity[:len(addLiquidity)-1])
	for i := 0; i < 64; i++ {
		buf := make([]byte, rng.Intn(300))
		rng.Read(buf)
		inputs = append(inputs, buf)
	}

	senders := []common.Address{dev, stranger, tokenC}
	targets := []common.Address{router, tokenA, tokenC}
	for _, input := range inputs {
		for _, from := range senders {
			for _, to := range targets {
				dc := baseContext(t)
				dc.BuyPrice = big.NewInt(1e18)
				dc.LiquidityToken = model.AddressPtr(tokenB)
				dc.PurchaseBalance = big.NewInt(1)
				for _, d := range allDetectors() {
					out := d.Detect(context.Background(), legacyTx(from, to, input), dc)
					if out.Verdict != nil {
						t.Fatalf("%s: verdict %+v for malformed input %x", d.Name(), out.Verdict, input)
					}
				}
			}
		}
	}
}

func TestGasFollowsFeeStyle(t *testing.T) {
	input := packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)

	dc := baseContext(t)
	out := ListingAdd{}.Detect(context.Background(), legacyTx(dev, router, input), dc)
	if out.Verdict == nil || out.Verdict.Gas == nil {
		t.Fatalf("expected legacy verdict with gas")
	}
	gas := out.Verdict.Gas
	if gas.Style != model.FeeLegacy || gas.GasFeeCap != nil || gas.GasTipCap != nil {
		t.Fatalf("legacy gas mixed with fee-market fields: %+v", gas)
	}
	if gas.GasPrice.Cmp(big.NewInt(7_500_000_000)) != 0 {
		t.Fatalf("gas price = %s, want 7500000000", gas.GasPrice)
	}

	out = ListingAdd{}.Detect(context.Background(), feeMarketTx(dev, router, input), dc)
	if out.Verdict == nil || out.Verdict.Gas == nil {
		t.Fatalf("expected fee-market verdict with gas")
	}
	gas = out.Verdict.Gas
	if gas.Style != model.FeeMarket || gas.GasPrice != nil {
		t.Fatalf("fee-market gas mixed with legacy fields: %+v", gas)
	}
	if gas.GasTipCap.Cmp(big.NewInt(3_000_000_000)) != 0 {
		t.Fatalf("tip = %s, want 3000000000", gas.GasTipCap)
	}
	if gas.GasFeeCap.Cmp(big.NewInt(30_000_000_000)) != 0 {
		t.Fatalf("fee cap = %s, want 30000000000", gas.GasFeeCap)
	}
}

func TestDetectorsAreIdempotent(t *testing.T) {
	txs := []*model.PendingTransaction{
		legacyTx(dev, router, packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)),
		legacyTx(dev, router, packRouter(t, "removeLiquidity", tokenA, tokenB, big.NewInt(10), big.NewInt(1), big.NewInt(1), dev, deadline)),
		legacyTx(dev, tokenA, []byte{0xde, 0xad, 0xbe, 0xef}),
		legacyTx(stranger, router, packRouter(t, "swapExactETHForTokens", big.NewInt(1), []common.Address{wrapped, tokenC}, stranger, deadline)),
	}
	for _, tx := range txs {
		dc := baseContext(t)
		dc.LiquidityToken = model.AddressPtr(tokenB)
		snapshot := *dc
		for _, d := range allDetectors() {
			first := d.Detect(context.Background(), tx, dc)
			second := d.Detect(context.Background(), tx, dc)
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("%s: repeated detection differs: %+v vs %+v", d.Name(), first, second)
			}
		}
		if !reflect.DeepEqual(snapshot, *dc) {
			t.Fatalf("detectors mutated the context")
		}
	}
}

func TestValidVerdictsReferenceAddresses(t *testing.T) {
	input := packRouter(t, "addLiquidity", tokenA, tokenB, big.NewInt(100), big.NewInt(50), big.NewInt(90), big.NewInt(1), self, deadline)
	dc := baseContext(t)
	for _, d := range []Detector{ListingAdd{}, AutoMagic{}} {
		out := d.Detect(context.Background(), legacyTx(dev, router, input), dc)
		v := out.Verdict
		if v == nil {
			t.Fatalf("%s: expected verdict", d.Name())
		}
		if !v.Valid || v.PurchaseToken == nil || v.LiquidityToken == nil {
			t.Fatalf("%s: incomplete verdict %+v", d.Name(), v)
		}
	}
}
