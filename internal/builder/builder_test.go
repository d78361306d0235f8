package builder

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"

	"liquiditySniper/internal/dex"
	"liquiditySniper/internal/model"
)

var (
	router   = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	wrapped  = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	self     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stable   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	receiver = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func newTestBuilder(t *testing.T, recipients []common.Address) *Builder {
	t.Helper()
	b, err := New(Config{Router: router, WrappedNative: wrapped, Symbol: "BNB", Self: self, Recipients: recipients})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return b
}

func newTestDecoder(t *testing.T) *dex.CallDecoder {
	t.Helper()
	d, err := dex.NewCallDecoder("BNB")
	if err != nil {
		t.Fatalf("NewCallDecoder: %v", err)
	}
	return d
}

func TestBuyWithNativeCurrency(t *testing.T) {
	b := newTestBuilder(t, nil)
	payload, err := b.Buy(0, token, wrapped, big.NewInt(1000))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if payload.To != router || payload.Value.Int64() != 1000 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	call := newTestDecoder(t).Decode(payload.Data)
	if call.Kind != model.CallSwapExactETHForTokens {
		t.Fatalf("unexpected kind %s", call.Kind)
	}
	if len(call.Path) != 2 || call.Path[0] != wrapped || call.Path[1] != token || call.Recipient != self {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestBuyWithTokenRotatesRecipients(t *testing.T) {
	b := newTestBuilder(t, []common.Address{self, receiver})
	d := newTestDecoder(t)
	for round, want := range []common.Address{self, receiver, self} {
		payload, err := b.Buy(round, token, stable, big.NewInt(5))
		if err != nil {
			t.Fatalf("Buy: %v", err)
		}
		if payload.Value.Sign() != 0 {
			t.Fatalf("token buy must not carry value")
		}
		call := d.Decode(payload.Data)
		if call.Kind != model.CallSwapExactTokensForTokens || call.AmountIn.Int64() != 5 {
			t.Fatalf("unexpected call: %+v", call)
		}
		if call.Recipient != want {
			t.Fatalf("round %d: recipient %s want %s", round, call.Recipient.Hex(), want.Hex())
		}
	}
	if _, err := b.Buy(0, token, stable, big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestSellPayloads(t *testing.T) {
	b := newTestBuilder(t, []common.Address{receiver})
	d := newTestDecoder(t)

	payload, err := b.Sell(token, wrapped, big.NewInt(77))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	call := d.Decode(payload.Data)
	if call.Kind != model.CallSwapExactTokensForETH || call.AmountIn.Int64() != 77 || call.Recipient != self {
		t.Fatalf("unexpected native sell: %+v", call)
	}

	payload, err = b.Sell(token, stable, big.NewInt(77))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	call = d.Decode(payload.Data)
	if call.Kind != model.CallSwapExactTokensForTokens || call.Path[1] != stable {
		t.Fatalf("unexpected token sell: %+v", call)
	}
}

func TestApprove(t *testing.T) {
	b := newTestBuilder(t, nil)
	payload, err := b.Approve(token, router)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if payload.To != token {
		t.Fatalf("approve must target the token")
	}
	erc20, err := dex.ERC20ABI()
	if err != nil {
		t.Fatalf("ERC20ABI: %v", err)
	}
	args, err := erc20.Methods["approve"].Inputs.Unpack(payload.Data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if args[0].(common.Address) != router || args[1].(*big.Int).Cmp(math.MaxBig256) != 0 {
		t.Fatalf("unexpected approve args: %v", args)
	}
}

func TestSellAmount(t *testing.T) {
	balance := big.NewInt(1000)
	cases := []struct {
		name   string
		pct    string
		amount *big.Int
		want   int64
	}{
		{"everything", "0", nil, 1000},
		{"percentage", "25", nil, 250},
		{"fractional percentage", "12.5", nil, 125},
		{"fixed amount", "50", big.NewInt(300), 300},
		{"amount above balance", "0", big.NewInt(5000), 1000},
		{"hundred percent", "100", nil, 1000},
		{"rounds down", "33.33", nil, 333},
	}
	for _, tc := range cases {
		if got := SellAmount(balance, decimal.RequireFromString(tc.pct), tc.amount); got.Int64() != tc.want {
			t.Fatalf("%s: got %s want %d", tc.name, got, tc.want)
		}
	}
}
