package market

import (
	"errors"
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/uuid"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

func newTestMap(t *testing.T) *Map {
	t.Helper()
	ov := storage.New(dbm.NewMemDB()).Snapshot().BeginTx()
	return New(ov)
}

func TestCreateRejectsDuplicateTicker(t *testing.T) {
	m := newTestMap(t)
	mkt := Market{Ticker: "ETH/USD", TickSize: big.NewInt(1), LotSize: big.NewInt(1)}
	if err := m.Create(mkt); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := m.Create(mkt); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdateRejectsUnknownTicker(t *testing.T) {
	m := newTestMap(t)
	if err := m.Update(Market{Ticker: "ETH/USD", TickSize: big.NewInt(1), LotSize: big.NewInt(1)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTickersPreservesInsertionOrder(t *testing.T) {
	m := newTestMap(t)
	for _, ticker := range []string{"ETH/USD", "BTC/USD", "SOL/USD"} {
		if err := m.Create(Market{Ticker: ticker, TickSize: big.NewInt(1), LotSize: big.NewInt(1)}); err != nil {
			t.Fatalf("Create(%s): %v", ticker, err)
		}
	}
	got, err := m.Tickers()
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	want := []string{"ETH/USD", "BTC/USD", "SOL/USD"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestQuantizeRejectsNonMultiples(t *testing.T) {
	mkt := Market{Ticker: "ETH/USD", TickSize: big.NewInt(5), LotSize: big.NewInt(2)}
	if err := Quantize(mkt, big.NewInt(12), big.NewInt(4)); !errors.Is(err, ErrQuantizePrice) {
		t.Fatalf("expected ErrQuantizePrice, got %v", err)
	}
	if err := Quantize(mkt, big.NewInt(10), big.NewInt(3)); !errors.Is(err, ErrQuantizeQuantity) {
		t.Fatalf("expected ErrQuantizeQuantity, got %v", err)
	}
	if err := Quantize(mkt, big.NewInt(10), big.NewInt(4)); err != nil {
		t.Fatalf("expected valid quantization to pass, got %v", err)
	}
}

func newBook(t *testing.T) *Book {
	t.Helper()
	ov := storage.New(dbm.NewMemDB()).Snapshot().BeginTx()
	return NewBook(ov)
}

func TestCreateOrderMatchesRestingOrder(t *testing.T) {
	b := newBook(t)
	var buyer, seller address.Address
	buyer[0], seller[0] = 1, 2

	sellSeq, err := b.NextSeq()
	if err != nil {
		t.Fatalf("NextSeq: %v", err)
	}
	sellOrder := Order{
		ID: uuid.New(), Owner: seller, Market: "ETH/USD", Side: tx.Sell, Kind: tx.Limit,
		Price: big.NewInt(100), Quantity: big.NewInt(10), Filled: big.NewInt(0),
		TimeInForce: tx.GTC, Seq: sellSeq,
	}
	if _, err := b.CreateOrder(sellOrder); err != nil {
		t.Fatalf("CreateOrder(sell): %v", err)
	}

	buySeq, err := b.NextSeq()
	if err != nil {
		t.Fatalf("NextSeq: %v", err)
	}
	buyOrder := Order{
		ID: uuid.New(), Owner: buyer, Market: "ETH/USD", Side: tx.Buy, Kind: tx.Limit,
		Price: big.NewInt(100), Quantity: big.NewInt(4), Filled: big.NewInt(0),
		TimeInForce: tx.GTC, Seq: buySeq,
	}
	res, err := b.CreateOrder(buyOrder)
	if err != nil {
		t.Fatalf("CreateOrder(buy): %v", err)
	}
	if res.Rejected {
		t.Fatalf("expected the crossing buy order to be accepted")
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected exactly one trade, got %d", len(res.Trades))
	}
	if res.Trades[0].Qty.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("trade qty = %s, want 4", res.Trades[0].Qty)
	}

	resting, err := b.RestingOrders("ETH/USD", tx.Sell)
	if err != nil {
		t.Fatalf("RestingOrders: %v", err)
	}
	if len(resting) != 1 || resting[0].Filled.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("expected the resting sell order partially filled by 4, got %+v", resting)
	}
}

func TestCreateOrderFillOrKillRejectsWithoutEnoughLiquidity(t *testing.T) {
	b := newBook(t)
	var buyer address.Address
	buyer[0] = 1

	seq, err := b.NextSeq()
	if err != nil {
		t.Fatalf("NextSeq: %v", err)
	}
	order := Order{
		ID: uuid.New(), Owner: buyer, Market: "ETH/USD", Side: tx.Buy, Kind: tx.Limit,
		Price: big.NewInt(100), Quantity: big.NewInt(10), Filled: big.NewInt(0),
		TimeInForce: tx.FOK, Seq: seq,
	}
	res, err := b.CreateOrder(order)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !res.Rejected {
		t.Fatalf("expected fill-or-kill order with no resting liquidity to be rejected")
	}
}

func TestCancelRejectsNonOwner(t *testing.T) {
	b := newBook(t)
	var owner, other address.Address
	owner[0], other[0] = 1, 2

	seq, err := b.NextSeq()
	if err != nil {
		t.Fatalf("NextSeq: %v", err)
	}
	order := Order{
		ID: uuid.New(), Owner: owner, Market: "ETH/USD", Side: tx.Sell, Kind: tx.Limit,
		Price: big.NewInt(100), Quantity: big.NewInt(10), Filled: big.NewInt(0),
		TimeInForce: tx.GTC, Seq: seq,
	}
	if _, err := b.CreateOrder(order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if err := b.Cancel(other, order.ID); err != ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := b.Cancel(owner, order.ID); err != nil {
		t.Fatalf("Cancel by owner: %v", err)
	}
	if _, err := b.GetOrder(order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order removed after cancel, got %v", err)
	}
}
