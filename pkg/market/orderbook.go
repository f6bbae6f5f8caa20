// Copyright 2025 Astria Sequencer Contributors
//
// Limit order book and price-time-priority matching engine (C8, §4.5).
// The book is modelled as a price-ordered tree of per-price FIFO queues
// plus an id-indexed lookup (§9 design note), realized here as sorted KV
// key ranges: admission sequence comes from a strictly increasing
// persisted counter, never wall-clock (§4.5 determinism rule).

package market

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
	"github.com/google/uuid"
)

var (
	// ErrNotOwner is CancelOrder's authority rejection.
	ErrNotOwner = errors.New("market: signer does not own this order")

	// ErrOrderNotFound is returned when an order ID has no resting entry.
	ErrOrderNotFound = errors.New("market: order not found")

	// ErrQuantizePrice / ErrQuantizeQuantity mark a nonzero remainder
	// against tick_size/lot_size on order admission (§3, §4.5 step 2).
	ErrQuantizePrice    = errors.New("market: price is not a multiple of the market's tick size")
	ErrQuantizeQuantity = errors.New("market: quantity is not a multiple of the market's lot size")
)

// MaxPrice is the sentinel used for a buy-side market order: it crosses
// against every resting ask regardless of price (§4.5 step 6, "price =
// ±∞"). A price of zero is the equivalent sentinel for sell-side market
// orders.
var MaxPrice = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Order is a resting or incoming order (§3).
type Order struct {
	ID          uuid.UUID
	Owner       address.Address
	Market      string
	Side        tx.OrderSide
	Kind        tx.OrderKind
	Price       *big.Int
	Quantity    *big.Int
	Filled      *big.Int
	TimeInForce tx.TimeInForce
	Seq         uint64
}

type encodedOrder struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Market      string `json:"market"`
	Side        string `json:"side"`
	Kind        string `json:"kind"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Filled      string `json:"filled"`
	TimeInForce string `json:"time_in_force"`
	Seq         uint64 `json:"seq"`
}

func encodeOrder(o Order) ([]byte, error) {
	return json.Marshal(encodedOrder{
		ID: o.ID.String(), Owner: fmt.Sprintf("%x", o.Owner[:]), Market: o.Market,
		Side: string(o.Side), Kind: string(o.Kind), Price: o.Price.String(),
		Quantity: o.Quantity.String(), Filled: o.Filled.String(),
		TimeInForce: string(o.TimeInForce), Seq: o.Seq,
	})
}

func decodeOrder(b []byte) (Order, error) {
	var enc encodedOrder
	if err := json.Unmarshal(b, &enc); err != nil {
		return Order{}, fmt.Errorf("market: %w: %v", storage.ErrCorrupted, err)
	}
	id, err := uuid.Parse(enc.ID)
	if err != nil {
		return Order{}, fmt.Errorf("market: %w: bad order id", storage.ErrCorrupted)
	}
	ownerBytes, err := hexDecode(enc.Owner)
	if err != nil {
		return Order{}, err
	}
	owner, err := address.FromBytes(ownerBytes)
	if err != nil {
		return Order{}, err
	}
	price, ok := new(big.Int).SetString(enc.Price, 10)
	if !ok {
		return Order{}, fmt.Errorf("market: %w: bad price", storage.ErrCorrupted)
	}
	qty, ok := new(big.Int).SetString(enc.Quantity, 10)
	if !ok {
		return Order{}, fmt.Errorf("market: %w: bad quantity", storage.ErrCorrupted)
	}
	filled, ok := new(big.Int).SetString(enc.Filled, 10)
	if !ok {
		return Order{}, fmt.Errorf("market: %w: bad filled", storage.ErrCorrupted)
	}
	return Order{
		ID: id, Owner: owner, Market: enc.Market, Side: tx.OrderSide(enc.Side),
		Kind: tx.OrderKind(enc.Kind), Price: price, Quantity: qty, Filled: filled,
		TimeInForce: tx.TimeInForce(enc.TimeInForce), Seq: enc.Seq,
	}, nil
}

func hexDecode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("market: %w: %v", storage.ErrCorrupted, err)
	}
	return b, nil
}

const priceKeyWidth = 32

func priceKey(side tx.OrderSide, price *big.Int) []byte {
	buf := make([]byte, priceKeyWidth)
	pb := price.Bytes()
	copy(buf[priceKeyWidth-len(pb):], pb)
	if side == tx.Buy {
		// Bids sort descending: invert so ascending key order yields
		// highest-price-first (§4.5).
		for i := range buf {
			buf[i] = ^buf[i]
		}
	}
	return buf
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func bookKey(ticker string, side tx.OrderSide, price *big.Int, seq uint64, id uuid.UUID) []byte {
	return storage.Keyf("market/book/%s/%s/%x/%x/%s", ticker, side, priceKey(side, price), seqKey(seq), id.String())
}

func bookPrefix(ticker string, side tx.OrderSide) []byte {
	return storage.Keyf("market/book/%s/%s/", ticker, side)
}

func orderIndexKey(id uuid.UUID) []byte {
	return storage.Keyf("market/order/%s", id.String())
}

func ownerIndexKey(owner address.Address, id uuid.UUID) []byte {
	return storage.Keyf("market/owner/%x/%s", owner[:], id.String())
}

var seqCounterKey = storage.Keyf("market/seq")

// Book reads and writes order-book state against a transactional
// overlay.
type Book struct {
	ov *storage.Overlay
}

// NewBook wraps an overlay with order-book accessors.
func NewBook(ov *storage.Overlay) *Book {
	return &Book{ov: ov}
}

// NextSeq returns the next monotonically increasing admission sequence
// number: the sole source of order-book tie-breaking, deliberately not
// wall-clock (§4.5 determinism rule).
func (b *Book) NextSeq() (uint64, error) {
	v, err := b.ov.Get(storage.Verifiable, seqCounterKey)
	if err != nil {
		return 0, err
	}
	var cur uint64
	if v != nil {
		cur = binary.BigEndian.Uint64(v)
	}
	next := cur + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	b.ov.Put(storage.Verifiable, seqCounterKey, buf[:])
	return next, nil
}

type orderLocation struct {
	Market string `json:"market"`
	Side   string `json:"side"`
	Price  string `json:"price"`
	Seq    uint64 `json:"seq"`
}

func (b *Book) indexOrder(o Order) error {
	loc := orderLocation{Market: o.Market, Side: string(o.Side), Price: o.Price.String(), Seq: o.Seq}
	enc, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	b.ov.Put(storage.Verifiable, orderIndexKey(o.ID), enc)
	b.ov.Put(storage.Verifiable, ownerIndexKey(o.Owner, o.ID), []byte(o.Market))
	return nil
}

func (b *Book) insertResting(o Order) error {
	v, err := encodeOrder(o)
	if err != nil {
		return err
	}
	b.ov.Put(storage.Verifiable, bookKey(o.Market, o.Side, o.Price, o.Seq, o.ID), v)
	return b.indexOrder(o)
}

func (b *Book) removeResting(o Order) {
	b.ov.Delete(storage.Verifiable, bookKey(o.Market, o.Side, o.Price, o.Seq, o.ID))
	b.ov.Delete(storage.Verifiable, orderIndexKey(o.ID))
	b.ov.Delete(storage.Verifiable, ownerIndexKey(o.Owner, o.ID))
}

func (b *Book) updateResting(o Order) error {
	v, err := encodeOrder(o)
	if err != nil {
		return err
	}
	b.ov.Put(storage.Verifiable, bookKey(o.Market, o.Side, o.Price, o.Seq, o.ID), v)
	return nil
}

// RestingOrders returns every order resting on one side of ticker's book,
// in price-time priority order (best first): the raw key ordering the
// store's Prefix scan preserves (§4.1, §4.5).
func (b *Book) RestingOrders(ticker string, side tx.OrderSide) ([]Order, error) {
	pairs, err := b.ov.Prefix(storage.Verifiable, bookPrefix(ticker, side))
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(pairs))
	for _, kv := range pairs {
		o, err := decodeOrder(kv.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// GetOrder resolves an order by ID by following the O(1) index record
// into its book entry.
func (b *Book) GetOrder(id uuid.UUID) (Order, error) {
	v, err := b.ov.Get(storage.Verifiable, orderIndexKey(id))
	if err != nil {
		return Order{}, err
	}
	if v == nil {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	var loc orderLocation
	if err := json.Unmarshal(v, &loc); err != nil {
		return Order{}, fmt.Errorf("market: %w: %v", storage.ErrCorrupted, err)
	}
	price, ok := new(big.Int).SetString(loc.Price, 10)
	if !ok {
		return Order{}, fmt.Errorf("market: %w: bad indexed price", storage.ErrCorrupted)
	}
	key := bookKey(loc.Market, tx.OrderSide(loc.Side), price, loc.Seq, id)
	bv, err := b.ov.Get(storage.Verifiable, key)
	if err != nil {
		return Order{}, err
	}
	if bv == nil {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return decodeOrder(bv)
}

// OwnerOrders lists every resting order owned by owner.
func (b *Book) OwnerOrders(owner address.Address) ([]Order, error) {
	pairs, err := b.ov.Prefix(storage.Verifiable, storage.Keyf("market/owner/%x/", owner[:]))
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(pairs))
	for _, kv := range pairs {
		idStr := string(kv.Key[len(storage.Keyf("market/owner/%x/", owner[:])):])
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		o, err := b.GetOrder(id)
		if err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Cancel removes a resting order owned by signer. Owner-only (§4.5).
func (b *Book) Cancel(signer address.Address, id uuid.UUID) error {
	o, err := b.GetOrder(id)
	if err != nil {
		return err
	}
	if o.Owner != signer {
		return ErrNotOwner
	}
	b.removeResting(o)
	return nil
}

// opposite returns the resting side a new order of side matches against.
func opposite(side tx.OrderSide) tx.OrderSide {
	if side == tx.Buy {
		return tx.Sell
	}
	return tx.Buy
}

func crosses(incoming, resting Order) bool {
	if incoming.Side == tx.Buy {
		return resting.Price.Cmp(incoming.Price) <= 0
	}
	return resting.Price.Cmp(incoming.Price) >= 0
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Trade is a single match between two orders (§3).
type Trade struct {
	Market  string
	BuyID   uuid.UUID
	SellID  uuid.UUID
	Price   *big.Int
	Qty     *big.Int
	Seq     uint64
}

// Quantize rounds price to the market's tick_size and quantity to its
// lot_size, rejecting nonzero remainders (§4.5 step 2).
func Quantize(mkt Market, price, quantity *big.Int) error {
	if new(big.Int).Mod(price, mkt.TickSize).Sign() != 0 {
		return fmt.Errorf("%w: price=%s tick_size=%s", ErrQuantizePrice, price, mkt.TickSize)
	}
	if new(big.Int).Mod(quantity, mkt.LotSize).Sign() != 0 {
		return fmt.Errorf("%w: quantity=%s lot_size=%s", ErrQuantizeQuantity, quantity, mkt.LotSize)
	}
	return nil
}

// Result is the outcome of CreateOrder: either the order (with whatever
// fills occurred and whatever remainder rests) plus the trades it
// produced, or a rejection with no storage effect at all (§4.5 step 5).
type Result struct {
	Order    Order
	Trades   []Trade
	Rejected bool
	Reason   string
}

type planFill struct {
	resting Order
	qty     *big.Int
}

// CreateOrder runs the full admission and matching pipeline for a new
// order (§4.5). The caller has already validated the market exists, is
// not paused, and quantized price/quantity; incoming.ID and incoming.Seq
// must already be assigned (deterministically, never from OS state).
func (b *Book) CreateOrder(incoming Order) (Result, error) {
	resting, err := b.RestingOrders(incoming.Market, opposite(incoming.Side))
	if err != nil {
		return Result{}, err
	}

	remaining := new(big.Int).Set(incoming.Quantity)
	var plan []planFill
	for _, r := range resting {
		if remaining.Sign() == 0 {
			break
		}
		if !crosses(incoming, r) {
			break
		}
		rRemaining := new(big.Int).Sub(r.Quantity, r.Filled)
		fill := minBig(remaining, rRemaining)
		if fill.Sign() == 0 {
			continue
		}
		plan = append(plan, planFill{resting: r, qty: fill})
		remaining.Sub(remaining, fill)
	}

	switch incoming.TimeInForce {
	case tx.FOK:
		if remaining.Sign() > 0 {
			return Result{Order: incoming, Rejected: true, Reason: "fill-or-kill: insufficient resting liquidity"}, nil
		}
	case tx.PostOnly:
		if len(plan) > 0 {
			return Result{Order: incoming, Rejected: true, Reason: "post-only: order would have matched immediately"}, nil
		}
	}

	var trades []Trade
	for _, pf := range plan {
		r := pf.resting
		r.Filled = new(big.Int).Add(r.Filled, pf.qty)
		if r.Filled.Cmp(r.Quantity) >= 0 {
			b.removeResting(r)
		} else if err := b.updateResting(r); err != nil {
			return Result{}, err
		}

		seq, err := b.NextSeq()
		if err != nil {
			return Result{}, err
		}
		t := Trade{Market: incoming.Market, Price: r.Price, Qty: pf.qty, Seq: seq}
		if incoming.Side == tx.Buy {
			t.BuyID, t.SellID = incoming.ID, r.ID
		} else {
			t.BuyID, t.SellID = r.ID, incoming.ID
		}
		trades = append(trades, t)
	}

	incoming.Filled = new(big.Int).Sub(incoming.Quantity, remaining)
	if incoming.TimeInForce != tx.IOC && remaining.Sign() > 0 {
		if err := b.insertResting(incoming); err != nil {
			return Result{}, err
		}
	}

	if err := b.recordTrades(trades); err != nil {
		return Result{}, err
	}
	return Result{Order: incoming, Trades: trades}, nil
}
