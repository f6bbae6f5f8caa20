// Copyright 2025 Astria Sequencer Contributors
//
// Per-market trade ring buffer, feeding the `trades/{market}` ABCI query
// (§4.5, §6). Bounded at TradeRingCapacity entries per market; oldest
// entries are dropped once the buffer is full.

package market

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/google/uuid"
)

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("market: %w: bad uuid %q", storage.ErrCorrupted, s)
	}
	return id, nil
}

func newBigIntFromString(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}

// TradeRingCapacity bounds the number of trades retained per market for
// the recent-trades query.
const TradeRingCapacity = 1000

// DefaultTradesLimit is the default `limit` for trades/{market}?limit=N
// when the caller omits it (§6).
const DefaultTradesLimit = 10

func tradeCountKey(ticker string) []byte {
	return storage.Keyf("market/trades/%s/count", ticker)
}

func tradeLogKey(ticker string, index uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], index)
	return storage.Keyf("market/trades/%s/log/%x", ticker, b[:])
}

type encodedTrade struct {
	Market string `json:"market"`
	BuyID  string `json:"buy_id"`
	SellID string `json:"sell_id"`
	Price  string `json:"price"`
	Qty    string `json:"quantity"`
	Seq    uint64 `json:"seq"`
}

func (b *Book) recordTrades(trades []Trade) error {
	for _, t := range trades {
		countV, err := b.ov.Get(storage.Verifiable, tradeCountKey(t.Market))
		if err != nil {
			return err
		}
		var count uint64
		if countV != nil {
			count = binary.BigEndian.Uint64(countV)
		}
		enc := encodedTrade{
			Market: t.Market, BuyID: t.BuyID.String(), SellID: t.SellID.String(),
			Price: t.Price.String(), Qty: t.Qty.String(), Seq: t.Seq,
		}
		v, err := json.Marshal(enc)
		if err != nil {
			return err
		}
		b.ov.Put(storage.Verifiable, tradeLogKey(t.Market, count), v)
		if count >= TradeRingCapacity {
			b.ov.Delete(storage.Verifiable, tradeLogKey(t.Market, count-TradeRingCapacity))
		}
		count++
		var countBuf [8]byte
		binary.BigEndian.PutUint64(countBuf[:], count)
		b.ov.Put(storage.Verifiable, tradeCountKey(t.Market), countBuf[:])
	}
	return nil
}

// RecentTrades returns up to limit of the most recently recorded trades
// for ticker, newest last (§6 `trades/{market}?limit=N`).
func (b *Book) RecentTrades(ticker string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = DefaultTradesLimit
	}
	pairs, err := b.ov.Prefix(storage.Verifiable, storage.Keyf("market/trades/%s/log/", ticker))
	if err != nil {
		return nil, err
	}
	if len(pairs) > limit {
		pairs = pairs[len(pairs)-limit:]
	}
	out := make([]Trade, 0, len(pairs))
	for _, kv := range pairs {
		var enc encodedTrade
		if err := json.Unmarshal(kv.Value, &enc); err != nil {
			return nil, fmt.Errorf("market: %w: %v", storage.ErrCorrupted, err)
		}
		t, err := decodeTrade(enc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTrade(enc encodedTrade) (Trade, error) {
	buyID, err := parseUUID(enc.BuyID)
	if err != nil {
		return Trade{}, err
	}
	sellID, err := parseUUID(enc.SellID)
	if err != nil {
		return Trade{}, err
	}
	price, ok := newBigIntFromString(enc.Price)
	if !ok {
		return Trade{}, fmt.Errorf("market: %w: bad trade price", storage.ErrCorrupted)
	}
	qty, ok := newBigIntFromString(enc.Qty)
	if !ok {
		return Trade{}, fmt.Errorf("market: %w: bad trade quantity", storage.ErrCorrupted)
	}
	return Trade{Market: enc.Market, BuyID: buyID, SellID: sellID, Price: price, Qty: qty, Seq: enc.Seq}, nil
}
