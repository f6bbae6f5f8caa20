// Copyright 2025 Astria Sequencer Contributors
//
// Market-map (C8, §3, §4.5): a registry of tradeable currency pairs held
// in insertion order, the way the original's IndexMap preserves it.

package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

var (
	// ErrAlreadyExists is MarketsChange/Creation's rejection when a named
	// pair is already registered (§4.5).
	ErrAlreadyExists = errors.New("market: currency pair already registered")

	// ErrNotFound is MarketsChange/Update's rejection when a named pair
	// is not registered, and CreateOrder's rejection when the market is
	// absent (§4.5).
	ErrNotFound = errors.New("market: currency pair not registered")

	// ErrPaused is CreateOrder's rejection when the market is paused.
	ErrPaused = errors.New("market: market is paused")
)

// Market is a single registered currency pair (§3).
type Market struct {
	Ticker     string
	BaseAsset  string
	QuoteAsset string
	TickSize   *big.Int
	LotSize    *big.Int
	Paused     bool
}

type encodedMarket struct {
	Ticker     string `json:"ticker"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	TickSize   string `json:"tick_size"`
	LotSize    string `json:"lot_size"`
	Paused     bool   `json:"paused"`
}

func defKey(ticker string) []byte {
	return storage.Keyf("market/def/%s", ticker)
}

var orderListKey = storage.Keyf("market/map/order")

// Map reads and writes the market-map registry against a transactional
// overlay.
type Map struct {
	ov *storage.Overlay
}

// New wraps an overlay with market-map accessors.
func New(ov *storage.Overlay) *Map {
	return &Map{ov: ov}
}

func encode(m Market) ([]byte, error) {
	return json.Marshal(encodedMarket{
		Ticker: m.Ticker, BaseAsset: m.BaseAsset, QuoteAsset: m.QuoteAsset,
		TickSize: m.TickSize.String(), LotSize: m.LotSize.String(), Paused: m.Paused,
	})
}

func decode(b []byte) (Market, error) {
	var enc encodedMarket
	if err := json.Unmarshal(b, &enc); err != nil {
		return Market{}, fmt.Errorf("market: %w: %v", storage.ErrCorrupted, err)
	}
	tick, ok := new(big.Int).SetString(enc.TickSize, 10)
	if !ok {
		return Market{}, fmt.Errorf("market: %w: bad tick size", storage.ErrCorrupted)
	}
	lot, ok := new(big.Int).SetString(enc.LotSize, 10)
	if !ok {
		return Market{}, fmt.Errorf("market: %w: bad lot size", storage.ErrCorrupted)
	}
	return Market{
		Ticker: enc.Ticker, BaseAsset: enc.BaseAsset, QuoteAsset: enc.QuoteAsset,
		TickSize: tick, LotSize: lot, Paused: enc.Paused,
	}, nil
}

// Get returns the registered market for ticker, or ErrNotFound.
func (m *Map) Get(ticker string) (Market, error) {
	v, err := m.ov.Get(storage.Verifiable, defKey(ticker))
	if err != nil {
		return Market{}, err
	}
	if v == nil {
		return Market{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return decode(v)
}

// Exists reports whether ticker is registered.
func (m *Map) Exists(ticker string) (bool, error) {
	v, err := m.ov.Get(storage.Verifiable, defKey(ticker))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Tickers returns every registered ticker in insertion order.
func (m *Map) Tickers() ([]string, error) {
	v, err := m.ov.Get(storage.Verifiable, orderListKey)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, fmt.Errorf("market: %w: %v", storage.ErrCorrupted, err)
	}
	return out, nil
}

func (m *Map) appendTicker(ticker string) error {
	tickers, err := m.Tickers()
	if err != nil {
		return err
	}
	tickers = append(tickers, ticker)
	b, err := json.Marshal(tickers)
	if err != nil {
		return err
	}
	m.ov.Put(storage.Verifiable, orderListKey, b)
	return nil
}

func (m *Map) removeTicker(ticker string) error {
	tickers, err := m.Tickers()
	if err != nil {
		return err
	}
	out := tickers[:0]
	for _, t := range tickers {
		if t != ticker {
			out = append(out, t)
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	m.ov.Put(storage.Verifiable, orderListKey, b)
	return nil
}

// Create registers a new market. Rejects if ticker already exists (§4.5).
func (m *Map) Create(mkt Market) error {
	exists, err := m.Exists(mkt.Ticker)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, mkt.Ticker)
	}
	b, err := encode(mkt)
	if err != nil {
		return err
	}
	m.ov.Put(storage.Verifiable, defKey(mkt.Ticker), b)
	return m.appendTicker(mkt.Ticker)
}

// Update overwrites an existing market's parameters. Rejects if ticker
// does not exist (§4.5).
func (m *Map) Update(mkt Market) error {
	exists, err := m.Exists(mkt.Ticker)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, mkt.Ticker)
	}
	b, err := encode(mkt)
	if err != nil {
		return err
	}
	m.ov.Put(storage.Verifiable, defKey(mkt.Ticker), b)
	return nil
}

// Remove unregisters ticker, silently ignoring tickers not present
// (§4.5).
func (m *Map) Remove(ticker string) error {
	exists, err := m.Exists(ticker)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	m.ov.Delete(storage.Verifiable, defKey(ticker))
	return m.removeTicker(ticker)
}
