// Copyright 2025 Astria Sequencer Contributors
//
// Query path router (§6). CometBFT Query requests are path-parameterised
// strings; this mirrors the teacher's own switch-on-req.Path dispatch in
// pkg/consensus/abci_validator.go, generalized to the order-book and
// upgrade-info paths this chain exposes.

package abci

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/actions"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/market"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
	"github.com/google/uuid"
)

func ok(v interface{}) (*abcitypes.ResponseQuery, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponseQuery{Code: 0, Value: b}, nil
}

// dispatchQuery routes req.Path to the matching read-only handler. Paths
// are "segment" or "segment/param", with query-string options carried in
// req.Data as an already-parsed "key=value&..." string (the ABCI query
// transport has no native query-string field, so callers pack it into
// Data the way the teacher packs structured filters into Data for its
// /certen/system_ledger path).
func dispatchQuery(ov *storage.Overlay, a *App, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	path := strings.TrimPrefix(req.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	head := parts[0]
	var param string
	if len(parts) > 1 {
		param = parts[1]
	}
	opts := parseOpts(string(req.Data))

	switch head {
	case "orderbook":
		return queryOrderbook(ov, param)
	case "order":
		return queryOrder(ov, param)
	case "market_orders":
		return queryMarketOrders(ov, param, opts["side"])
	case "owner_orders":
		return queryOwnerOrders(ov, a, param)
	case "markets":
		return queryMarkets(ov)
	case "market_params":
		return queryMarketParams(ov, param)
	case "trades":
		return queryTrades(ov, param, opts["limit"])
	case "pending_nonce":
		return queryPendingNonce(ov, a, param)
	case "validator_name":
		return queryValidatorName(ov, a, param)
	case "upgrades_info":
		return queryUpgradesInfo(a)
	default:
		return &abcitypes.ResponseQuery{Code: 2, Log: fmt.Sprintf("abci: unknown query path %q", req.Path)}, nil
	}
}

func parseOpts(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func queryOrderbook(ov *storage.Overlay, ticker string) (*abcitypes.ResponseQuery, error) {
	book := market.NewBook(ov)
	buys, err := book.RestingOrders(ticker, tx.Buy)
	if err != nil {
		return nil, err
	}
	sells, err := book.RestingOrders(ticker, tx.Sell)
	if err != nil {
		return nil, err
	}
	return ok(struct {
		Market string        `json:"market"`
		Buys   []market.Order `json:"buys"`
		Sells  []market.Order `json:"sells"`
	}{Market: ticker, Buys: buys, Sells: sells})
}

func queryOrder(ov *storage.Overlay, orderID string) (*abcitypes.ResponseQuery, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: "invalid order id"}, nil
	}
	book := market.NewBook(ov)
	o, err := book.GetOrder(id)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	return ok(o)
}

func queryMarketOrders(ov *storage.Overlay, ticker, side string) (*abcitypes.ResponseQuery, error) {
	book := market.NewBook(ov)
	switch side {
	case "buy":
		orders, err := book.RestingOrders(ticker, tx.Buy)
		if err != nil {
			return nil, err
		}
		return ok(orders)
	case "sell":
		orders, err := book.RestingOrders(ticker, tx.Sell)
		if err != nil {
			return nil, err
		}
		return ok(orders)
	default:
		buys, err := book.RestingOrders(ticker, tx.Buy)
		if err != nil {
			return nil, err
		}
		sells, err := book.RestingOrders(ticker, tx.Sell)
		if err != nil {
			return nil, err
		}
		return ok(append(buys, sells...))
	}
}

func queryOwnerOrders(ov *storage.Overlay, a *App, owner string) (*abcitypes.ResponseQuery, error) {
	addr, err := address.MustDecodeBase(a.params.Prefixes, owner)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	book := market.NewBook(ov)
	orders, err := book.OwnerOrders(addr)
	if err != nil {
		return nil, err
	}
	return ok(orders)
}

func queryMarkets(ov *storage.Overlay) (*abcitypes.ResponseQuery, error) {
	mm := market.New(ov)
	tickers, err := mm.Tickers()
	if err != nil {
		return nil, err
	}
	return ok(tickers)
}

func queryMarketParams(ov *storage.Overlay, ticker string) (*abcitypes.ResponseQuery, error) {
	mm := market.New(ov)
	m, err := mm.Get(ticker)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	return ok(m)
}

func queryTrades(ov *storage.Overlay, ticker, limitStr string) (*abcitypes.ResponseQuery, error) {
	limit := market.DefaultTradesLimit
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}
	book := market.NewBook(ov)
	trades, err := book.RecentTrades(ticker, limit)
	if err != nil {
		return nil, err
	}
	return ok(trades)
}

func queryPendingNonce(ov *storage.Overlay, a *App, addrStr string) (*abcitypes.ResponseQuery, error) {
	addr, err := address.MustDecodeBase(a.params.Prefixes, addrStr)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	currentNonce, err := accounts.New(ov).Nonce(addr)
	if err != nil {
		return nil, err
	}
	if pending, ok := a.mempool.PendingNonce(addr, currentNonce); ok {
		return ok(struct {
			Nonce uint32 `json:"nonce"`
		}{Nonce: pending})
	}
	return ok(struct {
		Nonce uint32 `json:"nonce"`
	}{Nonce: currentNonce})
}

func queryValidatorName(ov *storage.Overlay, a *App, pubKeyHex string) (*abcitypes.ResponseQuery, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: "invalid pub key hex"}, nil
	}
	name, err := actions.GetValidatorName(ov, pubKey)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return &abcitypes.ResponseQuery{Code: 1, Log: "not a validator"}, nil
	}
	return ok(struct {
		Name string `json:"name"`
	}{Name: name})
}

func queryUpgradesInfo(a *App) (*abcitypes.ResponseQuery, error) {
	if a.schedule == nil {
		return ok(struct {
			Applied   []interface{} `json:"applied"`
			Scheduled []interface{} `json:"scheduled"`
		}{})
	}
	height := uint64(a.lastHeight)
	return ok(struct {
		Applied   interface{} `json:"applied"`
		Scheduled interface{} `json:"scheduled"`
	}{
		Applied:   a.schedule.Applied(height),
		Scheduled: a.schedule.Scheduled(height),
	})
}
