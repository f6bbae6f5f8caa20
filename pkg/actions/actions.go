// Copyright 2025 Astria Sequencer Contributors
//
// Checked-action layer (C5, §4.2). Every action variant has exactly one
// checked wrapper: Dispatch performs stateless checks (field ranges,
// non-empty invariants), stateful checks against the current overlay
// (authority, balances, existence, uniqueness), then applies writes.
// Because this pipeline only ever evaluates an action once, immediately
// before mutating, "construction" and "execution" collapse into a single
// pass here rather than the original's two-step new()/execute() API —
// the re-check execute() performs against a possibly-changed overlay is
// exactly the single check Dispatch already runs against the live
// overlay.

package actions

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/bridge"
	"github.com/astriaorg/astria-go-sequencer/pkg/fees"
	"github.com/astriaorg/astria-go-sequencer/pkg/ibc"
	"github.com/astriaorg/astria-go-sequencer/pkg/market"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
	"github.com/google/uuid"
)

// ErrInvalid marks a stateless validation failure (§7): field out of
// range, zero amount where nonzero is required, oversized string.
var ErrInvalid = errors.New("actions: invalid action")

// Event is a generic (type, attributes) pair; the ABCI driver renders
// these as cometbft abci.Event values on the owning transaction's result.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Result is what Dispatch returns for one successfully executed action.
type Result struct {
	Events []Event
	Trades []market.Trade
}

// Context carries the per-transaction, per-action values a checked
// action needs beyond the overlay itself.
type Context struct {
	Prefixes    address.Prefixes
	ChainSecret []byte
	Signer      address.Address
	TxID        [32]byte
	ActionIndex uint64
}

func feeEventToEvent(e *fees.Event) Event {
	return Event{Type: "tx.fees", Attributes: map[string]string{
		"asset": e.Asset, "amount": e.Amount, "action_name": e.ActionName,
		"action_index": fmt.Sprintf("%d", e.ActionIndex), "source_tx_id": e.SourceTxID,
	}}
}

func parseAmount(s string) (*big.Int, error) {
	amt, ok := new(big.Int).SetString(s, 10)
	if !ok || amt.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad amount %q", ErrInvalid, s)
	}
	return amt, nil
}

func parseDenom(s string) (asset.Denom, error) {
	d := asset.Denom(s)
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return d, nil
}

func chargeFees(fe *fees.Engine, ledger *accounts.Ledger, ctx Context, actionName, feeAsset string, costBase *big.Int) (Event, error) {
	denom, err := parseDenom(feeAsset)
	if err != nil {
		return Event{}, err
	}
	ev, err := fe.HandleFees(ledger, ctx.Signer, actionName, denom, costBase, ctx.ActionIndex, ctx.TxID)
	if err != nil {
		return Event{}, err
	}
	return feeEventToEvent(ev), nil
}

// Dispatch executes one action within a transaction against ov. Writes
// are only ever visible through ov (never durable until Commit), so a
// failure here leaves the caller free to discard the whole transaction's
// overlay per §7's propagation policy.
func Dispatch(ov *storage.Overlay, ctx Context, action tx.Action) (Result, error) {
	switch a := action.(type) {
	case *tx.Transfer:
		return dispatchTransfer(ov, ctx, a)
	case *tx.BridgeLock:
		return dispatchBridgeLock(ov, ctx, a)
	case *tx.BridgeUnlock:
		return dispatchBridgeUnlock(ov, ctx, a)
	case *tx.BridgeTransfer:
		return dispatchBridgeTransfer(ov, ctx, a)
	case *tx.BridgeSudoChange:
		return dispatchBridgeSudoChange(ov, ctx, a)
	case *tx.InitBridgeAccount:
		return dispatchInitBridgeAccount(ov, ctx, a)
	case *tx.Ics20Withdrawal:
		return dispatchIcs20Withdrawal(ov, ctx, a)
	case *tx.RecoverIbcClient:
		return dispatchRecoverIbcClient(ov, ctx, a)
	case *tx.MarketsChange:
		return dispatchMarketsChange(ov, ctx, a)
	case *tx.CreateOrder:
		return dispatchCreateOrder(ov, ctx, a)
	case *tx.CancelOrder:
		return dispatchCancelOrder(ov, ctx, a)
	case *tx.CreateMarket:
		return dispatchCreateMarket(ov, ctx, a)
	case *tx.UpdateMarket:
		return dispatchUpdateMarket(ov, ctx, a)
	case *tx.SudoAddressChange:
		return dispatchSudoAddressChange(ov, ctx, a)
	case *tx.FeeAssetChange:
		return dispatchFeeAssetChange(ov, ctx, a)
	case *tx.FeeChange:
		return dispatchFeeChange(ov, ctx, a)
	case *tx.IbcRelayerChange:
		return dispatchIbcRelayerChange(ov, ctx, a)
	case *tx.ValidatorUpdate:
		return dispatchValidatorUpdate(ov, ctx, a)
	case *tx.IbcRelay:
		return dispatchIbcRelay(ov, ctx, a)
	default:
		return Result{}, fmt.Errorf("%w: unhandled action type %T", ErrInvalid, action)
	}
}

func dispatchTransfer(ov *storage.Overlay, ctx Context, a *tx.Transfer) (Result, error) {
	amount, err := parseAmount(a.Amount)
	if err != nil {
		return Result{}, err
	}
	if amount.Sign() == 0 {
		return Result{}, fmt.Errorf("%w: transfer amount must be nonzero", ErrInvalid)
	}
	denom, err := parseDenom(a.Asset)
	if err != nil {
		return Result{}, err
	}

	ledger := accounts.New(ov)
	fe := fees.New(ov)
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionTransfer, a.FeeAsset, big.NewInt(0))
	if err != nil {
		return Result{}, err
	}
	if err := ledger.Transfer(ctx.Signer, a.To, denom.ToIBC(), amount); err != nil {
		return Result{}, fmt.Errorf("actions: transfer: %w", err)
	}
	return Result{Events: []Event{feeEvent}}, nil
}

func dispatchBridgeLock(ov *storage.Overlay, ctx Context, a *tx.BridgeLock) (Result, error) {
	amount, err := parseAmount(a.Amount)
	if err != nil {
		return Result{}, err
	}
	if amount.Sign() == 0 {
		return Result{}, fmt.Errorf("%w: bridge lock amount must be nonzero", ErrInvalid)
	}
	denom, err := parseDenom(a.Asset)
	if err != nil {
		return Result{}, err
	}
	if a.DestinationChainAddress == "" {
		return Result{}, fmt.Errorf("%w: destination_chain_address must not be empty", ErrInvalid)
	}

	br := bridge.New(ov)
	acc, err := br.Get(a.To)
	if err != nil {
		return Result{}, err
	}
	if acc.DepositsDisabled {
		return Result{}, bridge.ErrDepositsDisabled
	}
	if denom.ToIBC() != acc.Asset {
		return Result{}, bridge.ErrAssetMismatch
	}

	deposit := bridge.Deposit{
		BridgeAddress: a.To, RollupID: acc.RollupID, Amount: amount.String(),
		Asset: string(denom), DestinationChainAddress: a.DestinationChainAddress,
		SourceTransactionID: ctx.TxID, SourceActionIndex: ctx.ActionIndex,
	}
	costBase := big.NewInt(int64(fees.DepositBaseFee + len(denom) + len(a.DestinationChainAddress)))

	ledger := accounts.New(ov)
	fe := fees.New(ov)
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionBridgeLock, a.FeeAsset, costBase)
	if err != nil {
		return Result{}, err
	}
	if err := ledger.Transfer(ctx.Signer, a.To, denom.ToIBC(), amount); err != nil {
		return Result{}, fmt.Errorf("actions: bridge lock: %w", err)
	}
	if err := br.RecordDeposit(depositSeq(ctx), deposit); err != nil {
		return Result{}, err
	}
	return Result{Events: []Event{feeEvent, {Type: "bridge.deposit", Attributes: map[string]string{
		"bridge_address": fmt.Sprintf("%x", a.To[:]), "amount": amount.String(), "asset": string(denom),
	}}}}, nil
}

func depositSeq(ctx Context) uint64 {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], ctx.ActionIndex)
	return binary.BigEndian.Uint64(ctx.TxID[:8]) ^ binary.BigEndian.Uint64(seed[:])
}

func validateUnlockFields(memo, eventID string, rollupBlockNumber uint64) error {
	if len(memo) > 64 {
		return fmt.Errorf("%w: memo exceeds 64 bytes", ErrInvalid)
	}
	if len(eventID) < 1 || len(eventID) > 256 {
		return fmt.Errorf("%w: rollup_withdrawal_event_id must be 1..256 bytes", ErrInvalid)
	}
	if rollupBlockNumber == 0 {
		return fmt.Errorf("%w: rollup_block_number must be nonzero", ErrInvalid)
	}
	return nil
}

func dispatchBridgeUnlock(ov *storage.Overlay, ctx Context, a *tx.BridgeUnlock) (Result, error) {
	amount, err := parseAmount(a.Amount)
	if err != nil {
		return Result{}, err
	}
	if amount.Sign() == 0 {
		return Result{}, fmt.Errorf("%w: bridge unlock amount must be nonzero", ErrInvalid)
	}
	if err := validateUnlockFields(a.Memo, a.RollupWithdrawalEventID, a.RollupBlockNumber); err != nil {
		return Result{}, err
	}

	br := bridge.New(ov)
	acc, err := br.Get(a.BridgeAddress)
	if err != nil {
		return Result{}, err
	}
	if acc.WithdrawerAddress != ctx.Signer {
		return Result{}, fmt.Errorf("%w: signer is not the bridge account's withdrawer", bridge.ErrNotAuthorized)
	}
	isBridge, err := br.IsBridgeAccount(a.To)
	if err != nil {
		return Result{}, err
	}
	if isBridge {
		return Result{}, fmt.Errorf("%w: bridge unlock destination must not itself be a bridge account", ErrInvalid)
	}

	ledger := accounts.New(ov)
	fe := fees.New(ov)
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionBridgeUnlock, a.FeeAsset, big.NewInt(0))
	if err != nil {
		return Result{}, err
	}
	if err := br.RecordWithdrawalEvent(a.BridgeAddress, a.RollupWithdrawalEventID, a.RollupBlockNumber); err != nil {
		return Result{}, err
	}
	if err := ledger.Transfer(a.BridgeAddress, a.To, acc.Asset, amount); err != nil {
		return Result{}, fmt.Errorf("actions: bridge unlock: %w", err)
	}
	return Result{Events: []Event{feeEvent}}, nil
}

func dispatchBridgeTransfer(ov *storage.Overlay, ctx Context, a *tx.BridgeTransfer) (Result, error) {
	amount, err := parseAmount(a.Amount)
	if err != nil {
		return Result{}, err
	}
	if amount.Sign() == 0 {
		return Result{}, fmt.Errorf("%w: bridge transfer amount must be nonzero", ErrInvalid)
	}
	if err := validateUnlockFields("", a.RollupWithdrawalEventID, a.RollupBlockNumber); err != nil {
		return Result{}, err
	}

	br := bridge.New(ov)
	src, err := br.Get(a.BridgeAddress)
	if err != nil {
		return Result{}, err
	}
	if src.WithdrawerAddress != ctx.Signer {
		return Result{}, fmt.Errorf("%w: signer is not the source bridge account's withdrawer", bridge.ErrNotAuthorized)
	}
	dst, err := br.Get(a.To)
	if err != nil {
		return Result{}, fmt.Errorf("actions: bridge transfer destination: %w", err)
	}
	if dst.Asset != src.Asset {
		return Result{}, bridge.ErrAssetMismatch
	}

	deposit := bridge.Deposit{
		BridgeAddress: a.To, RollupID: dst.RollupID, Amount: amount.String(),
		Asset: "", DestinationChainAddress: a.DestinationChainAddress,
		SourceTransactionID: ctx.TxID, SourceActionIndex: ctx.ActionIndex,
	}
	costBase := big.NewInt(int64(fees.DepositBaseFee + len(src.Asset.String()) + len(a.DestinationChainAddress)))

	ledger := accounts.New(ov)
	fe := fees.New(ov)
	// The BridgeTransfer fee path uses the bridge-lock fee schedule only
	// (spec.md §9 Open Questions: no distinct bridge-transfer fee
	// variant exists).
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionBridgeLock, a.FeeAsset, costBase)
	if err != nil {
		return Result{}, err
	}
	if err := br.RecordWithdrawalEvent(a.BridgeAddress, a.RollupWithdrawalEventID, a.RollupBlockNumber); err != nil {
		return Result{}, err
	}
	if err := ledger.Transfer(a.BridgeAddress, a.To, src.Asset, amount); err != nil {
		return Result{}, fmt.Errorf("actions: bridge transfer: %w", err)
	}
	if err := br.RecordDeposit(depositSeq(ctx), deposit); err != nil {
		return Result{}, err
	}
	return Result{Events: []Event{feeEvent}}, nil
}

func dispatchBridgeSudoChange(ov *storage.Overlay, ctx Context, a *tx.BridgeSudoChange) (Result, error) {
	br := bridge.New(ov)
	ledger := accounts.New(ov)
	fe := fees.New(ov)
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionBridgeSudoChange, a.FeeAsset, big.NewInt(0))
	if err != nil {
		return Result{}, err
	}
	if err := br.SudoChange(a.BridgeAddress, ctx.Signer, a.NewSudoAddress, a.NewWithdrawer, a.DepositsDisabled); err != nil {
		return Result{}, err
	}
	return Result{Events: []Event{feeEvent}}, nil
}

func dispatchInitBridgeAccount(ov *storage.Overlay, ctx Context, a *tx.InitBridgeAccount) (Result, error) {
	denom, err := parseDenom(a.Asset)
	if err != nil {
		return Result{}, err
	}
	br := bridge.New(ov)
	ledger := accounts.New(ov)
	fe := fees.New(ov)
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionInitBridgeAccount, a.FeeAsset, big.NewInt(0))
	if err != nil {
		return Result{}, err
	}
	if err := br.InitBridgeAccount(ctx.Signer, a.RollupID, denom.ToIBC(), a.SudoAddress, a.WithdrawerAddress); err != nil {
		return Result{}, err
	}
	return Result{Events: []Event{feeEvent}}, nil
}

func dispatchIcs20Withdrawal(ov *storage.Overlay, ctx Context, a *tx.Ics20Withdrawal) (Result, error) {
	amount, err := parseAmount(a.Amount)
	if err != nil {
		return Result{}, err
	}
	if amount.Sign() == 0 {
		return Result{}, fmt.Errorf("%w: ics20 withdrawal amount must be nonzero", ErrInvalid)
	}
	denom, err := parseDenom(a.Denom)
	if err != nil {
		return Result{}, err
	}
	ledger := accounts.New(ov)
	fe := fees.New(ov)
	feeEvent, err := chargeFees(fe, ledger, ctx, tx.ActionIcs20Withdrawal, a.FeeAsset, big.NewInt(0))
	if err != nil {
		return Result{}, err
	}
	l := ibc.New(ov)
	if err := l.Apply(ledger, ibc.Withdrawal{
		Sender: ctx.Signer, Amount: amount, Denom: denom,
		SourceChannel: a.SourceChannel, Receiver: a.Receiver,
	}); err != nil {
		return Result{}, fmt.Errorf("actions: ics20 withdrawal: %w", err)
	}
	return Result{Events: []Event{feeEvent}}, nil
}

func dispatchRecoverIbcClient(ov *storage.Overlay, ctx Context, a *tx.RecoverIbcClient) (Result, error) {
	if a.ClientID == a.ReplacementClientID {
		return Result{}, fmt.Errorf("%w: replacement client must differ from target client", ErrInvalid)
	}
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	l := ibc.New(ov)
	if err := l.RecoverClient(a.ClientID, a.ReplacementClientID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func marketFromParams(p tx.MarketParams) (market.Market, error) {
	tick, ok := new(big.Int).SetString(p.TickSize, 10)
	if !ok || tick.Sign() <= 0 {
		return market.Market{}, fmt.Errorf("%w: bad tick_size %q", ErrInvalid, p.TickSize)
	}
	lot, ok := new(big.Int).SetString(p.LotSize, 10)
	if !ok || lot.Sign() <= 0 {
		return market.Market{}, fmt.Errorf("%w: bad lot_size %q", ErrInvalid, p.LotSize)
	}
	if p.Ticker == "" || p.Base == "" || p.Quote == "" {
		return market.Market{}, fmt.Errorf("%w: market fields must not be empty", ErrInvalid)
	}
	return market.Market{
		Ticker: p.Ticker, BaseAsset: p.Base, QuoteAsset: p.Quote,
		TickSize: tick, LotSize: lot, Paused: p.Paused,
	}, nil
}

func dispatchMarketsChange(ov *storage.Overlay, ctx Context, a *tx.MarketsChange) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	mm := market.New(ov)
	for _, p := range a.Markets {
		switch a.Kind {
		case tx.MarketsCreate:
			mkt, err := marketFromParams(p)
			if err != nil {
				return Result{}, err
			}
			if err := mm.Create(mkt); err != nil {
				return Result{}, err
			}
		case tx.MarketsRemove:
			if err := mm.Remove(p.Ticker); err != nil {
				return Result{}, err
			}
		case tx.MarketsUpdate:
			mkt, err := marketFromParams(p)
			if err != nil {
				return Result{}, err
			}
			if err := mm.Update(mkt); err != nil {
				return Result{}, err
			}
		default:
			return Result{}, fmt.Errorf("%w: unknown markets-change kind %q", ErrInvalid, a.Kind)
		}
	}
	return Result{}, nil
}

func dispatchCreateMarket(ov *storage.Overlay, ctx Context, a *tx.CreateMarket) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	mkt, err := marketFromParams(a.Market)
	if err != nil {
		return Result{}, err
	}
	mm := market.New(ov)
	if err := mm.Create(mkt); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func dispatchUpdateMarket(ov *storage.Overlay, ctx Context, a *tx.UpdateMarket) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	mkt, err := marketFromParams(a.Market)
	if err != nil {
		return Result{}, err
	}
	mm := market.New(ov)
	if err := mm.Update(mkt); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func dispatchCreateOrder(ov *storage.Overlay, ctx Context, a *tx.CreateOrder) (Result, error) {
	mm := market.New(ov)
	mkt, err := mm.Get(a.Market)
	if err != nil {
		return Result{}, err
	}
	if mkt.Paused {
		return Result{}, market.ErrPaused
	}
	price := market.MaxPrice
	if a.Kind == tx.Limit {
		price, err = parseAmount(a.Price)
		if err != nil {
			return Result{}, err
		}
	} else if a.Side == tx.Sell {
		price = big.NewInt(0)
	}
	quantity, err := parseAmount(a.Quantity)
	if err != nil {
		return Result{}, err
	}
	if quantity.Sign() == 0 {
		return Result{}, fmt.Errorf("%w: order quantity must be nonzero", ErrInvalid)
	}
	if a.Kind == tx.Limit {
		if err := market.Quantize(mkt, price, quantity); err != nil {
			return Result{}, err
		}
	} else if new(big.Int).Mod(quantity, mkt.LotSize).Sign() != 0 {
		return Result{}, market.ErrQuantizeQuantity
	}

	book := market.NewBook(ov)
	seq, err := book.NextSeq()
	if err != nil {
		return Result{}, err
	}
	id := market.DeriveOrderID(ctx.ChainSecret, ctx.TxID, ctx.ActionIndex, 0)
	incoming := market.Order{
		ID: id, Owner: ctx.Signer, Market: a.Market, Side: a.Side, Kind: a.Kind,
		Price: price, Quantity: quantity, Filled: big.NewInt(0),
		TimeInForce: a.TimeInForce, Seq: seq,
	}
	result, err := book.CreateOrder(incoming)
	if err != nil {
		return Result{}, err
	}
	if result.Rejected {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalid, result.Reason)
	}
	return Result{Trades: result.Trades, Events: []Event{{Type: "order.created", Attributes: map[string]string{
		"order_id": result.Order.ID.String(), "market": a.Market,
	}}}}, nil
}

func dispatchCancelOrder(ov *storage.Overlay, ctx Context, a *tx.CancelOrder) (Result, error) {
	id, err := uuid.Parse(a.OrderID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad order_id %q", ErrInvalid, a.OrderID)
	}
	book := market.NewBook(ov)
	if err := book.Cancel(ctx.Signer, id); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func dispatchSudoAddressChange(ov *storage.Overlay, ctx Context, a *tx.SudoAddressChange) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	SetSudoAddress(ov, a.NewAddress)
	return Result{}, nil
}

func dispatchFeeAssetChange(ov *storage.Overlay, ctx Context, a *tx.FeeAssetChange) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	denom, err := parseDenom(a.Asset)
	if err != nil {
		return Result{}, err
	}
	fees.New(ov).SetAssetAllowed(denom.ToIBC(), a.Add)
	return Result{}, nil
}

func dispatchFeeChange(ov *storage.Overlay, ctx Context, a *tx.FeeChange) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	base, ok := new(big.Int).SetString(a.Base, 10)
	if !ok || base.Sign() < 0 {
		return Result{}, fmt.Errorf("%w: bad fee base %q", ErrInvalid, a.Base)
	}
	mult, ok := new(big.Int).SetString(a.Multiplier, 10)
	if !ok || mult.Sign() < 0 {
		return Result{}, fmt.Errorf("%w: bad fee multiplier %q", ErrInvalid, a.Multiplier)
	}
	if a.ForAction == "" {
		return Result{}, fmt.Errorf("%w: for_action must not be empty", ErrInvalid)
	}
	if err := fees.New(ov).SetComponents(a.ForAction, fees.Components{Base: base, Multiplier: mult}); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func dispatchIbcRelayerChange(ov *storage.Overlay, ctx Context, a *tx.IbcRelayerChange) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	ibc.New(ov).SetRelayerAllowed(a.Address, a.Add)
	return Result{}, nil
}

func dispatchValidatorUpdate(ov *storage.Overlay, ctx Context, a *tx.ValidatorUpdate) (Result, error) {
	if err := requireSudo(ov, ctx.Signer); err != nil {
		return Result{}, err
	}
	if len(a.PubKey) == 0 {
		return Result{}, fmt.Errorf("%w: validator update missing pub_key", ErrInvalid)
	}
	if err := recordValidatorUpdate(ov, ctx, a); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func dispatchIbcRelay(ov *storage.Overlay, ctx Context, a *tx.IbcRelay) (Result, error) {
	allowed, err := ibc.New(ov).IsRelayerAllowed(ctx.Signer)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, ibc.ErrRelayerNotAllowed
	}
	return Result{}, nil
}
