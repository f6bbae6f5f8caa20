// Copyright 2025 Astria Sequencer Contributors
//
// Transaction and action wire types (§2, §4.2). Actions form a closed
// tagged union — a variant enum, not open polymorphism (§9) — dispatched
// on the Type field of the wire envelope.

package tx

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/codec"
)

func codecSHA(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// ErrBadSignature is returned when a transaction's signature does not
// verify against its signer.
var ErrBadSignature = errors.New("tx: signature verification failed")

// Action is the closed set of transaction action payloads (§4.2 catalogue).
type Action interface {
	ActionName() string
}

// Variant names, used both as the Type discriminant on the wire and as
// the action_name carried on fee events (§4.4).
const (
	ActionTransfer           = "Transfer"
	ActionBridgeLock         = "BridgeLock"
	ActionBridgeUnlock       = "BridgeUnlock"
	ActionBridgeTransfer     = "BridgeTransfer"
	ActionBridgeSudoChange   = "BridgeSudoChange"
	ActionInitBridgeAccount  = "InitBridgeAccount"
	ActionIcs20Withdrawal    = "Ics20Withdrawal"
	ActionRecoverIbcClient   = "RecoverIbcClient"
	ActionMarketsChange      = "MarketsChange"
	ActionCreateOrder        = "CreateOrder"
	ActionCancelOrder        = "CancelOrder"
	ActionCreateMarket       = "CreateMarket"
	ActionUpdateMarket       = "UpdateMarket"
	ActionSudoAddressChange  = "SudoAddressChange"
	ActionFeeAssetChange     = "FeeAssetChange"
	ActionFeeChange          = "FeeChange"
	ActionIbcRelayerChange   = "IbcRelayerChange"
	ActionValidatorUpdate    = "ValidatorUpdate"
	ActionIbcRelay           = "IbcRelay"
)

// Transfer moves amount of a fee-payable asset from the signer to to.
type Transfer struct {
	To        address.Address `json:"to"`
	Asset     string          `json:"asset"`
	Amount    string          `json:"amount"`
	FeeAsset  string          `json:"fee_asset"`
}

func (Transfer) ActionName() string { return ActionTransfer }

// BridgeLock locks funds into a bridge account, emitting a deposit event.
type BridgeLock struct {
	To                      address.Address `json:"to"`
	Asset                   string          `json:"asset"`
	Amount                  string          `json:"amount"`
	FeeAsset                string          `json:"fee_asset"`
	DestinationChainAddress string          `json:"destination_chain_address"`
}

func (BridgeLock) ActionName() string { return ActionBridgeLock }

// BridgeUnlock releases funds from a bridge account to a non-bridge
// recipient, recording a dedup entry for the rollup withdrawal event.
type BridgeUnlock struct {
	To                       address.Address `json:"to"`
	Amount                   string          `json:"amount"`
	BridgeAddress            address.Address `json:"bridge_address"`
	FeeAsset                 string          `json:"fee_asset"`
	Memo                     string          `json:"memo"`
	RollupBlockNumber        uint64          `json:"rollup_block_number"`
	RollupWithdrawalEventID  string          `json:"rollup_withdrawal_event_id"`
}

func (BridgeUnlock) ActionName() string { return ActionBridgeUnlock }

// BridgeTransfer is BridgeUnlock composed with BridgeLock: funds move from
// one bridge account directly into another (§4.2, §4.3).
type BridgeTransfer struct {
	To                       address.Address `json:"to"`
	Amount                   string          `json:"amount"`
	BridgeAddress            address.Address `json:"bridge_address"`
	FeeAsset                 string          `json:"fee_asset"`
	DestinationChainAddress  string          `json:"destination_chain_address"`
	RollupBlockNumber        uint64          `json:"rollup_block_number"`
	RollupWithdrawalEventID  string          `json:"rollup_withdrawal_event_id"`
}

func (BridgeTransfer) ActionName() string { return ActionBridgeTransfer }

// BridgeSudoChange rotates a bridge account's sudo/withdrawer addresses or
// toggles deposits-disabled.
type BridgeSudoChange struct {
	BridgeAddress      address.Address  `json:"bridge_address"`
	NewSudoAddress     *address.Address `json:"new_sudo_address,omitempty"`
	NewWithdrawer      *address.Address `json:"new_withdrawer_address,omitempty"`
	DepositsDisabled   *bool            `json:"deposits_disabled,omitempty"`
	FeeAsset           string           `json:"fee_asset"`
}

func (BridgeSudoChange) ActionName() string { return ActionBridgeSudoChange }

// InitBridgeAccount installs a bridge account record for the signer.
type InitBridgeAccount struct {
	RollupID           [32]byte        `json:"rollup_id"`
	Asset              string          `json:"asset"`
	FeeAsset           string          `json:"fee_asset"`
	SudoAddress        address.Address `json:"sudo_address"`
	WithdrawerAddress  address.Address `json:"withdrawer_address"`
}

func (InitBridgeAccount) ActionName() string { return ActionInitBridgeAccount }

// Ics20Withdrawal initiates an ICS-20 withdrawal over IBC.
type Ics20Withdrawal struct {
	Amount             string `json:"amount"`
	Denom              string `json:"denom"`
	FeeAsset           string `json:"fee_asset"`
	SourcePort         string `json:"source_port"`
	SourceChannel      string `json:"source_channel"`
	Receiver           string `json:"receiver"`
	TimeoutHeight      uint64 `json:"timeout_height"`
	TimeoutTimestamp   uint64 `json:"timeout_timestamp"`
	Memo               string `json:"memo"`
}

func (Ics20Withdrawal) ActionName() string { return ActionIcs20Withdrawal }

// RecoverIbcClient replaces the consensus state of a frozen/expired IBC
// client with that of a substitute client.
type RecoverIbcClient struct {
	ClientID            string `json:"client_id"`
	ReplacementClientID string `json:"replacement_client_id"`
}

func (RecoverIbcClient) ActionName() string { return ActionRecoverIbcClient }

// MarketKind discriminates the three MarketsChange payload variants.
type MarketKind string

const (
	MarketsCreate MarketKind = "creation"
	MarketsRemove MarketKind = "removal"
	MarketsUpdate MarketKind = "update"
)

// MarketsChange carries one of Creation/Removal/Update (§4.5).
type MarketsChange struct {
	Kind    MarketKind        `json:"kind"`
	Markets []MarketParams    `json:"markets"`
}

func (MarketsChange) ActionName() string { return ActionMarketsChange }

// MarketParams is the wire shape of a single market entry inside a
// MarketsChange, CreateMarket, or UpdateMarket action.
type MarketParams struct {
	Ticker    string `json:"ticker"`
	Base      string `json:"base_asset"`
	Quote     string `json:"quote_asset"`
	TickSize  string `json:"tick_size"`
	LotSize   string `json:"lot_size"`
	Paused    bool   `json:"paused"`
}

// CreateMarket installs a single new market (a single-entry convenience
// wrapper used by clients; internally normalized to MarketsChange).
type CreateMarket struct {
	Market MarketParams `json:"market"`
}

func (CreateMarket) ActionName() string { return ActionCreateMarket }

// UpdateMarket updates a single existing market.
type UpdateMarket struct {
	Market MarketParams `json:"market"`
}

func (UpdateMarket) ActionName() string { return ActionUpdateMarket }

// OrderSide is buy or sell.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderKind distinguishes limit from market orders.
type OrderKind string

const (
	Limit  OrderKind = "limit"
	Market OrderKind = "market"
)

// TimeInForce is one of GTC/IOC/FOK/POST_ONLY.
type TimeInForce string

const (
	GTC      TimeInForce = "GTC"
	IOC      TimeInForce = "IOC"
	FOK      TimeInForce = "FOK"
	PostOnly TimeInForce = "POST_ONLY"
)

// CreateOrder submits a new limit or market order to a registered market.
type CreateOrder struct {
	Market      string      `json:"market"`
	Side        OrderSide   `json:"side"`
	Kind        OrderKind   `json:"kind"`
	Price       string      `json:"price"`
	Quantity    string      `json:"quantity"`
	TimeInForce TimeInForce `json:"time_in_force"`
}

func (CreateOrder) ActionName() string { return ActionCreateOrder }

// CancelOrder removes a resting order owned by the signer.
type CancelOrder struct {
	Market  string `json:"market"`
	OrderID string `json:"order_id"`
}

func (CancelOrder) ActionName() string { return ActionCancelOrder }

// SudoAddressChange rotates the chain's sudo address.
type SudoAddressChange struct {
	NewAddress address.Address `json:"new_address"`
}

func (SudoAddressChange) ActionName() string { return ActionSudoAddressChange }

// FeeAssetChange adds or removes an asset from the fee-payable allow-list.
type FeeAssetChange struct {
	Asset string `json:"asset"`
	Add   bool   `json:"add"`
}

func (FeeAssetChange) ActionName() string { return ActionFeeAssetChange }

// FeeChange updates the FeeComponents of one action variant (§4.4).
type FeeChange struct {
	ForAction  string `json:"for_action"`
	Base       string `json:"base"`
	Multiplier string `json:"multiplier"`
}

func (FeeChange) ActionName() string { return ActionFeeChange }

// IbcRelayerChange adds or removes an address from the IBC relayer
// allow-list.
type IbcRelayerChange struct {
	Address address.Address `json:"address"`
	Add     bool            `json:"add"`
}

func (IbcRelayerChange) ActionName() string { return ActionIbcRelayerChange }

// ValidatorUpdate proposes a validator set change, carrying an ed25519
// public key and voting power (0 removes the validator).
type ValidatorUpdate struct {
	PubKey ed25519.PublicKey `json:"pub_key"`
	Power  int64             `json:"power"`
	Name   string            `json:"name"`
}

func (ValidatorUpdate) ActionName() string { return ActionValidatorUpdate }

// IbcRelay carries an opaque ICS-26 envelope; its internals beyond
// RecoverIbcClient are out of scope (§1) and are passed through verbatim.
type IbcRelay struct {
	Envelope json.RawMessage `json:"envelope"`
}

func (IbcRelay) ActionName() string { return ActionIbcRelay }

// envelope is the wire form of a single Action: a type tag plus its
// canonically-encoded payload, the stand-in for the generated protobuf
// oneof that §1 assumes correct.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeAction(a Action) (envelope, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Type: a.ActionName(), Payload: payload}, nil
}

func decodeAction(e envelope) (Action, error) {
	var a Action
	switch e.Type {
	case ActionTransfer:
		a = &Transfer{}
	case ActionBridgeLock:
		a = &BridgeLock{}
	case ActionBridgeUnlock:
		a = &BridgeUnlock{}
	case ActionBridgeTransfer:
		a = &BridgeTransfer{}
	case ActionBridgeSudoChange:
		a = &BridgeSudoChange{}
	case ActionInitBridgeAccount:
		a = &InitBridgeAccount{}
	case ActionIcs20Withdrawal:
		a = &Ics20Withdrawal{}
	case ActionRecoverIbcClient:
		a = &RecoverIbcClient{}
	case ActionMarketsChange:
		a = &MarketsChange{}
	case ActionCreateOrder:
		a = &CreateOrder{}
	case ActionCancelOrder:
		a = &CancelOrder{}
	case ActionCreateMarket:
		a = &CreateMarket{}
	case ActionUpdateMarket:
		a = &UpdateMarket{}
	case ActionSudoAddressChange:
		a = &SudoAddressChange{}
	case ActionFeeAssetChange:
		a = &FeeAssetChange{}
	case ActionFeeChange:
		a = &FeeChange{}
	case ActionIbcRelayerChange:
		a = &IbcRelayerChange{}
	case ActionValidatorUpdate:
		a = &ValidatorUpdate{}
	case ActionIbcRelay:
		a = &IbcRelay{}
	default:
		return nil, fmt.Errorf("tx: unknown action type %q", e.Type)
	}
	if err := json.Unmarshal(e.Payload, a); err != nil {
		return nil, fmt.Errorf("tx: decode %s payload: %w", e.Type, err)
	}
	return a, nil
}

// UnsignedTransaction is the part of a transaction that gets hashed and
// signed: everything except the signature itself.
type UnsignedTransaction struct {
	ChainID string   `json:"chain_id"`
	Nonce   uint32   `json:"nonce"`
	Actions []Action `json:"-"`
}

type wireUnsigned struct {
	ChainID string     `json:"chain_id"`
	Nonce   uint32     `json:"nonce"`
	Actions []envelope `json:"actions"`
}

// Transaction is a signed, de-duplicated unit of execution: the unit the
// mempool orders and the block builder assembles into proposals.
type Transaction struct {
	UnsignedTransaction
	SignerPubKey ed25519.PublicKey `json:"signer_pub_key"`
	Signature    []byte            `json:"signature"`
}

// Marshal produces the canonical wire bytes of the signed transaction.
func (t *Transaction) Marshal() ([]byte, error) {
	envs := make([]envelope, len(t.Actions))
	for i, a := range t.Actions {
		e, err := encodeAction(a)
		if err != nil {
			return nil, err
		}
		envs[i] = e
	}
	type wire struct {
		wireUnsigned
		SignerPubKey ed25519.PublicKey `json:"signer_pub_key"`
		Signature    []byte            `json:"signature"`
	}
	return codec.Marshal(wire{
		wireUnsigned: wireUnsigned{ChainID: t.ChainID, Nonce: t.Nonce, Actions: envs},
		SignerPubKey: t.SignerPubKey,
		Signature:    t.Signature,
	})
}

// Unmarshal decodes a transaction from its canonical wire bytes.
func Unmarshal(b []byte) (*Transaction, error) {
	var w struct {
		wireUnsigned
		SignerPubKey ed25519.PublicKey `json:"signer_pub_key"`
		Signature    []byte            `json:"signature"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("tx: unmarshal: %w", err)
	}
	actions := make([]Action, len(w.Actions))
	for i, e := range w.Actions {
		a, err := decodeAction(e)
		if err != nil {
			return nil, err
		}
		actions[i] = a
	}
	return &Transaction{
		UnsignedTransaction: UnsignedTransaction{ChainID: w.ChainID, Nonce: w.Nonce, Actions: actions},
		SignerPubKey:        w.SignerPubKey,
		Signature:           w.Signature,
	}, nil
}

func (t *Transaction) signingBytes() ([]byte, error) {
	envs := make([]envelope, len(t.Actions))
	for i, a := range t.Actions {
		e, err := encodeAction(a)
		if err != nil {
			return nil, err
		}
		envs[i] = e
	}
	return codec.Marshal(wireUnsigned{ChainID: t.ChainID, Nonce: t.Nonce, Actions: envs})
}

// Sign computes the signature over the unsigned payload using priv, and
// sets SignerPubKey/Signature.
func (t *Transaction) Sign(priv ed25519.PrivateKey) error {
	msg, err := t.signingBytes()
	if err != nil {
		return err
	}
	t.SignerPubKey = priv.Public().(ed25519.PublicKey)
	t.Signature = ed25519.Sign(priv, msg)
	return nil
}

// Verify checks the transaction's signature against its own embedded
// public key and returns the signer address derived from that key.
func (t *Transaction) Verify() (address.Address, error) {
	msg, err := t.signingBytes()
	if err != nil {
		return address.Address{}, err
	}
	if len(t.SignerPubKey) != ed25519.PublicKeySize || !ed25519.Verify(t.SignerPubKey, msg, t.Signature) {
		return address.Address{}, ErrBadSignature
	}
	return address.FromBytes(pubKeyToAddress(t.SignerPubKey))
}

func pubKeyToAddress(pub ed25519.PublicKey) []byte {
	sum := codecSHA(pub)
	return sum[:address.Length]
}

// ID returns the 32-byte transaction identifier used as
// source_transaction_id on fee and deposit events (§3): the SHA-256 of
// the signed wire bytes.
func (t *Transaction) ID() ([32]byte, error) {
	b, err := t.Marshal()
	if err != nil {
		return [32]byte{}, err
	}
	return codecSHA(b), nil
}
