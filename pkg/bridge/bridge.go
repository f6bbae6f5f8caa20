// Copyright 2025 Astria Sequencer Contributors
//
// Bridge sub-ledger (C6, §4.3). Bridge-account records, the per-block
// deposit cache, and the withdrawal-event dedup index.

package bridge

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/codec"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

var (
	// ErrNotBridgeAccount is returned when an address referenced as a
	// bridge account has no bridge-account record.
	ErrNotBridgeAccount = errors.New("bridge: address is not a bridge account")

	// ErrAlreadyBridgeAccount is returned by InitBridgeAccount when the
	// signer already has a bridge-account record.
	ErrAlreadyBridgeAccount = errors.New("bridge: address is already a bridge account")

	// ErrAssetMismatch is returned when a lock/transfer's asset differs
	// from the bridge account's configured asset.
	ErrAssetMismatch = errors.New("bridge: asset does not match bridge account's configured asset")

	// ErrDepositsDisabled is returned when BridgeLock targets an account
	// with deposits disabled.
	ErrDepositsDisabled = errors.New("bridge: deposits are disabled for this account")

	// ErrNotAuthorized marks a sudo/withdrawer authority violation (§7).
	ErrNotAuthorized = errors.New("bridge: signer is not authorized for this action")

	// ErrWithdrawalAlreadyExecuted is the uniqueness violation for a
	// duplicate (bridge_address, rollup_withdrawal_event_id) pair (§4.3).
	ErrWithdrawalAlreadyExecuted = errors.New("bridge: withdrawal event already executed")
)

// Account is the record distinguishing a bridge account from a regular
// one (§3).
type Account struct {
	RollupID          [32]byte
	Asset             asset.IBCDenom
	SudoAddress       address.Address
	WithdrawerAddress address.Address
	DepositsDisabled  bool
}

type encodedAccount struct {
	RollupID          string `json:"rollup_id"`
	Asset             string `json:"asset"`
	SudoAddress       string `json:"sudo_address"`
	WithdrawerAddress string `json:"withdrawer_address"`
	DepositsDisabled  bool   `json:"deposits_disabled"`
}

func accountKey(addr address.Address) []byte {
	return storage.Keyf("bridge/account/%x", addr[:])
}

// Deposit is emitted when funds enter a bridge account via BridgeLock or
// BridgeTransfer (§3).
type Deposit struct {
	BridgeAddress           address.Address `json:"bridge_address"`
	RollupID                [32]byte        `json:"rollup_id"`
	Amount                  string          `json:"amount"`
	Asset                   string          `json:"asset"`
	DestinationChainAddress string          `json:"destination_chain_address"`
	SourceTransactionID     [32]byte        `json:"source_transaction_id"`
	SourceActionIndex       uint64          `json:"source_action_index"`
}

func withdrawalKey(bridgeAddr address.Address, eventID string) []byte {
	return storage.Keyf("bridge/withdrawal/%x/%s", bridgeAddr[:], eventID)
}

func depositCacheKey(rollupID [32]byte, seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return storage.Keyf("bridge/deposit_cache/%x/%x", rollupID[:], b[:])
}

// Ledger reads and writes bridge sub-ledger state against a transactional
// overlay.
type Ledger struct {
	ov *storage.Overlay
}

// New wraps an overlay with bridge-ledger accessors.
func New(ov *storage.Overlay) *Ledger {
	return &Ledger{ov: ov}
}

// Get returns the bridge account record for addr, or ErrNotBridgeAccount
// if addr has none.
func (l *Ledger) Get(addr address.Address) (*Account, error) {
	v, err := l.ov.Get(storage.Verifiable, accountKey(addr))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotBridgeAccount, addr)
	}
	var enc encodedAccount
	if err := json.Unmarshal(v, &enc); err != nil {
		return nil, fmt.Errorf("bridge: %w: %v", storage.ErrCorrupted, err)
	}
	rollupID, err := decode32(enc.RollupID)
	if err != nil {
		return nil, err
	}
	ibc, err := asset.IBCDenomFromHex(enc.Asset)
	if err != nil {
		return nil, err
	}
	sudoBytes, err := hex.DecodeString(enc.SudoAddress)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w: %v", storage.ErrCorrupted, err)
	}
	sudo, err := address.FromBytes(sudoBytes)
	if err != nil {
		return nil, err
	}
	withdrawerBytes, err := hex.DecodeString(enc.WithdrawerAddress)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w: %v", storage.ErrCorrupted, err)
	}
	withdrawer, err := address.FromBytes(withdrawerBytes)
	if err != nil {
		return nil, err
	}
	return &Account{
		RollupID: rollupID, Asset: ibc, SudoAddress: sudo,
		WithdrawerAddress: withdrawer, DepositsDisabled: enc.DepositsDisabled,
	}, nil
}

// IsBridgeAccount reports whether addr has a bridge-account record.
func (l *Ledger) IsBridgeAccount(addr address.Address) (bool, error) {
	v, err := l.ov.Get(storage.Verifiable, accountKey(addr))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (l *Ledger) put(addr address.Address, acc *Account) error {
	enc := encodedAccount{
		RollupID:          fmt.Sprintf("%x", acc.RollupID[:]),
		Asset:             acc.Asset.String(),
		SudoAddress:       fmt.Sprintf("%x", acc.SudoAddress[:]),
		WithdrawerAddress: fmt.Sprintf("%x", acc.WithdrawerAddress[:]),
		DepositsDisabled:  acc.DepositsDisabled,
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	l.ov.Put(storage.Verifiable, accountKey(addr), b)
	return nil
}

// InitBridgeAccount installs a bridge account record for addr. Rejects if
// addr is already a bridge account (§4.3).
func (l *Ledger) InitBridgeAccount(addr address.Address, rollupID [32]byte, ibc asset.IBCDenom, sudo, withdrawer address.Address) error {
	exists, err := l.IsBridgeAccount(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyBridgeAccount, addr)
	}
	return l.put(addr, &Account{RollupID: rollupID, Asset: ibc, SudoAddress: sudo, WithdrawerAddress: withdrawer})
}

// SudoChange rotates sudo/withdrawer or toggles deposits-disabled. signer
// must be the account's current sudo address.
func (l *Ledger) SudoChange(bridgeAddr, signer address.Address, newSudo, newWithdrawer *address.Address, depositsDisabled *bool) error {
	acc, err := l.Get(bridgeAddr)
	if err != nil {
		return err
	}
	if acc.SudoAddress != signer {
		return fmt.Errorf("%w: not sudo address", ErrNotAuthorized)
	}
	if newSudo != nil {
		acc.SudoAddress = *newSudo
	}
	if newWithdrawer != nil {
		acc.WithdrawerAddress = *newWithdrawer
	}
	if depositsDisabled != nil {
		acc.DepositsDisabled = *depositsDisabled
	}
	return l.put(bridgeAddr, acc)
}

// RecordDeposit appends a deposit to the per-block, per-rollup cache
// (non-verifiable, drained into the rollup-data commitment at end of
// block and cleared, §4.3/§4.7).
func (l *Ledger) RecordDeposit(seq uint64, d Deposit) error {
	b, err := codec.Marshal(d)
	if err != nil {
		return err
	}
	l.ov.Put(storage.NonVerifiable, depositCacheKey(d.RollupID, seq), b)
	return nil
}

// DrainDeposits returns every deposit recorded so far this block across
// all rollups, in cache order. It does not clear the cache; the block
// builder deletes the cache entries in its overlay after draining them,
// so a committed block's deposits do not carry into the next block.
func (l *Ledger) DrainDeposits() ([]Deposit, error) {
	pairs, err := l.ov.Prefix(storage.NonVerifiable, storage.Keyf("bridge/deposit_cache/"))
	if err != nil {
		return nil, err
	}
	out := make([]Deposit, 0, len(pairs))
	for _, kv := range pairs {
		var d Deposit
		if err := json.Unmarshal(kv.Value, &d); err != nil {
			return nil, fmt.Errorf("bridge: %w: %v", storage.ErrCorrupted, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// RecordWithdrawalEvent writes the (bridge_address, event_id) -> block
// number uniqueness record. Returns ErrWithdrawalAlreadyExecuted if the
// pair is already present (§4.3, §8 invariant).
func (l *Ledger) RecordWithdrawalEvent(bridgeAddr address.Address, eventID string, rollupBlockNumber uint64) error {
	key := withdrawalKey(bridgeAddr, eventID)
	existing, err := l.ov.Get(storage.Verifiable, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: bridge=%s event=%s", ErrWithdrawalAlreadyExecuted, bridgeAddr, eventID)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], rollupBlockNumber)
	l.ov.Put(storage.Verifiable, key, b[:])
	return nil
}

func decode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("bridge: %w: %v", storage.ErrCorrupted, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("bridge: %w: rollup id must be 32 bytes", storage.ErrCorrupted)
	}
	copy(out[:], b)
	return out, nil
}
