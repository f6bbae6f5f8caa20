// Copyright 2025 Astria Sequencer Contributors
//
// Account ledger (C4): balances per (address, ibc-prefixed asset) and
// strictly monotonic per-sender nonces (§3).

package accounts

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

// ErrInsufficientFunds is returned when a debit would drive a balance
// negative; balances are never negative (§3 invariant).
var ErrInsufficientFunds = errors.New("accounts: insufficient funds")

// ErrNonceMismatch is returned when a transaction's nonce does not match
// the signer's current account nonce at execution time.
var ErrNonceMismatch = errors.New("accounts: nonce mismatch")

func nonceKey(addr address.Address) []byte {
	return storage.Keyf("accounts/%x/nonce", addr[:])
}

func balanceKey(addr address.Address, ibc asset.IBCDenom) []byte {
	return storage.Keyf("accounts/%x/balance/%s", addr[:], ibc.String())
}

func balancePrefix(addr address.Address) []byte {
	return storage.Keyf("accounts/%x/balance/", addr[:])
}

// Ledger reads and writes account state against a storage overlay.
type Ledger struct {
	ov *storage.Overlay
}

// New wraps a transactional overlay with account-ledger accessors.
func New(ov *storage.Overlay) *Ledger {
	return &Ledger{ov: ov}
}

// Nonce returns the signer's current nonce, defaulting to zero for an
// account that has never transacted.
func (l *Ledger) Nonce(addr address.Address) (uint32, error) {
	v, err := l.ov.Get(storage.Verifiable, nonceKey(addr))
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("accounts: %w: nonce value has %d bytes", storage.ErrCorrupted, len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

// SetNonce overwrites the signer's nonce.
func (l *Ledger) SetNonce(addr address.Address, nonce uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], nonce)
	l.ov.Put(storage.Verifiable, nonceKey(addr), b[:])
}

// CheckAndIncrementNonce verifies the transaction nonce matches the
// account's current nonce and advances it by one. account(s).nonce =
// n + 1 after executing a transaction with nonce n (§8 invariant).
func (l *Ledger) CheckAndIncrementNonce(addr address.Address, txNonce uint32) error {
	current, err := l.Nonce(addr)
	if err != nil {
		return err
	}
	if txNonce != current {
		return fmt.Errorf("%w: tx nonce %d, account nonce %d", ErrNonceMismatch, txNonce, current)
	}
	l.SetNonce(addr, current+1)
	return nil
}

// Balance returns the current balance of addr in the given IBC-prefixed
// asset, defaulting to zero.
func (l *Ledger) Balance(addr address.Address, ibc asset.IBCDenom) (*big.Int, error) {
	v, err := l.ov.Get(storage.Verifiable, balanceKey(addr, ibc))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return big.NewInt(0), nil
	}
	var bal encodedBalance
	if err := json.Unmarshal(v, &bal); err != nil {
		return nil, fmt.Errorf("accounts: %w: %v", storage.ErrCorrupted, err)
	}
	amt, ok := new(big.Int).SetString(bal.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("accounts: %w: bad amount %q", storage.ErrCorrupted, bal.Amount)
	}
	return amt, nil
}

type encodedBalance struct {
	Amount string `json:"amount"`
}

func (l *Ledger) setBalance(addr address.Address, ibc asset.IBCDenom, amt *big.Int) error {
	b, err := json.Marshal(encodedBalance{Amount: amt.String()})
	if err != nil {
		return err
	}
	l.ov.Put(storage.Verifiable, balanceKey(addr, ibc), b)
	return nil
}

// Credit increases addr's balance by amount. amount must be non-negative.
func (l *Ledger) Credit(addr address.Address, ibc asset.IBCDenom, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("accounts: credit amount must be non-negative, got %s", amount)
	}
	bal, err := l.Balance(addr, ibc)
	if err != nil {
		return err
	}
	return l.setBalance(addr, ibc, new(big.Int).Add(bal, amount))
}

// Debit decreases addr's balance by amount, failing if the result would be
// negative. amount must be non-negative.
func (l *Ledger) Debit(addr address.Address, ibc asset.IBCDenom, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("accounts: debit amount must be non-negative, got %s", amount)
	}
	bal, err := l.Balance(addr, ibc)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, bal, amount)
	}
	return l.setBalance(addr, ibc, new(big.Int).Sub(bal, amount))
}

// Transfer moves amount of ibc from one address to another atomically
// within the overlay: a failed debit leaves no partial write, because the
// overlay itself is only discarded wholesale on transaction failure (§7).
func (l *Ledger) Transfer(from, to address.Address, ibc asset.IBCDenom, amount *big.Int) error {
	if err := l.Debit(from, ibc, amount); err != nil {
		return err
	}
	return l.Credit(to, ibc, amount)
}

// AllBalances returns every (asset, amount) pair held by addr, for
// queries and diagnostics, keyed by the hex IBC digest. The result is a
// map, so it carries no ordering.
func (l *Ledger) AllBalances(addr address.Address) (map[string]*big.Int, error) {
	pairs, err := l.ov.Prefix(storage.Verifiable, balancePrefix(addr))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*big.Int, len(pairs))
	for _, kv := range pairs {
		var bal encodedBalance
		if err := json.Unmarshal(kv.Value, &bal); err != nil {
			return nil, fmt.Errorf("accounts: %w: %v", storage.ErrCorrupted, err)
		}
		amt, ok := new(big.Int).SetString(bal.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("accounts: %w: bad amount %q", storage.ErrCorrupted, bal.Amount)
		}
		ibcHex := string(kv.Key[len(balancePrefix(addr)):])
		out[ibcHex] = amt
	}
	return out, nil
}
