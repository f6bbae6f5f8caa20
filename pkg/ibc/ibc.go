// Copyright 2025 Astria Sequencer Contributors
//
// IBC adapter (C7, §4.2). Only the slice of ICS-26/ICS-20 the sequencer
// core depends on is modeled here: RecoverIbcClient's client-state
// substitution, the IBC relayer allow-list, and ICS-20 withdrawal
// accounting. Full IBC relay internals are out of scope (§1) and are
// passed through opaquely by the tx.IbcRelay action.

package ibc

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

var (
	// ErrClientNotFound is returned when a named client has no recorded
	// state.
	ErrClientNotFound = errors.New("ibc: client not found")

	// ErrRelayerNotAllowed is returned when a relayer-restricted action
	// is attempted by an address not on the relayer allow-list.
	ErrRelayerNotAllowed = errors.New("ibc: address is not an allowed relayer")
)

// ClientState is the minimal consensus-state record the sequencer tracks
// for a light client: a digest standing in for the full client/consensus
// state blob, plus whether the client is currently frozen or expired.
type ClientState struct {
	ConsensusDigest [32]byte
	FrozenOrExpired bool
}

func clientKey(clientID string) []byte {
	return storage.Keyf("ibc/client/%s", clientID)
}

func relayerKey(addr address.Address) []byte {
	return storage.Keyf("ibc/relayer/%x", addr[:])
}

type encodedClient struct {
	ConsensusDigest string `json:"consensus_digest"`
	FrozenOrExpired bool   `json:"frozen_or_expired"`
}

// Ledger reads and writes IBC adapter state against a transactional
// overlay.
type Ledger struct {
	ov *storage.Overlay
}

// New wraps an overlay with IBC-adapter accessors.
func New(ov *storage.Overlay) *Ledger {
	return &Ledger{ov: ov}
}

// GetClient returns the recorded state for clientID, or ErrClientNotFound.
func (l *Ledger) GetClient(clientID string) (*ClientState, error) {
	v, err := l.ov.Get(storage.Verifiable, clientKey(clientID))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	var enc encodedClient
	if err := json.Unmarshal(v, &enc); err != nil {
		return nil, fmt.Errorf("ibc: %w: %v", storage.ErrCorrupted, err)
	}
	digestBytes, err := hex.DecodeString(enc.ConsensusDigest)
	if err != nil || len(digestBytes) != 32 {
		return nil, fmt.Errorf("ibc: %w: bad digest", storage.ErrCorrupted)
	}
	var cs ClientState
	copy(cs.ConsensusDigest[:], digestBytes)
	cs.FrozenOrExpired = enc.FrozenOrExpired
	return &cs, nil
}

// PutClient installs or overwrites a client's recorded state.
func (l *Ledger) PutClient(clientID string, cs ClientState) error {
	enc := encodedClient{ConsensusDigest: hex.EncodeToString(cs.ConsensusDigest[:]), FrozenOrExpired: cs.FrozenOrExpired}
	b, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	l.ov.Put(storage.Verifiable, clientKey(clientID), b)
	return nil
}

// recoverChangeHashKey records the audit digest of one RecoverClient call,
// keyed by the recovered client so a later query can prove which
// replacement state was installed and when.
func recoverChangeHashKey(clientID string) []byte {
	return storage.Keyf("ibc/client/%s/recover_change_hash", clientID)
}

// recoverChangeHash derives an auditable digest of a client recovery:
// Keccak256 of the target client ID's length-prefixed bytes, the
// replacement client ID, and the replacement's consensus digest, the
// same Ethereum-anchored hash primitive the bridge withdrawer's
// EVM-facing boundary uses. The length prefix keeps the two IDs from
// being ambiguous when concatenated (e.g. "ab"+"c" vs "a"+"bc").
func recoverChangeHash(clientID, replacementID string, replacementDigest [32]byte) [32]byte {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(clientID)))
	data := make([]byte, 0, 8+len(clientID)+len(replacementID)+32)
	data = append(data, prefix[:]...)
	data = append(data, clientID...)
	data = append(data, replacementID...)
	data = append(data, replacementDigest[:]...)
	return crypto.Keccak256Hash(data)
}

// RecoverClient replaces clientID's recorded consensus state with
// replacementID's, clearing frozen/expired, the RecoverIbcClient action's
// effect (§4.2). The recovery's change hash is recorded for audit
// alongside the state substitution itself.
func (l *Ledger) RecoverClient(clientID, replacementID string) error {
	replacement, err := l.GetClient(replacementID)
	if err != nil {
		return fmt.Errorf("ibc: replacement client: %w", err)
	}
	if _, err := l.GetClient(clientID); err != nil {
		return fmt.Errorf("ibc: target client: %w", err)
	}
	if err := l.PutClient(clientID, ClientState{ConsensusDigest: replacement.ConsensusDigest, FrozenOrExpired: false}); err != nil {
		return err
	}
	changeHash := recoverChangeHash(clientID, replacementID, replacement.ConsensusDigest)
	l.ov.Put(storage.Verifiable, recoverChangeHashKey(clientID), changeHash[:])
	return nil
}

// RecoverChangeHash returns the recorded change hash from the most recent
// RecoverClient call against clientID, if any.
func (l *Ledger) RecoverChangeHash(clientID string) ([]byte, error) {
	return l.ov.Get(storage.Verifiable, recoverChangeHashKey(clientID))
}

// IsRelayerAllowed reports whether addr is on the IBC relayer allow-list.
func (l *Ledger) IsRelayerAllowed(addr address.Address) (bool, error) {
	v, err := l.ov.Get(storage.Verifiable, relayerKey(addr))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// SetRelayerAllowed adds or removes addr from the relayer allow-list
// (IbcRelayerChange).
func (l *Ledger) SetRelayerAllowed(addr address.Address, allowed bool) {
	if allowed {
		l.ov.Put(storage.Verifiable, relayerKey(addr), []byte{1})
	} else {
		l.ov.Delete(storage.Verifiable, relayerKey(addr))
	}
}

// Withdrawal is the accounting effect of an Ics20Withdrawal: the sender's
// balance is escrowed/burned on this chain; the counterparty-side mint is
// an external collaborator's concern (§1).
type Withdrawal struct {
	Sender        address.Address
	Amount        *big.Int
	Denom         asset.Denom
	SourceChannel string
	Receiver      string
}

// Apply debits the sender's balance of Denom by Amount. Escrow-vs-burn
// semantics are a function of whether Denom.IsSourceChain(); this chain
// only tracks the debit, since the relay itself is out of scope.
func (l *Ledger) Apply(ledger *accounts.Ledger, w Withdrawal) error {
	return ledger.Debit(w.Sender, w.Denom.ToIBC(), w.Amount)
}
