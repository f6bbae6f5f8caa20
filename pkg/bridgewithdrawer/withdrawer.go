// Copyright 2025 Astria Sequencer Contributors
//
// Bridge withdrawal observer boundary. The real EVM watcher
// (crates/astria-bridge-withdrawer/src/withdrawer/ethereum/watcher.rs in
// the original implementation) runs an external WebSocket subscription
// against an AstriaWithdrawer contract; per §1 that external collaborator
// is out of scope here. This package only describes the interface the
// bridge sub-ledger's confirmed writes are handed to, and the minimal
// record shape an outbound unlock submission needs.

package bridgewithdrawer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/bridge"
)

// ErrInvalidTarget is returned when a deposit's destination chain address
// does not parse as an EVM address.
var ErrInvalidTarget = errors.New("bridgewithdrawer: destination is not a valid EVM address")

// UnlockSubmission is the outbound record a WithdrawalObserver produces
// from a confirmed bridge deposit (recorded by BridgeLock or
// BridgeTransfer): everything an
// external submitter needs to call the AstriaWithdrawer contract's
// unlock method on the rollup's EVM chain.
type UnlockSubmission struct {
	BridgeAddress address.Address
	Target        common.Address
	Amount        *big.Int
	RollupID      [32]byte
	SourceTxID    [32]byte
	ActionIndex   uint64
}

// WithdrawalObserver turns confirmed bridge-ledger deposits into outbound
// unlock-submission records. Implementations forward the record to the
// external EVM submission pipeline; this package defines only the
// boundary, not the pipeline.
type WithdrawalObserver interface {
	ObserveDeposit(d bridge.Deposit) (UnlockSubmission, error)
}

// evmObserver is the reference WithdrawalObserver: it parses a deposit's
// destination_chain_address as a 0x-prefixed EVM address and its amount
// as a base-10 integer, the shape the AstriaWithdrawer contract's unlock
// call expects.
type evmObserver struct{}

// NewObserver returns the reference WithdrawalObserver.
func NewObserver() WithdrawalObserver {
	return evmObserver{}
}

func (evmObserver) ObserveDeposit(d bridge.Deposit) (UnlockSubmission, error) {
	if !common.IsHexAddress(d.DestinationChainAddress) {
		return UnlockSubmission{}, fmt.Errorf("%w: %q", ErrInvalidTarget, d.DestinationChainAddress)
	}
	amount, ok := new(big.Int).SetString(d.Amount, 10)
	if !ok {
		return UnlockSubmission{}, fmt.Errorf("bridgewithdrawer: invalid amount %q", d.Amount)
	}
	return UnlockSubmission{
		BridgeAddress: d.BridgeAddress,
		Target:        common.HexToAddress(d.DestinationChainAddress),
		Amount:        amount,
		RollupID:      d.RollupID,
		SourceTxID:    d.SourceTransactionID,
		ActionIndex:   d.SourceActionIndex,
	}, nil
}

// ObserveAll runs obs over every deposit, skipping (not failing on) any
// deposit whose destination does not resolve to a submittable target —
// a non-EVM rollup deposit is not an error, just not this observer's
// concern.
func ObserveAll(obs WithdrawalObserver, deposits []bridge.Deposit) []UnlockSubmission {
	out := make([]UnlockSubmission, 0, len(deposits))
	for _, d := range deposits {
		sub, err := obs.ObserveDeposit(d)
		if err != nil {
			continue
		}
		out = append(out, sub)
	}
	return out
}
