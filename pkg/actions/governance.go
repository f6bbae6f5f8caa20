// Copyright 2025 Astria Sequencer Contributors
//
// Chain-wide sudo address: the authority checked actions like
// MarketsChange, CreateMarket, FeeChange, FeeAssetChange,
// IbcRelayerChange, and ValidatorUpdate require (§4.2). Distinct from a
// bridge account's own sudo address (§4.3), which is a separate record.

package actions

import (
	"errors"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

// ErrNotSudo is the authority-violation error for sudo-gated actions
// (§7).
var ErrNotSudo = errors.New("actions: signer is not the chain sudo address")

var sudoKey = storage.Keyf("chain/sudo_address")

// GetSudoAddress returns the chain's current sudo address, installed at
// genesis and rotatable via SudoAddressChange.
func GetSudoAddress(ov *storage.Overlay) (address.Address, error) {
	v, err := ov.Get(storage.Verifiable, sudoKey)
	if err != nil {
		return address.Address{}, err
	}
	if v == nil {
		return address.Address{}, fmt.Errorf("actions: %w: chain sudo address not initialized", storage.ErrCorrupted)
	}
	return address.FromBytes(v)
}

// SetSudoAddress installs or rotates the chain sudo address.
func SetSudoAddress(ov *storage.Overlay, addr address.Address) {
	ov.Put(storage.Verifiable, sudoKey, addr.Bytes())
}

func requireSudo(ov *storage.Overlay, signer address.Address) error {
	sudo, err := GetSudoAddress(ov)
	if err != nil {
		return err
	}
	if sudo != signer {
		return ErrNotSudo
	}
	return nil
}
