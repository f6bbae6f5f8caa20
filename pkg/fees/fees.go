// Copyright 2025 Astria Sequencer Contributors
//
// Fee engine (C3, §4.4). Every checked action calls HandleFees before its
// state-mutating body: it reads FeeComponents for the action, computes
// total = base + multiplier*computed_cost_base_component, debits the
// signer, credits the per-block accumulator, and emits a tx.fees event.

package fees

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

var (
	// ErrActionDisabled is returned when no FeeComponents record exists
	// for an action: a missing fee record means the action is disabled.
	ErrActionDisabled = errors.New("fees: no fee components recorded for action, action is disabled")

	// ErrAssetNotAllowed is returned when fee_asset is not in the
	// per-chain allow-list.
	ErrAssetNotAllowed = errors.New("fees: asset is not in the fee-payable allow-list")

	// ErrOverflow marks a hard failure computing total fee cost (§4.4).
	ErrOverflow = errors.New("fees: overflow computing total fee")
)

// maxU128 bounds fee arithmetic the way the Rust original's u128 amounts
// do; exceeding it is the overflow condition spec.md calls a hard error.
var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Components is the per-action fee schedule: total = base + multiplier *
// computed_cost_base_component(action).
type Components struct {
	Base       *big.Int
	Multiplier *big.Int
}

type encodedComponents struct {
	Base       string `json:"base"`
	Multiplier string `json:"multiplier"`
}

func componentsKey(action string) []byte {
	return storage.Keyf("fees/components/%s", action)
}

func allowedAssetKey(ibc asset.IBCDenom) []byte {
	return storage.Keyf("fees/allowed_asset/%s", ibc.String())
}

func blockAccumKey(ibc asset.IBCDenom) []byte {
	return storage.Keyf("fees/block_accum/%s", ibc.String())
}

// Engine reads and writes fee state against a transactional overlay.
type Engine struct {
	ov *storage.Overlay
}

// New wraps an overlay with fee-engine accessors.
func New(ov *storage.Overlay) *Engine {
	return &Engine{ov: ov}
}

// GetComponents returns the FeeComponents for action, or ErrActionDisabled
// if none is recorded.
func (e *Engine) GetComponents(action string) (Components, error) {
	v, err := e.ov.Get(storage.Verifiable, componentsKey(action))
	if err != nil {
		return Components{}, err
	}
	if v == nil {
		return Components{}, fmt.Errorf("%w: action %q", ErrActionDisabled, action)
	}
	var enc encodedComponents
	if err := json.Unmarshal(v, &enc); err != nil {
		return Components{}, fmt.Errorf("fees: %w: %v", storage.ErrCorrupted, err)
	}
	base, ok := new(big.Int).SetString(enc.Base, 10)
	if !ok {
		return Components{}, fmt.Errorf("fees: %w: bad base %q", storage.ErrCorrupted, enc.Base)
	}
	mult, ok := new(big.Int).SetString(enc.Multiplier, 10)
	if !ok {
		return Components{}, fmt.Errorf("fees: %w: bad multiplier %q", storage.ErrCorrupted, enc.Multiplier)
	}
	return Components{Base: base, Multiplier: mult}, nil
}

// SetComponents installs or updates the FeeComponents for action; the
// write path for genesis and for the FeeChange action.
func (e *Engine) SetComponents(action string, c Components) error {
	enc := encodedComponents{Base: c.Base.String(), Multiplier: c.Multiplier.String()}
	b, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	e.ov.Put(storage.Verifiable, componentsKey(action), b)
	return nil
}

// IsAssetAllowed reports whether ibc is in the fee-payable allow-list.
func (e *Engine) IsAssetAllowed(ibc asset.IBCDenom) (bool, error) {
	v, err := e.ov.Get(storage.Verifiable, allowedAssetKey(ibc))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// SetAssetAllowed adds or removes ibc from the allow-list (FeeAssetChange).
func (e *Engine) SetAssetAllowed(ibc asset.IBCDenom, allowed bool) {
	if allowed {
		e.ov.Put(storage.Verifiable, allowedAssetKey(ibc), []byte{1})
	} else {
		e.ov.Delete(storage.Verifiable, allowedAssetKey(ibc))
	}
}

// Event is the tx.fees event emitted for each fee payment (§4.4).
type Event struct {
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	ActionName       string `json:"action_name"`
	ActionIndex      uint64 `json:"action_index"`
	SourceTxID       string `json:"source_tx_id"`
}

// computeTotal implements total = base + multiplier*costBase with the
// overflow checks §4.4 requires.
func computeTotal(base, multiplier, costBase *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(multiplier, costBase)
	if product.CmpAbs(maxU128) > 0 {
		return nil, ErrOverflow
	}
	total := new(big.Int).Add(base, product)
	if total.CmpAbs(maxU128) > 0 {
		return nil, ErrOverflow
	}
	return total, nil
}

// HandleFees runs the full fee contract for one action: look up
// components, compute total, verify allow-list membership, debit the
// signer, credit the per-block accumulator, and return the emitted event.
// A missing fee record, disallowed asset, or insufficient balance returns
// a descriptive error and applies no writes (the caller's overlay
// discard-on-failure policy covers rollback, §7).
func (e *Engine) HandleFees(
	ledger *accounts.Ledger,
	signer address.Address,
	actionName string,
	feeAsset asset.Denom,
	costBase *big.Int,
	actionIndex uint64,
	txID [32]byte,
) (*Event, error) {
	components, err := e.GetComponents(actionName)
	if err != nil {
		return nil, err
	}
	ibc := feeAsset.ToIBC()
	allowed, err := e.IsAssetAllowed(ibc)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotAllowed, feeAsset)
	}
	total, err := computeTotal(components.Base, components.Multiplier, costBase)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return &Event{
			Asset: ibc.String(), Amount: "0", ActionName: actionName,
			ActionIndex: actionIndex, SourceTxID: fmt.Sprintf("%x", txID[:]),
		}, nil
	}
	if err := ledger.Debit(signer, ibc, total); err != nil {
		return nil, fmt.Errorf("fees: %w", err)
	}
	if err := e.creditAccumulator(ibc, total); err != nil {
		return nil, err
	}
	return &Event{
		Asset:       ibc.String(),
		Amount:      total.String(),
		ActionName:  actionName,
		ActionIndex: actionIndex,
		SourceTxID:  fmt.Sprintf("%x", txID[:]),
	}, nil
}

func (e *Engine) creditAccumulator(ibc asset.IBCDenom, amount *big.Int) error {
	key := blockAccumKey(ibc)
	v, err := e.ov.Get(storage.NonVerifiable, key)
	if err != nil {
		return err
	}
	current := big.NewInt(0)
	if v != nil {
		if _, ok := current.SetString(string(v), 10); !ok {
			return fmt.Errorf("fees: %w: bad accumulator value", storage.ErrCorrupted)
		}
	}
	current.Add(current, amount)
	e.ov.Put(storage.NonVerifiable, key, []byte(current.String()))
	return nil
}

// BlockAccumulator returns the current per-block fee total for ibc. The
// block builder deletes the accumulator entries at the end of every build
// or replay pass, so the total never spans more than one block.
func (e *Engine) BlockAccumulator(ibc asset.IBCDenom) (*big.Int, error) {
	v, err := e.ov.Get(storage.NonVerifiable, blockAccumKey(ibc))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(string(v), 10)
	if !ok {
		return nil, fmt.Errorf("fees: %w: bad accumulator value", storage.ErrCorrupted)
	}
	return out, nil
}

// DepositBaseFee is the constant byte count that, added to the lengths of
// a deposit's asset denom and destination chain address, forms the
// bridge-lock/bridge-transfer cost base the multiplier applies to (§4.4);
// grounded on the original implementation's DEPOSIT_BASE_FEE.
const DepositBaseFee = 16
