// Copyright 2025 Astria Sequencer Contributors
//
// Block builder and verifier (C10/C11, §4.7). PrepareProposal drains the
// mempool against a proposal overlay under byte/gas budgets and prepends
// the two rollup-data commitments; ProcessProposal replays the same
// pipeline against the same initial snapshot and checks the prefixed
// commitments match bit for bit.

package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/actions"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/bridge"
	"github.com/astriaorg/astria-go-sequencer/pkg/codec"
	"github.com/astriaorg/astria-go-sequencer/pkg/mempool"
	"github.com/astriaorg/astria-go-sequencer/pkg/merkle"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

// Constraints bounds one proposal: the cometbft-supplied budget
// intersected with the chain's own configured ceiling (§4.7 step 2).
type Constraints struct {
	MaxBytes int64
	MaxGas   int64
}

// ErrOverBudget names the proposal reaching its byte or gas ceiling. Build
// does not return it: a transaction that would exceed either ceiling is
// skipped and draining continues with the next candidate.
var ErrOverBudget = errors.New("block: proposal over budget")

// ErrCommitmentMismatch is ProcessProposal's rejection when the prefixed
// commitments don't match the locally recomputed ones (§4.7, §8).
var ErrCommitmentMismatch = errors.New("block: rollup commitment mismatch")

// TxResult is one transaction's execution outcome, the shape FinalizeBlock
// reports per tx (§6).
type TxResult struct {
	TxBytes []byte
	Code    uint32
	Info    string
	Events  []actions.Event
}

// RollupGroup is one rollup's concatenated deposit bytes for a height,
// the leaf input the gRPC query surface and archive index replay
// without needing to recompute the commitment tree themselves.
type RollupGroup struct {
	RollupID [32]byte
	Data     []byte
}

// Built is everything PrepareProposal/FinalizeBlock need to hand back to
// the ABCI driver.
type Built struct {
	Txs              [][]byte // rollup_datas_root, rollup_ids_root, then tx bytes
	Results          []TxResult
	ValidatorUpdates []actions.ValidatorUpdateRecord
	RollupDatasRoot  []byte
	RollupIDsRoot    []byte
	RollupGroups     []RollupGroup
}

// ChainSecret and Prefixes are carried from chain configuration into
// every action's Context; ChainID gates signed transactions replaying on
// the wrong network.
type Params struct {
	ChainID     string
	Prefixes    address.Prefixes
	ChainSecret []byte
}

// Build runs the shared drain-execute-commit pipeline once, against ov,
// consuming candidates from it (PrepareProposal) or replaying a fixed
// transaction list (ProcessProposal/FinalizeBlock use Replay instead).
func Build(ov *storage.Overlay, mp *mempool.Mempool, params Params, c Constraints) (*Built, error) {
	it := mp.Iterator()
	var (
		txsOut     [][]byte
		results    []TxResult
		totalBytes int64
		totalGas   int64
	)

	for {
		entry, ok := it.Next()
		if !ok {
			break
		}
		raw, err := entry.Tx.Marshal()
		if err != nil {
			continue
		}
		gas := int64(len(raw))
		if totalBytes+int64(len(raw)) > c.MaxBytes || totalGas+gas > c.MaxGas {
			continue
		}

		result, ok := executeOne(ov, params, entry.Tx, raw)
		if !ok {
			continue
		}
		totalBytes += int64(len(raw))
		totalGas += gas
		txsOut = append(txsOut, raw)
		results = append(results, result)
	}

	return finishBuild(ov, txsOut, results)
}

// Replay re-executes a fixed, ordered list of already-serialized
// transactions against ov (ProcessProposal verifying a peer's proposal,
// or FinalizeBlock re-running a proposal it did not itself build).
func Replay(ov *storage.Overlay, params Params, rawTxs [][]byte) (*Built, error) {
	var results []TxResult
	for _, raw := range rawTxs {
		t, err := tx.Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("block: %w: %v", ErrCommitmentMismatch, err)
		}
		result, ok := executeOne(ov, params, t, raw)
		if !ok {
			return nil, fmt.Errorf("block: %w: transaction %x did not execute", ErrCommitmentMismatch, result.TxBytes[:8])
		}
		results = append(results, result)
	}
	return finishBuild(ov, rawTxs, results)
}

func executeOne(ov *storage.Overlay, params Params, t *tx.Transaction, raw []byte) (TxResult, bool) {
	signer, err := t.Verify()
	if err != nil {
		return TxResult{TxBytes: raw, Code: 1, Info: err.Error()}, false
	}
	if t.ChainID != params.ChainID {
		return TxResult{TxBytes: raw, Code: 1, Info: "wrong chain id"}, false
	}

	child := ov.Fork()
	ledger := accounts.New(child)
	if err := ledger.CheckAndIncrementNonce(signer, t.Nonce); err != nil {
		return TxResult{TxBytes: raw, Code: 2, Info: err.Error()}, false
	}

	txID := codec.HashBytes(raw)
	var events []actions.Event
	for i, a := range t.Actions {
		ctx := actions.Context{
			Prefixes: params.Prefixes, ChainSecret: params.ChainSecret,
			Signer: signer, TxID: txID, ActionIndex: uint64(i),
		}
		res, err := actions.Dispatch(child, ctx, a)
		if err != nil {
			return TxResult{TxBytes: raw, Code: 3, Info: err.Error()}, false
		}
		events = append(events, res.Events...)
	}

	ov.Merge(child)
	return TxResult{TxBytes: raw, Code: 0, Events: events}, true
}

func finishBuild(ov *storage.Overlay, txsOut [][]byte, results []TxResult) (*Built, error) {
	br := bridge.New(ov)
	deposits, err := br.DrainDeposits()
	if err != nil {
		return nil, err
	}
	byRollup := make(map[[32]byte][]byte)
	var order [][32]byte
	for _, d := range deposits {
		if _, seen := byRollup[d.RollupID]; !seen {
			order = append(order, d.RollupID)
		}
		b, err := codec.Marshal(d)
		if err != nil {
			return nil, err
		}
		byRollup[d.RollupID] = append(byRollup[d.RollupID], b...)
	}
	entries := make([]merkle.RollupData, 0, len(order))
	rollupIDs := make([][]byte, 0, len(order))
	groups := make([]RollupGroup, 0, len(order))
	for _, id := range order {
		idCopy := id
		entries = append(entries, merkle.RollupData{RollupID: idCopy[:], Data: byRollup[id]})
		rollupIDs = append(rollupIDs, idCopy[:])
		groups = append(groups, RollupGroup{RollupID: idCopy, Data: byRollup[id]})
	}

	datasRoot, err := merkle.RollupDatasRoot(entries)
	if err != nil {
		return nil, err
	}
	idsRoot, err := merkle.RollupIDsRoot(rollupIDs)
	if err != nil {
		return nil, err
	}

	validatorUpdates, err := actions.DrainValidatorUpdates(ov)
	if err != nil {
		return nil, err
	}
	// The per-block caches are consumed; deleting them in ov keeps them
	// out of the next block once FinalizeBlock commits this overlay.
	for _, prefix := range [][]byte{storage.Keyf("bridge/deposit_cache/"), storage.Keyf("validators/update_cache/"), storage.Keyf("fees/block_accum/")} {
		pairs, err := ov.Prefix(storage.NonVerifiable, prefix)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			ov.Delete(storage.NonVerifiable, kv.Key)
		}
	}

	allTxs := make([][]byte, 0, len(txsOut)+2)
	allTxs = append(allTxs, datasRoot, idsRoot)
	allTxs = append(allTxs, txsOut...)

	return &Built{
		Txs: allTxs, Results: results, ValidatorUpdates: validatorUpdates,
		RollupDatasRoot: datasRoot, RollupIDsRoot: idsRoot, RollupGroups: groups,
	}, nil
}

// VerifyCommitments checks that the first two entries of a proposal's
// txs match freshly computed commitments bit for bit (§4.7, §8 scenario
// 6).
func VerifyCommitments(proposalTxs [][]byte, built *Built) error {
	if len(proposalTxs) < 2 {
		return fmt.Errorf("%w: proposal missing commitment prefix", ErrCommitmentMismatch)
	}
	if !bytes.Equal(proposalTxs[0], built.RollupDatasRoot) {
		return fmt.Errorf("%w: rollup_datas_root", ErrCommitmentMismatch)
	}
	if !bytes.Equal(proposalTxs[1], built.RollupIDsRoot) {
		return fmt.Errorf("%w: rollup_ids_root", ErrCommitmentMismatch)
	}
	return nil
}
