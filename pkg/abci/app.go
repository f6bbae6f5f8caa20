// Copyright 2025 Astria Sequencer Contributors
//
// ABCI driver (C13, §6). Wires the versioned store, mempool, block
// builder, and upgrade scheduler into CometBFT's application interface
// the way the teacher's pkg/consensus/abci_validator.go wires its own
// ledger and database layers into ValidatorApp.

package abci

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cryptoproto "github.com/cometbft/cometbft/proto/tendermint/crypto"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/actions"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/block"
	"github.com/astriaorg/astria-go-sequencer/pkg/fees"
	"github.com/astriaorg/astria-go-sequencer/pkg/grpcserver"
	"github.com/astriaorg/astria-go-sequencer/pkg/market"
	"github.com/astriaorg/astria-go-sequencer/pkg/mempool"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
	"github.com/astriaorg/astria-go-sequencer/pkg/upgrades"
)

// Metrics are the block-execution counters/gauges exposed on the
// teacher's /metrics pattern (prometheus/client_golang, DOMAIN STACK).
type Metrics struct {
	TxsExecuted  prometheus.Counter
	TxsRejected  prometheus.Counter
	FeesCharged  *prometheus.CounterVec
	MempoolDepth prometheus.Gauge
	BlockHeight  prometheus.Gauge
}

// NewMetrics registers the driver's metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TxsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_txs_executed_total", Help: "Transactions successfully executed.",
		}),
		TxsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_txs_rejected_total", Help: "Transactions rejected during execution.",
		}),
		FeesCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_fees_charged_total", Help: "Total fee amount charged, by asset.",
		}, []string{"asset"}),
		MempoolDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sequencer_mempool_depth", Help: "Resident mempool transaction count.",
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sequencer_block_height", Help: "Last committed block height.",
		}),
	}
	reg.MustRegister(m.TxsExecuted, m.TxsRejected, m.FeesCharged, m.MempoolDepth, m.BlockHeight)
	return m
}

// GenesisState is the JSON shape InitChain's AppStateBytes decodes into.
type GenesisState struct {
	SudoAddress      string                          `json:"sudo_address"`
	AllowedFeeAssets []string                         `json:"allowed_fee_assets"`
	FeeComponents    map[string]GenesisFeeComponents  `json:"fee_components"`
	Balances         []GenesisBalance                 `json:"balances"`
	Markets          []GenesisMarket                   `json:"markets"`
}

type GenesisFeeComponents struct {
	Base       string `json:"base"`
	Multiplier string `json:"multiplier"`
}

type GenesisBalance struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type GenesisMarket struct {
	Ticker     string `json:"ticker"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	TickSize   string `json:"tick_size"`
	LotSize    string `json:"lot_size"`
}

// App is the sequencer's ABCI application.
type App struct {
	mu sync.Mutex

	store    *storage.Store
	mempool  *mempool.Mempool
	params   block.Params
	cons     block.Constraints
	schedule *upgrades.Scheduler
	metrics  *Metrics
	logger   *log.Logger

	defaultFeeAsset asset.Denom

	lastHeight int64
	lastHash   []byte

	// pendingHeight/pendingHash record the height and app hash FinalizeBlock
	// just committed, so Commit can report RetainHeight without re-deriving
	// state; the store's own Apply/Commit split happens entirely inside
	// FinalizeBlock since ABCI 2.0 requires AppHash in its response, before
	// CometBFT ever calls Commit.
	pendingHeight int64
	pendingHash   []byte

	// recorder mirrors each finalized block into the optional archive
	// (pkg/archive) for the gRPC GetSequencerBlock/GetFilteredSequencerBlock
	// surface; nil when no archive database is configured.
	recorder BlockRecorder
}

// BlockRecorder is the archival sink FinalizeBlock reports to; implemented
// by *archive.Store. A failure to record is logged, never fatal to
// consensus.
type BlockRecorder interface {
	RecordBlock(ctx context.Context, blk *grpcserver.SequencerBlock) error
}

// SetRecorder wires an archival sink after construction; the node main
// package calls this once at startup when a DATABASE_URL is configured.
func (a *App) SetRecorder(r BlockRecorder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorder = r
}

// Mempool exposes the driver's mempool for the gRPC backend's
// GetPendingNonce lookups; the mempool's own methods are already
// safe for concurrent use.
func (a *App) Mempool() *mempool.Mempool {
	return a.mempool
}

// Config bundles the chain configuration App needs at construction.
type Config struct {
	ChainID         string
	Prefixes        address.Prefixes
	ChainSecret     []byte
	DefaultFeeAsset asset.Denom
	MempoolCapacity int
	MaxProposalBytes int64
	MaxProposalGas   int64
}

// New constructs an App over an already-opened store.
func New(store *storage.Store, cfg Config, schedule *upgrades.Scheduler, metrics *Metrics) *App {
	return &App{
		store:   store,
		mempool: mempool.New(cfg.MempoolCapacity),
		params: block.Params{
			ChainID: cfg.ChainID, Prefixes: cfg.Prefixes, ChainSecret: cfg.ChainSecret,
		},
		cons:            block.Constraints{MaxBytes: cfg.MaxProposalBytes, MaxGas: cfg.MaxProposalGas},
		schedule:        schedule,
		metrics:         metrics,
		logger:          log.New(log.Writer(), "[abci] ", log.LstdFlags),
		defaultFeeAsset: cfg.DefaultFeeAsset,
		lastHeight:      store.Version(),
		lastHash:        store.AppHash(),
	}
}

// Info reports the last committed height and app hash.
func (a *App) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &abcitypes.ResponseInfo{
		Data:             "astria-go-sequencer",
		Version:          "0.1.0",
		AppVersion:       1,
		LastBlockHeight:  a.lastHeight,
		LastBlockAppHash: a.lastHash,
	}, nil
}

// InitChain seeds genesis state: the sudo address, fee schedule, initial
// balances, and market map.
func (a *App) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var gs GenesisState
	if len(req.AppStateBytes) > 0 {
		if err := json.Unmarshal(req.AppStateBytes, &gs); err != nil {
			return nil, fmt.Errorf("abci: invalid genesis app state: %w", err)
		}
	}

	ov := a.store.Snapshot().BeginTx()

	if gs.SudoAddress != "" {
		sudo, err := address.MustDecodeBase(a.params.Prefixes, gs.SudoAddress)
		if err != nil {
			return nil, fmt.Errorf("abci: genesis sudo_address: %w", err)
		}
		actions.SetSudoAddress(ov, sudo)
	}

	fe := fees.New(ov)
	for _, assetStr := range gs.AllowedFeeAssets {
		denom := asset.Denom(assetStr)
		if err := denom.Validate(); err != nil {
			return nil, fmt.Errorf("abci: genesis allowed_fee_assets: %w", err)
		}
		fe.SetAssetAllowed(denom.ToIBC(), true)
	}
	for action, c := range gs.FeeComponents {
		base, ok := new(big.Int).SetString(c.Base, 10)
		if !ok {
			return nil, fmt.Errorf("abci: genesis fee_components[%s].base is not a valid integer", action)
		}
		mult, ok := new(big.Int).SetString(c.Multiplier, 10)
		if !ok {
			return nil, fmt.Errorf("abci: genesis fee_components[%s].multiplier is not a valid integer", action)
		}
		if err := fe.SetComponents(action, fees.Components{Base: base, Multiplier: mult}); err != nil {
			return nil, err
		}
	}

	ledger := accounts.New(ov)
	for _, b := range gs.Balances {
		addr, err := address.MustDecodeBase(a.params.Prefixes, b.Address)
		if err != nil {
			return nil, fmt.Errorf("abci: genesis balance address: %w", err)
		}
		denom := asset.Denom(b.Asset)
		if err := denom.Validate(); err != nil {
			return nil, fmt.Errorf("abci: genesis balance asset: %w", err)
		}
		amount, ok := new(big.Int).SetString(b.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("abci: genesis balance amount %q is not a valid integer", b.Amount)
		}
		if err := ledger.Credit(addr, denom.ToIBC(), amount); err != nil {
			return nil, err
		}
	}

	mm := market.New(ov)
	for _, gm := range gs.Markets {
		tick, ok := new(big.Int).SetString(gm.TickSize, 10)
		if !ok {
			return nil, fmt.Errorf("abci: genesis market %s: bad tick_size", gm.Ticker)
		}
		lot, ok := new(big.Int).SetString(gm.LotSize, 10)
		if !ok {
			return nil, fmt.Errorf("abci: genesis market %s: bad lot_size", gm.Ticker)
		}
		if err := mm.Create(market.Market{
			Ticker: gm.Ticker, BaseAsset: gm.BaseAsset, QuoteAsset: gm.QuoteAsset,
			TickSize: tick, LotSize: lot,
		}); err != nil {
			return nil, err
		}
	}

	batch := a.store.Apply(ov)
	hash, err := a.store.Commit(batch)
	if err != nil {
		return nil, err
	}
	a.lastHeight = a.store.Version()
	a.lastHash = hash

	return &abcitypes.ResponseInitChain{}, nil
}

// txCost estimates a transaction's mempool priority cost as its
// serialized byte length, the same cost proxy the block builder uses for
// its gas budget (§4.7 scope decision carried into §4.6's cost-priority
// ordering, since CheckTx cannot afford to dry-run the fee engine without
// mutating an overlay).
func txCost(raw []byte) *big.Int {
	return big.NewInt(int64(len(raw)))
}

// CheckTx admits a transaction into the mempool after verifying its
// signature, chain ID, and nonce/affordability against committed state.
func (a *App) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	t, err := tx.Unmarshal(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	signer, err := t.Verify()
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	if t.ChainID != a.params.ChainID {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: "wrong chain id"}, nil
	}

	sn := a.store.Snapshot()
	ledger := accounts.New(sn.BeginTx())
	currentNonce, err := ledger.Nonce(signer)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 3, Log: err.Error()}, nil
	}
	balance, err := ledger.Balance(signer, a.defaultFeeAsset.ToIBC())
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 3, Log: err.Error()}, nil
	}

	cost := txCost(req.Tx)
	if err := a.mempool.Insert(t, signer, currentNonce, balance, cost); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 2, Log: err.Error()}, nil
	}
	a.metrics.MempoolDepth.Set(float64(a.mempool.Len()))
	return &abcitypes.ResponseCheckTx{Code: 0, GasWanted: int64(len(req.Tx))}, nil
}

// PrepareProposal drains the mempool into a new proposal against a
// scratch overlay over the last committed snapshot; the overlay is
// discarded once the proposal's bytes are returned (FinalizeBlock
// replays for real, §4.7).
func (a *App) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ov := a.store.Snapshot().BeginTx()
	cons := a.cons
	if req.MaxTxBytes > 0 && req.MaxTxBytes < cons.MaxBytes {
		cons.MaxBytes = req.MaxTxBytes
	}
	built, err := block.Build(ov, a.mempool, a.params, cons)
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponsePrepareProposal{Txs: built.Txs}, nil
}

// ProcessProposal replays a peer's proposed transaction list against a
// scratch overlay and checks the prefixed rollup-data commitments match
// bit for bit (§4.7, §8 scenario 6).
func (a *App) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	if len(req.Txs) < 2 {
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
	}
	ov := a.store.Snapshot().BeginTx()
	built, err := block.Replay(ov, a.params, req.Txs[2:])
	if err != nil {
		a.logger.Printf("ProcessProposal: replay failed: %v", err)
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
	}
	if err := block.VerifyCommitments(req.Txs, built); err != nil {
		a.logger.Printf("ProcessProposal: %v", err)
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// FinalizeBlock applies any upgrade scheduled for this height, then
// replays the proposal's transactions for real against the committed
// snapshot and commits the resulting writes to the store, so the response
// can carry the new app hash.
func (a *App) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ov := a.store.Snapshot().BeginTx()

	var appliedChanges []upgrades.AppliedChange
	if a.schedule != nil {
		var err error
		appliedChanges, err = a.schedule.ApplyActivated(ov, uint64(req.Height), req.Hash)
		if err != nil {
			return nil, fmt.Errorf("abci: upgrade activation: %w", err)
		}
	}

	var built *block.Built
	var err error
	if len(req.Txs) >= 2 {
		built, err = block.Replay(ov, a.params, req.Txs[2:])
	} else {
		built, err = block.Replay(ov, a.params, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("abci: finalize replay: %w", err)
	}

	txResults := make([]*abcitypes.ExecTxResult, len(built.Results))
	for i, r := range built.Results {
		events := make([]abcitypes.Event, len(r.Events))
		for j, e := range r.Events {
			attrs := make([]abcitypes.EventAttribute, 0, len(e.Attributes))
			for k, v := range e.Attributes {
				attrs = append(attrs, abcitypes.EventAttribute{Key: k, Value: v})
			}
			events[j] = abcitypes.Event{Type: e.Type, Attributes: attrs}
		}
		txResults[i] = &abcitypes.ExecTxResult{Code: r.Code, Log: r.Info, Events: events}
		if r.Code == 0 {
			a.metrics.TxsExecuted.Inc()
			for _, e := range r.Events {
				if e.Type != "tx.fees" {
					continue
				}
				if amt, err := strconv.ParseFloat(e.Attributes["amount"], 64); err == nil {
					a.metrics.FeesCharged.WithLabelValues(e.Attributes["asset"]).Add(amt)
				}
			}
		} else {
			a.metrics.TxsRejected.Inc()
		}
	}

	var valUpdates []abcitypes.ValidatorUpdate
	for _, vu := range built.ValidatorUpdates {
		valUpdates = append(valUpdates, abcitypes.ValidatorUpdate{
			PubKey: cryptoproto.PublicKey{
				Sum: &cryptoproto.PublicKey_Ed25519{Ed25519: cmted25519.PubKey(vu.PubKey)},
			},
			Power: vu.Power,
		})
	}

	batch := a.store.Apply(ov)
	hash, err := a.store.Commit(batch)
	if err != nil {
		return nil, fmt.Errorf("abci: finalize commit: %w", err)
	}
	a.pendingHeight = a.store.Version()
	a.pendingHash = hash

	if a.recorder != nil {
		if err := a.recorder.RecordBlock(ctx, buildArchiveRecord(req.Height, hash, built, appliedChanges)); err != nil {
			a.logger.Printf("FinalizeBlock: archive record: %v", err)
		}
	}

	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        txResults,
		ValidatorUpdates: valUpdates,
		AppHash:          hash,
	}, nil
}

// Commit acknowledges the block FinalizeBlock already durably wrote: the
// store's Apply/Commit split happens inside FinalizeBlock itself (ABCI
// 2.0 needs the app hash there), so Commit only advances the driver's own
// bookkeeping and runs post-commit mempool maintenance.
func (a *App) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastHeight = a.pendingHeight
	a.lastHash = a.pendingHash

	a.metrics.BlockHeight.Set(float64(a.lastHeight))

	sn := a.store.Snapshot()
	state := &maintenanceState{sn: sn, defaultAsset: a.defaultFeeAsset}
	if err := a.mempool.RunMaintenance(state, true); err != nil {
		a.logger.Printf("Commit: mempool maintenance: %v", err)
	}
	a.metrics.MempoolDepth.Set(float64(a.mempool.Len()))

	retain := a.lastHeight - 100
	if retain < 0 {
		retain = 0
	}
	return &abcitypes.ResponseCommit{RetainHeight: retain}, nil
}

// maintenanceState implements mempool.AccountState against a committed
// snapshot for RunMaintenance's post-commit pruning pass.
type maintenanceState struct {
	sn           *storage.Snapshot
	defaultAsset asset.Denom
}

func (s *maintenanceState) CurrentNonce(signer address.Address) (uint32, error) {
	return accounts.New(s.sn.BeginTx()).Nonce(signer)
}

func (s *maintenanceState) Balance(signer address.Address) (*big.Int, error) {
	return accounts.New(s.sn.BeginTx()).Balance(signer, s.defaultAsset.ToIBC())
}

func (s *maintenanceState) Recost(t *tx.Transaction) (*big.Int, error) {
	raw, err := t.Marshal()
	if err != nil {
		return nil, err
	}
	return txCost(raw), nil
}

// buildArchiveRecord converts one finalized height's Built output into
// the shape grpcserver.BlockArchive stores and serves.
func buildArchiveRecord(height int64, blockHash []byte, built *block.Built, appliedChanges []upgrades.AppliedChange) *grpcserver.SequencerBlock {
	rollupTxs := make([]grpcserver.RollupTransactions, len(built.RollupGroups))
	for i, g := range built.RollupGroups {
		rollupTxs[i] = grpcserver.RollupTransactions{RollupID: g.RollupID, Data: g.Data}
	}
	upgradeRecords := make([]grpcserver.UpgradeChangeRecord, len(appliedChanges))
	for i, c := range appliedChanges {
		upgradeRecords[i] = grpcserver.UpgradeChangeRecord{Name: c.Name, ChangeHash: c.ChangeHash[:]}
	}
	return &grpcserver.SequencerBlock{
		Height:             height,
		BlockHash:          blockHash,
		RollupDatasRoot:    built.RollupDatasRoot,
		RollupIDsRoot:      built.RollupIDsRoot,
		RollupTransactions: rollupTxs,
		AppliedUpgrades:    upgradeRecords,
		ValidatorUpdates:   built.ValidatorUpdates,
	}
}

// Query dispatches the read-only ABCI query paths described in §6:
// order-book state, trades, markets, pending nonces, validator names,
// and upgrade info.
func (a *App) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	ov := a.store.Snapshot().BeginTx()
	resp, err := dispatchQuery(ov, a, req)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	return resp, nil
}

// ExtendVote / VerifyVoteExtension: unused by this chain, no vote
// extension data is produced or required.
func (a *App) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *App) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// State-sync is not implemented: a fresh node replays from genesis.
func (a *App) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *App) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (a *App) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *App) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}
