// Copyright 2025 Astria Sequencer Contributors
//
// SequencerService (§6): the gRPC surface external consumers (conductors,
// relayers, block explorers) poll instead of the CometBFT RPC directly.
// Message shapes stand in for the generated protobuf types §1 excludes
// ("generated protobuf encode/decode (assumed correct)"); the service is
// wired onto a real *grpc.Server in wire.go.

package grpcserver

import (
	"context"

	"github.com/astriaorg/astria-go-sequencer/pkg/actions"
	"github.com/astriaorg/astria-go-sequencer/pkg/upgrades"
)

// RollupTransactions is one rollup's slice of a sequencer block: its
// namespace-derivable rollup ID and the concatenated deposit/tx bytes
// addressed to it, plus the inclusion proof path against
// rollup_datas_root (omitted here; callers recompute via pkg/merkle).
type RollupTransactions struct {
	RollupID [32]byte `json:"rollup_id"`
	Data     []byte   `json:"data"`
}

// UpgradeChangeRecord is one upgrade applied at this height, with the
// hash recorded by the upgrade scheduler (C12).
type UpgradeChangeRecord struct {
	Name       string `json:"name"`
	ChangeHash []byte `json:"change_hash"`
}

// SequencerBlock is the full shape GetSequencerBlock/GetFilteredSequencerBlock
// return.
type SequencerBlock struct {
	Height             int64                            `json:"height"`
	BlockHash          []byte                           `json:"block_hash"`
	RollupDatasRoot    []byte                           `json:"rollup_datas_root"`
	RollupIDsRoot      []byte                           `json:"rollup_ids_root"`
	RollupTransactions []RollupTransactions             `json:"rollup_transactions"`
	AppliedUpgrades    []UpgradeChangeRecord             `json:"applied_upgrades"`
	ValidatorUpdates   []actions.ValidatorUpdateRecord   `json:"validator_updates,omitempty"`
	ExtendedCommitInfo []byte                           `json:"extended_commit_info,omitempty"`
}

// GetSequencerBlockRequest names the height to fetch.
type GetSequencerBlockRequest struct {
	Height int64 `json:"height"`
}

// GetSequencerBlockResponse wraps the fetched block.
type GetSequencerBlockResponse struct {
	Block *SequencerBlock `json:"block"`
}

// GetFilteredSequencerBlockRequest restricts rollup_transactions to the
// named rollup IDs.
type GetFilteredSequencerBlockRequest struct {
	Height    int64      `json:"height"`
	RollupIDs [][32]byte `json:"rollup_ids"`
}

// GetFilteredSequencerBlockResponse wraps the filtered block.
type GetFilteredSequencerBlockResponse struct {
	Block *SequencerBlock `json:"block"`
}

// GetPendingNonceRequest names the account to look up.
type GetPendingNonceRequest struct {
	Address string `json:"address"`
}

// GetPendingNonceResponse carries the resolved nonce.
type GetPendingNonceResponse struct {
	Nonce uint32 `json:"nonce"`
}

// GetUpgradesInfoRequest takes no parameters.
type GetUpgradesInfoRequest struct{}

// GetUpgradesInfoResponse splits the upgrade schedule by current height.
type GetUpgradesInfoResponse struct {
	Applied   []upgrades.Change `json:"applied"`
	Scheduled []upgrades.Change `json:"scheduled"`
}

// GetValidatorNameRequest carries the validator's hex-encoded pubkey.
type GetValidatorNameRequest struct {
	Address string `json:"address"`
}

// GetValidatorNameResponse carries the resolved name.
type GetValidatorNameResponse struct {
	Name string `json:"name"`
}

// SequencerServiceServer is the interface a concrete backend implements;
// protoc-gen-go-grpc would generate this signature set verbatim from a
// sequencer.proto service definition.
type SequencerServiceServer interface {
	GetSequencerBlock(ctx context.Context, req *GetSequencerBlockRequest) (*GetSequencerBlockResponse, error)
	GetFilteredSequencerBlock(ctx context.Context, req *GetFilteredSequencerBlockRequest) (*GetFilteredSequencerBlockResponse, error)
	GetPendingNonce(ctx context.Context, req *GetPendingNonceRequest) (*GetPendingNonceResponse, error)
	GetUpgradesInfo(ctx context.Context, req *GetUpgradesInfoRequest) (*GetUpgradesInfoResponse, error)
	GetValidatorName(ctx context.Context, req *GetValidatorNameRequest) (*GetValidatorNameResponse, error)
}
