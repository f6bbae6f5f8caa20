// Copyright 2025 Astria Sequencer Contributors
//
// sequctl is a thin fee-change CLI, the one client-side surface this
// repository implements from the original astria-cli (§ change_fees.rs):
// it builds, signs and broadcasts a single FeeChange transaction. Flag
// parsing is the standard library's flag package only — a full CLI
// framework (cobra/clap-equivalent) is out of scope.

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("sequctl: %v", err)
	}
}

func run() error {
	var (
		prefix       = flag.String("prefix", "astria", "bech32m prefix used to derive the signer's address")
		privateKey   = flag.String("private-key", os.Getenv("SEQUENCER_PRIVATE_KEY"), "hex-encoded ed25519 private key (or set SEQUENCER_PRIVATE_KEY)")
		sequencerURL = flag.String("sequencer-url", envOr("SEQUENCER_URL", "http://127.0.0.1:26657"), "CometBFT RPC address of the sequencer node")
		chainID      = flag.String("sequencer.chain-id", envOr("ROLLUP_SEQUENCER_CHAIN_ID", "astria-sequencer-devnet"), "chain ID of the sequencing chain")
		nonce        = flag.Uint("nonce", 0, "signer's next nonce")
		forAction    = flag.String("for-action", "", "action name the fee change applies to, e.g. Transfer, BridgeLock")
		base         = flag.String("base", "", "new base fee, as a uint128 decimal string")
		multiplier   = flag.String("multiplier", "", "new fee multiplier, as a uint128 decimal string")
	)
	flag.Parse()

	if *privateKey == "" {
		return fmt.Errorf("private key is required (-private-key or SEQUENCER_PRIVATE_KEY)")
	}
	if *forAction == "" || *base == "" || *multiplier == "" {
		return fmt.Errorf("-for-action, -base and -multiplier are all required")
	}

	priv, err := decodePrivateKey(*privateKey)
	if err != nil {
		return err
	}

	signerAddr, err := address.FromBytes(pubKeyAddress(priv.Public().(ed25519.PublicKey)))
	if err != nil {
		return fmt.Errorf("derive signer address: %w", err)
	}
	rendered, err := address.Encode(*prefix, signerAddr)
	if err != nil {
		return fmt.Errorf("encode signer address: %w", err)
	}

	t := &tx.Transaction{
		UnsignedTransaction: tx.UnsignedTransaction{
			ChainID: *chainID,
			Nonce:   uint32(*nonce),
			Actions: []tx.Action{&tx.FeeChange{
				ForAction:  *forAction,
				Base:       *base,
				Multiplier: *multiplier,
			}},
		},
	}
	if err := t.Sign(priv); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := t.Marshal()
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	client, err := rpchttp.New(*sequencerURL, "/websocket")
	if err != nil {
		return fmt.Errorf("connect to %s: %w", *sequencerURL, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := client.BroadcastTxCommit(ctx, raw)
	if err != nil {
		return fmt.Errorf("broadcast fee change transaction: %w", err)
	}
	if result.CheckTx.Code != 0 {
		return fmt.Errorf("fee change rejected at check_tx: %s", result.CheckTx.Log)
	}
	if result.TxResult.Code != 0 {
		return fmt.Errorf("fee change rejected at deliver_tx: %s", result.TxResult.Log)
	}

	fmt.Printf("Fee change completed.\n")
	fmt.Printf("  signer:  %s\n", rendered)
	fmt.Printf("  height:  %d\n", result.Height)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func decodePrivateKey(hexKey string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("private key is not valid hex: %w", err)
	}
	switch len(b) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}

// pubKeyAddress mirrors pkg/tx's unexported pubKeyToAddress: SHA-256 of
// the raw public key, truncated to the address length.
func pubKeyAddress(pub ed25519.PublicKey) []byte {
	sum := sha256.Sum256(pub)
	return sum[:address.Length]
}
