// Copyright 2025 Astria Sequencer Contributors
//
// ValidatorUpdate support: a per-block cache the ABCI driver drains into
// cometbft's ResponseFinalizeBlock.ValidatorUpdates, plus a persistent
// name registry backing the GetValidatorName query (§6).

package actions

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

// ValidatorUpdateRecord is one pending validator-set change, keyed for
// later conversion into a cometbft abci.ValidatorUpdate.
type ValidatorUpdateRecord struct {
	PubKey []byte `json:"pub_key"`
	Power  int64  `json:"power"`
	Name   string `json:"name"`
}

func validatorUpdateCacheKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return storage.Keyf("validators/update_cache/%x", b[:])
}

func validatorNameKey(pubKey []byte) []byte {
	return storage.Keyf("validators/name/%s", hex.EncodeToString(pubKey))
}

func recordValidatorUpdate(ov *storage.Overlay, ctx Context, a *tx.ValidatorUpdate) error {
	rec := ValidatorUpdateRecord{PubKey: a.PubKey, Power: a.Power, Name: a.Name}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	existing, err := ov.Prefix(storage.NonVerifiable, storage.Keyf("validators/update_cache/"))
	if err != nil {
		return err
	}
	ov.Put(storage.NonVerifiable, validatorUpdateCacheKey(uint64(len(existing))), b)
	if a.Power > 0 {
		ov.Put(storage.Verifiable, validatorNameKey(a.PubKey), []byte(a.Name))
	} else {
		ov.Delete(storage.Verifiable, validatorNameKey(a.PubKey))
	}
	return nil
}

// DrainValidatorUpdates returns every ValidatorUpdate recorded so far
// this block, in submission order. Like bridge deposits, the cache is not
// cleared here; the block builder deletes it in its overlay after draining.
func DrainValidatorUpdates(ov *storage.Overlay) ([]ValidatorUpdateRecord, error) {
	pairs, err := ov.Prefix(storage.NonVerifiable, storage.Keyf("validators/update_cache/"))
	if err != nil {
		return nil, err
	}
	out := make([]ValidatorUpdateRecord, 0, len(pairs))
	for _, kv := range pairs {
		var rec ValidatorUpdateRecord
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			return nil, fmt.Errorf("actions: %w: %v", storage.ErrCorrupted, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetValidatorName looks up the human-readable name recorded for pubKey,
// empty string if none was ever set.
func GetValidatorName(ov *storage.Overlay, pubKey []byte) (string, error) {
	v, err := ov.Get(storage.Verifiable, validatorNameKey(pubKey))
	if err != nil {
		return "", err
	}
	return string(v), nil
}
