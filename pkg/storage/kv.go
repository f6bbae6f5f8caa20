// Copyright 2025 Astria Sequencer Contributors
//
// KV adapter for CometBFT database integration.
// Wraps CometBFT's dbm.DB interface for the versioned store façade.

package storage

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal interface the versioned store façade builds on.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Iterator(start, end []byte) (dbm.Iterator, error)
}

// dbAdapter wraps a CometBFT dbm.DB and exposes the KV interface used by
// Store. This allows Store to use CometBFT's persistent storage directly,
// the way pkg/kvdb/adapter.go wraps it for ledger.KV in the teacher.
type dbAdapter struct {
	db dbm.DB
}

// newDBAdapter creates a new dbAdapter for the given underlying DB.
func newDBAdapter(db dbm.DB) *dbAdapter {
	return &dbAdapter{db: db}
}

func (a *dbAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *dbAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

func (a *dbAdapter) Delete(key []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.DeleteSync(key)
}

func (a *dbAdapter) Iterator(start, end []byte) (dbm.Iterator, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Iterator(start, end)
}
