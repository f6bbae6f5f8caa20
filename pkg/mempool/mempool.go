// Copyright 2025 Astria Sequencer Contributors
//
// Priority mempool (C9, §4.6). Per-sender nonce-ordered queues feed a
// cost-indexed global ordering; run_maintenance is the only point at
// which the mempool reads fresh chain state. One coarse mutex guards every
// operation, reads included; there is no separate shared guard, and
// Iterator clones the candidate set while holding that mutex.

package mempool

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

var (
	// ErrStaleNonce rejects a transaction whose nonce is already behind
	// the account's current nonce.
	ErrStaleNonce = errors.New("mempool: transaction nonce is stale")

	// ErrAlreadyPresent rejects a duplicate (sender, nonce) insertion.
	ErrAlreadyPresent = errors.New("mempool: transaction already present for this sender and nonce")

	// ErrUnaffordable rejects an insertion that would make the
	// contiguous nonce-prefix starting at the account's current nonce
	// exceed its balance.
	ErrUnaffordable = errors.New("mempool: transaction would exceed the account's affordable nonce prefix")

	// ErrFull is returned when the mempool is at capacity and the
	// arriving transaction does not outrank the lowest-priority resident.
	ErrFull = errors.New("mempool: at capacity and arrival does not outrank any resident")
)

// Entry is one resident transaction.
type Entry struct {
	Tx         *tx.Transaction
	Signer     address.Address
	Nonce      uint32
	Cost       *big.Int
	ArrivalSeq uint64
}

// less implements the (cost desc, nonce asc, arrival asc) priority order:
// higher cost estimate outranks lower (§4.6), ties broken toward the
// earliest nonce, then earliest arrival.
func less(a, b *Entry) bool {
	if c := a.Cost.Cmp(b.Cost); c != 0 {
		return c > 0
	}
	if a.Nonce != b.Nonce {
		return a.Nonce < b.Nonce
	}
	return a.ArrivalSeq < b.ArrivalSeq
}

type senderQueue struct {
	nonces  []uint32
	entries map[uint32]*Entry
}

func newSenderQueue() *senderQueue {
	return &senderQueue{entries: make(map[uint32]*Entry)}
}

func (q *senderQueue) insert(e *Entry) {
	q.entries[e.Nonce] = e
	i := sort.Search(len(q.nonces), func(i int) bool { return q.nonces[i] >= e.Nonce })
	q.nonces = append(q.nonces, 0)
	copy(q.nonces[i+1:], q.nonces[i:])
	q.nonces[i] = e.Nonce
}

func (q *senderQueue) remove(nonce uint32) {
	delete(q.entries, nonce)
	for i, n := range q.nonces {
		if n == nonce {
			q.nonces = append(q.nonces[:i], q.nonces[i+1:]...)
			break
		}
	}
}

// Mempool is the resident transaction pool. All operations are guarded
// by a single coarse mutex (§5); Iterator clones the candidate set so
// block building never holds the mutation lock for the proposal's
// lifetime.
type Mempool struct {
	mu       sync.Mutex
	capacity int
	bySender map[address.Address]*senderQueue
	arrival  uint64
	size     int
}

// New constructs an empty mempool bounded at capacity resident
// transactions.
func New(capacity int) *Mempool {
	return &Mempool{capacity: capacity, bySender: make(map[address.Address]*senderQueue)}
}

// Insert admits t from signer. currentNonce is the account's latest
// committed nonce; balance and cost are the signer's current balance
// and this transaction's fee cost in the asset used for affordability
// checking (§4.6 step "cost_breakdown").
func (m *Mempool) Insert(t *tx.Transaction, signer address.Address, currentNonce uint32, balance, cost *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Nonce < currentNonce {
		return ErrStaleNonce
	}
	sq, ok := m.bySender[signer]
	if !ok {
		sq = newSenderQueue()
		m.bySender[signer] = sq
	}
	if _, exists := sq.entries[t.Nonce]; exists {
		return ErrAlreadyPresent
	}

	total := new(big.Int).Set(cost)
	contiguous := true
	for n := currentNonce; n < t.Nonce; n++ {
		e, ok := sq.entries[n]
		if !ok {
			contiguous = false
			break
		}
		total.Add(total, e.Cost)
	}
	if contiguous && total.Cmp(balance) > 0 {
		return ErrUnaffordable
	}

	if m.size >= m.capacity {
		if !m.evictForSpace(cost) {
			return ErrFull
		}
	}

	m.arrival++
	sq.insert(&Entry{Tx: t, Signer: signer, Nonce: t.Nonce, Cost: cost, ArrivalSeq: m.arrival})
	m.size++
	return nil
}

// evictForSpace drops the globally lowest-priority resident (by cost,
// taken from each sender's highest resident nonce so eviction never
// opens a hole inside a sender's contiguous run) iff its priority is
// below the arriving cost (§4.6 backpressure).
func (m *Mempool) evictForSpace(arrivingCost *big.Int) bool {
	var worstSigner address.Address
	var worstNonce uint32
	var worst *Entry
	for signer, sq := range m.bySender {
		if len(sq.nonces) == 0 {
			continue
		}
		tail := sq.nonces[len(sq.nonces)-1]
		e := sq.entries[tail]
		if worst == nil || e.Cost.Cmp(worst.Cost) < 0 {
			worst, worstSigner, worstNonce = e, signer, tail
		}
	}
	if worst == nil || arrivingCost.Cmp(worst.Cost) <= 0 {
		return false
	}
	m.bySender[worstSigner].remove(worstNonce)
	m.size--
	return true
}

// PendingNonce returns the next nonce the account should use: the
// highest nonce in the contiguous resident run starting at currentNonce,
// plus one. ok is false if no transaction is resident at currentNonce.
func (m *Mempool) PendingNonce(signer address.Address, currentNonce uint32) (nonce uint32, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sq, present := m.bySender[signer]
	if !present {
		return 0, false
	}
	if _, ok := sq.entries[currentNonce]; !ok {
		return 0, false
	}
	n := currentNonce
	for {
		if _, ok := sq.entries[n+1]; ok {
			n++
		} else {
			break
		}
	}
	return n + 1, true
}

// Len returns the number of resident transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// AccountState is the chain-state view run_maintenance and Iterator need
// per sender: the account's current nonce, current balance, and a
// recomputed fee cost for a given resident transaction.
type AccountState interface {
	CurrentNonce(signer address.Address) (uint32, error)
	Balance(signer address.Address) (*big.Int, error)
	Recost(t *tx.Transaction) (*big.Int, error)
}

// RunMaintenance drops transactions whose nonce is now stale for every
// resident sender, and, if recost is true, re-evaluates cost against the
// supplied fresh state and purges transactions rendered unaffordable
// along with everything queued behind them in that sender's run (§4.6).
// This is the only point at which the mempool reads fresh chain state.
func (m *Mempool) RunMaintenance(state AccountState, recost bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for signer, sq := range m.bySender {
		currentNonce, err := state.CurrentNonce(signer)
		if err != nil {
			return err
		}
		for _, n := range append([]uint32(nil), sq.nonces...) {
			if n < currentNonce {
				sq.remove(n)
				m.size--
			}
		}
		if !recost {
			continue
		}
		balance, err := state.Balance(signer)
		if err != nil {
			return err
		}
		total := big.NewInt(0)
		purging := false
		for _, n := range append([]uint32(nil), sq.nonces...) {
			if purging {
				sq.remove(n)
				m.size--
				continue
			}
			e, ok := sq.entries[n]
			if !ok {
				continue
			}
			newCost, err := state.Recost(e.Tx)
			if err != nil {
				return err
			}
			e.Cost = newCost
			total.Add(total, newCost)
			if total.Cmp(balance) > 0 {
				sq.remove(n)
				m.size--
				purging = true
			}
		}
		if len(sq.nonces) == 0 {
			delete(m.bySender, signer)
		}
	}
	return nil
}

// Iterator yields resident transactions in priority order, respecting
// each sender's nonce sequencing: a sender's next transaction only
// becomes a candidate once the previous one has been yielded (§4.7 block
// building walks the mempool this way). It operates on a point-in-time
// clone of the cost index (§5) and never mutates the mempool.
type Iterator struct {
	candidates []*Entry
	rest       map[address.Address][]*Entry
}

// Iterator clones the current candidate set (each sender's
// lowest-resident nonce) for a single proposal-building pass.
func (m *Mempool) Iterator() *Iterator {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := &Iterator{rest: make(map[address.Address][]*Entry)}
	for signer, sq := range m.bySender {
		if len(sq.nonces) == 0 {
			continue
		}
		var chain []*Entry
		for _, n := range sq.nonces {
			chain = append(chain, sq.entries[n])
		}
		it.candidates = append(it.candidates, chain[0])
		it.rest[signer] = chain[1:]
	}
	return it
}

// Next returns the highest-priority candidate across all senders, then
// promotes that sender's next-in-sequence transaction (if any) into the
// candidate set.
func (it *Iterator) Next() (*Entry, bool) {
	if len(it.candidates) == 0 {
		return nil, false
	}
	best := 0
	for i := 1; i < len(it.candidates); i++ {
		if less(it.candidates[i], it.candidates[best]) {
			best = i
		}
	}
	e := it.candidates[best]
	rest := it.rest[e.Signer]
	if len(rest) > 0 {
		it.candidates[best] = rest[0]
		it.rest[e.Signer] = rest[1:]
	} else {
		it.candidates = append(it.candidates[:best], it.candidates[best+1:]...)
		delete(it.rest, e.Signer)
	}
	return e, true
}
