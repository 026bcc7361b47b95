package core

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger tracks per-asset share balances plus the holder sequence: every
// address ever observed with a positive balance, in first-acquisition order.
// The sequence is append-only; an address stays in it even after its balance
// returns to zero, so current ownership must always be derived from live
// balances (see rank.go), never from sequence membership.
type Ledger struct {
	mu       sync.RWMutex
	balances map[AssetID]map[common.Address]uint64
	holders  map[AssetID][]common.Address
	seen     map[AssetID]map[common.Address]struct{}
}

// NewLedger creates an empty share ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[AssetID]map[common.Address]uint64),
		holders:  make(map[AssetID][]common.Address),
		seen:     make(map[AssetID]map[common.Address]struct{}),
	}
}

// Seed credits the full share supply of a new asset to its issuer and
// registers the issuer as the first holder. Called exactly once per asset,
// at creation; this is the only way supply enters the ledger.
func (l *Ledger) Seed(id AssetID, issuer common.Address, totalShares uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[id] = map[common.Address]uint64{issuer: totalShares}
	l.register(id, issuer)
}

// Move shifts shares between two holders. It never creates or destroys
// supply. Returns true when to was appended to the holder sequence for the
// first time, so a caller that has to roll back can undo the registration
// with Revert.
func (l *Ledger) Move(id AssetID, from, to common.Address, shares uint64) (bool, error) {
	if shares == 0 {
		return false, fmt.Errorf("%w: share amount must be positive", ErrValidation)
	}
	if to == (common.Address{}) {
		return false, fmt.Errorf("%w: transfer to the zero address", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[id][from]
	if bal < shares {
		return false, fmt.Errorf("%w: %s holds %d shares of asset %d, need %d", ErrInsufficientBalance, from.Hex(), bal, id, shares)
	}

	l.balances[id][from] = bal - shares
	l.balances[id][to] += shares

	return l.register(id, to), nil
}

// Revert undoes a previous Move, including the holder registration when that
// Move introduced the recipient. Only valid as the immediate inverse of the
// Move it reverts, before any other mutation of the asset's entries.
func (l *Ledger) Revert(id AssetID, from, to common.Address, shares uint64, registered bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[id][to] -= shares
	l.balances[id][from] += shares

	if registered {
		seq := l.holders[id]
		l.holders[id] = seq[:len(seq)-1]
		delete(l.seen[id], to)
	}
}

// register appends addr to the holder sequence the first time it holds a
// positive balance. Idempotent. Caller must hold l.mu.
func (l *Ledger) register(id AssetID, addr common.Address) bool {
	set := l.seen[id]
	if set == nil {
		set = make(map[common.Address]struct{})
		l.seen[id] = set
	}
	if _, ok := set[addr]; ok {
		return false
	}

	set[addr] = struct{}{}
	l.holders[id] = append(l.holders[id], addr)
	return true
}

// Balance returns the current share count of addr for the asset.
func (l *Ledger) Balance(id AssetID, addr common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[id][addr]
}

// Balances returns a copy of all balance entries for the asset, including
// entries that have returned to zero.
func (l *Ledger) Balances(id AssetID) map[common.Address]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[common.Address]uint64, len(l.balances[id]))
	for addr, bal := range l.balances[id] {
		out[addr] = bal
	}
	return out
}

// Holders returns a copy of the holder sequence for the asset: every address
// that ever held a positive balance, in first-acquisition order.
func (l *Ledger) Holders(id AssetID) []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]common.Address(nil), l.holders[id]...)
}

// HolderCount returns the historical holder count for the asset.
func (l *Ledger) HolderCount(id AssetID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.holders[id])
}

// CheckConservation verifies the supply invariant: the balances of an asset
// must always sum to its fixed total supply. The accumulation is overflow
// checked so a wrapped state cannot masquerade as conserved.
func (l *Ledger) CheckConservation(id AssetID, totalShares uint64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum uint64
	for addr, bal := range l.balances[id] {
		if bal > math.MaxUint64-sum {
			return fmt.Errorf("supply leak on asset %d: balances overflow uint64 at %s", id, addr.Hex())
		}
		sum += bal
	}
	if sum != totalShares {
		return fmt.Errorf("supply leak on asset %d: balances sum to %d, total is %d", id, sum, totalShares)
	}
	return nil
}

// Drop discards every entry for an asset. Only used to unwind an asset
// creation whose durable write failed.
func (l *Ledger) Drop(id AssetID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.balances, id)
	delete(l.holders, id)
	delete(l.seen, id)
}

// Restore installs persisted balances and the holder sequence for an asset
// when reloading state at startup.
func (l *Ledger) Restore(id AssetID, balances map[common.Address]uint64, holders []common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make(map[common.Address]uint64, len(balances))
	for addr, bal := range balances {
		entries[addr] = bal
	}
	l.balances[id] = entries

	l.holders[id] = append([]common.Address(nil), holders...)
	set := make(map[common.Address]struct{}, len(holders))
	for _, addr := range holders {
		set[addr] = struct{}{}
	}
	l.seen[id] = set
}
