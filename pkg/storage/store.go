package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/minhokim/shareledger/pkg/app/core"
)

// Store provides Pebble-based persistence for assets, balances, holder
// sequences, listings, the payout pool, and the event log. Values are JSON.
// Every committed operation writes its touched keys in one atomic Batch;
// aborted operations write nothing.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:          32 << 20,                  // 32MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot is the fully materialized persisted state, used to rebuild the
// in-memory ledger at startup.
type Snapshot struct {
	Assets   []core.Asset
	Balances map[core.AssetID]map[common.Address]uint64
	Holders  map[core.AssetID][]common.Address
	Listings []core.Listing
	Pool     int64
	Events   []core.Event
}

// LoadState reloads the full persisted state by prefix iteration.
func (s *Store) LoadState() (*Snapshot, error) {
	snap := &Snapshot{
		Balances: make(map[core.AssetID]map[common.Address]uint64),
		Holders:  make(map[core.AssetID][]common.Address),
	}

	if err := s.scan(prefixAsset, func(key, value []byte) error {
		var a core.Asset
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("unmarshal asset at %q: %w", key, err)
		}
		snap.Assets = append(snap.Assets, a)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixBalance, func(key, value []byte) error {
		id, addr, err := parseBalanceKey(key)
		if err != nil {
			return err
		}
		var bal uint64
		if err := json.Unmarshal(value, &bal); err != nil {
			return fmt.Errorf("unmarshal balance at %q: %w", key, err)
		}
		entries := snap.Balances[id]
		if entries == nil {
			entries = make(map[common.Address]uint64)
			snap.Balances[id] = entries
		}
		entries[addr] = bal
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixHolders, func(key, value []byte) error {
		id, err := parseHoldersKey(key)
		if err != nil {
			return err
		}
		var holders []common.Address
		if err := json.Unmarshal(value, &holders); err != nil {
			return fmt.Errorf("unmarshal holders at %q: %w", key, err)
		}
		snap.Holders[id] = holders
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixListing, func(key, value []byte) error {
		var l core.Listing
		if err := json.Unmarshal(value, &l); err != nil {
			return fmt.Errorf("unmarshal listing at %q: %w", key, err)
		}
		snap.Listings = append(snap.Listings, l)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixEvent, func(key, value []byte) error {
		var e core.Event
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("unmarshal event at %q: %w", key, err)
		}
		snap.Events = append(snap.Events, e)
		return nil
	}); err != nil {
		return nil, err
	}

	pool, err := s.loadPool()
	if err != nil {
		return nil, err
	}
	snap.Pool = pool

	return snap, nil
}

// scan iterates all keys under prefix in lexicographic order.
func (s *Store) scan(prefix string, fn func(key, value []byte) error) error {
	lower := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keyUpperBound(lower),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator for %q: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// loadPool reads the payout pool balance. Returns zero if never funded.
func (s *Store) loadPool() (int64, error) {
	data, closer, err := s.db.Get([]byte(keyPool))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get pool: %w", err)
	}
	defer closer.Close()

	var pool int64
	if err := json.Unmarshal(data, &pool); err != nil {
		return 0, fmt.Errorf("failed to unmarshal pool: %w", err)
	}
	return pool, nil
}

// Batch accumulates the writes of one operation and commits them atomically.
// The first marshal or set error sticks and is returned from Commit, so call
// sites can chain writes without checking each one.
type Batch struct {
	batch *pebble.Batch
	err   error
}

// NewBatch creates a new batch writer.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) set(key []byte, v any) {
	if b.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.batch.Set(key, data, nil)
}

// SetAsset adds an asset record write to the batch.
func (b *Batch) SetAsset(a core.Asset) {
	b.set(assetKey(a.ID), a)
}

// SetBalance adds a balance write to the batch.
func (b *Batch) SetBalance(id core.AssetID, addr common.Address, shares uint64) {
	b.set(balanceKey(id, addr), shares)
}

// SetHolders adds a holder-sequence write to the batch.
func (b *Batch) SetHolders(id core.AssetID, holders []common.Address) {
	b.set(holdersKey(id), holders)
}

// SetListing adds a listing write to the batch.
func (b *Batch) SetListing(l core.Listing) {
	b.set(listingKey(l.AssetID, l.Seller), l)
}

// SetPool adds a payout-pool write to the batch.
func (b *Batch) SetPool(pool int64) {
	b.set([]byte(keyPool), pool)
}

// SetEvent adds a committed event append to the batch.
func (b *Batch) SetEvent(e core.Event) {
	b.set(eventKey(e.Seq), e)
}

// Commit writes the batch to Pebble atomically and releases it.
func (b *Batch) Commit() error {
	defer b.batch.Close()
	if b.err != nil {
		return b.err
	}
	return b.batch.Commit(pebble.Sync)
}
