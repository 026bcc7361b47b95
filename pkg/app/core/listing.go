package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Listing is a seller's standing offer to sell up to Shares shares of one
// asset at a fixed price. A listing is a claim, not an escrow: the recorded
// share count is only validated against the seller's live balance at
// fulfillment time, so it can go stale if the seller disposes of shares
// elsewhere.
type Listing struct {
	AssetID       AssetID        `json:"assetId"`
	Seller        common.Address `json:"seller"`
	Shares        uint64         `json:"shares"`
	PricePerShare int64          `json:"pricePerShare"`
	Active        bool           `json:"active"`
	CreatedAt     int64          `json:"createdAt"` // Unix milliseconds
}

// ListingBook holds at most one listing per (asset, seller). Creating a new
// listing overwrites any prior one for that seller, active or not; there is
// no merge and no history.
type ListingBook struct {
	mu       sync.RWMutex
	listings map[AssetID]map[common.Address]*Listing
}

// NewListingBook creates an empty listing book.
func NewListingBook() *ListingBook {
	return &ListingBook{
		listings: make(map[AssetID]map[common.Address]*Listing),
	}
}

// Put stores or overwrites the seller's listing. Also used to restore a
// snapshot when rolling back a failed secondary sale or reloading state.
func (b *ListingBook) Put(l Listing) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bySeller := b.listings[l.AssetID]
	if bySeller == nil {
		bySeller = make(map[common.Address]*Listing)
		b.listings[l.AssetID] = bySeller
	}
	cp := l
	bySeller[l.Seller] = &cp
}

// New builds and stores a fresh active listing for the seller.
func (b *ListingBook) New(id AssetID, seller common.Address, shares uint64, pricePerShare int64) Listing {
	l := Listing{
		AssetID:       id,
		Seller:        seller,
		Shares:        shares,
		PricePerShare: pricePerShare,
		Active:        true,
		CreatedAt:     time.Now().UnixMilli(),
	}
	b.Put(l)
	return l
}

// Get returns a copy of the seller's listing, active or not.
func (b *ListingBook) Get(id AssetID, seller common.Address) (Listing, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l := b.listings[id][seller]
	if l == nil {
		return Listing{}, false
	}
	return *l, true
}

// ActiveListing returns a copy of the seller's listing if one exists and is
// still active.
func (b *ListingBook) ActiveListing(id AssetID, seller common.Address) (Listing, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l := b.listings[id][seller]
	if l == nil || !l.Active {
		return Listing{}, fmt.Errorf("%w: no active listing by %s on asset %d", ErrNotFound, seller.Hex(), id)
	}
	return *l, nil
}

// Cancel marks the seller's active listing inactive.
func (b *ListingBook) Cancel(id AssetID, seller common.Address) (Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.listings[id][seller]
	if l == nil || !l.Active {
		return Listing{}, fmt.Errorf("%w: no active listing by %s on asset %d", ErrNotFound, seller.Hex(), id)
	}

	l.Active = false
	return *l, nil
}

// Reduce decrements the listed share count after a secondary sale fill,
// deactivating the listing when it drains to zero.
func (b *ListingBook) Reduce(id AssetID, seller common.Address, shares uint64) (Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.listings[id][seller]
	if l == nil || !l.Active {
		return Listing{}, fmt.Errorf("%w: no active listing by %s on asset %d", ErrNotFound, seller.Hex(), id)
	}
	if l.Shares < shares {
		return Listing{}, fmt.Errorf("%w: listing offers %d shares, want %d", ErrInsufficientBalance, l.Shares, shares)
	}

	l.Shares -= shares
	if l.Shares == 0 {
		l.Active = false
	}
	return *l, nil
}

// Delete removes the seller's listing record entirely. Only used to unwind a
// listing whose durable write failed and left no prior record to restore.
func (b *ListingBook) Delete(id AssetID, seller common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listings[id], seller)
}

// ForAsset returns copies of all listings recorded for the asset, in no
// particular order. Inactive listings are included; callers filter as needed.
func (b *ListingBook) ForAsset(id AssetID) []Listing {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Listing, 0, len(b.listings[id]))
	for _, l := range b.listings[id] {
		out = append(out, *l)
	}
	return out
}
