package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies a tokenized asset. IDs are allocated sequentially
// starting at 1; zero is never a valid id.
type AssetID uint64

// Asset defines a tokenized real-world asset and its share terms.
// Everything except Active is immutable after creation.
type Asset struct {
	ID            AssetID        `json:"id"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	MetadataRef   string         `json:"metadataRef"`   // off-ledger metadata pointer (URI, document hash, ...)
	TotalShares   uint64         `json:"totalShares"`   // fixed supply, set once at creation
	PricePerShare int64          `json:"pricePerShare"` // primary-sale and buyback price, in atomic currency units
	Issuer        common.Address `json:"issuer"`
	Active        bool           `json:"active"`    // gates trading, not plain transfer
	CreatedAt     int64          `json:"createdAt"` // Unix milliseconds
}

// Registry manages all assets in a thread-safe manner.
// It owns asset identity allocation and the issuer-controlled active flag.
type Registry struct {
	mu     sync.RWMutex
	assets map[AssetID]*Asset
	nextID AssetID
}

// NewRegistry creates an empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[AssetID]*Asset),
		nextID: 1,
	}
}

// Create validates the asset terms and registers a new asset under the next
// sequential id. The caller becomes the issuer and the asset starts active.
func (r *Registry) Create(name, location, metadataRef string, totalShares uint64, pricePerShare int64, issuer common.Address) (Asset, error) {
	if name == "" || location == "" {
		return Asset{}, fmt.Errorf("%w: name and location are required", ErrValidation)
	}
	if totalShares == 0 {
		return Asset{}, fmt.Errorf("%w: total shares must be positive", ErrValidation)
	}
	if pricePerShare <= 0 {
		return Asset{}, fmt.Errorf("%w: price per share must be positive, got %d", ErrValidation, pricePerShare)
	}
	if issuer == (common.Address{}) {
		return Asset{}, fmt.Errorf("%w: issuer address is empty", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a := &Asset{
		ID:            r.nextID,
		Name:          name,
		Location:      location,
		MetadataRef:   metadataRef,
		TotalShares:   totalShares,
		PricePerShare: pricePerShare,
		Issuer:        issuer,
		Active:        true,
		CreatedAt:     time.Now().UnixMilli(),
	}
	r.assets[a.ID] = a
	r.nextID++

	return *a, nil
}

// Get returns a copy of the asset record.
func (r *Registry) Get(id AssetID) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[id]
	if !ok {
		return Asset{}, fmt.Errorf("%w: asset %d", ErrNotFound, id)
	}
	return *a, nil
}

// SetActive flips the trading flag. Only the issuer may do this.
// Deactivation freezes the markets for the asset but not custody: plain
// transfers keep working while trading operations are blocked.
func (r *Registry) SetActive(id AssetID, active bool, caller common.Address) (Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return Asset{}, fmt.Errorf("%w: asset %d", ErrNotFound, id)
	}
	if a.Issuer != caller {
		return Asset{}, fmt.Errorf("%w: only issuer %s may change status of asset %d", ErrAuthorization, a.Issuer.Hex(), id)
	}

	a.Active = active
	return *a, nil
}

// List returns all assets ordered by id.
func (r *Registry) List() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assets := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		assets = append(assets, *a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets
}

// Remove deletes an asset record, rewinding the id counter when it was the
// newest. Only used to unwind a creation whose durable write failed.
func (r *Registry) Remove(id AssetID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.assets, id)
	if id == r.nextID-1 {
		r.nextID = id
	}
}

// Count returns the total number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// Restore re-registers a persisted asset without re-validating its terms.
// Used when reloading state at startup.
func (r *Registry) Restore(a Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := a
	r.assets[a.ID] = &cp
	if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}
}
