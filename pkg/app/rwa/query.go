package rwa

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/minhokim/shareledger/pkg/app/core"
)

// Read-only queries. None of these mutate state; they fail only with
// ErrNotFound for an unknown asset.

// AssetSummary is the full read model of one asset.
type AssetSummary struct {
	core.Asset
	AvailableIssuerShares uint64 `json:"availableIssuerShares"`
	HolderCount           int    `json:"holderCount"` // historical: every identity that ever held shares
	OwnerCount            int    `json:"ownerCount"`  // current: identities with a positive balance
}

// GetAsset returns the asset record.
func (a *App) GetAsset(id core.AssetID) (core.Asset, error) {
	return a.assets.Get(id)
}

// Assets returns all assets ordered by id.
func (a *App) Assets() []core.Asset {
	return a.assets.List()
}

// AssetSummary returns the asset record together with its derived holdings
// figures.
func (a *App) AssetSummary(id core.AssetID) (AssetSummary, error) {
	asset, err := a.assets.Get(id)
	if err != nil {
		return AssetSummary{}, err
	}
	return AssetSummary{
		Asset:                 asset,
		AvailableIssuerShares: a.ledger.Balance(id, asset.Issuer),
		HolderCount:           a.ledger.HolderCount(id),
		OwnerCount:            len(a.ledger.Owners(id)),
	}, nil
}

// Owners returns the identities currently holding a positive balance, in
// first-acquisition order.
func (a *App) Owners(id core.AssetID) ([]common.Address, error) {
	if _, err := a.assets.Get(id); err != nil {
		return nil, err
	}
	return a.ledger.Owners(id), nil
}

// TopBeneficiaries returns up to ten current owners ranked by balance,
// descending, with acquisition order breaking ties.
func (a *App) TopBeneficiaries(id core.AssetID) ([]common.Address, []uint64, error) {
	if _, err := a.assets.Get(id); err != nil {
		return nil, nil, err
	}
	addrs, bals := a.ledger.TopBeneficiaries(id)
	return addrs, bals, nil
}

// AvailableIssuerShares returns the issuer's remaining balance, i.e. the
// shares still available for primary sale.
func (a *App) AvailableIssuerShares(id core.AssetID) (uint64, error) {
	asset, err := a.assets.Get(id)
	if err != nil {
		return 0, err
	}
	return a.ledger.Balance(id, asset.Issuer), nil
}

// BalanceOf returns addr's current share count for the asset.
func (a *App) BalanceOf(id core.AssetID, addr common.Address) (uint64, error) {
	if _, err := a.assets.Get(id); err != nil {
		return 0, err
	}
	return a.ledger.Balance(id, addr), nil
}

// Listings returns all recorded listings for the asset.
func (a *App) Listings(id core.AssetID) ([]core.Listing, error) {
	if _, err := a.assets.Get(id); err != nil {
		return nil, err
	}
	return a.listings.ForAsset(id), nil
}

// ContractBalance returns the current buyback payout pool.
func (a *App) ContractBalance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pool
}

// Events returns the full committed event record in commit order.
func (a *App) Events() []core.Event {
	return a.feed.Events()
}

// EventsSince returns committed events with a sequence number strictly
// greater than seq.
func (a *App) EventsSince(seq uint64) []core.Event {
	return a.feed.Since(seq)
}

// CheckConservation verifies the supply invariant for one asset: its
// balances must sum to the fixed total supply.
func (a *App) CheckConservation(id core.AssetID) error {
	asset, err := a.assets.Get(id)
	if err != nil {
		return err
	}
	return a.ledger.CheckConservation(id, asset.TotalShares)
}
