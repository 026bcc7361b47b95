// Package rwa implements the public operation surface of the fractional
// asset share ledger: asset issuance, share custody and transfer, the
// secondary-market listing book, and the three money-moving trade paths
// (primary sale, secondary sale, buyback).
package rwa

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/minhokim/shareledger/pkg/app/core"
	"github.com/minhokim/shareledger/pkg/storage"
)

// Call carries the invocation environment of a public operation: the caller
// identity and the monetary value attached to the call. Both are always
// explicit parameters, never ambient state.
type Call struct {
	Caller common.Address
	Value  int64 // attached payment, in atomic currency units
}

// Options configures an App.
type Options struct {
	Store  *storage.Store     // optional durable store; nil keeps state in memory only
	Sink   Sink               // outbound payment rail; required
	Logger *zap.SugaredLogger // optional; defaults to a nop logger
}

// store is the durable surface the App writes through. Narrowed to an
// interface so tests can substitute a failing store and exercise the
// unwind paths.
type store interface {
	LoadState() (*storage.Snapshot, error)
	NewBatch() batch
}

// batch is one atomic write set against the durable store.
type batch interface {
	SetAsset(a core.Asset)
	SetBalance(id core.AssetID, addr common.Address, shares uint64)
	SetHolders(id core.AssetID, holders []common.Address)
	SetListing(l core.Listing)
	SetPool(pool int64)
	SetEvent(e core.Event)
	Commit() error
}

// pebbleStore adapts *storage.Store to the store interface.
type pebbleStore struct {
	s *storage.Store
}

func (p pebbleStore) LoadState() (*storage.Snapshot, error) { return p.s.LoadState() }
func (p pebbleStore) NewBatch() batch                       { return p.s.NewBatch() }

// App is the share ledger application. Every public method executes as one
// atomic operation against the shared state: it either commits in full
// (memory, durable batch, event) or leaves no trace. Operations that pay out
// to an externally supplied recipient additionally hold the reentrancy guard
// across the payment leg.
type App struct {
	mu       sync.Mutex
	guard    core.Guard
	assets   *core.Registry
	ledger   *core.Ledger
	listings *core.ListingBook
	pool     int64 // buyback payout pool
	feed     *core.Feed

	db      store
	sink    Sink
	log     *zap.SugaredLogger
	onEvent func(core.Event)
}

// NewApp builds an App and, when a store is configured, restores the
// persisted state.
func NewApp(opts Options) (*App, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("payment sink is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	a := &App{
		assets:   core.NewRegistry(),
		ledger:   core.NewLedger(),
		listings: core.NewListingBook(),
		feed:     core.NewFeed(),
		sink:     opts.Sink,
		log:      log,
	}
	if opts.Store != nil {
		a.db = pebbleStore{opts.Store}
	}

	if a.db != nil {
		if err := a.restore(); err != nil {
			return nil, fmt.Errorf("restore state: %w", err)
		}
	}
	return a, nil
}

// SetOnEvent installs a hook invoked with every committed event, after the
// event has been recorded and persisted. Used by the API server to broadcast
// over WebSocket. Must be set before the App starts serving operations.
func (a *App) SetOnEvent(fn func(core.Event)) {
	a.onEvent = fn
}

// restore rebuilds the in-memory state from the store.
func (a *App) restore() error {
	snap, err := a.db.LoadState()
	if err != nil {
		return err
	}

	for _, asset := range snap.Assets {
		a.assets.Restore(asset)
		a.ledger.Restore(asset.ID, snap.Balances[asset.ID], snap.Holders[asset.ID])
	}
	for _, l := range snap.Listings {
		a.listings.Put(l)
	}
	a.pool = snap.Pool
	a.feed.Restore(snap.Events)

	a.log.Infow("state_restored",
		"assets", len(snap.Assets),
		"listings", len(snap.Listings),
		"events", len(snap.Events),
		"pool", snap.Pool)
	return nil
}

// lockState acquires the state mutex for a mutating operation, rejecting the
// call when a payment-bearing operation holds the guard with the mutex
// released. Without this a mutation could slide into the payment window and
// invalidate the in-flight trade's rollback snapshot.
func (a *App) lockState() error {
	a.mu.Lock()
	if a.guard.Held() {
		a.mu.Unlock()
		return fmt.Errorf("%w: a payment-bearing operation is in flight", core.ErrReentrancy)
	}
	return nil
}

// commit records a stamped event and publishes it to the hook. Called with
// a.mu held, only after the operation's durable batch has committed.
func (a *App) commit(ev core.Event) {
	a.feed.Commit(ev)
	if a.onEvent != nil {
		a.onEvent(ev)
	}
}

// persist applies the operation's writes in one atomic batch. A nil store is
// a no-op (pure in-memory mode, used by most tests).
func (a *App) persist(build func(b batch)) error {
	if a.db == nil {
		return nil
	}
	b := a.db.NewBatch()
	build(b)
	return b.Commit()
}

// CreateAsset tokenizes a new asset: allocates the next id, seeds the full
// share supply under the caller (who becomes the issuer), and registers the
// issuer as the first holder. This is the only operation that introduces
// supply, and it does so exactly once per asset.
func (a *App) CreateAsset(call Call, name, location, metadataRef string, totalShares uint64, pricePerShare int64) (core.AssetID, error) {
	if err := a.lockState(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	asset, err := a.assets.Create(name, location, metadataRef, totalShares, pricePerShare, call.Caller)
	if err != nil {
		return 0, err
	}
	a.ledger.Seed(asset.ID, asset.Issuer, asset.TotalShares)

	ev := a.feed.Stamp(core.Event{
		Type:    core.EventAssetCreated,
		AssetID: asset.ID,
		Actor:   asset.Issuer,
		Shares:  asset.TotalShares,
		Amount:  asset.PricePerShare,
	})
	if err := a.persist(func(b batch) {
		b.SetAsset(asset)
		b.SetBalance(asset.ID, asset.Issuer, asset.TotalShares)
		b.SetHolders(asset.ID, a.ledger.Holders(asset.ID))
		b.SetEvent(ev)
	}); err != nil {
		a.ledger.Drop(asset.ID)
		a.assets.Remove(asset.ID)
		return 0, fmt.Errorf("persist asset %d: %w", asset.ID, err)
	}
	a.commit(ev)

	a.log.Infow("asset_created",
		"asset", asset.ID,
		"name", asset.Name,
		"issuer", asset.Issuer.Hex(),
		"total_shares", asset.TotalShares,
		"price_per_share", asset.PricePerShare)
	return asset.ID, nil
}

// SetAssetActive flips the asset's trading flag. Issuer only. Deactivation
// blocks primary sales, listings, secondary sales, and buybacks, but not
// plain transfer: issuers freeze markets, not custody.
func (a *App) SetAssetActive(call Call, id core.AssetID, active bool) error {
	if err := a.lockState(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	prev, err := a.assets.Get(id)
	if err != nil {
		return err
	}
	asset, err := a.assets.SetActive(id, active, call.Caller)
	if err != nil {
		return err
	}

	ev := a.feed.Stamp(core.Event{
		Type:    core.EventAssetStatus,
		AssetID: id,
		Actor:   call.Caller,
		Active:  active,
	})
	if err := a.persist(func(b batch) {
		b.SetAsset(asset)
		b.SetEvent(ev)
	}); err != nil {
		a.assets.SetActive(id, prev.Active, call.Caller)
		return fmt.Errorf("persist asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("asset_status_changed", "asset", id, "active", active)
	return nil
}

// TransferShares moves shares from the caller to another holder. No payment
// and no activity requirement: transfer works even while the asset's markets
// are frozen.
func (a *App) TransferShares(call Call, id core.AssetID, to common.Address, shares uint64) error {
	if err := a.lockState(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if _, err := a.assets.Get(id); err != nil {
		return err
	}
	registered, err := a.ledger.Move(id, call.Caller, to, shares)
	if err != nil {
		return err
	}

	ev := a.feed.Stamp(core.Event{
		Type:         core.EventSharesTransferred,
		AssetID:      id,
		Actor:        call.Caller,
		Counterparty: to,
		Shares:       shares,
	})
	if err := a.persist(func(b batch) {
		b.SetBalance(id, call.Caller, a.ledger.Balance(id, call.Caller))
		b.SetBalance(id, to, a.ledger.Balance(id, to))
		b.SetHolders(id, a.ledger.Holders(id))
		b.SetEvent(ev)
	}); err != nil {
		a.ledger.Revert(id, call.Caller, to, shares, registered)
		return fmt.Errorf("persist transfer on asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("shares_transferred",
		"asset", id,
		"from", call.Caller.Hex(),
		"to", to.Hex(),
		"shares", shares)
	return nil
}

// ListSharesForSale creates (or overwrites) the caller's listing for the
// asset. The caller's live balance is checked at listing time only; listings
// do not escrow shares and are re-validated at fulfillment.
func (a *App) ListSharesForSale(call Call, id core.AssetID, shares uint64, pricePerShare int64) error {
	if err := a.lockState(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if _, err := a.activeAsset(id); err != nil {
		return err
	}
	if shares == 0 {
		return fmt.Errorf("%w: share amount must be positive", core.ErrValidation)
	}
	if pricePerShare <= 0 {
		return fmt.Errorf("%w: price per share must be positive, got %d", core.ErrValidation, pricePerShare)
	}
	if bal := a.ledger.Balance(id, call.Caller); bal < shares {
		return fmt.Errorf("%w: %s holds %d shares of asset %d, wants to list %d", core.ErrInsufficientBalance, call.Caller.Hex(), bal, id, shares)
	}

	prev, hadPrev := a.listings.Get(id, call.Caller)
	lst := a.listings.New(id, call.Caller, shares, pricePerShare)

	ev := a.feed.Stamp(core.Event{
		Type:    core.EventListingCreated,
		AssetID: id,
		Actor:   call.Caller,
		Shares:  shares,
		Amount:  pricePerShare,
	})
	if err := a.persist(func(b batch) {
		b.SetListing(lst)
		b.SetEvent(ev)
	}); err != nil {
		if hadPrev {
			a.listings.Put(prev)
		} else {
			a.listings.Delete(id, call.Caller)
		}
		return fmt.Errorf("persist listing on asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("listing_created",
		"asset", id,
		"seller", call.Caller.Hex(),
		"shares", shares,
		"price_per_share", pricePerShare)
	return nil
}

// CancelListing marks the caller's active listing inactive.
func (a *App) CancelListing(call Call, id core.AssetID) error {
	if err := a.lockState(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if _, err := a.assets.Get(id); err != nil {
		return err
	}
	lst, err := a.listings.Cancel(id, call.Caller)
	if err != nil {
		return err
	}

	ev := a.feed.Stamp(core.Event{
		Type:    core.EventListingCancelled,
		AssetID: id,
		Actor:   call.Caller,
		Shares:  lst.Shares,
	})
	if err := a.persist(func(b batch) {
		b.SetListing(lst)
		b.SetEvent(ev)
	}); err != nil {
		relist := lst
		relist.Active = true
		a.listings.Put(relist)
		return fmt.Errorf("persist listing cancel on asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("listing_cancelled", "asset", id, "seller", call.Caller.Hex())
	return nil
}

// activeAsset loads an asset and requires trading to be enabled.
// Caller must hold a.mu.
func (a *App) activeAsset(id core.AssetID) (core.Asset, error) {
	asset, err := a.assets.Get(id)
	if err != nil {
		return core.Asset{}, err
	}
	if !asset.Active {
		return core.Asset{}, fmt.Errorf("%w: asset %d is not active", core.ErrState, id)
	}
	return asset, nil
}
