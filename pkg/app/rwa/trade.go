package rwa

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/minhokim/shareledger/pkg/app/core"
)

// The three money-moving operations share a two-phase shape: validate and
// apply the ledger effects first, then attempt the external payment, and
// roll the effects back if delivery fails. Effects-before-interaction means
// a payment recipient that re-enters the system observes a fully updated
// ledger, never a half-finished trade.
//
// The state mutex is released across the Pay call so a reentrant call on the
// same stack reaches the guard instead of deadlocking. The guard covers every
// mutating entry point for that window (see lockState), so the rollback
// snapshot taken before Pay is still exact when Pay fails.

// tradeCost computes the exact cost of shares at pricePerShare, rejecting
// products that overflow int64. pricePerShare is validated positive at asset
// and listing creation.
func tradeCost(pricePerShare int64, shares uint64) (int64, error) {
	if shares > uint64(math.MaxInt64)/uint64(pricePerShare) {
		return 0, fmt.Errorf("%w: %d shares at %d per share exceeds the price range", core.ErrValidation, shares, pricePerShare)
	}
	return pricePerShare * int64(shares), nil
}

// BuyShares is the primary sale: the caller buys from the issuer's remaining
// balance at the asset's nominal price. The attached value must equal the
// cost exactly; no change-making, no partial fill. The entire attached value
// is forwarded to the issuer.
func (a *App) BuyShares(call Call, id core.AssetID, shares uint64) error {
	if err := a.guard.Acquire(); err != nil {
		return err
	}
	defer a.guard.Release()

	a.mu.Lock()
	asset, err := a.activeAsset(id)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if shares == 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: share amount must be positive", core.ErrValidation)
	}
	cost, err := tradeCost(asset.PricePerShare, shares)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if call.Value != cost {
		a.mu.Unlock()
		return fmt.Errorf("%w: exact payment required: need %d, got %d", core.ErrPayment, cost, call.Value)
	}
	registered, err := a.ledger.Move(id, asset.Issuer, call.Caller, shares)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()

	if payErr := a.sink.Pay(asset.Issuer, cost); payErr != nil {
		a.mu.Lock()
		a.ledger.Revert(id, asset.Issuer, call.Caller, shares, registered)
		a.mu.Unlock()
		return fmt.Errorf("%w: forwarding %d to issuer: %v", core.ErrPayment, cost, payErr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ev := a.feed.Stamp(core.Event{
		Type:         core.EventSharesPurchased,
		AssetID:      id,
		Actor:        call.Caller,
		Counterparty: asset.Issuer,
		Shares:       shares,
		Amount:       cost,
	})
	if err := a.persist(func(b batch) {
		b.SetBalance(id, asset.Issuer, a.ledger.Balance(id, asset.Issuer))
		b.SetBalance(id, call.Caller, a.ledger.Balance(id, call.Caller))
		b.SetHolders(id, a.ledger.Holders(id))
		b.SetEvent(ev)
	}); err != nil {
		// The payment is already out and cannot be recalled; the ledger
		// still unwinds so memory matches what the store recorded.
		a.ledger.Revert(id, asset.Issuer, call.Caller, shares, registered)
		return fmt.Errorf("persist purchase on asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("shares_purchased",
		"asset", id,
		"buyer", call.Caller.Hex(),
		"shares", shares,
		"cost", cost)
	return nil
}

// BuyListedShares is the secondary sale: the caller buys from another
// holder's active listing at the listing's price. The seller's live balance
// is re-checked here because the listing's recorded count is a claim, not an
// escrow, and may have gone stale.
func (a *App) BuyListedShares(call Call, id core.AssetID, seller common.Address, shares uint64) error {
	if err := a.guard.Acquire(); err != nil {
		return err
	}
	defer a.guard.Release()

	a.mu.Lock()
	if _, err := a.activeAsset(id); err != nil {
		a.mu.Unlock()
		return err
	}
	if shares == 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: share amount must be positive", core.ErrValidation)
	}
	lst, err := a.listings.ActiveListing(id, seller)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if lst.Shares < shares {
		a.mu.Unlock()
		return fmt.Errorf("%w: listing offers %d shares, want %d", core.ErrInsufficientBalance, lst.Shares, shares)
	}
	if bal := a.ledger.Balance(id, seller); bal < shares {
		a.mu.Unlock()
		return fmt.Errorf("%w: seller %s holds %d shares, listing asks for %d", core.ErrInsufficientBalance, seller.Hex(), bal, shares)
	}
	cost, err := tradeCost(lst.PricePerShare, shares)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if call.Value != cost {
		a.mu.Unlock()
		return fmt.Errorf("%w: exact payment required: need %d, got %d", core.ErrPayment, cost, call.Value)
	}

	prev := lst // snapshot for rollback
	updated, err := a.listings.Reduce(id, seller, shares)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	registered, err := a.ledger.Move(id, seller, call.Caller, shares)
	if err != nil {
		a.listings.Put(prev)
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()

	if payErr := a.sink.Pay(seller, cost); payErr != nil {
		a.mu.Lock()
		a.ledger.Revert(id, seller, call.Caller, shares, registered)
		a.listings.Put(prev)
		a.mu.Unlock()
		return fmt.Errorf("%w: forwarding %d to seller: %v", core.ErrPayment, cost, payErr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ev := a.feed.Stamp(core.Event{
		Type:         core.EventListingPurchased,
		AssetID:      id,
		Actor:        call.Caller,
		Counterparty: seller,
		Shares:       shares,
		Amount:       cost,
	})
	if err := a.persist(func(b batch) {
		b.SetListing(updated)
		b.SetBalance(id, seller, a.ledger.Balance(id, seller))
		b.SetBalance(id, call.Caller, a.ledger.Balance(id, call.Caller))
		b.SetHolders(id, a.ledger.Holders(id))
		b.SetEvent(ev)
	}); err != nil {
		a.ledger.Revert(id, seller, call.Caller, shares, registered)
		a.listings.Put(prev)
		return fmt.Errorf("persist listed purchase on asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("listing_purchased",
		"asset", id,
		"buyer", call.Caller.Hex(),
		"seller", seller.Hex(),
		"shares", shares,
		"cost", cost)
	return nil
}

// SellSharesBuyback sells the caller's shares back to the issuer at the
// asset's nominal price, paid from the shared payout pool. Shares return to
// the issuer's balance.
func (a *App) SellSharesBuyback(call Call, id core.AssetID, shares uint64) error {
	if err := a.guard.Acquire(); err != nil {
		return err
	}
	defer a.guard.Release()

	a.mu.Lock()
	asset, err := a.activeAsset(id)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if shares == 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: share amount must be positive", core.ErrValidation)
	}
	if bal := a.ledger.Balance(id, call.Caller); bal < shares {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s holds %d shares of asset %d, need %d", core.ErrInsufficientBalance, call.Caller.Hex(), bal, id, shares)
	}
	payout, err := tradeCost(asset.PricePerShare, shares)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if a.pool < payout {
		a.mu.Unlock()
		return fmt.Errorf("%w: payout pool holds %d, buyback needs %d", core.ErrFunds, a.pool, payout)
	}

	registered, err := a.ledger.Move(id, call.Caller, asset.Issuer, shares)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.pool -= payout
	a.mu.Unlock()

	if payErr := a.sink.Pay(call.Caller, payout); payErr != nil {
		a.mu.Lock()
		a.pool += payout
		a.ledger.Revert(id, call.Caller, asset.Issuer, shares, registered)
		a.mu.Unlock()
		return fmt.Errorf("%w: paying out %d: %v", core.ErrPayment, payout, payErr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ev := a.feed.Stamp(core.Event{
		Type:         core.EventSharesBoughtBack,
		AssetID:      id,
		Actor:        call.Caller,
		Counterparty: asset.Issuer,
		Shares:       shares,
		Amount:       payout,
	})
	if err := a.persist(func(b batch) {
		b.SetPool(a.pool)
		b.SetBalance(id, call.Caller, a.ledger.Balance(id, call.Caller))
		b.SetBalance(id, asset.Issuer, a.ledger.Balance(id, asset.Issuer))
		b.SetHolders(id, a.ledger.Holders(id))
		b.SetEvent(ev)
	}); err != nil {
		a.pool += payout
		a.ledger.Revert(id, call.Caller, asset.Issuer, shares, registered)
		return fmt.Errorf("persist buyback on asset %d: %w", id, err)
	}
	a.commit(ev)

	a.log.Infow("shares_bought_back",
		"asset", id,
		"holder", call.Caller.Hex(),
		"shares", shares,
		"payout", payout)
	return nil
}

// FundContract tops up the shared payout pool with the attached value. The
// pool is the sole source for buyback payouts; any identity may fund it.
func (a *App) FundContract(call Call) error {
	if err := a.lockState(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if call.Value <= 0 {
		return fmt.Errorf("%w: funding value must be positive, got %d", core.ErrValidation, call.Value)
	}
	a.pool += call.Value

	ev := a.feed.Stamp(core.Event{
		Type:   core.EventPoolFunded,
		Actor:  call.Caller,
		Amount: call.Value,
	})
	if err := a.persist(func(b batch) {
		b.SetPool(a.pool)
		b.SetEvent(ev)
	}); err != nil {
		a.pool -= call.Value
		return fmt.Errorf("persist pool funding: %w", err)
	}
	a.commit(ev)

	a.log.Infow("pool_funded", "from", call.Caller.Hex(), "amount", call.Value, "pool", a.pool)
	return nil
}
