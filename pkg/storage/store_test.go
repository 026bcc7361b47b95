package storage

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/minhokim/shareledger/pkg/app/core"
)

var (
	issuer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestStoreRoundtrip(t *testing.T) {
	s := newTestStore(t)

	asset := core.Asset{
		ID:            1,
		Name:          "Dockside Lot",
		Location:      "Red Hook, NY",
		TotalShares:   1000,
		PricePerShare: 10,
		Issuer:        issuer,
		Active:        true,
		CreatedAt:     1700000000000,
	}
	listing := core.Listing{
		AssetID:       1,
		Seller:        alice,
		Shares:        40,
		PricePerShare: 15,
		Active:        true,
	}

	b := s.NewBatch()
	b.SetAsset(asset)
	b.SetBalance(1, issuer, 960)
	b.SetBalance(1, alice, 40)
	b.SetHolders(1, []common.Address{issuer, alice})
	b.SetListing(listing)
	b.SetPool(500)
	b.SetEvent(core.Event{Seq: 1, Type: core.EventAssetCreated, AssetID: 1, Actor: issuer})
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap, err := s.LoadState()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(snap.Assets) != 1 || snap.Assets[0] != asset {
		t.Errorf("assets = %+v, want [%+v]", snap.Assets, asset)
	}
	if snap.Balances[1][issuer] != 960 || snap.Balances[1][alice] != 40 {
		t.Errorf("balances = %v, want issuer 960, alice 40", snap.Balances[1])
	}
	holders := snap.Holders[1]
	if len(holders) != 2 || holders[0] != issuer || holders[1] != alice {
		t.Errorf("holders = %v, want [issuer alice]", holders)
	}
	if len(snap.Listings) != 1 || snap.Listings[0] != listing {
		t.Errorf("listings = %+v, want [%+v]", snap.Listings, listing)
	}
	if snap.Pool != 500 {
		t.Errorf("pool = %d, want 500", snap.Pool)
	}
	if len(snap.Events) != 1 || snap.Events[0].Seq != 1 {
		t.Errorf("events = %+v, want one with seq 1", snap.Events)
	}
}

func TestStoreEmptyState(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.LoadState()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if len(snap.Assets) != 0 || len(snap.Listings) != 0 || len(snap.Events) != 0 {
		t.Errorf("fresh store not empty: %+v", snap)
	}
	if snap.Pool != 0 {
		t.Errorf("pool = %d, want 0", snap.Pool)
	}
}

func TestStoreOverwrite(t *testing.T) {
	s := newTestStore(t)

	b := s.NewBatch()
	b.SetBalance(1, alice, 40)
	b.SetPool(100)
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	b = s.NewBatch()
	b.SetBalance(1, alice, 25)
	b.SetPool(60)
	if err := b.Commit(); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	snap, err := s.LoadState()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if snap.Balances[1][alice] != 25 {
		t.Errorf("balance = %d, want 25 (last write wins)", snap.Balances[1][alice])
	}
	if snap.Pool != 60 {
		t.Errorf("pool = %d, want 60", snap.Pool)
	}
}

func TestStoreEventOrder(t *testing.T) {
	s := newTestStore(t)

	// written out of order; the zero-padded seq key restores commit order
	for _, seq := range []uint64{3, 1, 12, 2} {
		b := s.NewBatch()
		b.SetEvent(core.Event{Seq: seq, Type: core.EventPoolFunded})
		if err := b.Commit(); err != nil {
			t.Fatalf("commit seq %d: %v", seq, err)
		}
	}

	snap, err := s.LoadState()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	want := []uint64{1, 2, 3, 12}
	if len(snap.Events) != len(want) {
		t.Fatalf("events = %d, want %d", len(snap.Events), len(want))
	}
	for i, seq := range want {
		if snap.Events[i].Seq != seq {
			t.Errorf("event %d seq = %d, want %d", i, snap.Events[i].Seq, seq)
		}
	}
}
