package core

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType classifies a committed ledger operation.
type EventType string

const (
	EventAssetCreated      EventType = "asset_created"
	EventAssetStatus       EventType = "asset_status_changed"
	EventSharesPurchased   EventType = "shares_purchased"
	EventSharesTransferred EventType = "shares_transferred"
	EventListingCreated    EventType = "listing_created"
	EventListingCancelled  EventType = "listing_cancelled"
	EventListingPurchased  EventType = "listing_purchased"
	EventSharesBoughtBack  EventType = "shares_bought_back"
	EventPoolFunded        EventType = "pool_funded"
)

// Event is the observable record of one fully committed operation. Events
// are append-only and ordered by Seq; they are never emitted on a path that
// later aborts.
type Event struct {
	ID           string         `json:"id"`
	Seq          uint64         `json:"seq"`
	Type         EventType      `json:"type"`
	AssetID      AssetID        `json:"assetId,omitempty"`
	Actor        common.Address `json:"actor"`
	Counterparty common.Address `json:"counterparty,omitempty"`
	Shares       uint64         `json:"shares,omitempty"`
	Amount       int64          `json:"amount,omitempty"` // payment, payout, or unit price depending on Type
	Active       bool           `json:"active"`           // asset status events; kept explicit so "deactivated" is distinguishable
	Timestamp    int64          `json:"timestamp"`        // Unix milliseconds
}

// Feed is the in-memory append-only event record, ordered by sequence number.
type Feed struct {
	mu      sync.RWMutex
	events  []Event
	nextSeq uint64
}

// NewFeed creates an empty feed. Sequence numbers start at 1.
func NewFeed() *Feed {
	return &Feed{nextSeq: 1}
}

// Stamp fills in the event's id, its sequence number, and the current time
// without recording it. Stamping does not advance the sequence; the caller
// records the event with Commit once the operation it describes has fully
// committed, durable write included, so an aborted operation leaves neither
// an event nor a sequence gap.
func (f *Feed) Stamp(e Event) Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e.ID = uuid.NewString()
	e.Seq = f.nextSeq
	e.Timestamp = time.Now().UnixMilli()
	return e
}

// Commit records a stamped event and advances the sequence.
func (f *Feed) Commit(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, e)
	f.nextSeq = e.Seq + 1
}

// Events returns a copy of the full event record in commit order.
func (f *Feed) Events() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]Event(nil), f.events...)
}

// Since returns all events with a sequence number strictly greater than seq.
func (f *Feed) Since(seq uint64) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []Event
	for _, e := range f.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

// Restore installs a persisted event record when reloading state at startup.
// Events must already be in sequence order.
func (f *Feed) Restore(events []Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append([]Event(nil), events...)
	f.nextSeq = 1
	if n := len(f.events); n > 0 {
		f.nextSeq = f.events[n-1].Seq + 1
	}
}
