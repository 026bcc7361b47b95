package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/minhokim/shareledger/pkg/app/core"
)

// Pebble key schema. Prefix-based so each family supports range scans, with
// zero-padded numeric components for lexicographic ordering.

// Key prefixes
const (
	prefixAsset   = "asset:" // asset record
	prefixBalance = "bal:"   // per-(asset, holder) share balance
	prefixHolders = "hold:"  // per-asset holder sequence
	prefixListing = "list:"  // per-(asset, seller) listing
	prefixEvent   = "evt:"   // committed event log
	keyPool       = "pool"   // buyback payout pool
)

// assetKey returns the key for an asset record.
// Format: "asset:{id}" with the id zero-padded to 20 digits.
func assetKey(id core.AssetID) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixAsset, id))
}

// balanceKey returns the key for one holder's balance of one asset.
// Format: "bal:{id}:{address}"
func balanceKey(id core.AssetID, addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixBalance, id, addr.Hex()))
}

// parseBalanceKey extracts the asset id and holder address from a balance
// key. Inverse of balanceKey, used when iterating.
func parseBalanceKey(key []byte) (core.AssetID, common.Address, error) {
	rest := strings.TrimPrefix(string(key), prefixBalance)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return 0, common.Address{}, fmt.Errorf("malformed balance key: %q", key)
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, common.Address{}, fmt.Errorf("malformed asset id in balance key %q: %w", key, err)
	}
	if !common.IsHexAddress(parts[1]) {
		return 0, common.Address{}, fmt.Errorf("malformed address in balance key: %q", key)
	}
	return core.AssetID(id), common.HexToAddress(parts[1]), nil
}

// holdersKey returns the key for an asset's holder sequence.
// Format: "hold:{id}"
func holdersKey(id core.AssetID) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixHolders, id))
}

// parseHoldersKey extracts the asset id from a holder-sequence key.
func parseHoldersKey(key []byte) (core.AssetID, error) {
	rest := strings.TrimPrefix(string(key), prefixHolders)
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed holders key %q: %w", key, err)
	}
	return core.AssetID(id), nil
}

// listingKey returns the key for one seller's listing on one asset.
// Format: "list:{id}:{address}"
func listingKey(id core.AssetID, seller common.Address) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixListing, id, seller.Hex()))
}

// eventKey returns the key for a committed event.
// Format: "evt:{seq}" with the sequence zero-padded so the log iterates in
// commit order.
func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixEvent, seq))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
