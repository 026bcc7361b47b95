package api

// API request/response types for REST endpoints and WebSocket messages.
// Caller identity and attached value are explicit request fields; the server
// never derives them from ambient state.

// ==============================
// Request Types
// ==============================

// CreateAssetRequest tokenizes a new asset. The caller becomes the issuer.
type CreateAssetRequest struct {
	Caller        string `json:"caller"` // hex address
	Name          string `json:"name"`
	Location      string `json:"location"`
	MetadataRef   string `json:"metadataRef"`
	TotalShares   uint64 `json:"totalShares"`
	PricePerShare int64  `json:"pricePerShare"`
}

// SetStatusRequest flips an asset's trading flag. Issuer only.
type SetStatusRequest struct {
	Caller string `json:"caller"`
	Active bool   `json:"active"`
}

// BuyRequest is a primary sale: buy from the issuer at the nominal price.
// Value must equal shares x pricePerShare exactly.
type BuyRequest struct {
	Caller string `json:"caller"`
	Value  int64  `json:"value"` // attached payment
	Shares uint64 `json:"shares"`
}

// TransferRequest moves shares from the caller to another holder.
type TransferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Shares uint64 `json:"shares"`
}

// ListingRequest creates (or overwrites) the caller's listing.
type ListingRequest struct {
	Caller        string `json:"caller"`
	Shares        uint64 `json:"shares"`
	PricePerShare int64  `json:"pricePerShare"`
}

// CancelListingRequest cancels the caller's active listing.
type CancelListingRequest struct {
	Caller string `json:"caller"`
}

// BuyListedRequest is a secondary sale: buy from a seller's active listing.
type BuyListedRequest struct {
	Caller string `json:"caller"`
	Value  int64  `json:"value"` // attached payment
	Seller string `json:"seller"`
	Shares uint64 `json:"shares"`
}

// BuybackRequest sells the caller's shares back to the issuer's funded pool.
type BuybackRequest struct {
	Caller string `json:"caller"`
	Shares uint64 `json:"shares"`
}

// FundRequest tops up the buyback payout pool.
type FundRequest struct {
	Caller string `json:"caller"`
	Value  int64  `json:"value"` // attached payment
}

// ==============================
// Response Types
// ==============================

// CreateAssetResponse carries the allocated asset id.
type CreateAssetResponse struct {
	AssetID uint64 `json:"assetId"`
}

// OwnersResponse lists current owners in first-acquisition order.
type OwnersResponse struct {
	AssetID uint64   `json:"assetId"`
	Owners  []string `json:"owners"`
}

// BeneficiariesResponse carries the top-10 ranking: parallel slices sorted
// by balance descending, acquisition order breaking ties.
type BeneficiariesResponse struct {
	AssetID   uint64   `json:"assetId"`
	Addresses []string `json:"addresses"`
	Balances  []uint64 `json:"balances"`
}

// IssuerSharesResponse reports the shares still available for primary sale.
type IssuerSharesResponse struct {
	AssetID         uint64 `json:"assetId"`
	AvailableShares uint64 `json:"availableShares"`
}

// BalanceResponse reports one holder's share count.
type BalanceResponse struct {
	AssetID uint64 `json:"assetId"`
	Address string `json:"address"`
	Shares  uint64 `json:"shares"`
}

// PoolResponse reports the buyback payout pool.
type PoolResponse struct {
	Balance int64 `json:"balance"`
}

// StatusResponse acknowledges a committed mutation.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a failed operation's message.
type ErrorResponse struct {
	Error string `json:"error"`
}
