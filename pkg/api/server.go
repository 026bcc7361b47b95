package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/minhokim/shareledger/pkg/app/core"
	"github.com/minhokim/shareledger/pkg/app/rwa"
)

// Server exposes every public ledger operation over REST and streams
// committed events over WebSocket.
type Server struct {
	app    *rwa.App
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer creates an API server and hooks the app's event commit stream
// into the WebSocket hub.
func NewServer(app *rwa.App, log *zap.SugaredLogger) *Server {
	s := &Server{
		app:    app,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}

	app.SetOnEvent(s.hub.BroadcastEvent)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Asset endpoints
	api.HandleFunc("/assets", s.handleCreateAsset).Methods("POST")
	api.HandleFunc("/assets", s.handleListAssets).Methods("GET")
	api.HandleFunc("/assets/{id}", s.handleGetAsset).Methods("GET")
	api.HandleFunc("/assets/{id}/status", s.handleSetStatus).Methods("POST")

	// Ranking / ownership endpoints
	api.HandleFunc("/assets/{id}/owners", s.handleGetOwners).Methods("GET")
	api.HandleFunc("/assets/{id}/beneficiaries", s.handleGetBeneficiaries).Methods("GET")
	api.HandleFunc("/assets/{id}/issuer-shares", s.handleGetIssuerShares).Methods("GET")
	api.HandleFunc("/assets/{id}/balances/{address}", s.handleGetBalance).Methods("GET")

	// Trading endpoints
	api.HandleFunc("/assets/{id}/buy", s.handleBuy).Methods("POST")
	api.HandleFunc("/assets/{id}/transfer", s.handleTransfer).Methods("POST")
	api.HandleFunc("/assets/{id}/listings", s.handleCreateListing).Methods("POST")
	api.HandleFunc("/assets/{id}/listings", s.handleGetListings).Methods("GET")
	api.HandleFunc("/assets/{id}/listings/cancel", s.handleCancelListing).Methods("POST")
	api.HandleFunc("/assets/{id}/listings/buy", s.handleBuyListed).Methods("POST")
	api.HandleFunc("/assets/{id}/buyback", s.handleBuyback).Methods("POST")

	// Payout pool endpoints
	api.HandleFunc("/pool", s.handleGetPool).Methods("GET")
	api.HandleFunc("/pool/fund", s.handleFund).Methods("POST")

	// Event log
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// Handler returns the router with CORS applied, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	id, err := s.app.CreateAsset(rwa.Call{Caller: caller}, req.Name, req.Location, req.MetadataRef, req.TotalShares, req.PricePerShare)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, CreateAssetResponse{AssetID: uint64(id)})
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.app.Assets())
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	summary, err := s.app.AssetSummary(id)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, summary)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.app.SetAssetActive(rwa.Call{Caller: caller}, id, req.Active); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleGetOwners(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	owners, err := s.app.Owners(id)
	if err != nil {
		respondOpError(w, err)
		return
	}

	out := make([]string, len(owners))
	for i, addr := range owners {
		out[i] = addr.Hex()
	}
	respondJSON(w, OwnersResponse{AssetID: uint64(id), Owners: out})
}

func (s *Server) handleGetBeneficiaries(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	addrs, bals, err := s.app.TopBeneficiaries(id)
	if err != nil {
		respondOpError(w, err)
		return
	}

	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = addr.Hex()
	}
	respondJSON(w, BeneficiariesResponse{AssetID: uint64(id), Addresses: out, Balances: bals})
}

func (s *Server) handleGetIssuerShares(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	shares, err := s.app.AvailableIssuerShares(id)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, IssuerSharesResponse{AssetID: uint64(id), AvailableShares: shares})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	shares, err := s.app.BalanceOf(id, addr)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, BalanceResponse{AssetID: uint64(id), Address: addr.Hex(), Shares: shares})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.app.BuyShares(rwa.Call{Caller: caller, Value: req.Value}, id, req.Shares); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	to, ok := parseAddress(w, req.To)
	if !ok {
		return
	}

	if err := s.app.TransferShares(rwa.Call{Caller: caller}, id, to, req.Shares); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.app.ListSharesForSale(rwa.Call{Caller: caller}, id, req.Shares, req.PricePerShare); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}

	listings, err := s.app.Listings(id)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, listings)
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req CancelListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.app.CancelListing(rwa.Call{Caller: caller}, id); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleBuyListed(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req BuyListedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}
	seller, ok := parseAddress(w, req.Seller)
	if !ok {
		return
	}

	if err := s.app.BuyListedShares(rwa.Call{Caller: caller, Value: req.Value}, id, seller, req.Shares); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleBuyback(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssetID(w, r)
	if !ok {
		return
	}
	var req BuybackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.app.SellSharesBuyback(rwa.Call{Caller: caller}, id, req.Shares); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, PoolResponse{Balance: s.app.ContractBalance()})
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(w, req.Caller)
	if !ok {
		return
	}

	if err := s.app.FundContract(rwa.Call{Caller: caller, Value: req.Value}); err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if since := r.URL.Query().Get("since"); since != "" {
		seq, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		respondJSON(w, s.app.EventsSince(seq))
		return
	}
	respondJSON(w, s.app.Events())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

// parseAssetID reads the {id} path variable. Writes a 400 and returns false
// on malformed input.
func parseAssetID(w http.ResponseWriter, r *http.Request) (core.AssetID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "invalid asset id")
		return 0, false
	}
	return core.AssetID(id), true
}

// parseAddress validates a hex address field. Writes a 400 and returns false
// on malformed input.
func parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// respondOpError maps an operation error to its HTTP status by kind.
func respondOpError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, core.ErrState),
		errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrFunds):
		return http.StatusConflict
	case errors.Is(err, core.ErrPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, core.ErrReentrancy):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}
