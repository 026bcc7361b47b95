package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/minhokim/shareledger/pkg/app/rwa"
)

const (
	issuerHex = "0x1111111111111111111111111111111111111111"
	aliceHex  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bobHex    = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	app, err := rwa.NewApp(rwa.Options{Sink: rwa.NewRecorderSink(nil)})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := NewServer(app, zap.NewNop().Sugar())
	go srv.hub.Run()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// createAsset provisions one active asset over the API and returns its id.
func createAsset(t *testing.T, ts *httptest.Server, totalShares uint64, price int64) uint64 {
	t.Helper()
	resp := post(t, ts, "/api/v1/assets", CreateAssetRequest{
		Caller:        issuerHex,
		Name:          "Harbor Crane",
		Location:      "Oakland, CA",
		MetadataRef:   "ipfs://meta/3",
		TotalShares:   totalShares,
		PricePerShare: price,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create asset: status %d", resp.StatusCode)
	}
	var out CreateAssetResponse
	decode(t, resp, &out)
	return out.AssetID
}

func TestAssetLifecycleOverAPI(t *testing.T) {
	ts := newTestServer(t)
	id := createAsset(t, ts, 1000, 10)

	resp := get(t, ts, fmt.Sprintf("/api/v1/assets/%d", id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get asset: status %d", resp.StatusCode)
	}
	var summary rwa.AssetSummary
	decode(t, resp, &summary)
	if summary.Name != "Harbor Crane" || !summary.Active || summary.AvailableIssuerShares != 1000 {
		t.Errorf("summary = %+v, want active Harbor Crane with 1000 issuer shares", summary)
	}

	resp = post(t, ts, fmt.Sprintf("/api/v1/assets/%d/status", id), SetStatusRequest{Caller: issuerHex, Active: false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status: status %d", resp.StatusCode)
	}
	resp = get(t, ts, fmt.Sprintf("/api/v1/assets/%d", id))
	decode(t, resp, &summary)
	if summary.Active {
		t.Error("asset still active after deactivation")
	}
}

func TestTradingOverAPI(t *testing.T) {
	ts := newTestServer(t)
	id := createAsset(t, ts, 1000, 10)
	base := fmt.Sprintf("/api/v1/assets/%d", id)

	resp := post(t, ts, base+"/buy", BuyRequest{Caller: aliceHex, Value: 500, Shares: 50})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy: status %d", resp.StatusCode)
	}

	resp = get(t, ts, base+"/balances/"+aliceHex)
	var bal BalanceResponse
	decode(t, resp, &bal)
	if bal.Shares != 50 {
		t.Errorf("alice shares = %d, want 50", bal.Shares)
	}

	resp = get(t, ts, base+"/issuer-shares")
	var avail IssuerSharesResponse
	decode(t, resp, &avail)
	if avail.AvailableShares != 950 {
		t.Errorf("issuer shares = %d, want 950", avail.AvailableShares)
	}

	resp = post(t, ts, base+"/listings", ListingRequest{Caller: aliceHex, Shares: 30, PricePerShare: 12})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	resp = post(t, ts, base+"/listings/buy", BuyListedRequest{Caller: bobHex, Value: 240, Seller: aliceHex, Shares: 20})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listed buy: status %d", resp.StatusCode)
	}

	resp = get(t, ts, base+"/owners")
	var owners OwnersResponse
	decode(t, resp, &owners)
	if len(owners.Owners) != 3 {
		t.Errorf("owners = %v, want 3", owners.Owners)
	}

	resp = get(t, ts, base+"/beneficiaries")
	var ranks BeneficiariesResponse
	decode(t, resp, &ranks)
	if len(ranks.Addresses) != 3 || ranks.Balances[0] != 950 {
		t.Errorf("ranking = %+v, want issuer first with 950", ranks)
	}

	resp = post(t, ts, "/api/v1/pool/fund", FundRequest{Caller: bobHex, Value: 500})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fund: status %d", resp.StatusCode)
	}
	resp = post(t, ts, base+"/buyback", BuybackRequest{Caller: bobHex, Shares: 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buyback: status %d", resp.StatusCode)
	}

	resp = get(t, ts, "/api/v1/pool")
	var pool PoolResponse
	decode(t, resp, &pool)
	if pool.Balance != 400 {
		t.Errorf("pool = %d, want 400", pool.Balance)
	}
}

func TestEventLogOverAPI(t *testing.T) {
	ts := newTestServer(t)
	id := createAsset(t, ts, 100, 5)
	post(t, ts, fmt.Sprintf("/api/v1/assets/%d/buy", id), BuyRequest{Caller: aliceHex, Value: 50, Shares: 10})

	resp := get(t, ts, "/api/v1/events")
	var evs []map[string]any
	decode(t, resp, &evs)
	if len(evs) != 2 {
		t.Fatalf("events = %d, want 2", len(evs))
	}

	resp = get(t, ts, "/api/v1/events?since=1")
	decode(t, resp, &evs)
	if len(evs) != 1 || evs[0]["type"] != "shares_purchased" {
		t.Errorf("events since 1 = %+v, want one purchase", evs)
	}

	resp = get(t, ts, "/api/v1/events?since=nope")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since: status %d, want 400", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	id := createAsset(t, ts, 100, 10)
	base := fmt.Sprintf("/api/v1/assets/%d", id)

	cases := []struct {
		name string
		run  func() *http.Response
		want int
	}{
		{"validation", func() *http.Response {
			return post(t, ts, base+"/buy", BuyRequest{Caller: aliceHex, Value: 0, Shares: 0})
		}, http.StatusBadRequest},
		{"bad address", func() *http.Response {
			return post(t, ts, base+"/buy", BuyRequest{Caller: "not-an-address", Value: 10, Shares: 1})
		}, http.StatusBadRequest},
		{"not found", func() *http.Response {
			return get(t, ts, "/api/v1/assets/99")
		}, http.StatusNotFound},
		{"bad id", func() *http.Response {
			return get(t, ts, "/api/v1/assets/zero")
		}, http.StatusBadRequest},
		{"authorization", func() *http.Response {
			return post(t, ts, base+"/status", SetStatusRequest{Caller: aliceHex, Active: false})
		}, http.StatusForbidden},
		{"payment", func() *http.Response {
			return post(t, ts, base+"/buy", BuyRequest{Caller: aliceHex, Value: 7, Shares: 1})
		}, http.StatusPaymentRequired},
		{"insufficient balance", func() *http.Response {
			return post(t, ts, base+"/transfer", TransferRequest{Caller: aliceHex, To: bobHex, Shares: 5})
		}, http.StatusConflict},
		{"pool funds", func() *http.Response {
			post(t, ts, base+"/buy", BuyRequest{Caller: aliceHex, Value: 10, Shares: 1})
			return post(t, ts, base+"/buyback", BuybackRequest{Caller: aliceHex, Shares: 1})
		}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.run()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			var body ErrorResponse
			decode(t, resp, &body)
			if body.Error == "" {
				t.Error("error response has empty message")
			}
		})
	}
}

func TestInactiveAssetConflict(t *testing.T) {
	ts := newTestServer(t)
	id := createAsset(t, ts, 100, 10)
	base := fmt.Sprintf("/api/v1/assets/%d", id)

	post(t, ts, base+"/status", SetStatusRequest{Caller: issuerHex, Active: false})
	resp := post(t, ts, base+"/buy", BuyRequest{Caller: aliceHex, Value: 10, Shares: 1})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("buy on inactive asset: status %d, want 409", resp.StatusCode)
	}
}
