package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"nftamm/native/pool"
	"nftamm/state"
	"nftamm/storage"
)

const (
	testOwner    = "0x0101010101010101010101010101010101010101010101010101010101010101"
	testCosigner = "0x0202020202020202020202020202020202020202020202020202020202020202"
	testReferral = "0x0303030303030303030303030303030303030303030303030303030303030303"
	testPayer    = "0x0404040404040404040404040404040404040404040404040404040404040404"
	testCreator  = "0x0505050505050505050505050505050505050505050505050505050505050505"
	testMint     = "0x1010101010101010101010101010101010101010101010101010101010101010"
	testUUID     = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := pool.NewEngine()
	engine.SetState(manager)
	engine.SetMetadataSource(manager)
	engine.SetRentOracle(pool.FixedRent(1_000))
	server := NewServer(engine, manager, nil, Options{FaucetEnabled: true})
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	decoded := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, ts *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	decoded := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func fund(t *testing.T, ts *httptest.Server, address string, amount, tokens uint64) {
	t.Helper()
	payload := map[string]any{"address": address, "amount": amount}
	if tokens > 0 {
		payload["assetMint"] = testMint
		payload["assetAmount"] = tokens
	}
	resp, _ := postJSON(t, ts, "/v1/dev/fund", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func registerTestAsset(t *testing.T, ts *httptest.Server) {
	t.Helper()
	resp, _ := postJSON(t, ts, "/v1/assets", map[string]any{
		"mint":        testMint,
		"sellerFeeBp": 100,
		"creators": []map[string]any{
			{"address": testCreator, "verified": true, "share": 100},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func createTestPool(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := postJSON(t, ts, "/v1/pools", map[string]any{
		"uuid":                    testUUID,
		"owner":                   testOwner,
		"cosigner":                testCosigner,
		"referral":                testReferral,
		"curveType":               "linear",
		"curveDelta":              100_000_000,
		"spotPrice":               1_000_000_000,
		"lpFeeBp":                 200,
		"takerFeeBp":              100,
		"buysideCreatorRoyaltyBp": 5_000,
		"allowlists":              []map[string]any{{"kind": "any"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, ok := body["id"].(string)
	require.True(t, ok, "missing pool id in %v", body)
	return id
}

func TestCreateAndGetPool(t *testing.T) {
	ts := newTestServer(t)
	fund(t, ts, testOwner, 10_000_000_000, 0)

	id := createTestPool(t, ts)

	resp, body := getJSON(t, ts, "/v1/pools/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1_000_000_000), body["spotPrice"])
	require.Equal(t, "linear", body["curveType"])
	require.Equal(t, testOwner, body["owner"])

	// Same UUID and owner derive the same pool.
	resp, _ = postJSON(t, ts, "/v1/pools", map[string]any{
		"uuid":       testUUID,
		"owner":      testOwner,
		"cosigner":   testCosigner,
		"curveType":  "linear",
		"curveDelta": 1,
		"spotPrice":  1,
		"allowlists": []map[string]any{{"kind": "any"}},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetPoolNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := getJSON(t, ts, "/v1/pools/"+testMint)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePoolRejectsBadAddress(t *testing.T) {
	ts := newTestServer(t)
	resp, body := postJSON(t, ts, "/v1/pools", map[string]any{
		"uuid":       testUUID,
		"owner":      "not-an-address",
		"cosigner":   testCosigner,
		"curveType":  "linear",
		"allowlists": []map[string]any{{"kind": "any"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "invalid address")
}

func TestFulfillBuyEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	fund(t, ts, testOwner, 10_000_000_000, 0)
	fund(t, ts, testPayer, 0, 1)
	registerTestAsset(t, ts)
	id := createTestPool(t, ts)

	resp, _ := postJSON(t, ts, "/v1/pools/"+id+"/deposit-buy", map[string]any{
		"owner":    testOwner,
		"cosigner": testCosigner,
		"amount":   2_000_000_000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, ts, "/v1/pools/"+id+"/fulfill-buy", map[string]any{
		"payer":            testPayer,
		"owner":            testOwner,
		"cosigner":         testCosigner,
		"referral":         testReferral,
		"assetMint":        testMint,
		"assetAmount":      1,
		"minPaymentAmount": 965_000_000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1_000_000_000), body["totalPrice"])
	require.Equal(t, float64(20_000_000), body["lpFee"])
	require.Equal(t, float64(5_000_000), body["royaltyPaid"])
	require.Equal(t, float64(965_000_000), body["sellerReceives"])

	poolBody, ok := body["pool"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(900_000_000), poolBody["spotPrice"])
	require.Equal(t, float64(20_000_000), poolBody["lpFeeEarned"])
}

func TestFulfillSellEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	fund(t, ts, testOwner, 10_000_000_000, 10)
	fund(t, ts, testPayer, 10_000_000_000, 0)
	registerTestAsset(t, ts)
	id := createTestPool(t, ts)

	resp, _ := postJSON(t, ts, "/v1/pools/"+id+"/deposit-sell", map[string]any{
		"owner":       testOwner,
		"cosigner":    testCosigner,
		"assetMint":   testMint,
		"assetAmount": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := getJSON(t, ts, "/v1/pools/"+id+"/sellstate/"+testMint)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["assetAmount"])

	resp, body = postJSON(t, ts, "/v1/pools/"+id+"/fulfill-sell", map[string]any{
		"payer":            testPayer,
		"owner":            testOwner,
		"cosigner":         testCosigner,
		"referral":         testReferral,
		"assetMint":        testMint,
		"assetAmount":      1,
		"maxPaymentAmount": 1_100_000_000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1_035_000_000), body["buyerOutlay"])
	require.Equal(t, float64(1_000_000_000), body["ownerProceeds"])

	// Slippage bound breached on the next unit after the price step.
	resp, body = postJSON(t, ts, "/v1/pools/"+id+"/fulfill-sell", map[string]any{
		"payer":            testPayer,
		"owner":            testOwner,
		"cosigner":         testCosigner,
		"referral":         testReferral,
		"assetMint":        testMint,
		"assetAmount":      1,
		"maxPaymentAmount": 1_100_000_000,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "invalid requested price")
}

func TestUpdateAllowlistsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	fund(t, ts, testOwner, 10_000_000_000, 0)
	id := createTestPool(t, ts)

	resp, _ := postJSON(t, ts, "/v1/pools/"+id+"/allowlists", map[string]any{
		"cosigner":   testOwner,
		"allowlists": []map[string]any{{"kind": "mint", "value": testMint}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := postJSON(t, ts, "/v1/pools/"+id+"/allowlists", map[string]any{
		"cosigner":   testCosigner,
		"allowlists": []map[string]any{{"kind": "mint", "value": testMint}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots, ok := body["allowlists"].([]any)
	require.True(t, ok)
	require.Len(t, slots, 1)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFaucetDisabled(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	engine := pool.NewEngine()
	engine.SetState(manager)
	engine.SetMetadataSource(manager)
	server := NewServer(engine, manager, nil, Options{})
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/dev/fund", "application/json",
		bytes.NewReader([]byte(fmt.Sprintf(`{"address":%q,"amount":1}`, testOwner))))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
