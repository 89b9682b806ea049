package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cellkeeper/cellkeeper/internal/cache"
	"github.com/cellkeeper/cellkeeper/internal/inventory"
	"github.com/cellkeeper/cellkeeper/internal/models"
	"github.com/cellkeeper/cellkeeper/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *inventory.Service) {
	t.Helper()

	svc := inventory.NewService(nil, testutil.NullLogger())
	listCache := cache.NewMemory(time.Minute)
	t.Cleanup(listCache.Stop)

	srv := New(svc, listCache, testutil.NullLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, svc
}

func seedBattery(t *testing.T, ts *httptest.Server, params models.UpsertBatteryParams) models.Battery {
	t.Helper()

	body, _ := json.Marshal(params)
	resp, err := http.Post(ts.URL+"/api/batteries", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("upsert request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d, want 200", resp.StatusCode)
	}

	var battery models.Battery
	if err := json.NewDecoder(resp.Body).Decode(&battery); err != nil {
		t.Fatalf("decode upsert response: %v", err)
	}
	return battery
}

func TestUpsertAndGetBattery(t *testing.T) {
	ts, _ := newTestServer(t)

	created := seedBattery(t, ts, models.UpsertBatteryParams{
		Name:          "Eneloop AA",
		Brand:         "Panasonic",
		Size:          "AA",
		Category:      models.CategoryRechargeable,
		Quantity:      4,
		TotalQuantity: 4,
		CapacityMah:   1900,
	})
	if created.ID == "" {
		t.Fatal("upsert did not assign an id")
	}

	resp, err := http.Get(ts.URL + "/api/batteries/" + created.ID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}

	var got models.Battery
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got.Name != "Eneloop AA" || got.Quantity != 4 {
		t.Errorf("got %+v", got)
	}
}

func TestUpsertBattery_MissingNameRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	body := `{"category":"PRIMARY","quantity":4}`
	resp, err := http.Post(ts.URL+"/api/batteries", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestConsumeEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	created := seedBattery(t, ts, models.UpsertBatteryParams{
		Name:          "Alkaline AA",
		Category:      models.CategoryPrimary,
		Quantity:      2,
		TotalQuantity: 2,
	})

	resp, err := http.Post(ts.URL+"/api/batteries/"+created.ID+"/consume", "application/json", nil)
	if err != nil {
		t.Fatalf("consume request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("consume status = %d, want 200", resp.StatusCode)
	}

	var got models.Battery
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode consume response: %v", err)
	}
	if got.Quantity != 1 || got.TotalQuantity != 1 {
		t.Errorf("after consume: quantity=%d total=%d, want 1/1", got.Quantity, got.TotalQuantity)
	}
}

func TestConsumeEndpoint_UnknownID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/batteries/nope/consume", "application/json", nil)
	if err != nil {
		t.Fatalf("consume request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRechargeEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	created := seedBattery(t, ts, models.UpsertBatteryParams{
		Name:          "Eneloop AA",
		Category:      models.CategoryRechargeable,
		Quantity:      0,
		InUse:         3,
		TotalQuantity: 4,
	})

	resp, err := http.Post(ts.URL+"/api/batteries/"+created.ID+"/recharge",
		"application/json", strings.NewReader(`{"amount":10}`))
	if err != nil {
		t.Fatalf("recharge request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recharge status = %d, want 200", resp.StatusCode)
	}

	var got models.Battery
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode recharge response: %v", err)
	}
	if got.InUse != 0 || got.Quantity != 3 {
		t.Errorf("after recharge: quantity=%d inUse=%d, want 3/0", got.Quantity, got.InUse)
	}
	if len(got.ChargingHistory) != 1 || got.ChargingHistory[0].Count != 3 {
		t.Errorf("ledger = %+v, want one event with count 3", got.ChargingHistory)
	}
}

func TestRechargeEndpoint_InvalidAmount(t *testing.T) {
	ts, _ := newTestServer(t)
	created := seedBattery(t, ts, models.UpsertBatteryParams{
		Name:     "Eneloop AA",
		Category: models.CategoryRechargeable,
		InUse:    1,
	})

	resp, err := http.Post(ts.URL+"/api/batteries/"+created.ID+"/recharge",
		"application/json", strings.NewReader(`{"amount":0}`))
	if err != nil {
		t.Fatalf("recharge request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRemoveChargingEventEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	created := seedBattery(t, ts, models.UpsertBatteryParams{
		Name:     "Eneloop AA",
		Category: models.CategoryRechargeable,
		InUse:    2,
	})

	// Build a ledger entry, then trim it
	resp, err := http.Post(ts.URL+"/api/batteries/"+created.ID+"/recharge",
		"application/json", strings.NewReader(`{"amount":2}`))
	if err != nil {
		t.Fatalf("recharge request failed: %v", err)
	}
	var recharged models.Battery
	json.NewDecoder(resp.Body).Decode(&recharged)
	resp.Body.Close()
	if len(recharged.ChargingHistory) != 1 {
		t.Fatalf("ledger = %+v, want one event", recharged.ChargingHistory)
	}

	req, _ := http.NewRequest(http.MethodDelete,
		ts.URL+"/api/batteries/"+created.ID+"/history/"+recharged.ChargingHistory[0].ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	defer delResp.Body.Close()

	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", delResp.StatusCode)
	}

	var got models.Battery
	if err := json.NewDecoder(delResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.ChargingHistory) != 0 {
		t.Errorf("ledger after removal = %+v, want empty", got.ChargingHistory)
	}
	// Counters survive the ledger edit
	if got.Quantity != recharged.Quantity || got.InUse != recharged.InUse {
		t.Errorf("ledger removal changed counters: %+v", got)
	}
}

func TestListEndpoint_FiltersAndCacheInvalidation(t *testing.T) {
	ts, _ := newTestServer(t)
	seedBattery(t, ts, models.UpsertBatteryParams{
		Name: "Alkaline AA", Category: models.CategoryPrimary, Quantity: 8,
	})

	list := fetchList(t, ts, "/api/batteries")
	if list.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", list.TotalCount)
	}

	// Second fetch is served from cache; a mutation must invalidate it
	fetchList(t, ts, "/api/batteries")
	seedBattery(t, ts, models.UpsertBatteryParams{
		Name: "CR2032", Category: models.CategoryButtonCell, Quantity: 3,
	})

	list = fetchList(t, ts, "/api/batteries")
	if list.TotalCount != 2 {
		t.Errorf("TotalCount after mutation = %d, want 2 (stale cache?)", list.TotalCount)
	}

	filtered := fetchList(t, ts, "/api/batteries?category=BUTTON_CELL")
	if filtered.TotalCount != 1 || filtered.Batteries[0].Name != "CR2032" {
		t.Errorf("filtered list = %+v", filtered)
	}
}

func fetchList(t *testing.T, ts *httptest.Server, path string) models.BatteryListResponse {
	t.Helper()

	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}

	var list models.BatteryListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return list
}

func TestDeleteEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	created := seedBattery(t, ts, models.UpsertBatteryParams{
		Name: "Alkaline AA", Category: models.CategoryPrimary, Quantity: 8,
	})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/batteries/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/batteries/" + created.ID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", getResp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}
