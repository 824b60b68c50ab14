package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vehicleplus/sums/api/mobile"
	"github.com/vehicleplus/sums/api/registry"
	"github.com/vehicleplus/sums/api/unit"
	"github.com/vehicleplus/sums/auth"
	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/desired"
	"github.com/vehicleplus/sums/core/ingest"
	"github.com/vehicleplus/sums/core/model"
	"github.com/vehicleplus/sums/core/reconcile"
	"github.com/vehicleplus/sums/infra/compose"
	"github.com/vehicleplus/sums/infra/logger"
)

const testSecret = "test-secret"

func newServer(t *testing.T) (*catalog.MemoryStore, *httptest.Server) {
	t.Helper()
	s := catalog.NewMemoryStore()
	s.AddUnit(model.Unit{ID: 1, MAC: "AA:BB", ModelID: 100})
	s.AddDevice(model.Device{ID: "d1"})
	s.Pair(model.Pairing{DeviceID: "d1", UnitID: 1, Primary: true})
	s.AddFeature(model.Feature{ID: 10, AppID: 1, Name: "park-assist", Description: "parks itself"})
	s.AddCompatibility(100, 10)

	log := logger.NopLogger{}
	resolver := catalog.NewResolver(s)
	router := NewRouter(
		auth.NewVerifier(auth.Config{Secret: testSecret}),
		mobile.NewHandler(desired.NewController(s, resolver, nil, log), log),
		unit.NewHandler(reconcile.NewReconciler(s, "vehicleplus.cloud", nil, log), compose.NewRenderer(), log),
		registry.NewHandler(ingest.NewIngestor(s, s, nil, log), log),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return s, srv
}

func mobileToken(t *testing.T, deviceID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"device_id": deviceID})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func unitToken(t *testing.T, mac string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"tcu": "true", "mac": mac})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMobileFlow(t *testing.T) {
	_, srv := newServer(t)
	token := mobileToken(t, "d1")

	resp := do(t, http.MethodGet, srv.URL+"/OTA/mobile/features", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var states []desired.FeatureStatus
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(states) != 1 || states[0].State != "NOT_DOWNLOADED" {
		t.Fatalf("unexpected states %#v", states)
	}

	resp = do(t, http.MethodPut, srv.URL+"/OTA/mobile/features", token, map[string]int64{"feature_id": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate: status %d", resp.StatusCode)
	}
	var out desired.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Code != desired.CodeAccepted {
		t.Fatalf("unexpected outcome %#v", out)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/OTA/mobile/features", token, map[string]int64{"feature_id": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Code != desired.CodeRemovalScheduled {
		t.Fatalf("unexpected outcome %#v", out)
	}
}

func TestMobileErrors(t *testing.T) {
	s, srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/OTA/mobile/features", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/OTA/mobile/features", mobileToken(t, "ghost"), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown device: status %d", resp.StatusCode)
	}

	s.AddDevice(model.Device{ID: "unpaired"})
	resp = do(t, http.MethodGet, srv.URL+"/OTA/mobile/features", mobileToken(t, "unpaired"), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unpaired device: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPut, srv.URL+"/OTA/mobile/features", mobileToken(t, "d1"), map[string]int64{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing feature id: status %d", resp.StatusCode)
	}

	// A unit token must not pass on mobile routes.
	resp = do(t, http.MethodGet, srv.URL+"/OTA/mobile/features", unitToken(t, "AA:BB"), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unit token on mobile route: status %d", resp.StatusCode)
	}
}

func TestMobileFeatureImage(t *testing.T) {
	s, srv := newServer(t)
	token := mobileToken(t, "d1")

	resp := do(t, http.MethodGet, srv.URL+"/OTA/mobile/features/images/10", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("feature without image: status %d", resp.StatusCode)
	}

	s.AddFeature(model.Feature{ID: 11, AppID: 1, Image: []byte{0x89, 'P', 'N', 'G'}})
	resp = do(t, http.MethodGet, srv.URL+"/OTA/mobile/features/images/11", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("image: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/OTA/mobile/features/images/abc", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-numeric id: status %d", resp.StatusCode)
	}
}

func TestUnitFlow(t *testing.T) {
	s, srv := newServer(t)
	mobileTok := mobileToken(t, "d1")
	unitTok := unitToken(t, "AA:BB")

	// Nothing requested yet: the unit has nothing to do.
	resp := do(t, http.MethodGet, srv.URL+"/OTA/TCU/features", unitTok, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("empty manifest: status %d", resp.StatusCode)
	}

	// Seed an app behind the feature, then request the install.
	do(t, http.MethodPost, srv.URL+"/OTA/notify", "", ingest.Notification{Events: []ingest.Event{{
		ID: "ev1", Action: "push", Timestamp: time.Now(),
		Target: ingest.Target{Repository: "park-assist", Tag: "1.0", Digest: "sha256:abc"},
	}}})
	app, err := s.AppByRepoTag(context.Background(), "park-assist", "1.0")
	if err != nil {
		t.Fatalf("app not ingested: %v", err)
	}
	s.AddFeature(model.Feature{ID: 10, AppID: app.ID, Name: "park-assist"})
	do(t, http.MethodPut, srv.URL+"/OTA/mobile/features", mobileTok, map[string]int64{"feature_id": 10})

	resp = do(t, http.MethodGet, srv.URL+"/OTA/TCU/features", unitTok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manifest: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/yaml" {
		t.Fatalf("content type %q", ct)
	}

	resp = do(t, http.MethodGet, srv.URL+"/OTA/TCU/images", unitTok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("images: status %d", resp.StatusCode)
	}
	var images map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&images); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(images["images"]) != 1 || images["images"][0] != "vehicleplus.cloud/park-assist:1.0" {
		t.Fatalf("unexpected images %#v", images)
	}

	resp = do(t, http.MethodPost, srv.URL+"/OTA/TCU/ack", unitTok,
		map[string]int64{"feature_id": 10, "action": 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ack: status %d", resp.StatusCode)
	}

	// Everything settled again.
	resp = do(t, http.MethodGet, srv.URL+"/OTA/TCU/features", unitTok, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("settled manifest: status %d", resp.StatusCode)
	}
}

func TestUnitErrors(t *testing.T) {
	_, srv := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/OTA/TCU/features", unitToken(t, "EE:FF"), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown unit: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/OTA/TCU/ack", unitToken(t, "AA:BB"),
		map[string]int64{"feature_id": 10, "action": 7})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid action: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/OTA/TCU/ack", unitToken(t, "AA:BB"),
		map[string]int64{"feature_id": 10, "action": 0})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ack without record: status %d", resp.StatusCode)
	}

	// A mobile token must not pass on unit routes.
	resp = do(t, http.MethodGet, srv.URL+"/OTA/TCU/features", mobileToken(t, "d1"), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("mobile token on unit route: status %d", resp.StatusCode)
	}
}

func TestRegistryWebhook(t *testing.T) {
	_, srv := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/OTA/notify", "", ingest.Notification{Events: []ingest.Event{
		{Action: "push", Target: ingest.Target{Repository: "navigation", Tag: "1.0"}},
		{Action: "pull", Target: ingest.Target{Repository: "navigation", Tag: "1.0"}},
		{Action: "update", Target: ingest.Target{Repository: "ghost", Tag: "9.9"}},
	}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notify: status %d", resp.StatusCode)
	}
	var res ingest.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Created != 1 || res.Skipped != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result %#v", res)
	}

	resp = do(t, http.MethodPost, srv.URL+"/OTA/notify", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body: status %d", resp.StatusCode)
	}
}
