package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"PowerKeeper/internal/api"
	"PowerKeeper/internal/bmc"
	"PowerKeeper/internal/collector"
	"PowerKeeper/internal/machine"
	"PowerKeeper/internal/pool"
)

const serverTestManifest = `{
  "slots": [
    {"machine": "cpu1.example.org", "name": "slot1@cpu1.example.org", "slot_type": "Partitionable", "TotalSlotCpus": 8},
    {"machine": "cpu2.example.org", "name": "slot1@cpu2.example.org", "slot_type": "Partitionable", "TotalSlotCpus": 8}
  ]
}`

func testDaemon(t *testing.T) *Daemon {
	t.Helper()

	manifest := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(manifest, []byte(serverTestManifest), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config := &Config{}
	config.Daemon.StateFile = filepath.Join(t.TempDir(), "state.json")
	config.Daemon.ManifestFile = manifest

	// The command handlers never reach the collector or the management
	// controllers; real clients with unroutable endpoints are fine here.
	source := collector.NewHTTPSource("http://127.0.0.1:1")
	auth := bmc.Credentials{User: "admin", Password: "secret"}
	p := pool.New(source, auth, "IPMI", config.Daemon.StateFile)
	if err := p.Populate(manifest); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	d := &Daemon{
		config:   config,
		pool:     p,
		shutdown: make(chan struct{}),
	}
	d.server = newServer(d)
	return d
}

func doJSON(t *testing.T, d *Daemon, method, path string, body string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	d.server.ServeHTTP(rec, req)

	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func TestHandleState(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	var resp api.StateResponse
	rec := doJSON(t, d, http.MethodPost, "/v1/state",
		`{"state": "maintenance", "machines": ["cpu1.example.org", "ghost.example.org"]}`, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if got := resp.Results["cpu1.example.org"]; got != "transitioned Off to Maintenance" {
		t.Fatalf("cpu1 result = %q, want %q", got, "transitioned Off to Maintenance")
	}
	if got := resp.Results["ghost.example.org"]; got != "machine not found" {
		t.Fatalf("ghost result = %q, want %q", got, "machine not found")
	}

	m, _ := d.pool.Machine("cpu1.example.org")
	if m.State() != machine.Maintenance {
		t.Fatalf("state = %s, want %s", m.State(), machine.Maintenance)
	}

	// The forced transition is persisted right away.
	if _, err := os.Stat(d.config.Daemon.StateFile); err != nil {
		t.Fatalf("state file missing after forced transition: %v", err)
	}
}

func TestHandleStateRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown state", body: `{"state": "Hibernating", "machines": ["cpu1.example.org"]}`},
		{name: "no machines", body: `{"state": "Off", "machines": []}`},
		{name: "broken body", body: `{not json`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := testDaemon(t)
			rec := doJSON(t, d, http.MethodPost, "/v1/state", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleStateWaitsForInFlightCycle(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	// Hold the cycle mutex as a running decision cycle would.
	d.cycleMu.Lock()

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/state",
			strings.NewReader(`{"state": "Maintenance", "machines": ["cpu1.example.org"]}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		d.server.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	select {
	case <-done:
		t.Fatal("forced transition completed while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	d.cycleMu.Unlock()

	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("status = %d after cycle finished, want 200", code)
		}
	case <-time.After(time.Second):
		t.Fatal("forced transition never completed")
	}

	m, _ := d.pool.Machine("cpu1.example.org")
	if m.State() != machine.Maintenance {
		t.Fatalf("state = %s, want %s", m.State(), machine.Maintenance)
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	var resp api.StatusResponse
	rec := doJSON(t, d, http.MethodGet, "/v1/status", "", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if len(resp.Machines) != 2 {
		t.Fatalf("machines = %d, want 2", len(resp.Machines))
	}
	row := resp.Machines[0]
	if row.Name != "cpu1.example.org" || row.State != "Off" || row.Slots != 1 {
		t.Fatalf("row = %+v, want cpu1.example.org/Off/1 slot", row)
	}
	if row.Timer != nil {
		t.Fatalf("timer = %v, want nil", row.Timer)
	}
}

func TestHandleReload(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	grown := `{
  "slots": [
    {"machine": "cpu1.example.org", "name": "slot1@cpu1.example.org", "slot_type": "Partitionable", "TotalSlotCpus": 8},
    {"machine": "cpu2.example.org", "name": "slot1@cpu2.example.org", "slot_type": "Partitionable", "TotalSlotCpus": 8},
    {"machine": "cpu3.example.org", "name": "slot1@cpu3.example.org", "slot_type": "Partitionable", "TotalSlotCpus": 8}
  ]
}`
	manifest := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(manifest, []byte(grown), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var resp api.MessageResponse
	rec := doJSON(t, d, http.MethodPost, "/v1/reload", `{"manifest": "`+manifest+`"}`, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if len(d.pool.Machines()) != 3 {
		t.Fatalf("machines = %d after reload, want 3", len(d.pool.Machines()))
	}
	if d.config.Daemon.ManifestFile != manifest {
		t.Fatalf("manifest = %q after reload, want %q", d.config.Daemon.ManifestFile, manifest)
	}
}

func TestHandleReloadKeepsInventoryOnBadManifest(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	broken := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(broken, []byte("{broken"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rec := doJSON(t, d, http.MethodPost, "/v1/reload", `{"manifest": "`+broken+`"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body.String())
	}
	if len(d.pool.Machines()) != 2 {
		t.Fatalf("machines = %d after failed reload, want 2", len(d.pool.Machines()))
	}
}

func TestHandleShutdown(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	rec := doJSON(t, d, http.MethodPost, "/v1/shutdown", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	select {
	case <-d.shutdown:
	default:
		t.Fatal("shutdown channel still open after shutdown request")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	d := testDaemon(t)

	rec := doJSON(t, d, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}
