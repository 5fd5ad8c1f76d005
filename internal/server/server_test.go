package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"crossvr-capture-go/internal/trial"
	"crossvr-capture-go/internal/types"
)

func newTestServer(t *testing.T) (*Server, *trial.Recorder, string) {
	t.Helper()
	root := t.TempDir()
	rec := trial.NewRecorder(root)
	srv := New(8877, rec, rec.Status)
	return srv, rec, root
}

func TestCommitEndpoint(t *testing.T) {
	srv, rec, root := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	rec.AppendPedestrian(types.PedestrianFrame{Time: 0.011, Crossing: 1})

	resp, err := http.Post(ts.URL+"/api/commit", "application/json", nil)
	if err != nil {
		t.Fatalf("post commit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var res trial.CommitResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.TrialID != 1 {
		t.Fatalf("unexpected trial id: %d", res.TrialID)
	}
	if res.Rows[types.ChannelPedestrian] != 1 {
		t.Fatalf("unexpected rows: %v", res.Rows)
	}
	if _, err := os.Stat(filepath.Join(root, "1", "pedestrian.csv")); err != nil {
		t.Fatalf("committed file missing: %v", err)
	}
}

func TestDiscardEndpoint(t *testing.T) {
	srv, rec, root := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	rec.AppendGaze(types.GazeFrame{Time: 0.5})

	resp, err := http.Post(ts.URL+"/api/discard", "application/json", nil)
	if err != nil {
		t.Fatalf("post discard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("discard must not touch the export root, found %d entries", len(entries))
	}
	if got := rec.BufferCounts()[types.ChannelGaze]; got != 0 {
		t.Fatalf("buffers not cleared: %d", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, rec, _ := newTestServer(t)
	rec.AppendVehicle(types.VehicleFrame{Time: 1})

	req := httptest.NewRequest("GET", "/api/status", nil)
	recW := httptest.NewRecorder()
	srv.handleStatus(recW, req)

	if recW.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recW.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(recW.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload["state"] != "accumulating" {
		t.Fatalf("unexpected state: %v", payload["state"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestCommitEndpointStatusCodes(t *testing.T) {
	// An unusable export root must come back as a fatal server error.
	rootFile := filepath.Join(t.TempDir(), "rootfile")
	if err := os.WriteFile(rootFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := trial.NewRecorder(rootFile)
	srv := New(8877, rec, rec.Status)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/commit", "application/json", nil)
	if err != nil {
		t.Fatalf("post commit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["fatal"] != true {
		t.Fatalf("allocation failure must be flagged fatal: %v", payload)
	}
}
