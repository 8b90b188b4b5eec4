package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coreapp "revwatch/internal/core/app"
	"revwatch/internal/core/config"
	"revwatch/internal/core/ports"
)

func TestObservabilityServer_Endpoints(t *testing.T) {
	app := newTestApp(t, nil, sampleCommits()...)
	if err := app.Monitor.PollNow(context.Background()); err != nil {
		t.Fatalf("PollNow failed: %v", err)
	}

	srv := httptest.NewServer(NewObservabilityServer("", app).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/changes?limit=2")
	if err != nil {
		t.Fatalf("GET /changes: %v", err)
	}
	var views []ports.ChangeView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode changes: %v", err)
	}
	resp.Body.Close()
	if len(views) != 2 {
		t.Fatalf("expected 2 views with limit, got %d", len(views))
	}
	if views[0].Number != 3 || views[0].Author != "carol" || views[0].Type != "code" {
		t.Fatalf("unexpected newest view %+v", views[0])
	}
	if views[1].Type != "content" {
		t.Fatalf("expected docs change to be content, got %+v", views[1])
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health coreapp.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != "up" || health.Changes != 3 {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, health)
	}

	resp, err = http.Get(srv.URL + "/cycles")
	if err != nil {
		t.Fatalf("GET /cycles: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with journal disabled, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "revwatch_poll_cycles_total") {
		t.Fatal("expected poll cycle metric in /metrics output")
	}
}

func TestObservabilityServer_Cycles(t *testing.T) {
	cfg := config.Default()
	cfg.DB.Enabled = true
	cfg.DB.Path = filepath.Join(t.TempDir(), "revwatch.db")
	app := newTestApp(t, cfg, sampleCommits()...)
	if err := app.Monitor.PollNow(context.Background()); err != nil {
		t.Fatalf("PollNow failed: %v", err)
	}

	handler := NewObservabilityServer("", app).Handler()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycles?limit=5", nil))
		var cycles []ports.CycleRecord
		if rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &cycles) == nil && len(cycles) == 1 {
			if cycles[0].Mode != "full" {
				t.Fatalf("unexpected cycle %+v", cycles[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for journaled cycle, last response %d %s", rec.Code, rec.Body.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestObservabilityServer_StartStop(t *testing.T) {
	app := newTestApp(t, nil, sampleCommits()...)
	srv := NewObservabilityServer("127.0.0.1:0", app)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
