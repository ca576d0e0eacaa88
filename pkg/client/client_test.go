package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rmax-ai/alertgraph/pkg/graph"
)

// noWait is a backoff that never sleeps.
type noWait struct{}

func (noWait) Delay(int) time.Duration { return 0 }

func TestClient_RegisterUserAndCreateAlert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		switch r.URL.Path {
		case "/v1/users":
			w.Write([]byte(`{"id":"USER_1","nombre":"Ana","region":"Colón","created_at":"2025-03-01T10:30:00Z"}`))
		case "/v1/alerts":
			w.Write([]byte(`{"id":"ALERTA_CRIME_20250301_103500","descripcion":"Robo","region":"Colón","tipo":"alerta","categoria":"crime","user_id":"USER_1","created_at":"2025-03-01T10:35:00Z","activa":true}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ctx := context.Background()

	user, err := c.RegisterUser(ctx, "Ana", "Colón")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if user.ID != "USER_1" || user.Name != "Ana" {
		t.Errorf("unexpected user %+v", user)
	}

	alert, err := c.CreateAlert(ctx, AlertInput{UserID: user.ID, Category: "crime", Description: "Robo"})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if alert.Category != "crime" || !alert.IsActive() {
		t.Errorf("unexpected alert %+v", alert)
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("region"); got != "Panamá Oeste" {
			t.Errorf("expected region query, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"query":"region","value":"Panamá Oeste","count":1,"alerts":[
			{"id":"ALERTA_X","payload":{"tipo":"alerta","categoria":"traffic","region":"Panamá Oeste","activa":true}}]}`))
	}))
	defer server.Close()

	res, err := NewClient(server.URL).SearchByRegion(context.Background(), "Panamá Oeste")
	if err != nil {
		t.Fatalf("SearchByRegion failed: %v", err)
	}
	if res.Count != 1 || res.Alerts[0].ID != "ALERTA_X" {
		t.Fatalf("unexpected result %+v", res)
	}
	a, ok := res.Alerts[0].Payload.(graph.Alert)
	if !ok || a.Category != "traffic" || !a.Active {
		t.Errorf("unexpected payload %#v", res.Alerts[0].Payload)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown_region"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).RegisterUser(context.Background(), "Ana", "Atlantis")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "unknown_region" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestClient_RetriesReadsOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"nodes":20,"edges":19,"users":0,"active_alerts":0,"by_category":[]}`))
	}))
	defer server.Close()

	stats, err := NewClient(server.URL).WithRetries(2, noWait{}).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Nodes != 20 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).WithRetries(3, noWait{}).RegisterUser(context.Background(), "Ana", "Colón")
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"unknown_category"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).WithRetries(3, noWait{}).SearchByCategory(context.Background(), "fire")
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestClient_PingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).WithRetries(1, noWait{}).Ping(context.Background())
	if err == nil {
		t.Error("expected error for unreachable daemon")
	}
}

func TestClient_RecentAndEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("expected limit=5, got %q", r.URL.RawQuery)
		}
		switch r.URL.Path {
		case "/v1/alerts/recent":
			w.Write([]byte(`{"alert_ids":["B","A"]}`))
		case "/v1/events":
			w.Write([]byte(`[{"event_id":"e1","event_type":"alert_created","schema_version":1,"ts_event":"2025-03-01T10:35:00Z","ts_ingest":"2025-03-01T10:35:00Z","source":{},"dimensions":{},"correlation":{},"payload":{}}]`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ids, err := c.RecentAlerts(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "B" {
		t.Errorf("unexpected ids %v", ids)
	}

	events, err := c.GetEvents(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "e1" {
		t.Errorf("unexpected events %+v", events)
	}
}
