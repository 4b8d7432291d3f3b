package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterHealthEndpoints(t *testing.T) {
	server := httptest.NewServer(NewRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("status field = %v", payload["status"])
	}
}

func TestRouterReadyzReportsFailedCheck(t *testing.T) {
	health := NewHealthHandlers(
		WithReadinessCheck("firestore", func(context.Context) error {
			return errors.New("dial failed")
		}),
	)
	server := httptest.NewServer(NewRouter(WithHealthHandlers(health)))
	defer server.Close()

	resp, err := http.Get(server.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	server := httptest.NewServer(NewRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/nope")
	if err != nil {
		t.Fatalf("GET unknown route: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "route_not_found" {
		t.Fatalf("error code = %v, want route_not_found", payload["error"])
	}
}
