package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGetTokenAndSetAuthHeader(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	cfg := Conf{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL}
	if !cfg.Enabled() {
		t.Fatalf("expected credentials enabled")
	}
	client := NewClientCred(cfg)

	token, err := client.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken returned error: %v", err)
	}
	if token != "token123" {
		t.Fatalf("unexpected token %s", token)
	}

	req, _ := http.NewRequest("POST", "http://optimizer.local/optimize", nil)
	if err := client.SetAuthHeader(req); err != nil {
		t.Fatalf("SetAuthHeader returned error: %v", err)
	}
	if auth := req.Header.Get("Authorization"); auth != "Bearer token123" {
		t.Fatalf("unexpected Authorization header %q", auth)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected cached token, got %d token requests", calls.Load())
	}

	client.Invalidate()
	if _, err := client.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken after invalidate: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refresh after invalidate")
	}
}

func TestGetTokenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer server.Close()
	client := NewClientCred(Conf{ClientID: "id", TokenURL: server.URL})
	if _, err := client.GetToken(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
