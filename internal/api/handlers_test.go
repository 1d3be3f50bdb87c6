package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fleurer/meme/internal/config"
	"github.com/Fleurer/meme/internal/repo"
	"github.com/Fleurer/meme/pkg/money"
)

func mustMoney(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.NewFromString(s)
	if err != nil {
		t.Fatalf("parse money %q: %v", s, err)
	}
	return m
}

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		cfg     config.ServerConfig
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			cfg:     config.ServerConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8080",
			cfg:     config.ServerConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			cfg:     config.ServerConfig{},
			reqHost: "localhost:8080",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://ops.example.com",
			cfg:     config.ServerConfig{AllowedOrigins: []string{"https://ops.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			cfg:     config.ServerConfig{AllowedOrigins: []string{"https://ops.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://engine.internal:8080",
			cfg:     config.ServerConfig{},
			reqHost: "engine.internal:8080",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.cfg, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	srv := NewServer(config.ServerConfig{Port: 0}, repo.New(), logger)
	return httptest.NewServer(srv.handlers.routes())
}

// routes exposes the handlers' mux for direct httptest wiring in tests,
// without binding a real listening port via http.Server.
func (h *Handlers) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /snapshot", h.HandleSnapshot)
	mux.HandleFunc("POST /accounts", h.HandleCreateAccount)
	mux.HandleFunc("DELETE /accounts/{id}", h.HandleDeleteAccount)
	mux.HandleFunc("GET /accounts/{id}", h.HandleGetAccount)
	mux.HandleFunc("POST /accounts/{id}/credit", h.HandleCredit)
	mux.HandleFunc("POST /accounts/{id}/debit", h.HandleDebit)
	mux.HandleFunc("POST /exchanges", h.HandleCreateExchange)
	mux.HandleFunc("GET /exchanges/{id}", h.HandleGetExchange)
	mux.HandleFunc("POST /exchanges/{id}/match", h.HandleMatch)
	mux.HandleFunc("POST /orders", h.HandleCreateOrder)
	mux.HandleFunc("DELETE /orders/{id}", h.HandleDeleteOrder)
	mux.HandleFunc("GET /orders/{id}", h.HandleGetOrder)
	return mux
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := testServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

// TestAccountOrderLifecycle exercises the façade end to end: create two
// accounts, fund them, open a book, place crossing orders, and match.
func TestAccountOrderLifecycle(t *testing.T) {
	t.Parallel()
	srv := testServer(t)
	defer srv.Close()

	mustOK := func(resp *http.Response, action string) {
		t.Helper()
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d", action, resp.StatusCode)
		}
	}

	mustOK(postJSON(t, srv, "/accounts", createAccountRequest{ID: "acc1"}), "create acc1")
	mustOK(postJSON(t, srv, "/accounts", createAccountRequest{ID: "acc2"}), "create acc2")
	mustOK(postJSON(t, srv, "/exchanges", createExchangeRequest{CoinType: "ltc", PriceType: "btc"}), "create exchange")

	creditID := "0x" + stringsRepeat("11", 32)
	mustOK(postJSON(t, srv, "/accounts/acc1/credit", balanceChangeRequest{ID: creditID, CoinType: "ltc", Amount: mustMoney(t, "100")}), "credit acc1")
	creditID2 := "0x" + stringsRepeat("22", 32)
	mustOK(postJSON(t, srv, "/accounts/acc2/credit", balanceChangeRequest{ID: creditID2, CoinType: "btc", Amount: mustMoney(t, "100")}), "credit acc2")

	bidID := "0x" + stringsRepeat("33", 32)
	mustOK(postJSON(t, srv, "/orders", createOrderRequest{
		ID: bidID, Variant: "bid", AccountID: "acc2", CoinType: "ltc", PriceType: "btc",
		Price: mustMoney(t, "0.1"), Amount: mustMoney(t, "1"), FeeRate: mustMoney(t, "0.01"),
	}), "create bid")

	askID := "0x" + stringsRepeat("44", 32)
	mustOK(postJSON(t, srv, "/orders", createOrderRequest{
		ID: askID, Variant: "ask", AccountID: "acc1", CoinType: "ltc", PriceType: "btc",
		Price: mustMoney(t, "0.1"), Amount: mustMoney(t, "1"), FeeRate: mustMoney(t, "0.01"),
	}), "create ask")

	matchResp := postJSON(t, srv, "/exchanges/ltc-btc/match", struct{}{})
	defer matchResp.Body.Close()
	var match matchResponse
	if err := json.NewDecoder(matchResp.Body).Decode(&match); err != nil {
		t.Fatalf("decode match response: %v", err)
	}
	if !match.Matched {
		t.Fatal("expected a match between the crossing bid and ask")
	}

	orderResp, err := http.Get(srv.URL + "/orders/" + askID)
	if err != nil {
		t.Fatalf("GET ask order: %v", err)
	}
	defer orderResp.Body.Close()
	var ov orderView
	if err := json.NewDecoder(orderResp.Body).Decode(&ov); err != nil {
		t.Fatalf("decode order view: %v", err)
	}
	if !ov.IsCompleted {
		t.Fatal("expected the ask to be fully filled by the matching bid")
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
