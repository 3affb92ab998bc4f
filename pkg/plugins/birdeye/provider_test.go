package birdeye

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wilhg/conduit/pkg/agent/agenttest"
	"github.com/wilhg/conduit/pkg/httpx"
)

// marketServer serves minimal price/trade/portfolio payloads and counts hits.
func marketServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/defi/price":
			w.Write([]byte(`{"data":{"value":142.5},"success":true}`))
		case "/defi/v3/token/trade-data/single":
			w.Write([]byte(`{"data":{"price":142.5,"price_change_24h_percent":3.4,"volume_24h_usd":2500000},"success":true}`))
		case "/v1/wallet/token_list":
			w.Write([]byte(`{"data":{"wallet":"w1","totalUsd":900,"items":[{"symbol":"SOL","valueUsd":900}]},"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMarketProviderFormatsSummary(t *testing.T) {
	var hits atomic.Int32
	srv := marketServer(t, &hits)
	client, err := NewClient("k", &ClientOptions{BaseURL: srv.URL, HTTP: httpx.New(&httpx.Options{Delay: time.Millisecond})})
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Config{
		Client: client,
		Watch:  []WatchedToken{{Symbol: "SOL", Address: AddrWSOL}},
		Wallet: "w1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rt := agenttest.NewRuntime()

	got, err := p.Providers[0].Get(context.Background(), rt, agenttest.Msg("hi"), nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, want := range []string{"SOL: $142.50", "+3.4% 24h", "vol $2.5M", "$900.00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestMarketProviderReadsThroughCache(t *testing.T) {
	var hits atomic.Int32
	srv := marketServer(t, &hits)
	client, err := NewClient("k", &ClientOptions{BaseURL: srv.URL, HTTP: httpx.New(&httpx.Options{Delay: time.Millisecond})})
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Config{Client: client, Watch: []WatchedToken{{Symbol: "SOL", Address: AddrWSOL}}})
	if err != nil {
		t.Fatal(err)
	}
	rt := agenttest.NewRuntime()
	prov := p.Providers[0]

	if _, err := prov.Get(context.Background(), rt, agenttest.Msg("a"), nil); err != nil {
		t.Fatal(err)
	}
	first := hits.Load()
	if first == 0 {
		t.Fatal("expected network fetches on cold cache")
	}

	// Warm cache: no further network calls.
	if _, err := prov.Get(context.Background(), rt, agenttest.Msg("b"), nil); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != first {
		t.Fatalf("hits = %d after warm read, want %d", hits.Load(), first)
	}
}

func TestMarketProviderSkipsFailingTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("address")
		if addr == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/defi/price":
			w.Write([]byte(`{"data":{"value":1.0},"success":true}`))
		default:
			w.Write([]byte(`{"data":{"price":1.0},"success":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	client, err := NewClient("k", &ClientOptions{BaseURL: srv.URL, HTTP: httpx.New(&httpx.Options{Attempts: 1, Delay: time.Millisecond})})
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(Config{Client: client, Watch: []WatchedToken{
		{Symbol: "BAD", Address: "bad"},
		{Symbol: "OK", Address: "ok"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Providers[0].Get(context.Background(), agenttest.NewRuntime(), agenttest.Msg("x"), nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Contains(got, "BAD") {
		t.Fatalf("failing token leaked into summary:\n%s", got)
	}
	if !strings.Contains(got, "OK") {
		t.Fatalf("healthy token missing from summary:\n%s", got)
	}
}

func TestFromSettingsParsesWatchlist(t *testing.T) {
	settings := map[string]string{
		"BIRDEYE_API_KEY":   "k",
		"BIRDEYE_WATCHLIST": "SOL:" + AddrWSOL + ", USDC:" + AddrUSDC + ",broken",
	}
	cfg := FromSettings(func(k string) string { return settings[k] })
	if cfg.APIKey != "k" {
		t.Fatalf("api key = %q", cfg.APIKey)
	}
	if len(cfg.Watch) != 2 {
		t.Fatalf("watch = %+v", cfg.Watch)
	}
	if cfg.Watch[1].Symbol != "USDC" || cfg.Watch[1].Address != AddrUSDC {
		t.Fatalf("watch[1] = %+v", cfg.Watch[1])
	}
}
