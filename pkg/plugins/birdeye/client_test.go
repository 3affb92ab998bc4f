package birdeye

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wilhg/conduit/pkg/httpx"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := httpx.New(&httpx.Options{Attempts: 3, Delay: 10 * time.Millisecond})
	c, err := NewClient("test-key", &ClientOptions{BaseURL: srv.URL, HTTP: hc})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("", nil); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestPriceSendsHeaders(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/defi/price" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q", got)
		}
		if got := r.Header.Get("x-chain"); got != "solana" {
			t.Errorf("x-chain = %q", got)
		}
		if got := r.URL.Query().Get("address"); got != AddrWSOL {
			t.Errorf("address = %q", got)
		}
		w.Write([]byte(`{"data":{"value":142.5,"updateUnixTime":1700000000},"success":true}`))
	})

	p, err := c.Price(context.Background(), AddrWSOL)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p.Value != 142.5 {
		t.Fatalf("value = %v, want 142.5", p.Value)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":{"value":1},"success":true}`))
	})

	if _, err := c.Price(context.Background(), AddrUSDC); err != nil {
		t.Fatalf("Price after retries: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestClientFailsOnSuccessFalse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"success":false,"message":"address not found"}`))
	})
	if _, err := c.Price(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error when success=false")
	}
}

func TestPortfolio(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/wallet/token_list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("wallet"); got != "walletA" {
			t.Errorf("wallet = %q", got)
		}
		w.Write([]byte(`{"data":{"wallet":"walletA","totalUsd":1250.75,"items":[
			{"address":"mint1","symbol":"SOL","uiAmount":5,"priceUsd":142.5,"valueUsd":712.5}
		]},"success":true}`))
	})

	pf, err := c.Portfolio(context.Background(), "walletA")
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if pf.TotalUSD != 1250.75 || len(pf.Items) != 1 {
		t.Fatalf("portfolio = %+v", pf)
	}
	if pf.Items[0].Symbol != "SOL" {
		t.Fatalf("item = %+v", pf.Items[0])
	}
}

func TestTradeData(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/defi/v3/token/trade-data/single" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"price":0.5,"price_change_24h_percent":-2.3,"volume_24h_usd":1500000},"success":true}`))
	})
	td, err := c.TradeData(context.Background(), AddrBONK)
	if err != nil {
		t.Fatalf("TradeData: %v", err)
	}
	if td.Volume24hUSD != 1500000 {
		t.Fatalf("volume = %v", td.Volume24hUSD)
	}
}
