package market

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shadowprism/go-core/internal/config"
)

func newOracle(t *testing.T, baseURL string) *Oracle {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := New(config.Market{BaseURL: baseURL, CacheTTL: time.Minute}, log)
	t.Cleanup(o.Stop)
	return o
}

func TestPriceFetchAndCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/price/SOL-USD" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"price":155.20}`)
	}))
	t.Cleanup(srv.Close)

	o := newOracle(t, srv.URL)
	if got := o.Price(context.Background(), "SOL-USD"); got != 155.20 {
		t.Fatalf("price = %v, want 155.20", got)
	}
	o.Price(context.Background(), "SOL-USD")
	if hits.Load() != 1 {
		t.Fatalf("service hit %d times, want 1", hits.Load())
	}
}

func TestPriceFallsBackWhenUnreachable(t *testing.T) {
	o := newOracle(t, "http://127.0.0.1:1")
	if got := o.Price(context.Background(), "SOL-USD"); got != FallbackPrice {
		t.Fatalf("price = %v, want fallback %v", got, FallbackPrice)
	}
}

func TestPriceRejectsNonPositive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price":0}`)
	}))
	t.Cleanup(srv.Close)

	o := newOracle(t, srv.URL)
	if got := o.Price(context.Background(), "SOL-USD"); got != FallbackPrice {
		t.Fatalf("price = %v, want fallback for zero quote", got)
	}
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		lamports uint64
		price    float64
		want     string
	}{
		{1_000_000_000, 150, "$150.00"},
		{500_000_000, 150, "$75.00"},
		{0, 150, "$0.00"},
		{1_234_000_000, 100, "$123.40"},
	}
	for _, c := range cases {
		if got := FormatUSD(c.lamports, c.price); got != c.want {
			t.Errorf("FormatUSD(%d, %v) = %q, want %q", c.lamports, c.price, got, c.want)
		}
	}
}
