package marketdata

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPriceHistorySinglePage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"t":1000,"o":"1.0","h":"1.1","l":"0.9","c":"1.05","v":"100"},
			{"t":1060,"o":"1.05","h":"1.2","l":"1.0","c":"1.1","v":"200"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	candles, err := c.PriceHistory(context.Background(), "tokA", "tokB",
		time.Unix(1000, 0), time.Unix(1200, 0), 60)
	if err != nil {
		t.Fatalf("PriceHistory: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	if !candles[0].Close.Equal(candles[0].Close) {
		t.Error("sanity check failed")
	}
}

func TestPriceHistoryEmptyPageStops(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	candles, err := c.PriceHistory(context.Background(), "tokA", "tokB",
		time.Unix(1000, 0), time.Unix(1200, 0), 60)
	if err != nil {
		t.Fatalf("PriceHistory: %v", err)
	}
	if len(candles) != 0 {
		t.Errorf("len(candles) = %d, want 0", len(candles))
	}
}

func TestPriceHistoryRejectsMalformedCandle(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"t":1000,"o":"not-a-number","h":"1.1","l":"0.9","c":"1.05","v":"100"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	_, err := c.PriceHistory(context.Background(), "tokA", "tokB",
		time.Unix(1000, 0), time.Unix(1200, 0), 60)
	if err == nil {
		t.Fatal("expected error for malformed candle")
	}
}

func TestPriceHistoryErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	_, err := c.PriceHistory(context.Background(), "tokA", "tokB",
		time.Unix(1000, 0), time.Unix(1200, 0), 60)
	if err == nil {
		t.Fatal("expected error for 500 status")
	}
}
