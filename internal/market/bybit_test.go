package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const klineBody = `{"retCode":0,"retMsg":"OK","result":{"symbol":"BTCUSDT","list":[
	["1700007200000","101","103","100","102","12","1224"],
	["1700003600000","100","102","99","101","10","1010"],
	["1700000000000","99","101","98","100","11","1100"]
]}}`

const tickerBody = `{"retCode":0,"retMsg":"OK","result":{"list":[
	{"symbol":"BTCUSDT","lastPrice":"105.5","prevPrice24h":"100.0","price24hPcnt":"0.055"}
]}}`

func TestBybitCandles(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/v5/market/kline" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("unexpected symbol %s", got)
		}
		w.Write([]byte(klineBody))
	}))
	defer srv.Close()

	b := NewBybit(zerolog.Nop(), WithBaseURL(srv.URL), WithCandleTTL(time.Minute))
	series, err := b.Candles(context.Background(), "BTCUSDT", "60", 3)
	if err != nil {
		t.Fatalf("Candles returned error: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 candles, got %d", series.Len())
	}
	if !series.Ordered() {
		t.Fatalf("expected oldest-first ordering")
	}
	first, last := series.Candles[0], series.Candles[2]
	if first.Close != 100 || last.Close != 102 {
		t.Fatalf("rows not reversed: first close %.1f last close %.1f", first.Close, last.Close)
	}
	if last.Volume != 12 {
		t.Fatalf("expected volume 12, got %.1f", last.Volume)
	}

	// Second call inside the TTL must be served from cache.
	if _, err := b.Candles(context.Background(), "BTCUSDT", "60", 3); err != nil {
		t.Fatalf("cached Candles returned error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", got)
	}
}

func TestBybitCandlesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{"list":[]}}`))
	}))
	defer srv.Close()

	b := NewBybit(zerolog.Nop(), WithBaseURL(srv.URL))
	_, err := b.Candles(context.Background(), "NOPEUSDT", "60", 50)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBybitQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(tickerBody))
	}))
	defer srv.Close()

	b := NewBybit(zerolog.Nop(), WithBaseURL(srv.URL))
	q, err := b.Quote(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if q.Last != 105.5 {
		t.Fatalf("expected last 105.5, got %.2f", q.Last)
	}
	if q.ChangeAbs != 5.5 {
		t.Fatalf("expected change 5.5, got %.2f", q.ChangeAbs)
	}
	if q.ChangePct != 5.5 {
		t.Fatalf("expected change pct 5.5, got %.2f", q.ChangePct)
	}
}

func TestBybitQuoteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewBybit(zerolog.Nop(), WithBaseURL(srv.URL))
	if _, err := b.Quote(context.Background(), "BTCUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestStubProducesDetectableBreakout(t *testing.T) {
	s := NewStub()
	series, err := s.Candles(context.Background(), "SOLUSDT", "60", 40)
	if err != nil {
		t.Fatalf("stub Candles returned error: %v", err)
	}
	if series.Len() != 40 || !series.Ordered() {
		t.Fatalf("expected 40 ordered candles, got %d ordered=%v", series.Len(), series.Ordered())
	}
	last, _ := series.Last()
	if !last.Bullish() {
		t.Fatalf("expected final stub bar to be bullish")
	}
	q, err := s.Quote(context.Background(), "SOLUSDT")
	if err != nil || q.Last <= 0 {
		t.Fatalf("expected positive stub quote, got %+v err=%v", q, err)
	}

	s.SetQuote("SOLUSDT", Quote{})
	if _, err := s.Quote(context.Background(), "SOLUSDT"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected scripted unavailable quote, got %v", err)
	}
}
