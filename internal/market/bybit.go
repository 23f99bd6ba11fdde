package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbiswas01/haridas-crypto-app/internal/cache"
	"github.com/hbiswas01/haridas-crypto-app/internal/candle"
)

const (
	defaultBybitBaseURL = "https://api.bybit.com"
	defaultHTTPTimeout  = 10 * time.Second
	defaultCandleTTL    = 30 * time.Second
)

// Bybit fetches spot klines and tickers from the Bybit v5 REST API. Candle
// fetches are cached for a short TTL to bound call volume against upstream.
type Bybit struct {
	client    *http.Client
	baseURL   string
	log       zerolog.Logger
	candles   *cache.TTL[candle.Series]
	userAgent string
}

// BybitOption configures Bybit construction parameters.
type BybitOption func(*Bybit)

// WithBaseURL overrides the API host, mainly for tests.
func WithBaseURL(base string) BybitOption {
	return func(b *Bybit) {
		if base != "" {
			b.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithCandleTTL overrides the candle cache lifetime; zero disables caching.
func WithCandleTTL(ttl time.Duration) BybitOption {
	return func(b *Bybit) { b.candles = cache.NewTTL[candle.Series](ttl) }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) BybitOption {
	return func(b *Bybit) {
		if c != nil {
			b.client = c
		}
	}
}

// NewBybit constructs a REST connector with sane defaults.
func NewBybit(log zerolog.Logger, opts ...BybitOption) *Bybit {
	b := &Bybit{
		client:    &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:   defaultBybitBaseURL,
		log:       log,
		candles:   cache.NewTTL[candle.Series](defaultCandleTTL),
		userAgent: "haridas-crypto-app/1.0",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	} `json:"result"`
}

type bybitTickerResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []bybitTicker `json:"list"`
	} `json:"result"`
}

type bybitTicker struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	PrevPrice24h string `json:"prevPrice24h"`
	Price24hPcnt string `json:"price24hPcnt"`
}

// Candles returns up to count bars for symbol at the given Bybit interval
// (e.g. "60" for hourly), oldest first.
func (b *Bybit) Candles(ctx context.Context, symbol, timeframe string, count int) (candle.Series, error) {
	if count <= 0 {
		count = 200
	}
	key := symbol + "/" + timeframe + "/" + strconv.Itoa(count)
	if series, ok := b.candles.Get(key); ok {
		return series, nil
	}

	endpoint := fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=%s&limit=%d",
		b.baseURL, url.QueryEscape(symbol), url.QueryEscape(timeframe), count)

	var payload bybitKlineResponse
	if err := b.getJSON(ctx, endpoint, &payload); err != nil {
		return candle.Series{}, fmt.Errorf("%w: kline %s: %v", ErrUnavailable, symbol, err)
	}
	if payload.RetCode != 0 {
		return candle.Series{}, fmt.Errorf("%w: kline %s: retCode %d %s", ErrUnavailable, symbol, payload.RetCode, payload.RetMsg)
	}
	if len(payload.Result.List) == 0 {
		return candle.Series{}, fmt.Errorf("%w: kline %s: empty result", ErrUnavailable, symbol)
	}

	series, err := parseBybitKlines(symbol, timeframe, payload.Result.List)
	if err != nil {
		return candle.Series{}, fmt.Errorf("%w: kline %s: %v", ErrUnavailable, symbol, err)
	}
	b.candles.Set(key, series)
	return series, nil
}

// Quote returns the last price with 24h change for symbol.
func (b *Bybit) Quote(ctx context.Context, symbol string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/v5/market/tickers?category=spot&symbol=%s",
		b.baseURL, url.QueryEscape(symbol))

	var payload bybitTickerResponse
	if err := b.getJSON(ctx, endpoint, &payload); err != nil {
		return Quote{}, fmt.Errorf("%w: ticker %s: %v", ErrUnavailable, symbol, err)
	}
	if payload.RetCode != 0 || len(payload.Result.List) == 0 {
		return Quote{}, fmt.Errorf("%w: ticker %s: retCode %d %s", ErrUnavailable, symbol, payload.RetCode, payload.RetMsg)
	}

	t := payload.Result.List[0]
	last, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil || last <= 0 {
		return Quote{}, fmt.Errorf("%w: ticker %s: missing last price", ErrUnavailable, symbol)
	}
	q := Quote{Last: last}
	if prev, err := strconv.ParseFloat(t.PrevPrice24h, 64); err == nil && prev > 0 {
		q.ChangeAbs = last - prev
	}
	if pcnt, err := strconv.ParseFloat(t.Price24hPcnt, 64); err == nil {
		q.ChangePct = pcnt * 100
	}
	return q, nil
}

func (b *Bybit) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseBybitKlines converts the newest-first v5 kline rows
// [startMs, open, high, low, close, volume, turnover] into an oldest-first series.
func parseBybitKlines(symbol, timeframe string, rows [][]string) (candle.Series, error) {
	bars := make([]candle.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			return candle.Series{}, fmt.Errorf("kline row has %d fields", len(row))
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return candle.Series{}, fmt.Errorf("parse start time: %w", err)
		}
		var c candle.Candle
		c.Ts = time.UnixMilli(ms).UTC()
		for j, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return candle.Series{}, fmt.Errorf("parse kline field %d: %w", j+1, err)
			}
			*dst = v
		}
		bars = append(bars, c)
	}
	series := candle.Series{Symbol: symbol, Timeframe: timeframe, Candles: bars}
	if !series.Ordered() {
		return candle.Series{}, fmt.Errorf("kline timestamps not strictly increasing")
	}
	return series, nil
}
