package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultBybitWSURL = "wss://stream.bybit.com/v5/public/spot"

// LiveFeed maintains last-quote snapshots from the Bybit public ticker stream
// and serves LivePriceSource reads from them. Quotes for symbols the stream
// has not delivered yet read as ErrUnavailable, never as a zero price event.
type LiveFeed struct {
	url     string
	symbols []string
	log     zerolog.Logger

	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewLiveFeed builds a feed for the given symbols; wsURL falls back to the
// production endpoint when empty.
func NewLiveFeed(symbols []string, wsURL string, log zerolog.Logger) *LiveFeed {
	if wsURL == "" {
		wsURL = defaultBybitWSURL
	}
	return &LiveFeed{
		url:     wsURL,
		symbols: append([]string(nil), symbols...),
		log:     log,
		quotes:  make(map[string]Quote),
	}
}

// Quote serves the most recent snapshot for symbol.
func (f *LiveFeed) Quote(_ context.Context, symbol string) (Quote, error) {
	f.mu.RLock()
	q, ok := f.quotes[symbol]
	f.mu.RUnlock()
	if !ok || q.Last <= 0 {
		return Quote{}, fmt.Errorf("%w: no live quote for %s", ErrUnavailable, symbol)
	}
	return q, nil
}

// Run consumes the ticker stream until the context is canceled, reconnecting
// with capped exponential backoff.
func (f *LiveFeed) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("live feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

type bybitWSMessage struct {
	Topic string      `json:"topic"`
	Data  bybitTicker `json:"data"`
}

func (f *LiveFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	args := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		args[i] = "tickers." + strings.ToUpper(sym)
	}
	sub := map[string]interface{}{"op": "subscribe", "args": args}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.log.Info().Strs("symbols", f.symbols).Msg("connected live price feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					f.log.Warn().Err(err).Msg("live feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		var msg bybitWSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode ticker message")
			continue
		}
		if !strings.HasPrefix(msg.Topic, "tickers.") || msg.Data.Symbol == "" {
			continue
		}

		last, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
		if err != nil || last <= 0 {
			continue
		}
		q := Quote{Last: last}
		if prev, err := strconv.ParseFloat(msg.Data.PrevPrice24h, 64); err == nil && prev > 0 {
			q.ChangeAbs = last - prev
		}
		if pcnt, err := strconv.ParseFloat(msg.Data.Price24hPcnt, 64); err == nil {
			q.ChangePct = pcnt * 100
		}

		f.mu.Lock()
		f.quotes[msg.Data.Symbol] = q
		f.mu.Unlock()
	}
}
