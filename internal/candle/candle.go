// Package candle standardizes OHLCV payloads shared between data sources and analysis layers.
package candle

import "time"

// Candle models one time-bucketed price bar.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// Bullish reports whether the bar closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	body := c.Close - c.Open
	if body < 0 {
		return -body
	}
	return body
}

// Series is an ordered OHLCV history for one (symbol, timeframe) pair,
// strictly increasing by timestamp.
type Series struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// Len returns the number of candles in the series.
func (s Series) Len() int { return len(s.Candles) }

// Last returns the most recent candle; ok is false on an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Ordered reports whether timestamps are strictly increasing.
func (s Series) Ordered() bool {
	for i := 1; i < len(s.Candles); i++ {
		if !s.Candles[i].Ts.After(s.Candles[i-1].Ts) {
			return false
		}
	}
	return true
}

// HighestHigh returns the maximum high across the supplied bars, 0 on empty input.
func HighestHigh(bars []Candle) float64 {
	var highest float64
	for _, b := range bars {
		if b.High > highest {
			highest = b.High
		}
	}
	return highest
}

// LowestLow returns the minimum low across the supplied bars, 0 on empty input.
func LowestLow(bars []Candle) float64 {
	if len(bars) == 0 {
		return 0
	}
	lowest := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < lowest {
			lowest = b.Low
		}
	}
	return lowest
}
