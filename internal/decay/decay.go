// Package decay scores the strength and expected remaining life of recent
// price momentum from an OHLCV series using an exponential-decay energy model.
package decay

import (
	"math"

	"github.com/hbiswas01/haridas-crypto-app/internal/candle"
)

// Phase labels the direction of the move being scored.
type Phase string

const (
	Bull    Phase = "BULL"
	Bear    Phase = "BEAR"
	Neutral Phase = "NEUTRAL"
)

const (
	// MinCandles is the shortest series the model will score. Anything
	// shorter yields the neutral sentinel instead of a partial computation.
	MinCandles = 20

	atrPeriod           = 14
	velocityLookback    = 3
	avgVelocityWindow   = 15
	volumeWindow        = 20
	maxEnergy           = 5.0
	baseHalfLife        = 8.0
	exhaustionThreshold = 0.08
	maxBarsElapsed      = 9
	epsilon             = 1e-9
)

// Metrics is a stateless snapshot of the momentum model for one series.
type Metrics struct {
	EnergyPct    int
	Phase        Phase
	E0           float64
	HalfLifeBars float64
	BarsElapsed  int
	DecayEtaBars float64
	Impulses     int
	Exhaustions  int
	Divergences  int
}

// NeutralMetrics is the sentinel returned when history is insufficient.
func NeutralMetrics() Metrics {
	return Metrics{Phase: Neutral}
}

// Evaluate scores the supplied series. It is a pure function of its input:
// the same candles always produce the same metrics.
func Evaluate(series candle.Series) Metrics {
	bars := series.Candles
	n := len(bars)
	if n < MinCandles {
		return NeutralMetrics()
	}

	latest := bars[n-1]
	atr := averageTrueRange(bars)
	bodySize := latest.Body()

	velocity := math.Abs(latest.Close-bars[n-1-velocityLookback].Close) / float64(velocityLookback)
	avgVelocity := meanAbsDiff(bars, avgVelocityWindow)
	velocityBoost := 1.0
	if avgVelocity > 0 {
		velocityBoost = math.Min(velocity/avgVelocity, 3.0)
	}

	avgVolume := meanVolume(bars, volumeWindow)
	volumeBoost := 1.0
	if avgVolume > 0 {
		volumeBoost = clamp(latest.Volume/avgVolume, 0.5, 3.0)
	}

	e0 := math.Min(bodySize/math.Max(atr, epsilon)*velocityBoost*volumeBoost, maxEnergy)

	phase := Bear
	if latest.Bullish() {
		phase = Bull
	}

	halfLife := baseHalfLife * clamp(e0/2.0, 0.6, 2.2)
	lambda := math.Ln2 / halfLife

	elapsed := barsElapsed(bars, phase)
	current := e0 * math.Exp(-lambda*float64(elapsed))
	energyPct := int(math.Round(clamp(current/3.0, 0, 1) * 100))

	var eta float64
	if e0 > 0 {
		if ratio := current / e0; ratio > exhaustionThreshold {
			eta = (math.Log(ratio) - math.Log(exhaustionThreshold)) / lambda
		}
	}

	return Metrics{
		EnergyPct:    energyPct,
		Phase:        phase,
		E0:           e0,
		HalfLifeBars: halfLife,
		BarsElapsed:  elapsed,
		DecayEtaBars: eta,
		Impulses:     impulses(bars, avgVolume),
		Exhaustions:  exhaustions(bars),
		Divergences:  divergences(bars),
	}
}

// averageTrueRange is the mean of the last atrPeriod true-range values,
// or fewer when the series is short.
func averageTrueRange(bars []candle.Candle) float64 {
	n := len(bars)
	start := n - atrPeriod
	if start < 1 {
		start = 1
	}
	var sum float64
	count := 0
	for i := start; i < n; i++ {
		prevClose := bars[i-1].Close
		tr := bars[i].High - bars[i].Low
		tr = math.Max(tr, math.Abs(bars[i].High-prevClose))
		tr = math.Max(tr, math.Abs(bars[i].Low-prevClose))
		sum += tr
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func meanAbsDiff(bars []candle.Candle, window int) float64 {
	n := len(bars)
	start := n - window
	if start < 1 {
		start = 1
	}
	var sum float64
	count := 0
	for i := start; i < n; i++ {
		sum += math.Abs(bars[i].Close - bars[i-1].Close)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func meanVolume(bars []candle.Candle, window int) float64 {
	n := len(bars)
	start := n - window
	if start < 0 {
		start = 0
	}
	var sum float64
	for i := start; i < n; i++ {
		sum += bars[i].Volume
	}
	return sum / float64(n-start)
}

// barsElapsed walks back up to maxBarsElapsed bars and returns how far back
// the most recent bar disagreeing with phase sits; 0 when the whole window
// agrees.
func barsElapsed(bars []candle.Candle, phase Phase) int {
	n := len(bars)
	for k := 1; k <= maxBarsElapsed; k++ {
		idx := n - 1 - k
		if idx < 0 {
			break
		}
		bull := bars[idx].Bullish()
		if (phase == Bull && !bull) || (phase == Bear && bull) {
			return k
		}
	}
	return 0
}

// impulses counts high-volume bars in the last 10. With no volume history at
// all this is deterministically 0 rather than a guess.
func impulses(bars []candle.Candle, avgVolume float64) int {
	if avgVolume <= 0 {
		return 0
	}
	n := len(bars)
	start := n - 10
	if start < 0 {
		start = 0
	}
	count := 0
	for i := start; i < n; i++ {
		if bars[i].Volume > 1.5*avgVolume {
			count++
		}
	}
	return count
}

// exhaustions grades close-price dispersion over the last 10 bars.
func exhaustions(bars []candle.Candle) int {
	n := len(bars)
	start := n - 10
	if start < 0 {
		start = 0
	}
	window := bars[start:]
	var mean float64
	for _, b := range window {
		mean += b.Close
	}
	mean /= float64(len(window))
	if mean <= 0 {
		return 0
	}
	var variance float64
	for _, b := range window {
		d := b.Close - mean
		variance += d * d
	}
	variance /= float64(len(window))
	dispersionPct := math.Sqrt(variance) / mean * 100
	return int(clamp(dispersionPct, 0, 9))
}

// divergences grades the 10-bar price displacement.
func divergences(bars []candle.Candle) int {
	n := len(bars)
	if n < 11 {
		return 0
	}
	ref := bars[n-11].Close
	if ref <= 0 {
		return 0
	}
	displacementPct := math.Abs(bars[n-1].Close-ref) / ref * 100
	return int(clamp(displacementPct, 0, 9))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
