// Package priceengine implements the Diamond Hands price walk: a biased
// uniform volatility draw, a clamped multiplicative price update, and a
// bounded rolling history with summary statistics.
//
// Prices here are simulated display values, not money — they use float64
// with strict 4-decimal rounding. WLD amounts elsewhere in this module use
// shopspring/decimal.
package priceengine

import (
	"math"
	"math/rand"
	"time"
)

const (
	// MinPrice is the price floor. Repeated negative volatility pins the
	// price here rather than letting it go non-positive.
	MinPrice = 0.0001

	// HistoryCapacity bounds the rolling history; the oldest point is
	// evicted first once the buffer is full.
	HistoryCapacity = 20

	// Volatility distribution: VolatilityBias ± VolatilitySpread, giving
	// support [-0.04, +0.07] with mean +0.015. The asymmetry is the
	// upward drift of the game economy and is checked empirically by the
	// test suite — do not replace with a symmetric draw.
	VolatilityBias   = 0.015
	VolatilitySpread = 0.055
)

// Engine draws volatility samples from its own random source so callers
// can seed it deterministically.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine seeded from the current time.
func NewEngine() *Engine {
	return NewEngineWithSeed(time.Now().UnixNano())
}

// NewEngineWithSeed creates an engine with a deterministic source.
func NewEngineWithSeed(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// GenerateVolatility draws from 0.015 + uniform(-0.055, +0.055):
// support exactly [-0.04, +0.07], mean +0.015.
func (e *Engine) GenerateVolatility() float64 {
	return VolatilityBias + (e.rng.Float64()*2-1)*VolatilitySpread
}

// CalculateNewPrice applies a volatility step:
//
//	max(MinPrice, round(price * (1 + volatility), 4))
//
// The result never has more than 4 decimal places and never drops below
// MinPrice, even for degenerate inputs.
func CalculateNewPrice(price, volatility float64) float64 {
	next := round4(price * (1 + volatility))
	if next < MinPrice {
		return MinPrice
	}
	return next
}

// round4 rounds half away from zero to 4 decimal places.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// PricePoint is one recorded tick of the walk. Held marks whether the user
// reacted inside the hold window that preceded this point.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Held      bool      `json:"held"`
}

// Statistics summarizes the current history buffer. Derived on demand,
// never cached.
type Statistics struct {
	HighestPrice float64 `json:"highest_price"`
	LowestPrice  float64 `json:"lowest_price"`
	TotalHolds   int     `json:"total_holds"`
	TotalMisses  int     `json:"total_misses"`
	AveragePrice float64 `json:"average_price"`
}

// History is a bounded FIFO buffer of price points. The caller that starts
// a game session owns its History exclusively; it is not safe for
// concurrent use.
type History struct {
	startingPrice float64
	points        []PricePoint
}

// NewHistory creates a history anchored to a starting price. The starting
// price itself is not a recorded point; it only seeds the walk.
func NewHistory(startingPrice float64) *History {
	return &History{
		startingPrice: startingPrice,
		points:        make([]PricePoint, 0, HistoryCapacity),
	}
}

// StartingPrice returns the seed price the history was constructed with.
func (h *History) StartingPrice() float64 { return h.startingPrice }

// AddPrice appends a timestamped point, evicting the oldest once the
// buffer exceeds HistoryCapacity.
func (h *History) AddPrice(price float64, held bool) {
	h.points = append(h.points, PricePoint{
		Timestamp: time.Now().UTC(),
		Price:     price,
		Held:      held,
	})
	if len(h.points) > HistoryCapacity {
		h.points = h.points[1:]
	}
}

// Points returns the retained points in insertion order, oldest first.
// The returned slice is a copy.
func (h *History) Points() []PricePoint {
	out := make([]PricePoint, len(h.points))
	copy(out, h.points)
	return out
}

// Len returns the number of retained points.
func (h *History) Len() int { return len(h.points) }

// Stats recomputes summary statistics from the current buffer. The average
// is a plain arithmetic mean over the retained prices, not time-weighted.
func (h *History) Stats() Statistics {
	if len(h.points) == 0 {
		return Statistics{}
	}

	stats := Statistics{
		HighestPrice: h.points[0].Price,
		LowestPrice:  h.points[0].Price,
	}

	var sum float64
	for _, p := range h.points {
		if p.Price > stats.HighestPrice {
			stats.HighestPrice = p.Price
		}
		if p.Price < stats.LowestPrice {
			stats.LowestPrice = p.Price
		}
		if p.Held {
			stats.TotalHolds++
		} else {
			stats.TotalMisses++
		}
		sum += p.Price
	}
	stats.AveragePrice = sum / float64(len(h.points))

	return stats
}
