package priceengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateNewPrice(t *testing.T) {
	tests := []struct {
		name       string
		price      float64
		volatility float64
		want       float64
	}{
		{"positive step", 100, 0.05, 105},
		{"negative step", 100, -0.03, 97},
		{"zero volatility", 42.5, 0, 42.5},
		{"rounds to 4 places", 100, 0.000033, 100.0033},
		{"floors at minimum", 0.0001, -0.07, MinPrice},
		{"tiny price never goes below floor", 0.0002, -0.99, MinPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNewPrice(tt.price, tt.volatility)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateNewPricePrecision(t *testing.T) {
	// Any output scaled by 10^4 must be an integer.
	e := NewEngineWithSeed(7)
	price := 123.4567
	for i := 0; i < 1000; i++ {
		price = CalculateNewPrice(price, e.GenerateVolatility())
		scaled := price * 10000
		assert.InDelta(t, math.Round(scaled), scaled, 1e-6, "tick %d price %v", i, price)
		require.GreaterOrEqual(t, price, MinPrice)
	}
}

func TestGenerateVolatilityBounds(t *testing.T) {
	e := NewEngineWithSeed(42)

	const n = 10000
	var sum float64
	for i := 0; i < n; i++ {
		v := e.GenerateVolatility()
		require.GreaterOrEqual(t, v, VolatilityBias-VolatilitySpread)
		require.LessOrEqual(t, v, VolatilityBias+VolatilitySpread)
		sum += v
	}

	mean := sum / n
	assert.InDelta(t, VolatilityBias, mean, 0.005,
		"sample mean %v drifted from the configured bias", mean)
}

func TestGenerateVolatilitySeededDeterminism(t *testing.T) {
	a := NewEngineWithSeed(99)
	b := NewEngineWithSeed(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.GenerateVolatility(), b.GenerateVolatility())
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(100)
	for i := 1; i <= 30; i++ {
		h.AddPrice(float64(i), false)
	}

	require.Equal(t, HistoryCapacity, h.Len())
	points := h.Points()
	assert.Equal(t, float64(11), points[0].Price, "oldest retained point")
	assert.Equal(t, float64(30), points[len(points)-1].Price)
}

func TestHistoryPointsReturnsCopy(t *testing.T) {
	h := NewHistory(100)
	h.AddPrice(101, true)

	points := h.Points()
	points[0].Price = -1

	assert.Equal(t, 101.0, h.Points()[0].Price)
}

func TestStats(t *testing.T) {
	h := NewHistory(100)
	h.AddPrice(90, false)
	h.AddPrice(110, true)
	h.AddPrice(100, true)
	h.AddPrice(120, false)

	stats := h.Stats()
	assert.Equal(t, 120.0, stats.HighestPrice)
	assert.Equal(t, 90.0, stats.LowestPrice)
	assert.Equal(t, 2, stats.TotalHolds)
	assert.Equal(t, 2, stats.TotalMisses)
	assert.InDelta(t, 105.0, stats.AveragePrice, 1e-9)
}

func TestStatsEmptyHistory(t *testing.T) {
	h := NewHistory(100)
	assert.Equal(t, Statistics{}, h.Stats())
	assert.Equal(t, 100.0, h.StartingPrice())
	assert.Zero(t, h.Len())
}
