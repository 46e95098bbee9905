package poll_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorkin/particle-monitor/internal/poll"
)

func TestSummarizeEmpty(t *testing.T) {
	_, ok := poll.Summarize(nil)

	require.False(t, ok)
}

func TestSummarizeConstantSeries(t *testing.T) {
	stats, ok := poll.Summarize([]float64{12.3, 12.3, 12.3, 12.3})

	require.True(t, ok)
	assert.Equal(t, 12.3, stats.Min)
	assert.Equal(t, 12.3, stats.Max)
	assert.Equal(t, 12.3, stats.Mean)
	assert.Equal(t, 0.0, stats.Std)
}

func TestSummarizeUsesPopulationStandardDeviation(t *testing.T) {
	stats, ok := poll.Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	require.True(t, ok)
	assert.Equal(t, 2.0, stats.Min)
	assert.Equal(t, 9.0, stats.Max)
	assert.InDelta(t, 5.0, stats.Mean, 1e-9)
	// Sample deviation would be ~2.138.
	assert.InDelta(t, 2.0, stats.Std, 1e-9)
}

func TestSummarizeSingleValue(t *testing.T) {
	stats, ok := poll.Summarize([]float64{8.1})

	require.True(t, ok)
	assert.Equal(t, 0.0, stats.Std)
	assert.Equal(t, 8.1, stats.Mean)
}

func TestSummarizeOrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		values := make([]float64, 1+rng.IntN(50))
		for j := range values {
			values[j] = rng.Float64() * 500
		}

		stats, ok := poll.Summarize(values)

		require.True(t, ok)
		require.LessOrEqual(t, stats.Min, stats.Mean)
		require.LessOrEqual(t, stats.Mean, stats.Max)
		require.GreaterOrEqual(t, stats.Std, 0.0)
		require.False(t, math.IsNaN(stats.Std))
	}
}
