package poll

import (
	"math"

	"github.com/monorkin/particle-monitor/internal/models"
)

// Summarize computes min, max, mean and the population standard deviation
// (divided by N, not N-1) of values. The second result is false for an
// empty slice.
func Summarize(values []float64) (models.Stats, bool) {
	if len(values) == 0 {
		return models.Stats{}, false
	}

	min := values[0]
	max := values[0]
	sum := 0.0

	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	n := float64(len(values))
	mean := sum / n

	// Rounding can nudge a constant series' mean a hair outside [min, max].
	mean = math.Max(min, math.Min(max, mean))

	squares := 0.0
	for _, v := range values {
		d := v - mean
		squares += d * d
	}

	return models.Stats{
		Min:  min,
		Max:  max,
		Mean: mean,
		Std:  math.Sqrt(squares / n),
	}, true
}
