package utils

import "math"

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// ZScore standardises value against a mean and standard deviation.
// Returns 0 when stdDev is 0.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// Percentage returns part/total expressed as a percentage, 0 when total is 0.
func Percentage(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Normalize maps value from [min, max] into [0, 1], returning 0.5 for a
// degenerate range.
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	return Clamp((value-min)/(max-min), 0, 1)
}

// MovingAverage returns the trailing moving average of values over windowSize.
func MovingAverage(values []float64, windowSize int) []float64 {
	if len(values) == 0 || windowSize <= 0 {
		return nil
	}
	result := make([]float64, 0, len(values))
	for i := range values {
		start := 0
		if i >= windowSize {
			start = i - windowSize + 1
		}
		result = append(result, Mean(values[start:i+1]))
	}
	return result
}

// EMA returns the exponential moving average of values with smoothing alpha.
func EMA(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	result := make([]float64, len(values))
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = alpha*values[i] + (1-alpha)*result[i-1]
	}
	return result
}
