package autoscale

import "math"

// MinHistory is the fewest observations Holt smoothing needs before a
// forecast is worth anything. Below this the forecaster returns nothing
// and callers fall back to a degraded decision.
const MinHistory = 10

// DefaultHorizon is the number of future steps projected per forecast.
const DefaultHorizon = 5

// Forecast projects series forward by steps using Holt's linear trend
// method (double exponential smoothing, additive trend). The smoothing
// parameters are chosen by a coarse grid search minimizing the in-sample
// one-step-ahead squared error. When the series is too short the result
// is nil; when the fit degenerates the forecast falls back to repeating
// the series mean. Projected values are floored at zero since the input
// is a request count.
func Forecast(series []float64, steps int) []float64 {
	if len(series) < MinHistory || steps <= 0 {
		return nil
	}

	alpha, beta, ok := fitHolt(series)
	if !ok {
		return flatForecast(mean(series), steps)
	}

	level, trend := smooth(series, alpha, beta)
	if math.IsNaN(level) || math.IsInf(level, 0) || math.IsNaN(trend) || math.IsInf(trend, 0) {
		return flatForecast(mean(series), steps)
	}

	out := make([]float64, steps)
	for h := 1; h <= steps; h++ {
		out[h-1] = math.Max(0, level+float64(h)*trend)
	}
	return out
}

// fitHolt searches a 9x9 grid of smoothing parameters and keeps the pair
// with the lowest sum of squared one-step errors.
func fitHolt(series []float64) (alpha, beta float64, ok bool) {
	best := math.Inf(1)
	for i := 1; i <= 9; i++ {
		for j := 1; j <= 9; j++ {
			a, b := float64(i)/10, float64(j)/10
			sse := holtSSE(series, a, b)
			if sse < best {
				best = sse
				alpha, beta = a, b
				ok = true
			}
		}
	}
	return alpha, beta, ok
}

// holtSSE runs the smoothing recurrence and accumulates squared one-step
// forecast errors. Returns +Inf if the recurrence blows up.
func holtSSE(series []float64, alpha, beta float64) float64 {
	level := series[0]
	trend := series[1] - series[0]

	var sse float64
	for i := 1; i < len(series); i++ {
		predicted := level + trend
		err := series[i] - predicted
		sse += err * err

		prevLevel := level
		level = alpha*series[i] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return math.Inf(1)
	}
	return sse
}

// smooth runs the recurrence over the whole series and returns the final
// level and trend, the state the forecast extrapolates from.
func smooth(series []float64, alpha, beta float64) (level, trend float64) {
	level = series[0]
	trend = series[1] - series[0]
	for i := 1; i < len(series); i++ {
		prevLevel := level
		level = alpha*series[i] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	return level, trend
}

func flatForecast(value float64, steps int) []float64 {
	out := make([]float64, steps)
	for i := range out {
		out[i] = math.Max(0, value)
	}
	return out
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// stddev returns the sample standard deviation (n-1 denominator). Zero
// when the series has fewer than two points.
func stddev(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	m := mean(series)
	var sum float64
	for _, v := range series {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)-1))
}
