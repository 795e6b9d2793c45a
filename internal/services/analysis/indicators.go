package analysis

// RSI computes the relative strength index over the last period price
// changes using simple averages. Fewer than period+1 closes yields 50.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	window := closes[len(closes)-period-1:]
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100 - 100/(1+rs)
}

// SMA returns the mean of the window closes ending at index end (inclusive).
func SMA(closes []float64, window, end int) float64 {
	if window <= 0 || end < window-1 || end >= len(closes) {
		return 0
	}
	var sum float64
	for _, c := range closes[end-window+1 : end+1] {
		sum += c
	}
	return sum / float64(window)
}
