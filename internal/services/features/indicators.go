package features

import "math"

// All indicator functions are length-preserving: the output slice matches the
// input length, with NaN in warm-up positions and wherever the value is
// undefined for the inputs (flat ranges, zero volume).

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstValid(vals []float64) int {
	for i, v := range vals {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// SMA computes a simple moving average over n bars.
func SMA(vals []float64, n int) []float64 {
	m := len(vals)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	for i := n - 1; i < m; i++ {
		var s float64
		for j := i - n + 1; j <= i; j++ {
			s += vals[j]
		}
		out[i] = s / float64(n)
	}
	return out
}

// EMA computes an exponential moving average with alpha = 2/(n+1), seeded with
// the simple average of the first n valid values. Leading NaNs are preserved.
func EMA(vals []float64, n int) []float64 {
	m := len(vals)
	out := nanSlice(m)
	if n <= 0 || m == 0 {
		return out
	}
	first := firstValid(vals)
	if first < 0 || first+n > m {
		return out
	}
	var sum float64
	for i := first; i < first+n; i++ {
		sum += vals[i]
	}
	alpha := 2.0 / (float64(n) + 1)
	prev := sum / float64(n)
	out[first+n-1] = prev
	for i := first + n; i < m; i++ {
		prev = alpha*vals[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RollingStd computes the rolling population standard deviation over n bars.
func RollingStd(vals []float64, n int) []float64 {
	m := len(vals)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	for i := n - 1; i < m; i++ {
		var s float64
		for j := i - n + 1; j <= i; j++ {
			s += vals[j]
		}
		mean := s / float64(n)
		var ss float64
		for j := i - n + 1; j <= i; j++ {
			d := vals[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n))
	}
	return out
}

// RSI computes the Wilder relative strength index over n bars.
func RSI(close []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m <= n {
		return out
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)
	out[n] = 100 - 100/(1+avgGain/avgLoss)
	for i := n + 1; i < m; i++ {
		d := close[i] - close[i-1]
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(n-1) + g) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + l) / float64(n)
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out
}

// MACD computes the moving average convergence/divergence line, its signal
// line, and their difference.
func MACD(close []float64, fast, slow, signal int) (macd, sig, diff []float64) {
	m := len(close)
	macd = nanSlice(m)
	diff = nanSlice(m)
	emaFast := EMA(close, fast)
	emaSlow := EMA(close, slow)
	for i := 0; i < m; i++ {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	sig = EMA(macd, signal)
	for i := 0; i < m; i++ {
		diff[i] = macd[i] - sig[i]
	}
	return macd, sig, diff
}

// ATR computes the Wilder average true range over n bars.
func ATR(high, low, close []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	tr := make([]float64, m)
	tr[0] = high[0] - low[0]
	for i := 1; i < m; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
	}
	prev := sum / float64(n)
	out[n-1] = prev
	for i := n; i < m; i++ {
		prev = (prev*float64(n-1) + tr[i]) / float64(n)
		out[i] = prev
	}
	return out
}

// BollingerBands computes the middle band (SMA), upper and lower bands at
// k standard deviations, and the normalized band width.
func BollingerBands(close []float64, n int, k float64) (mid, upper, lower, width []float64) {
	m := len(close)
	mid = SMA(close, n)
	std := RollingStd(close, n)
	upper = nanSlice(m)
	lower = nanSlice(m)
	width = nanSlice(m)
	for i := 0; i < m; i++ {
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
		width[i] = (upper[i] - lower[i]) / mid[i] * 100
	}
	return mid, upper, lower, width
}

// CCI computes the commodity channel index over n bars.
func CCI(high, low, close []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	tp := make([]float64, m)
	for i := 0; i < m; i++ {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}
	for i := n - 1; i < m; i++ {
		var s float64
		for j := i - n + 1; j <= i; j++ {
			s += tp[j]
		}
		mean := s / float64(n)
		var mad float64
		for j := i - n + 1; j <= i; j++ {
			mad += math.Abs(tp[j] - mean)
		}
		mad /= float64(n)
		out[i] = (tp[i] - mean) / (0.015 * mad)
	}
	return out
}

// ADX computes the Wilder average directional index over n bars.
func ADX(high, low, close []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < 2*n {
		return out
	}
	tr := make([]float64, m)
	plusDM := make([]float64, m)
	minusDM := make([]float64, m)
	for i := 1; i < m; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var trN, plusN, minusN float64
	for i := 1; i <= n; i++ {
		trN += tr[i]
		plusN += plusDM[i]
		minusN += minusDM[i]
	}
	dx := nanSlice(m)
	for i := n; i < m; i++ {
		if i > n {
			trN = trN - trN/float64(n) + tr[i]
			plusN = plusN - plusN/float64(n) + plusDM[i]
			minusN = minusN - minusN/float64(n) + minusDM[i]
		}
		pdi := 100 * plusN / trN
		mdi := 100 * minusN / trN
		dx[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
	}

	// seed with the average of the first n DX values, then Wilder smooth
	var sum float64
	for i := n; i < 2*n; i++ {
		sum += dx[i]
	}
	prev := sum / float64(n)
	out[2*n-1] = prev
	for i := 2 * n; i < m; i++ {
		prev = (prev*float64(n-1) + dx[i]) / float64(n)
		out[i] = prev
	}
	return out
}

// Stochastic computes the %K oscillator over n bars and its SMA signal line.
func Stochastic(high, low, close []float64, n, smooth int) (k, d []float64) {
	m := len(close)
	k = nanSlice(m)
	if n <= 0 || m < n {
		return k, nanSlice(m)
	}
	for i := n - 1; i < m; i++ {
		hh := high[i-n+1]
		ll := low[i-n+1]
		for j := i - n + 2; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		k[i] = 100 * (close[i] - ll) / (hh - ll)
	}
	d = SMA(k, smooth)
	return k, d
}

// ROC computes the n-bar rate of change in percent.
func ROC(close []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	for i := n; i < m; i++ {
		out[i] = 100 * (close[i] - close[i-n]) / close[i-n]
	}
	return out
}

// WilliamsR computes Williams %R over n bars.
func WilliamsR(high, low, close []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	for i := n - 1; i < m; i++ {
		hh := high[i-n+1]
		ll := low[i-n+1]
		for j := i - n + 2; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		out[i] = -100 * (hh - close[i]) / (hh - ll)
	}
	return out
}

// OBV computes on-balance volume. Bars with an unchanged close add volume.
func OBV(close, volume []float64) []float64 {
	m := len(close)
	out := make([]float64, m)
	if m == 0 {
		return out
	}
	sum := volume[0]
	out[0] = sum
	for i := 1; i < m; i++ {
		if close[i] < close[i-1] {
			sum -= volume[i]
		} else {
			sum += volume[i]
		}
		out[i] = sum
	}
	return out
}

// AccDistIndex computes the cumulative accumulation/distribution index.
// Bars with a flat range produce NaN without advancing the running sum.
func AccDistIndex(high, low, close, volume []float64) []float64 {
	m := len(close)
	out := make([]float64, m)
	var sum float64
	for i := 0; i < m; i++ {
		clv := ((close[i] - low[i]) - (high[i] - close[i])) / (high[i] - low[i])
		mfv := clv * volume[i]
		if math.IsNaN(mfv) {
			out[i] = math.NaN()
			continue
		}
		sum += mfv
		out[i] = sum
	}
	return out
}

// ChaikinMoneyFlow computes money flow volume over n bars relative to volume.
func ChaikinMoneyFlow(high, low, close, volume []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	mfv := make([]float64, m)
	for i := 0; i < m; i++ {
		mfv[i] = ((close[i]-low[i])-(high[i]-close[i])) / (high[i]-low[i]) * volume[i]
	}
	for i := n - 1; i < m; i++ {
		var s, v float64
		for j := i - n + 1; j <= i; j++ {
			s += mfv[j]
			v += volume[j]
		}
		out[i] = s / v
	}
	return out
}

// MoneyFlowIndex computes the money flow index over n bars.
func MoneyFlowIndex(high, low, close, volume []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	pos := make([]float64, m)
	neg := make([]float64, m)
	prevTP := (high[0] + low[0] + close[0]) / 3
	for i := 1; i < m; i++ {
		tp := (high[i] + low[i] + close[i]) / 3
		mf := tp * volume[i]
		if tp > prevTP {
			pos[i] = mf
		} else if tp < prevTP {
			neg[i] = mf
		}
		prevTP = tp
	}
	for i := n - 1; i < m; i++ {
		var p, q float64
		for j := i - n + 1; j <= i; j++ {
			p += pos[j]
			q += neg[j]
		}
		out[i] = 100 * p / (p + q)
	}
	return out
}

// VWAP computes the rolling volume-weighted average price over n bars.
func VWAP(high, low, close, volume []float64, n int) []float64 {
	m := len(close)
	out := nanSlice(m)
	if n <= 0 || m < n {
		return out
	}
	for i := n - 1; i < m; i++ {
		var pv, v float64
		for j := i - n + 1; j <= i; j++ {
			tp := (high[j] + low[j] + close[j]) / 3
			pv += tp * volume[j]
			v += volume[j]
		}
		out[i] = pv / v
	}
	return out
}

// PSAR computes the parabolic stop-and-reverse pair. up holds the SAR value
// while the trend is rising, down while it is falling; the opposite side is
// NaN at each bar.
func PSAR(high, low, close []float64, step, maxStep float64) (up, down []float64) {
	m := len(close)
	up = nanSlice(m)
	down = nanSlice(m)
	if m < 3 {
		return up, down
	}

	psar := make([]float64, m)
	copy(psar, close)
	upTrend := true
	af := step
	upHigh := high[0]
	downLow := low[0]

	for i := 2; i < m; i++ {
		reversal := false
		if upTrend {
			psar[i] = psar[i-1] + af*(upHigh-psar[i-1])
			if low[i] < psar[i] {
				reversal = true
				psar[i] = upHigh
				downLow = low[i]
				af = step
			} else {
				if high[i] > upHigh {
					upHigh = high[i]
					af = math.Min(af+step, maxStep)
				}
				if low[i-2] < psar[i] {
					psar[i] = low[i-2]
				} else if low[i-1] < psar[i] {
					psar[i] = low[i-1]
				}
			}
		} else {
			psar[i] = psar[i-1] - af*(psar[i-1]-downLow)
			if high[i] > psar[i] {
				reversal = true
				psar[i] = downLow
				upHigh = high[i]
				af = step
			} else {
				if low[i] < downLow {
					downLow = low[i]
					af = math.Min(af+step, maxStep)
				}
				if high[i-2] > psar[i] {
					psar[i] = high[i-2]
				} else if high[i-1] > psar[i] {
					psar[i] = high[i-1]
				}
			}
		}
		upTrend = upTrend != reversal
		if upTrend {
			up[i] = psar[i]
		} else {
			down[i] = psar[i]
		}
	}
	return up, down
}

// DailyReturn computes the bar-over-bar percent return.
func DailyReturn(close []float64) []float64 {
	m := len(close)
	out := nanSlice(m)
	for i := 1; i < m; i++ {
		out[i] = 100 * (close[i] - close[i-1]) / close[i-1]
	}
	return out
}

// DailyLogReturn computes the bar-over-bar log return in percent.
func DailyLogReturn(close []float64) []float64 {
	m := len(close)
	out := nanSlice(m)
	for i := 1; i < m; i++ {
		out[i] = 100 * math.Log(close[i]/close[i-1])
	}
	return out
}

// CumulativeReturn computes the percent return relative to the first close.
func CumulativeReturn(close []float64) []float64 {
	m := len(close)
	out := nanSlice(m)
	if m == 0 {
		return out
	}
	base := close[0]
	for i := 0; i < m; i++ {
		out[i] = 100 * (close[i] - base) / base
	}
	return out
}
