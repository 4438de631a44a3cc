package features

import (
	"PanelPull/internal/domain/repository"
)

// Default windows follow the common indicator parameterizations.
const (
	fastWindow   = 12
	slowWindow   = 26
	signalWindow = 9
	rsiWindow    = 14
	atrWindow    = 14
	adxWindow    = 14
	mfiWindow    = 14
	vwapWindow   = 14
	stochWindow  = 14
	stochSmooth  = 3
	rocWindow    = 12
	wrWindow     = 14
	cmfWindow    = 20
	cciWindow    = 20
	bbWindow     = 20
	bbDev        = 2.0
	psarStep     = 0.02
	psarMax      = 0.2
)

// Deriver computes the full indicator suite from raw OHLCV series. Column
// names carry a volume_/volatility_/trend_/momentum_/others_ prefix by
// indicator family.
type Deriver struct{}

// NewDeriver creates a feature deriver.
func NewDeriver() *Deriver { return &Deriver{} }

func (d *Deriver) Derive(open, high, low, close, volume []float64) map[string][]float64 {
	out := make(map[string][]float64, 29)
	if len(close) == 0 {
		return out
	}

	out["volume_adi"] = AccDistIndex(high, low, close, volume)
	out["volume_obv"] = OBV(close, volume)
	out["volume_cmf"] = ChaikinMoneyFlow(high, low, close, volume, cmfWindow)
	out["volume_mfi"] = MoneyFlowIndex(high, low, close, volume, mfiWindow)
	out["volume_vwap"] = VWAP(high, low, close, volume, vwapWindow)

	out["volatility_atr"] = ATR(high, low, close, atrWindow)
	bbm, bbh, bbl, bbw := BollingerBands(close, bbWindow, bbDev)
	out["volatility_bbm"] = bbm
	out["volatility_bbh"] = bbh
	out["volatility_bbl"] = bbl
	out["volatility_bbw"] = bbw

	out["trend_sma_fast"] = SMA(close, fastWindow)
	out["trend_sma_slow"] = SMA(close, slowWindow)
	out["trend_ema_fast"] = EMA(close, fastWindow)
	out["trend_ema_slow"] = EMA(close, slowWindow)
	macd, sig, diff := MACD(close, fastWindow, slowWindow, signalWindow)
	out["trend_macd"] = macd
	out["trend_macd_signal"] = sig
	out["trend_macd_diff"] = diff
	out["trend_adx"] = ADX(high, low, close, adxWindow)
	out["trend_cci"] = CCI(high, low, close, cciWindow)
	psarUp, psarDown := PSAR(high, low, close, psarStep, psarMax)
	out["trend_psar_up"] = psarUp
	out["trend_psar_down"] = psarDown

	out["momentum_rsi"] = RSI(close, rsiWindow)
	k, dsig := Stochastic(high, low, close, stochWindow, stochSmooth)
	out["momentum_stoch"] = k
	out["momentum_stoch_signal"] = dsig
	out["momentum_roc"] = ROC(close, rocWindow)
	out["momentum_wr"] = WilliamsR(high, low, close, wrWindow)

	out["others_dr"] = DailyReturn(close)
	out["others_dlr"] = DailyLogReturn(close)
	out["others_cr"] = CumulativeReturn(close)

	return out
}

var _ repository.FeatureDeriver = (*Deriver)(nil)
