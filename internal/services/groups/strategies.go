package groups

import (
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	ind "FinSignal/internal/services/indicators"
)

// Group identifiers. Their order is the agent's action order and is part of
// the persisted learning state.
const (
	RSIBollinger      = "rsi_bb"
	MACDEMAPrice      = "macd_ema_price"
	StochRSI          = "stoch_rsi"
	ADXTrend          = "adx_trend"
	CCIReversal       = "cci_reversal"
	WilliamsBollinger = "williams_bb"
	AOMomentum        = "ao_momentum"
	EMACross          = "ema_cross"
	MACDCross         = "macd_cross"
	SqueezeBreakout   = "bb_squeeze_breakout"
	PatternConfirm    = "pattern_confirm"
	PatternTrend      = "pattern_trend"
	RSIDivergence     = "rsi_divergence"
	TripleMA          = "triple_ma"
	MeanReversion     = "mean_reversion"
	MomentumBurst     = "momentum_burst"
	ADXMACD           = "adx_macd"
	StochCCI          = "stoch_cci"
	AOEMA             = "ao_ema"
	WilliamsStoch     = "williams_stoch"
)

func builtin() []*rule {
	return []*rule{
		{id: RSIBollinger, base: 70, eval: rsiBollinger},
		{id: MACDEMAPrice, base: 72, eval: macdEMAPrice},
		{id: StochRSI, base: 68, eval: stochRSI},
		{id: ADXTrend, base: 71, eval: adxTrend},
		{id: CCIReversal, base: 66, eval: cciReversal},
		{id: WilliamsBollinger, base: 67, eval: williamsBollinger},
		{id: AOMomentum, base: 65, eval: aoMomentum},
		{id: EMACross, base: 69, eval: emaCross},
		{id: MACDCross, base: 70, eval: macdCross},
		{id: SqueezeBreakout, base: 68, eval: squeezeBreakout},
		{id: PatternConfirm, base: 66, eval: patternConfirm},
		{id: PatternTrend, base: 67, eval: patternTrend},
		{id: RSIDivergence, base: 70, eval: rsiDivergence},
		{id: TripleMA, base: 69, eval: tripleMA},
		{id: MeanReversion, base: 64, eval: meanReversion},
		{id: MomentumBurst, base: 67, eval: momentumBurst},
		{id: ADXMACD, base: 71, eval: adxMACD},
		{id: StochCCI, base: 68, eval: stochCCI},
		{id: AOEMA, base: 66, eval: aoEMA},
		{id: WilliamsStoch, base: 67, eval: williamsStoch},
	}
}

func unit(v float64) float64 { return clamp(v, 0, 1) }

func buy(strength float64, reasons ...string) (verdict, bool) {
	return verdict{action: models.ActionBuy, strength: unit(strength), reasons: reasons}, true
}

func sell(strength float64, reasons ...string) (verdict, bool) {
	return verdict{action: models.ActionSell, strength: unit(strength), reasons: reasons}, true
}

func none() (verdict, bool) { return verdict{}, false }

func rsiBollinger(s models.Series) (verdict, bool) {
	rsi, ok := ind.RSI(s.Closes, 14)
	if !ok {
		return none()
	}
	bb, ok := ind.Bollinger(s.Closes, 20, 2)
	if !ok {
		return none()
	}
	switch {
	case rsi < 30 && bb.PercentB < 0.1:
		return buy((30-rsi)/20+(0.1-bb.PercentB),
			fmt.Sprintf("RSI oversold (%.1f)", rsi), fmt.Sprintf("price at lower band (%%B %.2f)", bb.PercentB))
	case rsi > 70 && bb.PercentB > 0.9:
		return sell((rsi-70)/20+(bb.PercentB-0.9),
			fmt.Sprintf("RSI overbought (%.1f)", rsi), fmt.Sprintf("price at upper band (%%B %.2f)", bb.PercentB))
	}
	return none()
}

func macdEMAPrice(s models.Series) (verdict, bool) {
	m, ok := ind.MACD(s.Closes, 12, 26, 9)
	if !ok {
		return none()
	}
	ema9, _ := ind.EMA(s.Closes, 9)
	ema21, ok := ind.EMA(s.Closes, 21)
	if !ok {
		return none()
	}
	price, _ := s.LastClose()
	strength := math.Abs(m.Histogram) / price * 1000
	switch {
	case m.Histogram > 0 && price > ema21 && ema9 > ema21:
		return buy(strength, "MACD histogram positive", "EMA9 above EMA21", "price above EMA21")
	case m.Histogram < 0 && price < ema21 && ema9 < ema21:
		return sell(strength, "MACD histogram negative", "EMA9 below EMA21", "price below EMA21")
	}
	return none()
}

func stochRSI(s models.Series) (verdict, bool) {
	st, ok := ind.Stochastic(s.Highs, s.Lows, s.Closes, 14, 3)
	if !ok {
		return none()
	}
	rsi, ok := ind.RSI(s.Closes, 14)
	if !ok {
		return none()
	}
	switch {
	case st.K < 20 && st.K > st.D && rsi < 40:
		return buy((20-st.K)/20, fmt.Sprintf("stochastic turning up from %.1f", st.K), fmt.Sprintf("RSI weak (%.1f)", rsi))
	case st.K > 80 && st.K < st.D && rsi > 60:
		return sell((st.K-80)/20, fmt.Sprintf("stochastic turning down from %.1f", st.K), fmt.Sprintf("RSI strong (%.1f)", rsi))
	}
	return none()
}

func adxTrend(s models.Series) (verdict, bool) {
	a, ok := ind.ADX(s.Highs, s.Lows, s.Closes, 14)
	if !ok || a.ADX <= 25 {
		return none()
	}
	ema21, ok := ind.EMA(s.Closes, 21)
	if !ok {
		return none()
	}
	price, _ := s.LastClose()
	var v verdict
	switch {
	case a.PlusDI > a.MinusDI && price > ema21:
		v, _ = buy((a.ADX-25)/25, fmt.Sprintf("ADX %.1f with +DI leading", a.ADX))
	case a.MinusDI > a.PlusDI && price < ema21:
		v, _ = sell((a.ADX-25)/25, fmt.Sprintf("ADX %.1f with -DI leading", a.ADX))
	default:
		return none()
	}
	v.adx = a.ADX
	return v, true
}

func cciReversal(s models.Series) (verdict, bool) {
	h := s.Head(1)
	prev, ok := ind.CCI(h.Highs, h.Lows, h.Closes, 20)
	if !ok {
		return none()
	}
	cur, _ := ind.CCI(s.Highs, s.Lows, s.Closes, 20)
	switch {
	case prev < -100 && cur > -100:
		return buy(math.Abs(prev)/200, fmt.Sprintf("CCI recovered above -100 (%.0f)", cur))
	case prev > 100 && cur < 100:
		return sell(math.Abs(prev)/200, fmt.Sprintf("CCI fell below 100 (%.0f)", cur))
	}
	return none()
}

func williamsBollinger(s models.Series) (verdict, bool) {
	wr, ok := ind.WilliamsR(s.Highs, s.Lows, s.Closes, 14)
	if !ok {
		return none()
	}
	bb, ok := ind.Bollinger(s.Closes, 20, 2)
	if !ok {
		return none()
	}
	price, _ := s.LastClose()
	switch {
	case wr < -80 && price <= bb.Lower*1.001:
		return buy((-80-wr)/20, fmt.Sprintf("Williams %%R oversold (%.0f)", wr), "touching lower band")
	case wr > -20 && price >= bb.Upper*0.999:
		return sell((wr+20)/20, fmt.Sprintf("Williams %%R overbought (%.0f)", wr), "touching upper band")
	}
	return none()
}

func aoMomentum(s models.Series) (verdict, bool) {
	h := s.Head(1)
	prev, ok := ind.AwesomeOscillator(h.Highs, h.Lows)
	if !ok {
		return none()
	}
	cur, _ := ind.AwesomeOscillator(s.Highs, s.Lows)
	price, _ := s.LastClose()
	strength := math.Abs(cur) / (price * 0.001)
	switch {
	case prev <= 0 && cur > 0:
		return buy(strength, "AO crossed above zero")
	case prev >= 0 && cur < 0:
		return sell(strength, "AO crossed below zero")
	}
	return none()
}

func emaCross(s models.Series) (verdict, bool) {
	prev := s.Head(1)
	p9, ok := ind.EMA(prev.Closes, 9)
	if !ok {
		return none()
	}
	p21, ok := ind.EMA(prev.Closes, 21)
	if !ok {
		return none()
	}
	e9, _ := ind.EMA(s.Closes, 9)
	e21, _ := ind.EMA(s.Closes, 21)
	price, _ := s.LastClose()
	strength := math.Abs(e9-e21) / price * 2000
	switch {
	case p9 <= p21 && e9 > e21:
		return buy(strength, "EMA9 crossed above EMA21")
	case p9 >= p21 && e9 < e21:
		return sell(strength, "EMA9 crossed below EMA21")
	}
	return none()
}

func macdCross(s models.Series) (verdict, bool) {
	prev, ok := ind.MACD(s.Head(1).Closes, 12, 26, 9)
	if !ok {
		return none()
	}
	cur, _ := ind.MACD(s.Closes, 12, 26, 9)
	price, _ := s.LastClose()
	strength := math.Abs(cur.Histogram) / price * 2000
	switch {
	case prev.Histogram <= 0 && cur.Histogram > 0:
		return buy(strength, "MACD crossed above signal")
	case prev.Histogram >= 0 && cur.Histogram < 0:
		return sell(strength, "MACD crossed below signal")
	}
	return none()
}

const squeezeBandwidth = 0.004

func squeezeBreakout(s models.Series) (verdict, bool) {
	prior, ok := ind.Bollinger(s.Head(1).Closes, 20, 2)
	if !ok || prior.Bandwidth >= squeezeBandwidth {
		return none()
	}
	price, _ := s.LastClose()
	half := prior.Upper - prior.Middle
	if half <= 0 {
		return none()
	}
	switch {
	case price > prior.Upper:
		return buy((price-prior.Upper)/half, fmt.Sprintf("breakout above squeeze (bw %.4f)", prior.Bandwidth))
	case price < prior.Lower:
		return sell((prior.Lower-price)/half, fmt.Sprintf("breakdown below squeeze (bw %.4f)", prior.Bandwidth))
	}
	return none()
}

func patternConfirm(s models.Series) (verdict, bool) {
	p, ok := ind.Patterns(s.Candles)
	if !ok || p.Score < 0.4 {
		return none()
	}
	rsi, ok := ind.RSI(s.Closes, 14)
	if !ok {
		return none()
	}
	switch {
	case p.Bias == models.TrendBullish && rsi < 55:
		return buy(p.Score, fmt.Sprintf("bullish pattern %v", p.Patterns), fmt.Sprintf("RSI room (%.1f)", rsi))
	case p.Bias == models.TrendBearish && rsi > 45:
		return sell(p.Score, fmt.Sprintf("bearish pattern %v", p.Patterns), fmt.Sprintf("RSI room (%.1f)", rsi))
	}
	return none()
}

func patternTrend(s models.Series) (verdict, bool) {
	p, ok := ind.Patterns(s.Candles)
	if !ok || p.Score < 0.3 {
		return none()
	}
	e12, ok := ind.EMA(s.Closes, 12)
	if !ok {
		return none()
	}
	e26, ok := ind.EMA(s.Closes, 26)
	if !ok {
		return none()
	}
	switch {
	case p.Bias == models.TrendBullish && e12 > e26:
		return buy(p.Score, fmt.Sprintf("bullish pattern %v", p.Patterns), "with EMA uptrend")
	case p.Bias == models.TrendBearish && e12 < e26:
		return sell(p.Score, fmt.Sprintf("bearish pattern %v", p.Patterns), "with EMA downtrend")
	}
	return none()
}

const divergenceLookback = 10

func rsiDivergence(s models.Series) (verdict, bool) {
	n := s.Len()
	if n < divergenceLookback+15 {
		return none()
	}
	rsiNow, _ := ind.RSI(s.Closes, 14)
	rsiThen, ok := ind.RSI(s.Closes[:n-divergenceLookback], 14)
	if !ok {
		return none()
	}
	window := s.Closes[n-divergenceLookback-1 : n-1]
	lo, hi := window[0], window[0]
	for _, c := range window {
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	price := s.Closes[n-1]
	strength := math.Abs(rsiNow-rsiThen) / 20
	switch {
	case price < lo && rsiNow > rsiThen && rsiNow < 45:
		return buy(strength, "bullish RSI divergence", fmt.Sprintf("RSI %.1f > %.1f", rsiNow, rsiThen))
	case price > hi && rsiNow < rsiThen && rsiNow > 55:
		return sell(strength, "bearish RSI divergence", fmt.Sprintf("RSI %.1f < %.1f", rsiNow, rsiThen))
	}
	return none()
}

func tripleMA(s models.Series) (verdict, bool) {
	e5, ok := ind.EMA(s.Closes, 5)
	if !ok {
		return none()
	}
	e13, _ := ind.EMA(s.Closes, 13)
	e34, ok := ind.EMA(s.Closes, 34)
	if !ok {
		return none()
	}
	price, _ := s.LastClose()
	strength := math.Abs(e5-e34) / price * 500
	switch {
	case e5 > e13 && e13 > e34 && price > e5:
		return buy(strength, "EMA5 > EMA13 > EMA34", "price above fast EMA")
	case e5 < e13 && e13 < e34 && price < e5:
		return sell(strength, "EMA5 < EMA13 < EMA34", "price below fast EMA")
	}
	return none()
}

func meanReversion(s models.Series) (verdict, bool) {
	a, ok := ind.ADX(s.Highs, s.Lows, s.Closes, 14)
	if !ok || a.ADX >= 20 {
		return none()
	}
	bb, ok := ind.Bollinger(s.Closes, 20, 2)
	if !ok {
		return none()
	}
	rsi, _ := ind.RSI(s.Closes, 14)
	switch {
	case bb.PercentB < 0 && rsi < 35:
		return buy(-bb.PercentB*4, "stretched below lower band in range", fmt.Sprintf("ADX %.1f", a.ADX))
	case bb.PercentB > 1 && rsi > 65:
		return sell((bb.PercentB-1)*4, "stretched above upper band in range", fmt.Sprintf("ADX %.1f", a.ADX))
	}
	return none()
}

func momentumBurst(s models.Series) (verdict, bool) {
	n := s.Len()
	if n < 15 {
		return none()
	}
	avgBody := 0.0
	for _, c := range s.Candles[n-11 : n-1] {
		avgBody += math.Abs(c.Close - c.Open)
	}
	avgBody /= 10
	last := s.Candles[n-1]
	body := math.Abs(last.Close - last.Open)
	if avgBody <= 0 || body < 1.5*avgBody {
		return none()
	}
	rsi, _ := ind.RSI(s.Closes, 14)
	c := s.Closes
	rising := c[n-3] < c[n-2] && c[n-2] < c[n-1]
	falling := c[n-3] > c[n-2] && c[n-2] > c[n-1]
	ratio := body / avgBody
	switch {
	case rising && last.Close > last.Open && rsi > 50 && rsi < 70:
		return buy(ratio/3, fmt.Sprintf("bullish momentum burst (%.1fx body)", ratio))
	case falling && last.Close < last.Open && rsi < 50 && rsi > 30:
		return sell(ratio/3, fmt.Sprintf("bearish momentum burst (%.1fx body)", ratio))
	}
	return none()
}

func adxMACD(s models.Series) (verdict, bool) {
	a, ok := ind.ADX(s.Highs, s.Lows, s.Closes, 14)
	if !ok || a.ADX <= 20 {
		return none()
	}
	m, ok := ind.MACD(s.Closes, 12, 26, 9)
	if !ok {
		return none()
	}
	var v verdict
	switch {
	case a.PlusDI > a.MinusDI && m.Histogram > 0 && m.MACD > 0:
		v, _ = buy((a.ADX-20)/30, fmt.Sprintf("ADX %.1f bullish", a.ADX), "MACD above zero and rising")
	case a.MinusDI > a.PlusDI && m.Histogram < 0 && m.MACD < 0:
		v, _ = sell((a.ADX-20)/30, fmt.Sprintf("ADX %.1f bearish", a.ADX), "MACD below zero and falling")
	default:
		return none()
	}
	v.adx = a.ADX
	return v, true
}

func stochCCI(s models.Series) (verdict, bool) {
	st, ok := ind.Stochastic(s.Highs, s.Lows, s.Closes, 14, 3)
	if !ok {
		return none()
	}
	cci, ok := ind.CCI(s.Highs, s.Lows, s.Closes, 20)
	if !ok {
		return none()
	}
	switch {
	case st.K < 25 && cci < -100:
		return buy((-100-cci)/100, fmt.Sprintf("stochastic %.1f", st.K), fmt.Sprintf("CCI %.0f", cci))
	case st.K > 75 && cci > 100:
		return sell((cci-100)/100, fmt.Sprintf("stochastic %.1f", st.K), fmt.Sprintf("CCI %.0f", cci))
	}
	return none()
}

func aoEMA(s models.Series) (verdict, bool) {
	h := s.Head(1)
	prev, ok := ind.AwesomeOscillator(h.Highs, h.Lows)
	if !ok {
		return none()
	}
	cur, _ := ind.AwesomeOscillator(s.Highs, s.Lows)
	ema21, _ := ind.EMA(s.Closes, 21)
	price, _ := s.LastClose()
	strength := math.Abs(cur-prev) / (price * 0.0005)
	switch {
	case cur > 0 && cur > prev && price > ema21:
		return buy(strength, "AO positive and rising", "price above EMA21")
	case cur < 0 && cur < prev && price < ema21:
		return sell(strength, "AO negative and falling", "price below EMA21")
	}
	return none()
}

func williamsStoch(s models.Series) (verdict, bool) {
	wr, ok := ind.WilliamsR(s.Highs, s.Lows, s.Closes, 14)
	if !ok {
		return none()
	}
	st, ok := ind.Stochastic(s.Highs, s.Lows, s.Closes, 14, 3)
	if !ok {
		return none()
	}
	switch {
	case wr < -80 && st.K < 20 && st.K > st.D:
		return buy((20-st.K)/20, fmt.Sprintf("Williams %%R %.0f", wr), "stochastic turning up")
	case wr > -20 && st.K > 80 && st.K < st.D:
		return sell((st.K-80)/20, fmt.Sprintf("Williams %%R %.0f", wr), "stochastic turning down")
	}
	return none()
}
