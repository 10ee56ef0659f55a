package ranker

// Every score is on a 0–100 scale where 100 is best. Values between the
// bounds are interpolated linearly.

// ScorePE scores the PE ratio relative to the industry: 0.7x or cheaper is
// 100, 2x or dearer is 0. Non-positive PEs score 0.
func ScorePE(stockPE, industryPE float64) float64 {
	if stockPE <= 0 || industryPE <= 0 {
		return 0
	}
	ratio := stockPE / industryPE
	switch {
	case ratio <= 0.7:
		return 100
	case ratio >= 2.0:
		return 0
	}
	return 100 * (2.0 - ratio) / (2.0 - 0.7)
}

// ScorePEG: 0.8 or lower is 100, 2.0 or higher is 0, non-positive is 0.
func ScorePEG(peg float64) float64 {
	switch {
	case peg <= 0:
		return 0
	case peg <= 0.8:
		return 100
	case peg >= 2.0:
		return 0
	}
	return 100 * (2.0 - peg) / (2.0 - 0.8)
}

// ScoreRSI favours oversold entries: 30 or lower is 100, 70 or higher is 0.
func ScoreRSI(rsi float64) float64 {
	switch {
	case rsi <= 30:
		return 100
	case rsi >= 70:
		return 0
	}
	return 100 * (70 - rsi) / (70 - 30)
}

// ScoreDebtToEquity: 0.1 or lower is 100, 2.0 or higher is 0.
func ScoreDebtToEquity(de float64) float64 {
	switch {
	case de <= 0.1:
		return 100
	case de >= 2.0:
		return 0
	}
	return 100 * (2.0 - de) / (2.0 - 0.1)
}

// ScoreProfitGrowth scores 3-year profit CAGR in percent: 25 or more is 100,
// zero or less is 0.
func ScoreProfitGrowth(cagr float64) float64 {
	switch {
	case cagr >= 25:
		return 100
	case cagr <= 0:
		return 0
	}
	return 100 * cagr / 25
}

// ScoreRating maps a validated 1–5 rating to 0, 25, 50, 75 or 100.
func ScoreRating(rating int) float64 {
	return float64(rating-1) * 25
}

// ScoreHoldings scores promoter+FII+DII holding: 80% or more is 100, 40% or
// less is 0.
func ScoreHoldings(promoter, fii, dii float64) float64 {
	total := promoter + fii + dii
	switch {
	case total >= 80:
		return 100
	case total <= 40:
		return 0
	}
	return 100 * (total - 40) / (80 - 40)
}

// ScoreHoldingDelta weighs promoter changes twice and FII changes 1.5 times
// as much as DII changes; a weighted delta of +3 is 100 and -3 is 0.
func ScoreHoldingDelta(promoter, fii, dii float64) float64 {
	weighted := promoter*2.0 + fii*1.5 + dii
	switch {
	case weighted >= 3:
		return 100
	case weighted <= -3:
		return 0
	}
	return 100 * (weighted + 3) / 6
}

var signalScores = map[string]float64{
	SignalNearSupport:    100,
	SignalNothing:        50,
	SignalNearResistance: 0,
}

// ScoreTechnicals scores a validated technical signal.
func ScoreTechnicals(signal string) float64 {
	return signalScores[signal]
}
