package ranker

import (
	"math"
	"strings"
	"testing"
)

func goodValue() Input {
	return Input{
		Name:               "GoodValueBuy",
		StockPE:            15,
		IndustryPE:         25,
		PEGRatio:           0.8,
		RSI:                28,
		DERatio:            0.3,
		ProfitGrowth3yCAGR: 18,
		ConsistencyRating:  4,
		PromoterHolding:    55,
		FIIHolding:         10,
		DIIHolding:         5,
		PromoterDelta:      0.5,
		FIIDelta:           1.0,
		CapexRating:        4,
		TechnicalSignal:    SignalNearSupport,
	}
}

func hypedGrowth() Input {
	return Input{
		Name:               "HypedGrowthStock",
		StockPE:            60,
		IndustryPE:         30,
		PEGRatio:           2.1,
		RSI:                75,
		DERatio:            1.2,
		ProfitGrowth3yCAGR: 30,
		ConsistencyRating:  3,
		PromoterHolding:    25,
		FIIHolding:         20,
		DIIHolding:         10,
		PromoterDelta:      -1.0,
		DIIDelta:           -0.5,
		CapexRating:        5,
		TechnicalSignal:    SignalNearResistance,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore_GoodValue(t *testing.T) {
	r, err := New(DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Score(goodValue())
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]float64{
		FactorPE: 100, FactorPEG: 100, FactorRSI: 100, FactorDE: 89.47,
		FactorProfitGrowth: 72, FactorConsistency: 75, FactorHoldings: 75,
		FactorDelta: 91.67, FactorCapex: 75, FactorTechnicals: 100,
	}
	for k, v := range want {
		if !near(res.Scores[k], v) {
			t.Errorf("score[%s] = %v, want %v", k, res.Scores[k], v)
		}
	}
	if !near(res.TotalScore, 89.06) {
		t.Errorf("total = %v, want 89.06", res.TotalScore)
	}
	if !near(res.Allocation, 9.45) {
		t.Errorf("allocation = %v, want 9.45", res.Allocation)
	}
	if res.Verdict != VerdictAggressive {
		t.Errorf("verdict = %q", res.Verdict)
	}
}

func TestScore_HypedGrowth(t *testing.T) {
	r, _ := New(nil)
	res, err := r.Score(hypedGrowth())
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.TotalScore, 31.92) {
		t.Errorf("total = %v, want 31.92", res.TotalScore)
	}
	if !near(res.Allocation, 6.6) {
		t.Errorf("allocation = %v, want 6.6", res.Allocation)
	}
	if !near(res.Scores[FactorDelta], 8.33) || !near(res.Scores[FactorDE], 42.11) {
		t.Errorf("scores = %v", res.Scores)
	}
	if res.Verdict != VerdictCautious {
		t.Errorf("verdict = %q", res.Verdict)
	}
}

func TestScore_AllocationBounds(t *testing.T) {
	r, _ := New(nil)

	best := goodValue()
	best.DERatio = 0.05
	best.ProfitGrowth3yCAGR = 40
	best.ConsistencyRating, best.CapexRating = 5, 5
	best.PromoterHolding = 80
	best.PromoterDelta = 3
	res, err := r.Score(best)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allocation != 10 || res.TotalScore != 100 {
		t.Errorf("best = %+v, want allocation 10", res)
	}

	worst := hypedGrowth()
	worst.ProfitGrowth3yCAGR = -5
	worst.DERatio = 3
	worst.ConsistencyRating, worst.CapexRating = 1, 1
	worst.PromoterHolding = 10
	worst.PromoterDelta = -5
	res, err = r.Score(worst)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allocation != 5 || res.TotalScore != 0 {
		t.Errorf("worst = %+v, want allocation 5", res)
	}
}

func TestScore_InvalidInput(t *testing.T) {
	r, _ := New(nil)

	in := goodValue()
	in.ConsistencyRating = 6
	if _, err := r.Score(in); err == nil || !strings.Contains(err.Error(), "GoodValueBuy") {
		t.Errorf("rating 6: err = %v", err)
	}

	in = goodValue()
	in.CapexRating = 0
	if _, err := r.Score(in); err == nil {
		t.Error("missing capex rating should fail")
	}

	in = goodValue()
	in.TechnicalSignal = "breakout"
	if _, err := r.Score(in); err == nil {
		t.Error("unknown signal should fail")
	}

	in = goodValue()
	in.TechnicalSignal = "  Near Support "
	if _, err := r.Score(in); err != nil {
		t.Errorf("signal should be normalised: %v", err)
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights: %v", err)
	}

	w := DefaultWeights()
	w[FactorPE] = 0.2
	if err := w.Validate(); err == nil || !strings.Contains(err.Error(), "sum to 1.0") {
		t.Errorf("sum 1.1: err = %v", err)
	}

	w = DefaultWeights()
	w["hype"] = 0
	if err := w.Validate(); err == nil {
		t.Error("unknown factor should fail")
	}

	w = DefaultWeights()
	w[FactorPE] = -0.1
	w[FactorPEG] = 0.3
	if err := w.Validate(); err == nil {
		t.Error("negative weight should fail")
	}

	if err := (Weights{FactorTechnicals: 1}).Validate(); err != nil {
		t.Errorf("partial weights summing to 1: %v", err)
	}
}

func TestScore_PartialWeights(t *testing.T) {
	r, err := New(Weights{FactorTechnicals: 1})
	if err != nil {
		t.Fatal(err)
	}
	in := hypedGrowth()
	in.TechnicalSignal = SignalNothing
	res, err := r.Score(in)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalScore != 50 || res.Allocation != 7.5 || res.Verdict != VerdictSolid {
		t.Errorf("result = %+v", res)
	}
	if len(res.Scores) != len(Factors) {
		t.Errorf("scores should still report every factor: %v", res.Scores)
	}
}

func TestRank_Orders(t *testing.T) {
	r, _ := New(nil)
	res, err := r.Rank([]Input{hypedGrowth(), goodValue()})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].Name != "GoodValueBuy" {
		t.Errorf("order = %+v", res)
	}
}

func TestVerdict(t *testing.T) {
	tests := map[float64]string{
		10:   VerdictAggressive,
		9:    VerdictAggressive,
		8.99: VerdictSolid,
		7.5:  VerdictSolid,
		7.49: VerdictCautious,
		5:    VerdictCautious,
	}
	for alloc, want := range tests {
		if got := Verdict(alloc); got != want {
			t.Errorf("Verdict(%v) = %q, want %q", alloc, got, want)
		}
	}
}

func TestScoreFunctions(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"pe loss making", ScorePE(-5, 20), 0},
		{"pe zero industry", ScorePE(10, 0), 0},
		{"pe midpoint", ScorePE(27, 20), 100 * (2 - 1.35) / 1.3},
		{"peg zero", ScorePEG(0), 0},
		{"peg 1.4", ScorePEG(1.4), 50},
		{"rsi 50", ScoreRSI(50), 50},
		{"de 2", ScoreDebtToEquity(2), 0},
		{"growth 12.5", ScoreProfitGrowth(12.5), 50},
		{"rating 1", ScoreRating(1), 0},
		{"rating 5", ScoreRating(5), 100},
		{"holdings 60", ScoreHoldings(40, 10, 10), 50},
		{"delta zero", ScoreHoldingDelta(0, 0, 0), 50},
		{"technicals nothing", ScoreTechnicals(SignalNothing), 50},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestParsePortfolio(t *testing.T) {
	doc := `
weights:
  technicals: 0.5
  rsi: 0.5
stocks:
  - name: IBM
    stock_pe: 20
    industry_pe: 25
    peg_ratio: 1.1
    rsi: 45
    de_ratio: 0.8
    profit_growth_3y_cagr: 8
    consistency_rating: 3
    capex_rating: 3
    technical_signal: nothing
`
	p, err := ParsePortfolio([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Stocks) != 1 || p.Stocks[0].Name != "IBM" || p.Stocks[0].ConsistencyRating != 3 {
		t.Errorf("stocks = %+v", p.Stocks)
	}
	if p.Weights[FactorRSI] != 0.5 {
		t.Errorf("weights = %v", p.Weights)
	}

	if _, err := ParsePortfolio([]byte("stocks:\n  - name: X\n    stok_pe: 3\n")); err == nil {
		t.Error("misspelt field should be rejected")
	}
	if _, err := ParsePortfolio([]byte("")); err == nil {
		t.Error("empty portfolio should be rejected")
	}
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights([]byte("pe: 0.5\npeg: 0.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("weights invalid: %v", err)
	}
}

func TestRound2_TiesToEven(t *testing.T) {
	tests := map[float64]float64{
		2.675:  2.67, // stored just below 2.675
		0.125:  0.12,
		0.375:  0.38,
		89.064: 89.06,
		-1.005: -1, // magnitude stored just under 1.005
		7.5:    7.5,
	}
	for in, want := range tests {
		if got := round2(in); got != want {
			t.Errorf("round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestScore_RSIOutOfRangeIsClamped(t *testing.T) {
	r, _ := New(nil)
	for rsi, want := range map[float64]float64{-5: 100, 130: 0} {
		in := goodValue()
		in.RSI = rsi
		res, err := r.Score(in)
		if err != nil {
			t.Fatalf("rsi %v: %v", rsi, err)
		}
		if res.Scores[FactorRSI] != want {
			t.Errorf("rsi %v: score = %v, want %v", rsi, res.Scores[FactorRSI], want)
		}
	}
}
