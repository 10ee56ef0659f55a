// Package ranker turns fundamental, technical and human-rated inputs into a
// 5–10% position-size metric.
package ranker

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Factor names used as weight keys and score keys.
const (
	FactorPE           = "pe"
	FactorPEG          = "peg"
	FactorDE           = "de"
	FactorProfitGrowth = "profit_growth"
	FactorConsistency  = "consistency"
	FactorHoldings     = "holdings"
	FactorDelta        = "delta"
	FactorCapex        = "capex"
	FactorRSI          = "rsi"
	FactorTechnicals   = "technicals"
)

// Factors lists every factor in report order.
var Factors = []string{
	FactorPE, FactorPEG, FactorDE, FactorProfitGrowth, FactorConsistency,
	FactorHoldings, FactorDelta, FactorCapex, FactorRSI, FactorTechnicals,
}

// Technical signals.
const (
	SignalNearSupport    = "near support"
	SignalNothing        = "nothing"
	SignalNearResistance = "near resistance"
)

// Verdicts by allocation band.
const (
	VerdictAggressive = "aggressive buy"
	VerdictSolid      = "solid buy"
	VerdictCautious   = "cautious buy"
)

const (
	minAllocation   = 5.0
	maxAllocation   = 10.0
	weightTolerance = 1e-6
)

// Weights maps factor names to their share of the total score.
type Weights map[string]float64

// DefaultWeights returns the stock weighting: fundamentals 0.55, holding
// changes and capex 0.20, timing 0.25.
func DefaultWeights() Weights {
	return Weights{
		FactorPE:           0.10,
		FactorPEG:          0.10,
		FactorDE:           0.10,
		FactorProfitGrowth: 0.10,
		FactorConsistency:  0.10,
		FactorHoldings:     0.05,
		FactorDelta:        0.10,
		FactorCapex:        0.10,
		FactorRSI:          0.10,
		FactorTechnicals:   0.15,
	}
}

// Validate rejects unknown factors, negative weights and totals other than 1.
// Factors left out weigh zero.
func (w Weights) Validate() error {
	keys := make([]*validation.KeyRules, 0, len(Factors))
	for _, f := range Factors {
		keys = append(keys, validation.Key(f, validation.Min(0.0), validation.Max(1.0)).Optional())
	}
	if err := validation.Validate(map[string]float64(w), validation.Map(keys...)); err != nil {
		return fmt.Errorf("ranker: weights: %w", err)
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("ranker: weights must sum to 1.0, got %g", sum)
	}
	return nil
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Input is the raw data for one stock. Holdings and deltas are percentages.
type Input struct {
	Name               string  `yaml:"name" json:"name"`
	StockPE            float64 `yaml:"stock_pe" json:"stock_pe"`
	IndustryPE         float64 `yaml:"industry_pe" json:"industry_pe"`
	PEGRatio           float64 `yaml:"peg_ratio" json:"peg_ratio"`
	RSI                float64 `yaml:"rsi" json:"rsi"`
	DERatio            float64 `yaml:"de_ratio" json:"de_ratio"`
	ProfitGrowth3yCAGR float64 `yaml:"profit_growth_3y_cagr" json:"profit_growth_3y_cagr"`
	ConsistencyRating  int     `yaml:"consistency_rating" json:"consistency_rating"`
	PromoterHolding    float64 `yaml:"promoter_holding" json:"promoter_holding"`
	FIIHolding         float64 `yaml:"fii_holding" json:"fii_holding"`
	DIIHolding         float64 `yaml:"dii_holding" json:"dii_holding"`
	PromoterDelta      float64 `yaml:"promoter_delta" json:"promoter_delta"`
	FIIDelta           float64 `yaml:"fii_delta" json:"fii_delta"`
	DIIDelta           float64 `yaml:"dii_delta" json:"dii_delta"`
	CapexRating        int     `yaml:"capex_rating" json:"capex_rating"`
	TechnicalSignal    string  `yaml:"technical_signal" json:"technical_signal"`
}

// Validate checks the human ratings and the technical signal. Numeric
// inputs are not bounded; the score functions clamp them.
func (in *Input) Validate() error {
	in.TechnicalSignal = strings.ToLower(strings.TrimSpace(in.TechnicalSignal))
	return validation.ValidateStruct(in,
		validation.Field(&in.ConsistencyRating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&in.CapexRating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&in.TechnicalSignal, validation.Required,
			validation.In(SignalNearSupport, SignalNothing, SignalNearResistance)),
	)
}

// Result is the allocation report for one stock.
type Result struct {
	Name       string             `json:"name,omitempty"`
	Allocation float64            `json:"final_allocation_metric"`
	TotalScore float64            `json:"total_weighted_score"`
	Scores     map[string]float64 `json:"individual_scores"`
	Verdict    string             `json:"verdict"`
}

// Ranker scores stocks with a fixed set of weights.
type Ranker struct {
	weights Weights
}

// New validates weights and returns a Ranker.
func New(weights Weights) (*Ranker, error) {
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	cp := make(Weights, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	return &Ranker{weights: cp}, nil
}

// Score computes the allocation metric for one stock.
func (r *Ranker) Score(in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		if in.Name != "" {
			return nil, fmt.Errorf("ranker: %s: %w", in.Name, err)
		}
		return nil, fmt.Errorf("ranker: %w", err)
	}

	scores := map[string]float64{
		FactorPE:           ScorePE(in.StockPE, in.IndustryPE),
		FactorPEG:          ScorePEG(in.PEGRatio),
		FactorRSI:          ScoreRSI(in.RSI),
		FactorDE:           ScoreDebtToEquity(in.DERatio),
		FactorProfitGrowth: ScoreProfitGrowth(in.ProfitGrowth3yCAGR),
		FactorConsistency:  ScoreRating(in.ConsistencyRating),
		FactorHoldings:     ScoreHoldings(in.PromoterHolding, in.FIIHolding, in.DIIHolding),
		FactorDelta:        ScoreHoldingDelta(in.PromoterDelta, in.FIIDelta, in.DIIDelta),
		FactorCapex:        ScoreRating(in.CapexRating),
		FactorTechnicals:   ScoreTechnicals(in.TechnicalSignal),
	}

	var total float64
	for factor, w := range r.weights {
		total += scores[factor] * w
	}
	allocation := minAllocation + total/100*(maxAllocation-minAllocation)

	rounded := make(map[string]float64, len(scores))
	for k, v := range scores {
		rounded[k] = round2(v)
	}
	alloc := round2(allocation)
	return &Result{
		Name:       in.Name,
		Allocation: alloc,
		TotalScore: round2(total),
		Scores:     rounded,
		Verdict:    Verdict(alloc),
	}, nil
}

// Rank scores every input and orders results by allocation, highest first.
// The first invalid input aborts the run.
func (r *Ranker) Rank(inputs []Input) ([]Result, error) {
	out := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		res, err := r.Score(in)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Allocation > out[j].Allocation
	})
	return out, nil
}

// Verdict maps an allocation to its recommendation band.
func Verdict(allocation float64) string {
	switch {
	case allocation >= 9.0:
		return VerdictAggressive
	case allocation >= 7.5:
		return VerdictSolid
	default:
		return VerdictCautious
	}
}

// round2 rounds the exact binary value to two decimals, ties to even, so
// 2.675 becomes 2.67 and 0.125 becomes 0.12.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
