package simulation

import "math"

// Summary tracks the notable portfolios of a run without keeping every row.
type Summary struct {
	Count         int     `json:"count"`
	MaxSharpe     *Result `json:"max_sharpe,omitempty"`
	MinVolatility *Result `json:"min_volatility,omitempty"`
	MaxReturn     *Result `json:"max_return,omitempty"`
	MeanSharpe    float64 `json:"mean_sharpe"`
}

// Add folds r into the summary.
func (s *Summary) Add(r Result) {
	s.Count++
	s.MeanSharpe += (r.Sharpe - s.MeanSharpe) / float64(s.Count)

	if s.MaxSharpe == nil || r.Sharpe > s.MaxSharpe.Sharpe {
		best := r
		s.MaxSharpe = &best
	}
	if s.MinVolatility == nil || r.Volatility < s.MinVolatility.Volatility {
		low := r
		s.MinVolatility = &low
	}
	if s.MaxReturn == nil || r.Return > s.MaxReturn.Return {
		top := r
		s.MaxReturn = &top
	}
}

// BestSharpe returns the highest Sharpe ratio seen, NaN for an empty run.
func (s *Summary) BestSharpe() float64 {
	if s.MaxSharpe == nil {
		return math.NaN()
	}
	return s.MaxSharpe.Sharpe
}

// LowestVolatility returns the lowest volatility seen, NaN for an empty run.
func (s *Summary) LowestVolatility() float64 {
	if s.MinVolatility == nil {
		return math.NaN()
	}
	return s.MinVolatility.Volatility
}
