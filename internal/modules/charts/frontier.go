// Package charts renders the simulated portfolios as a risk/return scatter
// plot: volatility on x, return on y, each dot coloured by its Sharpe ratio
// and the best Sharpe portfolio marked.
package charts

import (
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/simulation"
)

const (
	DefaultWidth  = 1000
	DefaultHeight = 700
	DefaultTitle  = "Monte Carlo Portfolios"
)

// Point is one portfolio on the chart.
type Point struct {
	Volatility float64 `json:"vol"`
	Return     float64 `json:"ret"`
	Sharpe     float64 `json:"sharpe"`
}

// Frontier accumulates points for a single chart.
type Frontier struct {
	Title  string
	Width  int
	Height int

	points []Point
	best   int
}

// NewFrontier returns an empty chart with default dimensions.
func NewFrontier(title string) *Frontier {
	if title == "" {
		title = DefaultTitle
	}
	return &Frontier{Title: title, Width: DefaultWidth, Height: DefaultHeight, best: -1}
}

// Add appends a result.
func (f *Frontier) Add(r simulation.Result) {
	f.points = append(f.points, Point{Volatility: r.Volatility, Return: r.Return, Sharpe: r.Sharpe})
	if f.best < 0 || r.Sharpe > f.points[f.best].Sharpe {
		f.best = len(f.points) - 1
	}
}

// Len returns the number of points.
func (f *Frontier) Len() int { return len(f.points) }

// Best returns the max-Sharpe point.
func (f *Frontier) Best() (Point, bool) {
	if f.best < 0 {
		return Point{}, false
	}
	return f.points[f.best], true
}

// Render writes the chart as PNG. An empty frontier has nothing to plot.
func (f *Frontier) Render(w io.Writer) error {
	if len(f.points) == 0 {
		return fmt.Errorf("%w: no portfolios to plot", domain.ErrInsufficientData)
	}

	xs := make([]float64, len(f.points))
	ys := make([]float64, len(f.points))
	minSharpe, maxSharpe := math.Inf(1), math.Inf(-1)
	for i, p := range f.points {
		xs[i], ys[i] = p.Volatility, p.Return
		minSharpe = math.Min(minSharpe, p.Sharpe)
		maxSharpe = math.Max(maxSharpe, p.Sharpe)
	}
	if minSharpe == maxSharpe {
		maxSharpe = minSharpe + 1
	}

	bySharpe := func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
		return chart.Viridis(f.points[index].Sharpe, minSharpe, maxSharpe)
	}

	best := f.points[f.best]
	graph := chart.Chart{
		Title:  f.Title,
		Width:  f.Width,
		Height: f.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Volatility",
			Range:          paddedRange(xs),
			ValueFormatter: percentFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Return",
			Range:          paddedRange(ys),
			ValueFormatter: percentFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: "Portfolios",
				Style: chart.Style{
					StrokeWidth:      chart.Disabled,
					DotWidth:         3,
					DotColorProvider: bySharpe,
				},
				XValues: xs,
				YValues: ys,
			},
			chart.ContinuousSeries{
				Name: "Max Sharpe",
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    9,
					DotColor:    chart.ColorRed,
				},
				XValues: []float64{best.Volatility},
				YValues: []float64{best.Return},
			},
			chart.AnnotationSeries{
				Annotations: []chart.Value2{{
					XValue: best.Volatility,
					YValue: best.Return,
					Label:  fmt.Sprintf("Max Sharpe %.2f", best.Sharpe),
				}},
			},
		},
	}

	return graph.Render(chart.PNG, w)
}

// paddedRange spans values with a 5% margin. A degenerate span still gets a
// non-zero width so single-asset runs can be drawn.
func paddedRange(values []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.05, 0.01)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func percentFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f%%", f*100)
	}
	return ""
}
