package report

import (
	"gonum.org/v1/gonum/stat"
)

// Trendline is the OLS fit overlaid on the correlation scatter. X0/Y0 and
// X1/Y1 are the line endpoints at the observed value range.
type Trendline struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	R2    float64 `json:"r2"`
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
}

// FitTrend computes an ordinary-least-squares fit of case counts against the
// variable values. Returns nil when fewer than two points exist or the
// variable is constant (the slope would be undefined).
func FitTrend(points []StructuralPoint) *Trendline {
	if len(points) < 2 {
		return nil
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Value
		ys[i] = float64(p.Cases)
	}

	minX, maxX := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
	}
	if minX == maxX {
		return nil
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)

	return &Trendline{
		Alpha: alpha,
		Beta:  beta,
		R2:    r2,
		X0:    minX,
		Y0:    alpha + beta*minX,
		X1:    maxX,
		Y1:    alpha + beta*maxX,
	}
}
