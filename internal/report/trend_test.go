package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTrend_PerfectLine(t *testing.T) {
	points := []StructuralPoint{
		{Value: 1, Cases: 3},
		{Value: 2, Cases: 5},
		{Value: 3, Cases: 7},
	}

	tr := FitTrend(points)
	require.NotNil(t, tr)
	assert.InDelta(t, 1.0, tr.Alpha, 1e-9)
	assert.InDelta(t, 2.0, tr.Beta, 1e-9)
	assert.InDelta(t, 1.0, tr.R2, 1e-9)

	assert.InDelta(t, 1.0, tr.X0, 1e-9)
	assert.InDelta(t, 3.0, tr.Y0, 1e-9)
	assert.InDelta(t, 3.0, tr.X1, 1e-9)
	assert.InDelta(t, 7.0, tr.Y1, 1e-9)
}

func TestFitTrend_TooFewPoints(t *testing.T) {
	assert.Nil(t, FitTrend(nil))
	assert.Nil(t, FitTrend([]StructuralPoint{{Value: 1, Cases: 2}}))
}

func TestFitTrend_ConstantVariable(t *testing.T) {
	points := []StructuralPoint{
		{Value: 5, Cases: 1},
		{Value: 5, Cases: 9},
	}
	assert.Nil(t, FitTrend(points))
}

func TestFitTrend_NegativeSlope(t *testing.T) {
	points := []StructuralPoint{
		{Value: 0.5, Cases: 100},
		{Value: 0.7, Cases: 60},
		{Value: 0.9, Cases: 20},
	}

	tr := FitTrend(points)
	require.NotNil(t, tr)
	assert.Negative(t, tr.Beta)
	assert.Greater(t, tr.R2, 0.9)
}
