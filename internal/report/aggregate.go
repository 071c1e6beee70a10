// Package report computes the dashboard aggregates from a filtered
// notification table. All transforms are stateless and recomputed in full on
// every request; empty results are per-chart conditions, never errors.
package report

import (
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/epiwatch/leishdash/internal/dataset"
)

// TopMunicipalityLimit caps the municipality bar chart.
const TopMunicipalityLimit = 20

// MarkerSizeMax is the maximum on-screen marker diameter for the case map.
const MarkerSizeMax = 40

// Summary holds the three scalar indicators for the current filter.
type Summary struct {
	TotalCases     int `json:"total_cases"`
	States         int `json:"states"`
	Municipalities int `json:"municipalities"`
}

// Summarize computes the indicator row over the filtered table.
func Summarize(t *dataset.Table) Summary {
	var s Summary
	states := make(map[string]bool)
	munis := make(map[string]bool)
	for _, r := range t.Records() {
		s.TotalCases += r.CaseCount
		if r.State != "" {
			states[r.State] = true
		}
		if r.MunicipalityID != "" {
			munis[r.MunicipalityID] = true
		}
	}
	s.States = len(states)
	s.Municipalities = len(munis)
	return s
}

// StateCount is one bar of the per-state chart.
type StateCount struct {
	State string `json:"uf"`
	Cases int    `json:"casos"`
}

// StateTotals groups the filtered table by state and sums case counts,
// sorted descending. Ties keep first-appearance order.
func StateTotals(t *dataset.Table) []StateCount {
	index := make(map[string]int)
	var totals []StateCount
	for _, r := range t.Records() {
		i, ok := index[r.State]
		if !ok {
			i = len(totals)
			index[r.State] = i
			totals = append(totals, StateCount{State: r.State})
		}
		totals[i].Cases += r.CaseCount
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Cases > totals[j].Cases
	})
	return totals
}

// MunicipalityCount is one bar of the top-municipalities chart.
type MunicipalityCount struct {
	Name  string `json:"nome_municipio"`
	State string `json:"uf"`
	Cases int    `json:"casos"`
}

// TopMunicipalities groups by (name, state) after dropping rows with a null
// municipality name, sorts descending, and keeps the top 20.
func TopMunicipalities(t *dataset.Table) []MunicipalityCount {
	type key struct{ name, state string }
	index := make(map[key]int)
	var totals []MunicipalityCount
	for _, r := range t.Records() {
		if !r.MunicipalityName.Valid {
			continue
		}
		k := key{r.MunicipalityName.String, r.State}
		i, ok := index[k]
		if !ok {
			i = len(totals)
			index[k] = i
			totals = append(totals, MunicipalityCount{Name: k.name, State: k.state})
		}
		totals[i].Cases += r.CaseCount
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Cases > totals[j].Cases
	})
	if len(totals) > TopMunicipalityLimit {
		totals = totals[:TopMunicipalityLimit]
	}
	return totals
}

// GeoPoint is one map marker: a municipality with coordinates and its case
// total for the current filter.
type GeoPoint struct {
	MunicipalityID string  `json:"id_municip"`
	Name           string  `json:"nome_municipio"`
	State          string  `json:"uf"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Cases          int     `json:"casos"`
}

// Bounds is the bounding box of the map markers, used by the presentation
// layer to center the map.
type Bounds struct {
	MinLat    float64 `json:"min_lat"`
	MinLon    float64 `json:"min_lon"`
	MaxLat    float64 `json:"max_lat"`
	MaxLon    float64 `json:"max_lon"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
}

// GeoReport is the map aggregate with its marker sizing scale.
type GeoReport struct {
	Points  []GeoPoint `json:"points"`
	SizeRef float64    `json:"sizeref"`
	SizeMax int        `json:"size_max"`
	Bounds  *Bounds    `json:"bounds,omitempty"`
}

// GeoTotals groups by municipality id, joins the municipality reference, and
// drops entries whose reference lacks coordinates. The drop happens after the
// join, so a row counted in StateTotals can still be absent from the map. The
// sizeref is recomputed from the current maximum so marker area tracks the
// filter.
func GeoTotals(t *dataset.Table) GeoReport {
	index := make(map[string]int)
	type total struct {
		id    string
		cases int
	}
	var order []total
	for _, r := range t.Records() {
		i, ok := index[r.MunicipalityID]
		if !ok {
			i = len(order)
			index[r.MunicipalityID] = i
			order = append(order, total{id: r.MunicipalityID})
		}
		order[i].cases += r.CaseCount
	}

	var points []GeoPoint
	maxCases := 0
	for _, agg := range order {
		m, ok := t.Municipality(agg.id)
		if !ok || !m.Lat.Valid || !m.Lon.Valid {
			continue
		}
		points = append(points, GeoPoint{
			MunicipalityID: agg.id,
			Name:           m.Name,
			State:          m.State,
			Lat:            m.Lat.Float64,
			Lon:            m.Lon.Float64,
			Cases:          agg.cases,
		})
		if agg.cases > maxCases {
			maxCases = agg.cases
		}
	}

	report := GeoReport{Points: points, SizeMax: MarkerSizeMax}
	if len(points) > 0 {
		report.SizeRef = 2.0 * float64(maxCases) / float64(MarkerSizeMax*MarkerSizeMax)
		report.Bounds = markerBounds(points)
	}
	return report
}

// markerBounds computes the bounding box of all markers.
func markerBounds(points []GeoPoint) *Bounds {
	coords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		coords = append(coords, p.Lon, p.Lat)
	}
	b := geom.NewMultiPointFlat(geom.XY, coords).Bounds()
	return &Bounds{
		MinLon:    b.Min(0),
		MinLat:    b.Min(1),
		MaxLon:    b.Max(0),
		MaxLat:    b.Max(1),
		CenterLon: (b.Min(0) + b.Max(0)) / 2,
		CenterLat: (b.Min(1) + b.Max(1)) / 2,
	}
}

// StructuralPoint is one scatter point: a municipality's case total against
// one socio-environmental attribute.
type StructuralPoint struct {
	MunicipalityID string  `json:"id_municip"`
	State          string  `json:"uf"`
	Value          float64 `json:"valor"`
	Cases          int     `json:"casos"`
}

// StructuralReport is the correlation aggregate for one variable.
type StructuralReport struct {
	Variable Variable          `json:"variable"`
	Points   []StructuralPoint `json:"points"`
	Trend    *Trendline        `json:"trend,omitempty"`
}

// StructuralTotals groups by municipality id, joins the structural reference
// on the selected variable, and drops entries with a null value after the
// join, mirroring GeoTotals.
func StructuralTotals(t *dataset.Table, v Variable) StructuralReport {
	index := make(map[string]int)
	type total struct {
		id    string
		cases int
	}
	var order []total
	for _, r := range t.Records() {
		i, ok := index[r.MunicipalityID]
		if !ok {
			i = len(order)
			index[r.MunicipalityID] = i
			order = append(order, total{id: r.MunicipalityID})
		}
		order[i].cases += r.CaseCount
	}

	var points []StructuralPoint
	for _, agg := range order {
		s, ok := t.Structural(agg.id)
		if !ok {
			continue
		}
		value, ok := v.valueOf(s)
		if !ok {
			continue
		}
		points = append(points, StructuralPoint{
			MunicipalityID: agg.id,
			State:          s.State,
			Value:          value,
			Cases:          agg.cases,
		})
	}

	return StructuralReport{
		Variable: v,
		Points:   points,
		Trend:    FitTrend(points),
	}
}
