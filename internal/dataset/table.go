// Package dataset loads the leishmaniasis notification table and derives the
// canonical municipality and structural references used by every report.
package dataset

import (
	"sort"

	"gopkg.in/guregu/null.v3"
)

// Source column names as they appear in SINAN exports.
const (
	ColMunicipalityID = "id_municip"
	ColState          = "uf"
	ColNotification   = "dt_notific"
	ColMunicipality   = "nome_municipio"
	ColLat            = "lat_locali"
	ColLon            = "long_local"
	ColPrecipitation  = "precipitacao_mensal"
	ColSanitation     = "saneamento_basico"
	ColHDI            = "idh"
	ColIncome         = "renda_media"
)

// RequiredColumns must all be present in the source header; a missing column
// is a fatal load error.
var RequiredColumns = []string{
	ColMunicipalityID, ColState, ColNotification, ColMunicipality,
	ColLat, ColLon, ColPrecipitation, ColSanitation, ColHDI, ColIncome,
}

// CaseRecord is one notification row. Year and CaseCount are derived at load
// time; MunicipalityName is canonical after the reference join.
type CaseRecord struct {
	MunicipalityID   string      `json:"id_municip"`
	State            string      `json:"uf"`
	NotificationDate null.Time   `json:"dt_notific"`
	MunicipalityName null.String `json:"nome_municipio"`
	Lat              null.Float  `json:"lat_locali"`
	Lon              null.Float  `json:"long_local"`
	Precipitation    null.Float  `json:"precipitacao_mensal"`
	Sanitation       null.Float  `json:"saneamento_basico"`
	HDI              null.Float  `json:"idh"`
	Income           null.Float  `json:"renda_media"`
	Year             null.Int    `json:"ano"`
	CaseCount        int         `json:"casos"`
}

// Municipality is one entry of the municipality reference: the canonical
// name and location for a municipality id. Exactly one entry exists per id;
// the first row with a non-null name wins.
type Municipality struct {
	ID    string     `json:"id_municip"`
	Name  string     `json:"nome_municipio"`
	State string     `json:"uf"`
	Lat   null.Float `json:"lat_locali"`
	Lon   null.Float `json:"long_local"`
}

// Structural is one entry of the structural reference: static
// socio-environmental attributes for a municipality id. First occurrence
// per id wins; individual attributes may be null.
type Structural struct {
	ID            string     `json:"id_municip"`
	State         string     `json:"uf"`
	Precipitation null.Float `json:"precipitacao_mensal"`
	Sanitation    null.Float `json:"saneamento_basico"`
	HDI           null.Float `json:"idh"`
	Income        null.Float `json:"renda_media"`
}

// Centroid is a municipality centroid imported from a boundary shapefile,
// used to backfill rows that lack coordinates.
type Centroid struct {
	MunicipalityID string  `json:"id_municip"`
	Name           string  `json:"nome_municipio"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
}

// Table is the loaded notification table plus both references. It is
// immutable after load: aggregators read it but never write it, and every
// report is recomputed from it in full.
type Table struct {
	records    []CaseRecord
	munis      map[string]Municipality
	structural map[string]Structural
}

// NewTable builds a Table directly from normalized records and references.
// Callers outside this package normally go through Loader instead.
func NewTable(records []CaseRecord, munis map[string]Municipality, structural map[string]Structural) *Table {
	return &Table{records: records, munis: munis, structural: structural}
}

// Len reports the number of rows.
func (t *Table) Len() int { return len(t.records) }

// Records returns the backing rows. Callers must not modify them.
func (t *Table) Records() []CaseRecord { return t.records }

// Municipality looks up the canonical reference entry for an id.
func (t *Table) Municipality(id string) (Municipality, bool) {
	m, ok := t.munis[id]
	return m, ok
}

// Structural looks up the structural reference entry for an id.
func (t *Table) Structural(id string) (Structural, bool) {
	s, ok := t.structural[id]
	return s, ok
}

// Years returns the distinct non-null years present, ascending.
func (t *Table) Years() []int {
	seen := make(map[int]bool)
	for _, r := range t.records {
		if r.Year.Valid {
			seen[int(r.Year.Int64)] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// States returns the distinct non-empty state codes present, ascending.
func (t *Table) States() []string {
	seen := make(map[string]bool)
	for _, r := range t.records {
		if r.State != "" {
			seen[r.State] = true
		}
	}
	states := make([]string, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// withRecords produces a new Table over a different row set, sharing the
// immutable references.
func (t *Table) withRecords(records []CaseRecord) *Table {
	return &Table{records: records, munis: t.munis, structural: t.structural}
}

// Filter returns the subset of rows matching year and, when states is
// non-empty, any of the given state codes. The result is an independent
// copy sharing only the immutable references; an empty result is the
// caller's signal to stop rendering, not an error.
func (t *Table) Filter(year int, states []string) *Table {
	var allowed map[string]bool
	if len(states) > 0 {
		allowed = make(map[string]bool, len(states))
		for _, s := range states {
			allowed[s] = true
		}
	}

	out := make([]CaseRecord, 0, len(t.records))
	for _, r := range t.records {
		if !r.Year.Valid || int(r.Year.Int64) != year {
			continue
		}
		if allowed != nil && !allowed[r.State] {
			continue
		}
		out = append(out, r)
	}
	return t.withRecords(out)
}
