package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/epiwatch/leishdash/internal/dataset"
	"github.com/epiwatch/leishdash/internal/report"
)

// ReportResponse is the full dashboard payload for one filter selection.
// An empty filter sets NoData and omits every aggregate section: rendering
// halts at the indicator row, nothing downstream runs.
type ReportResponse struct {
	Year    int            `json:"year"`
	States  []string       `json:"states,omitempty"`
	NoData  bool           `json:"no_data"`
	Summary report.Summary `json:"summary"`

	StateTotals    *StateTotalsResponse    `json:"state_totals,omitempty"`
	Municipalities *MunicipalitiesResponse `json:"municipalities,omitempty"`
	Map            *MapResponse            `json:"map,omitempty"`
	Structural     *StructuralResponse     `json:"structural,omitempty"`
}

// StateTotalsResponse is the per-state bar chart payload.
type StateTotalsResponse struct {
	NoData bool                `json:"no_data"`
	Counts []report.StateCount `json:"counts"`
}

// MunicipalitiesResponse is the top-municipalities bar chart payload.
type MunicipalitiesResponse struct {
	NoData bool                       `json:"no_data"`
	Counts []report.MunicipalityCount `json:"counts"`
}

// MapResponse is the case map payload.
type MapResponse struct {
	NoData bool             `json:"no_data"`
	Report report.GeoReport `json:"report"`
}

// StructuralResponse is the correlation scatter payload.
type StructuralResponse struct {
	NoData bool                    `json:"no_data"`
	Report report.StructuralReport `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleYears returns the distinct notification years in the dataset. The UI
// constrains the year selector to these.
func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"years": table.Years()})
}

// handleStates returns the distinct state codes in the dataset.
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"states": table.States()})
}

// handleReport computes every dashboard aggregate for one filter selection.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	filtered, year, states, ok := s.filteredTable(w, r)
	if !ok {
		return
	}
	variable, err := variableParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ReportResponse{
		Year:   year,
		States: states,
	}

	// Empty filter: report the zero summary and stop before any aggregator
	// runs, mirroring the CLI path.
	if filtered.Len() == 0 {
		resp.NoData = true
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Summary = report.Summarize(filtered)

	stateTotals := report.StateTotals(filtered)
	resp.StateTotals = &StateTotalsResponse{
		NoData: len(stateTotals) == 0,
		Counts: stateTotals,
	}

	munis := report.TopMunicipalities(filtered)
	resp.Municipalities = &MunicipalitiesResponse{
		NoData: len(munis) == 0,
		Counts: munis,
	}

	geo := report.GeoTotals(filtered)
	resp.Map = &MapResponse{
		NoData: len(geo.Points) == 0,
		Report: geo,
	}

	structural := report.StructuralTotals(filtered, variable)
	resp.Structural = &StructuralResponse{
		NoData: len(structural.Points) == 0,
		Report: structural,
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStateTotals(w http.ResponseWriter, r *http.Request) {
	filtered, _, _, ok := s.filteredTable(w, r)
	if !ok {
		return
	}
	if filtered.Len() == 0 {
		respondJSON(w, http.StatusOK, StateTotalsResponse{NoData: true})
		return
	}
	counts := report.StateTotals(filtered)
	respondJSON(w, http.StatusOK, StateTotalsResponse{
		NoData: len(counts) == 0,
		Counts: counts,
	})
}

func (s *Server) handleTopMunicipalities(w http.ResponseWriter, r *http.Request) {
	filtered, _, _, ok := s.filteredTable(w, r)
	if !ok {
		return
	}
	if filtered.Len() == 0 {
		respondJSON(w, http.StatusOK, MunicipalitiesResponse{NoData: true})
		return
	}
	counts := report.TopMunicipalities(filtered)
	respondJSON(w, http.StatusOK, MunicipalitiesResponse{
		NoData: len(counts) == 0,
		Counts: counts,
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	filtered, _, _, ok := s.filteredTable(w, r)
	if !ok {
		return
	}
	if filtered.Len() == 0 {
		respondJSON(w, http.StatusOK, MapResponse{NoData: true})
		return
	}
	geo := report.GeoTotals(filtered)
	respondJSON(w, http.StatusOK, MapResponse{
		NoData: len(geo.Points) == 0,
		Report: geo,
	})
}

func (s *Server) handleStructural(w http.ResponseWriter, r *http.Request) {
	filtered, _, _, ok := s.filteredTable(w, r)
	if !ok {
		return
	}
	variable, err := variableParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filtered.Len() == 0 {
		respondJSON(w, http.StatusOK, StructuralResponse{NoData: true})
		return
	}
	structural := report.StructuralTotals(filtered, variable)
	respondJSON(w, http.StatusOK, StructuralResponse{
		NoData: len(structural.Points) == 0,
		Report: structural,
	})
}

// loadTable resolves the memoized dataset, responding 500 on load failure.
func (s *Server) loadTable(w http.ResponseWriter, r *http.Request) (*dataset.Table, bool) {
	table, err := s.loader.Load(r.Context())
	if err != nil {
		zap.L().Error("api: dataset load failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "dataset unavailable")
		return nil, false
	}
	return table, true
}

// filteredTable parses the year/states query params and applies the filter.
// A missing or malformed year is a client error.
func (s *Server) filteredTable(w http.ResponseWriter, r *http.Request) (*dataset.Table, int, []string, bool) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return nil, 0, nil, false
	}

	yearStr := r.URL.Query().Get("year")
	if yearStr == "" {
		respondError(w, http.StatusBadRequest, "missing required parameter: year")
		return nil, 0, nil, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid year: "+yearStr)
		return nil, 0, nil, false
	}

	states := statesParam(r)
	return table.Filter(year, states), year, states, true
}

// statesParam parses the comma-separated states filter. Empty means all.
func statesParam(r *http.Request) []string {
	raw := r.URL.Query().Get("states")
	if raw == "" {
		return nil
	}
	var states []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			states = append(states, strings.ToUpper(s))
		}
	}
	return states
}

// variableParam parses the structural variable, defaulting to precipitation.
func variableParam(r *http.Request) (report.Variable, error) {
	raw := r.URL.Query().Get("variable")
	if raw == "" {
		return report.VarPrecipitation, nil
	}
	return report.ParseVariable(raw)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
