package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/epiwatch/leishdash/internal/config"
	"github.com/epiwatch/leishdash/internal/dataset"
)

type staticSource struct {
	records []dataset.CaseRecord
	err     error
}

func (s *staticSource) Read(_ context.Context) ([]dataset.CaseRecord, error) {
	return s.records, s.err
}

func notification(id, state string, year int, lat, lon, hdi float64) dataset.CaseRecord {
	return dataset.CaseRecord{
		MunicipalityID:   id,
		State:            state,
		MunicipalityName: null.StringFrom("Municipio " + id),
		NotificationDate: null.TimeFrom(time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC)),
		Lat:              null.FloatFrom(lat),
		Lon:              null.FloatFrom(lon),
		HDI:              null.FloatFrom(hdi),
	}
}

func newTestServer(t *testing.T, source dataset.Source) *Server {
	t.Helper()
	cfg := config.ServerConfig{Port: 0, CORSOrigins: []string{"*"}}
	return NewServer(cfg, dataset.NewLoader(source))
}

func sampleSource() *staticSource {
	return &staticSource{records: []dataset.CaseRecord{
		notification("100", "SP", 2020, -23.5, -46.6, 0.78),
		notification("100", "SP", 2020, -23.5, -46.6, 0.78),
		notification("200", "MG", 2020, -19.9, -43.9, 0.73),
		notification("300", "BA", 2019, -12.9, -38.5, 0.69),
	}}
}

func getJSON(t *testing.T, handler http.Handler, url string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var body map[string]string
	rec := getJSON(t, s.Handler(), "/health", &body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestYearsAndStates(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var years struct {
		Years []int `json:"years"`
	}
	rec := getJSON(t, s.Handler(), "/api/v1/years", &years)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2019, 2020}, years.Years)

	var states struct {
		States []string `json:"states"`
	}
	rec = getJSON(t, s.Handler(), "/api/v1/states", &states)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BA", "MG", "SP"}, states.States)
}

func TestReport(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var resp ReportResponse
	rec := getJSON(t, s.Handler(), "/api/v1/report?year=2020&variable=idh", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, resp.NoData)
	assert.Equal(t, 2020, resp.Year)
	assert.Equal(t, 3, resp.Summary.TotalCases)
	assert.Equal(t, 2, resp.Summary.States)
	assert.Equal(t, 2, resp.Summary.Municipalities)

	require.NotNil(t, resp.StateTotals)
	require.Len(t, resp.StateTotals.Counts, 2)
	assert.Equal(t, "SP", resp.StateTotals.Counts[0].State)
	assert.Equal(t, 2, resp.StateTotals.Counts[0].Cases)

	require.NotNil(t, resp.Municipalities)
	assert.False(t, resp.Municipalities.NoData)
	assert.Len(t, resp.Municipalities.Counts, 2)

	require.NotNil(t, resp.Map)
	assert.False(t, resp.Map.NoData)
	assert.Len(t, resp.Map.Report.Points, 2)
	assert.NotNil(t, resp.Map.Report.Bounds)

	require.NotNil(t, resp.Structural)
	assert.False(t, resp.Structural.NoData)
	assert.Len(t, resp.Structural.Report.Points, 2)
}

func TestReportStateSubset(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var resp ReportResponse
	rec := getJSON(t, s.Handler(), "/api/v1/report?year=2020&states=mg", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp.Summary.TotalCases)
	assert.Equal(t, []string{"MG"}, resp.States)
}

// An empty filter halts processing at the indicator row: the payload carries
// no aggregate sections at all, only the no_data signal.
func TestReportEmptyFilterOmitsAggregates(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var resp ReportResponse
	rec := getJSON(t, s.Handler(), "/api/v1/report?year=1990", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, resp.NoData)
	assert.Equal(t, 0, resp.Summary.TotalCases)
	assert.Nil(t, resp.StateTotals)
	assert.Nil(t, resp.Municipalities)
	assert.Nil(t, resp.Map)
	assert.Nil(t, resp.Structural)

	body := rec.Body.String()
	for _, section := range []string{"state_totals", "municipalities", "\"map\"", "structural"} {
		assert.NotContains(t, body, section)
	}
}

// The per-aggregate endpoints honor the same halt: an empty filter answers
// no_data with an empty payload instead of running the aggregator.
func TestIndividualAggregatesEmptyFilter(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var st StateTotalsResponse
	rec := getJSON(t, s.Handler(), "/api/v1/report/states?year=1990", &st)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, st.NoData)
	assert.Empty(t, st.Counts)

	var mp MapResponse
	rec = getJSON(t, s.Handler(), "/api/v1/report/map?year=1990", &mp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mp.NoData)
	assert.Empty(t, mp.Report.Points)
}

func TestReportBadRequests(t *testing.T) {
	s := newTestServer(t, sampleSource())

	rec := getJSON(t, s.Handler(), "/api/v1/report", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getJSON(t, s.Handler(), "/api/v1/report?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getJSON(t, s.Handler(), "/api/v1/report?year=2020&variable=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndividualAggregates(t *testing.T) {
	s := newTestServer(t, sampleSource())

	var st StateTotalsResponse
	rec := getJSON(t, s.Handler(), "/api/v1/report/states?year=2020", &st)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, st.Counts, 2)

	var mu MunicipalitiesResponse
	rec = getJSON(t, s.Handler(), "/api/v1/report/municipalities?year=2020", &mu)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mu.Counts, 2)

	var mp MapResponse
	rec = getJSON(t, s.Handler(), "/api/v1/report/map?year=2019", &mp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mp.Report.Points, 1)

	var sr StructuralResponse
	rec = getJSON(t, s.Handler(), "/api/v1/report/structural?year=2020&variable=idh", &sr)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idh", string(sr.Report.Variable))
}

func TestLoadFailure(t *testing.T) {
	s := newTestServer(t, &staticSource{err: eris.New("fetch: boom")})

	rec := getJSON(t, s.Handler(), "/api/v1/years", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := config.ServerConfig{Port: 0, RateLimit: 1, CORSOrigins: []string{"*"}}
	s := NewServer(cfg, dataset.NewLoader(sampleSource()))

	rec := getJSON(t, s.Handler(), "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getJSON(t, s.Handler(), "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestEmbeddedUI(t *testing.T) {
	s := newTestServer(t, sampleSource())

	rec := getJSON(t, s.Handler(), "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Painel de Notifica")

	rec = getJSON(t, s.Handler(), "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
}
