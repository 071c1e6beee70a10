package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"gopkg.in/guregu/null.v3"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // default ';'
	// Latin1 decodes the input as ISO-8859-1 before parsing. SINAN exports
	// use this encoding; UTF-8 files must set it to false.
	Latin1 bool
}

// ReadCSV parses a notification CSV into raw case records. The first row
// must be a header containing every required column; anything missing is a
// fatal load error. Rows are never dropped here: unparseable dates and blank
// numeric cells become nulls.
func ReadCSV(r io.Reader, opts CSVOptions) ([]CaseRecord, error) {
	if opts.Latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.Comma = ';'
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("dataset: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}

	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var records []CaseRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read row")
		}
		records = append(records, parseRow(row, cols))
	}
	return records, nil
}

// indexColumns maps required column names to their header positions.
func indexColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("dataset: missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// parseRow converts one data row into a raw CaseRecord. Year and CaseCount
// are derived later by the loader.
func parseRow(row []string, cols map[string]int) CaseRecord {
	return CaseRecord{
		MunicipalityID:   cell(row, cols[ColMunicipalityID]),
		State:            strings.ToUpper(cell(row, cols[ColState])),
		NotificationDate: parseDate(cell(row, cols[ColNotification])),
		MunicipalityName: parseString(cell(row, cols[ColMunicipality])),
		Lat:              parseFloat(cell(row, cols[ColLat])),
		Lon:              parseFloat(cell(row, cols[ColLon])),
		Precipitation:    parseFloat(cell(row, cols[ColPrecipitation])),
		Sanitation:       parseFloat(cell(row, cols[ColSanitation])),
		HDI:              parseFloat(cell(row, cols[ColHDI])),
		Income:           parseFloat(cell(row, cols[ColIncome])),
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseString(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

// parseDate parses a notification date; unparseable values become null and
// the row is kept.
func parseDate(s string) null.Time {
	if s == "" {
		return null.Time{}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

// parseFloat accepts both dot and comma decimal separators.
func parseFloat(s string) null.Float {
	if s == "" {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(f)
}
