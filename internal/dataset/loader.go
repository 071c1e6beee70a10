package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"
)

// Source reads raw case records from some backing storage.
type Source interface {
	Read(ctx context.Context) ([]CaseRecord, error)
}

// CentroidSource supplies imported municipality centroids for coordinate
// backfill. Typically backed by the snapshot store.
type CentroidSource interface {
	Centroids(ctx context.Context) (map[string]Centroid, error)
}

// Loader reads and normalizes the notification table exactly once per
// process. The first Load performs the read; every later call returns the
// same Table instance. A failed first load is also cached: the session is
// considered aborted, there is no retry.
type Loader struct {
	source    Source
	centroids CentroidSource

	once  sync.Once
	table *Table
	err   error
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithCentroids enables coordinate backfill from imported centroids.
func WithCentroids(cs CentroidSource) LoaderOption {
	return func(l *Loader) { l.centroids = cs }
}

// NewLoader creates a memoizing loader over the given source.
func NewLoader(source Source, opts ...LoaderOption) *Loader {
	l := &Loader{source: source}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the session table, reading storage on the first call only.
func (l *Loader) Load(ctx context.Context) (*Table, error) {
	l.once.Do(func() {
		records, err := l.source.Read(ctx)
		if err != nil {
			l.err = err
			return
		}
		l.backfillCoordinates(ctx, records)
		l.table = Normalize(records)
		zap.L().Info("dataset loaded",
			zap.Int("rows", l.table.Len()),
			zap.Int("years", len(l.table.Years())),
			zap.Int("states", len(l.table.States())),
		)
	})
	return l.table, l.err
}

// backfillCoordinates fills null lat/lon from imported centroids. Best
// effort: a centroid lookup failure only logs a warning.
func (l *Loader) backfillCoordinates(ctx context.Context, records []CaseRecord) {
	if l.centroids == nil {
		return
	}
	centroids, err := l.centroids.Centroids(ctx)
	if err != nil {
		zap.L().Warn("centroid backfill unavailable", zap.Error(err))
		return
	}
	if len(centroids) == 0 {
		return
	}

	var filled int
	for i := range records {
		if records[i].Lat.Valid && records[i].Lon.Valid {
			continue
		}
		c, ok := centroids[records[i].MunicipalityID]
		if !ok {
			continue
		}
		records[i].Lat = null.FloatFrom(c.Lat)
		records[i].Lon = null.FloatFrom(c.Lon)
		filled++
	}
	if filled > 0 {
		zap.L().Info("backfilled coordinates from centroids", zap.Int("rows", filled))
	}
}

// Normalize derives the per-row fields and builds both references:
//  1. Year from the notification date (null date stays null year).
//  2. CaseCount = 1 on every row.
//  3. Municipality reference: rows with a null name are skipped, the first
//     occurrence per id wins.
//  4. Every row's municipality name is replaced by the canonical reference
//     name; ids without a reference entry get a null name.
//  5. Structural reference: first occurrence per id, attributes may be null.
func Normalize(records []CaseRecord) *Table {
	munis := make(map[string]Municipality)
	structural := make(map[string]Structural)

	for i := range records {
		r := &records[i]

		if r.NotificationDate.Valid {
			r.Year = null.IntFrom(int64(r.NotificationDate.Time.Year()))
		} else {
			r.Year = null.Int{}
		}
		r.CaseCount = 1

		if r.MunicipalityName.Valid && r.MunicipalityID != "" {
			if _, ok := munis[r.MunicipalityID]; !ok {
				munis[r.MunicipalityID] = Municipality{
					ID:    r.MunicipalityID,
					Name:  r.MunicipalityName.String,
					State: r.State,
					Lat:   r.Lat,
					Lon:   r.Lon,
				}
			}
		}

		if r.MunicipalityID != "" {
			if _, ok := structural[r.MunicipalityID]; !ok {
				structural[r.MunicipalityID] = Structural{
					ID:            r.MunicipalityID,
					State:         r.State,
					Precipitation: r.Precipitation,
					Sanitation:    r.Sanitation,
					HDI:           r.HDI,
					Income:        r.Income,
				}
			}
		}
	}

	// Canonical name join: the raw per-row name is discarded so the same id
	// always reports one name even when the source strings disagree.
	for i := range records {
		if m, ok := munis[records[i].MunicipalityID]; ok {
			records[i].MunicipalityName = null.StringFrom(m.Name)
		} else {
			records[i].MunicipalityName = null.String{}
		}
	}

	return NewTable(records, munis, structural)
}

// FileSource reads a dataset file, choosing the parser by extension.
type FileSource struct {
	Path string
	CSV  CSVOptions
}

// Read loads the file. A missing or unreadable file is a fatal load error.
func (f *FileSource) Read(ctx context.Context) ([]CaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: read cancelled")
	}

	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".xlsx":
		return ReadXLSX(f.Path)
	default:
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: open %s", f.Path)
		}
		defer file.Close() //nolint:errcheck
		return ReadCSV(file, f.CSV)
	}
}
