package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/epiwatch/leishdash/internal/dataset"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	row_count  INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS case_records (
	snapshot_id        TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	id_municip         TEXT NOT NULL,
	uf                 TEXT NOT NULL,
	dt_notific         DATETIME,
	nome_municipio     TEXT,
	lat_locali         REAL,
	long_local         REAL,
	precipitacao_mensal REAL,
	saneamento_basico  REAL,
	idh                REAL,
	renda_media        REAL
);

CREATE TABLE IF NOT EXISTS municipality_centroids (
	id_municip TEXT PRIMARY KEY,
	nome       TEXT,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_case_records_snapshot ON case_records(snapshot_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores the raw records under a name, replacing any previous
// snapshot with the same name.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string, records []dataset.CaseRecord) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM case_records WHERE snapshot_id IN (SELECT id FROM snapshots WHERE name = ?)`, name,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: delete previous records")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return nil, eris.Wrap(err, "sqlite: delete previous snapshot")
	}

	snap := &Snapshot{
		ID:        uuid.New().String(),
		Name:      name,
		Rows:      len(records),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, name, row_count, created_at) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.Name, snap.Rows, snap.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO case_records (
			snapshot_id, id_municip, uf, dt_notific, nome_municipio,
			lat_locali, long_local, precipitacao_mensal, saneamento_basico, idh, renda_media
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range records {
		r := &records[i]
		if _, err := stmt.ExecContext(ctx,
			snap.ID, r.MunicipalityID, r.State, r.NotificationDate, r.MunicipalityName,
			r.Lat, r.Lon, r.Precipitation, r.Sanitation, r.HDI, r.Income,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit snapshot")
	}
	return snap, nil
}

// LoadSnapshot reads the raw records of a named snapshot. The records go
// through the same normalization as a file read; nothing is derived here.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, name string) ([]dataset.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id_municip, r.uf, r.dt_notific, r.nome_municipio,
		       r.lat_locali, r.long_local, r.precipitacao_mensal, r.saneamento_basico, r.idh, r.renda_media
		FROM case_records r
		JOIN snapshots sn ON sn.id = r.snapshot_id
		WHERE sn.name = ?
		ORDER BY r.rowid`, name)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load snapshot")
	}
	defer rows.Close() //nolint:errcheck

	var records []dataset.CaseRecord
	for rows.Next() {
		var r dataset.CaseRecord
		if err := rows.Scan(
			&r.MunicipalityID, &r.State, &r.NotificationDate, &r.MunicipalityName,
			&r.Lat, &r.Lon, &r.Precipitation, &r.Sanitation, &r.HDI, &r.Income,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate records")
	}
	if records == nil {
		return nil, eris.Errorf("snapshot not found: %s", name)
	}
	return records, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, row_count, created_at FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var snaps []Snapshot
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Rows, &sn.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

func (s *SQLiteStore) UpsertCentroids(ctx context.Context, centroids []dataset.Centroid) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO municipality_centroids (id_municip, nome, lat, lon, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id_municip) DO UPDATE SET
			nome = excluded.nome,
			lat = excluded.lat,
			lon = excluded.lon,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare centroid upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int
	for _, c := range centroids {
		if c.MunicipalityID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, c.MunicipalityID, c.Name, c.Lat, c.Lon, now); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert centroid %s", c.MunicipalityID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit centroids")
	}
	return n, nil
}

func (s *SQLiteStore) Centroids(ctx context.Context) (map[string]dataset.Centroid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id_municip, nome, lat, lon FROM municipality_centroids`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query centroids")
	}
	defer rows.Close() //nolint:errcheck

	centroids := make(map[string]dataset.Centroid)
	for rows.Next() {
		var c dataset.Centroid
		var name sql.NullString
		if err := rows.Scan(&c.MunicipalityID, &name, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan centroid")
		}
		c.Name = name.String
		centroids[c.MunicipalityID] = c
	}
	return centroids, eris.Wrap(rows.Err(), "sqlite: iterate centroids")
}
