package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/epiwatch/leishdash/internal/dataset"
	"github.com/epiwatch/leishdash/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	row_count  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS case_records (
	snapshot_id         TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	id_municip          TEXT NOT NULL,
	uf                  TEXT NOT NULL,
	dt_notific          TIMESTAMPTZ,
	nome_municipio      TEXT,
	lat_locali          DOUBLE PRECISION,
	long_local          DOUBLE PRECISION,
	precipitacao_mensal DOUBLE PRECISION,
	saneamento_basico   DOUBLE PRECISION,
	idh                 DOUBLE PRECISION,
	renda_media         DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS municipality_centroids (
	id_municip TEXT PRIMARY KEY,
	nome       TEXT,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_case_records_snapshot ON case_records(snapshot_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// caseRecordColumns is the COPY column order for case_records.
var caseRecordColumns = []string{
	"snapshot_id", "id_municip", "uf", "dt_notific", "nome_municipio",
	"lat_locali", "long_local", "precipitacao_mensal", "saneamento_basico", "idh", "renda_media",
}

// SaveSnapshot stores the raw records under a name via COPY, replacing any
// previous snapshot with the same name.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, name string, records []dataset.CaseRecord) (*Snapshot, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE name = $1`, name); err != nil {
		return nil, eris.Wrap(err, "postgres: delete previous snapshot")
	}

	snap := &Snapshot{
		ID:        uuid.New().String(),
		Name:      name,
		Rows:      len(records),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, name, row_count, created_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.Name, snap.Rows, snap.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	rows := make([][]any, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, []any{
			snap.ID, r.MunicipalityID, r.State, r.NotificationDate, r.MunicipalityName,
			r.Lat, r.Lon, r.Precipitation, r.Sanitation, r.HDI, r.Income,
		})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "case_records", caseRecordColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy records")
	}

	return snap, nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, name string) ([]dataset.CaseRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id_municip, r.uf, r.dt_notific, r.nome_municipio,
		       r.lat_locali, r.long_local, r.precipitacao_mensal, r.saneamento_basico, r.idh, r.renda_media
		FROM case_records r
		JOIN snapshots sn ON sn.id = r.snapshot_id
		WHERE sn.name = $1`, name)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load snapshot")
	}
	defer rows.Close()

	var records []dataset.CaseRecord
	for rows.Next() {
		var r dataset.CaseRecord
		if err := rows.Scan(
			&r.MunicipalityID, &r.State, &r.NotificationDate, &r.MunicipalityName,
			&r.Lat, &r.Lon, &r.Precipitation, &r.Sanitation, &r.HDI, &r.Income,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate records")
	}
	if records == nil {
		return nil, eris.Errorf("snapshot not found: %s", name)
	}
	return records, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, row_count, created_at FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Rows, &sn.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: iterate snapshots")
}

func (s *PostgresStore) UpsertCentroids(ctx context.Context, centroids []dataset.Centroid) (int, error) {
	var n int
	now := time.Now().UTC()
	for _, c := range centroids {
		if c.MunicipalityID == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO municipality_centroids (id_municip, nome, lat, lon, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id_municip) DO UPDATE SET
				nome = EXCLUDED.nome,
				lat = EXCLUDED.lat,
				lon = EXCLUDED.lon,
				updated_at = EXCLUDED.updated_at`,
			c.MunicipalityID, c.Name, c.Lat, c.Lon, now,
		); err != nil {
			return n, eris.Wrapf(err, "postgres: upsert centroid %s", c.MunicipalityID)
		}
		n++
	}
	return n, nil
}

func (s *PostgresStore) Centroids(ctx context.Context) (map[string]dataset.Centroid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id_municip, COALESCE(nome, ''), lat, lon FROM municipality_centroids`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query centroids")
	}
	defer rows.Close()

	centroids := make(map[string]dataset.Centroid)
	for rows.Next() {
		var c dataset.Centroid
		if err := rows.Scan(&c.MunicipalityID, &c.Name, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan centroid")
		}
		centroids[c.MunicipalityID] = c
	}
	return centroids, eris.Wrap(rows.Err(), "postgres: iterate centroids")
}
