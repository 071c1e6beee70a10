package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/leishdash/internal/dataset"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM snapshots WHERE name = \$1`).
		WithArgs("casos").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(pgxmock.AnyArg(), "casos", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"case_records"}, caseRecordColumns).WillReturnResult(1)

	snap, err := s.SaveSnapshot(context.Background(), "casos", []dataset.CaseRecord{
		{MunicipalityID: "3550308", State: "SP"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT r.id_municip`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id_municip", "uf", "dt_notific", "nome_municipio",
			"lat_locali", "long_local", "precipitacao_mensal", "saneamento_basico", "idh", "renda_media",
		}))

	_, err := s.LoadSnapshot(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, name, row_count, created_at FROM snapshots`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "row_count", "created_at"}).
			AddRow("id-1", "casos-2024", 100, created))

	snaps, err := s.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "casos-2024", snaps[0].Name)
	assert.Equal(t, 100, snaps[0].Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCentroids(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO municipality_centroids`).
		WithArgs("3550308", "Sao Paulo", -23.55, -46.63, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.UpsertCentroids(context.Background(), []dataset.Centroid{
		{MunicipalityID: "3550308", Name: "Sao Paulo", Lat: -23.55, Lon: -46.63},
		{MunicipalityID: ""}, // skipped before touching the pool
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Centroids(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id_municip, COALESCE\(nome, ''\), lat, lon FROM municipality_centroids`).
		WillReturnRows(pgxmock.NewRows([]string{"id_municip", "nome", "lat", "lon"}).
			AddRow("3550308", "Sao Paulo", -23.55, -46.63))

	centroids, err := s.Centroids(context.Background())
	require.NoError(t, err)
	require.Len(t, centroids, 1)
	assert.InDelta(t, -46.63, centroids["3550308"].Lon, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
