package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/epiwatch/leishdash/internal/dataset"
	"github.com/epiwatch/leishdash/internal/store"
)

// env holds the wired dataset loader plus the store backing it, so commands
// can close the store when they finish.
type env struct {
	Loader *dataset.Loader
	Store  store.Store
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leishdash.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func csvOptions() dataset.CSVOptions {
	opts := dataset.CSVOptions{
		Delimiter: ';',
		Latin1:    cfg.Dataset.Encoding == "latin1",
	}
	if cfg.Dataset.Delimiter != "" {
		opts.Delimiter = rune(cfg.Dataset.Delimiter[0])
	}
	return opts
}

// initLoader wires the configured dataset source into a memoized loader.
// Centroid backfill always runs off the store, for either source kind.
func initLoader(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	var source dataset.Source
	switch cfg.Dataset.Source {
	case "file":
		source = &dataset.FileSource{Path: cfg.Dataset.Path, CSV: csvOptions()}
	case "store":
		if cfg.Dataset.Snapshot == "" {
			st.Close()
			return nil, eris.New("dataset snapshot name is required (LEISHDASH_DATASET_SNAPSHOT)")
		}
		source = store.Source(st, cfg.Dataset.Snapshot)
	default:
		st.Close()
		return nil, eris.Errorf("unsupported dataset source: %s", cfg.Dataset.Source)
	}

	return &env{
		Loader: dataset.NewLoader(source, dataset.WithCentroids(st)),
		Store:  st,
	}, nil
}
