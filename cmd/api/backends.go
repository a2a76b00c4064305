package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"volumeapi/internal/config"
	"volumeapi/internal/database"
	"volumeapi/internal/database/migration"
	"volumeapi/internal/repository"
	"volumeapi/internal/repository/boltdb"
	"volumeapi/internal/repository/postgres"
	"volumeapi/internal/search"
	"volumeapi/internal/search/bleveindex"
	pgsearch "volumeapi/internal/search/postgres"
	"volumeapi/internal/storage"
)

// backends are the store, index and blob store selected by configuration.
type backends struct {
	store   repository.VolumeRepository
	index   search.Index
	blobs   storage.Storage
	closers []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackends connects every configured backend. PostgreSQL is opened and migrated
// only when the store or the index lives there.
func openBackends(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	var db *sql.DB
	if cfg.UsesPostgres() {
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.closers = append(b.closers, db.Close)

		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			return nil, err
		}
	}

	switch cfg.Store.Driver {
	case "bolt":
		s, err := boltdb.NewVolumeBolt(cfg.Store.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		b.closers = append(b.closers, s.Close)
		b.store = s
	default:
		b.store = postgres.NewVolumePostgres(db)
	}

	switch cfg.Index.Driver {
	case "postgres":
		b.index = pgsearch.NewIndex(db)
	default:
		idx, err := bleveindex.Open(cfg.Index.BlevePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open search index: %w", err)
		}
		b.closers = append(b.closers, idx.Close)
		b.index = idx
	}

	switch cfg.Blob.Driver {
	case "fs":
		b.blobs, err = storage.NewFilesystem(cfg.Blob.Dir)
	default:
		b.blobs, err = storage.NewMinIO(ctx, cfg.MinIO)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	return b, nil
}
