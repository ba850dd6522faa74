package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/executor"
	"github.com/sells-group/visibility-cli/internal/extract"
	"github.com/sells-group/visibility-cli/internal/pipeline"
	"github.com/sells-group/visibility-cli/internal/provider"
	"github.com/sells-group/visibility-cli/internal/store"
)

// env bundles the wired components a command needs to run the pipeline.
type env struct {
	Store    store.Store
	Catalog  *extract.Catalog
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "visibility.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadCatalog merges configured entity names with rows from the store's
// entities table. Config seeds, store extends; duplicates collapse in the
// catalog itself.
func loadCatalog(ctx context.Context, st store.Store) (*extract.Catalog, error) {
	names := append([]string{}, cfg.Catalog.Entities...)

	stored, err := st.ListEntities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load entity catalog")
	}
	names = append(names, stored...)

	catalog := extract.NewCatalog(names)
	zap.L().Info("entity catalog loaded",
		zap.Int("configured", len(cfg.Catalog.Entities)),
		zap.Int("stored", len(stored)),
		zap.Int("distinct", catalog.Len()),
	)
	return catalog, nil
}

// initPipeline wires the full stack: store, catalog, provider registry,
// executor, and cost calculator.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog, err := loadCatalog(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	registry := provider.NewRegistry(cfg)
	exec := executor.New(registry, time.Duration(cfg.Executor.CallTimeoutSecs)*time.Second)
	calc := cost.NewCalculator(cfg.Pricing)

	return &env{
		Store:    st,
		Catalog:  catalog,
		Pipeline: pipeline.New(exec, catalog, st, calc),
	}, nil
}
