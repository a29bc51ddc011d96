// Package app wires the repositories and services both binaries run on.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stockline/stockline/internal/api"
	"github.com/stockline/stockline/internal/api/handler"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/catalog"
	"github.com/stockline/stockline/internal/config"
	"github.com/stockline/stockline/internal/database"
	"github.com/stockline/stockline/internal/importer"
	"github.com/stockline/stockline/internal/metrics"
	"github.com/stockline/stockline/internal/sales"
	"github.com/stockline/stockline/internal/store"
	"github.com/stockline/stockline/internal/tenant"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config      *config.Config
	DB          *database.DB
	Auth        *auth.Service
	Tenants     tenant.Repository
	Assignments tenant.AssignmentRepository
	Provisioner *tenant.Service
	Catalog     *catalog.Stores
	Resolvers   importer.Resolvers
	Sales       *sales.Repository
}

// New connects to the database, applies the schema when cfg.AutoMigrate is
// set and builds every repository on the shared pool.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db.Pool()); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("database schema applied")
	}

	pool := db.Pool()
	tenants := tenant.NewRepository(pool)
	assignments := tenant.NewAssignmentRepository(pool)

	authSvc := auth.NewService(
		auth.NewUserRepository(pool),
		auth.NewKeyRepository(pool),
		tenant.Roles{Tenants: tenants, Assignments: assignments},
		cfg.BcryptCost,
		cfg.APIKeyTTL,
	)

	stores, err := catalog.NewStores(pool)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building catalog stores: %w", err)
	}

	salesRepo, err := sales.NewRepository(pool)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building sales repository: %w", err)
	}

	return &App{
		Config:      cfg,
		DB:          db,
		Auth:        authSvc,
		Tenants:     tenants,
		Assignments: assignments,
		Provisioner: tenant.NewService(pool, authSvc),
		Catalog:     stores,
		Resolvers:   importer.StoreResolvers(stores),
		Sales:       salesRepo,
	}, nil
}

// Close releases the connection pool.
func (a *App) Close() {
	a.DB.Close()
}

// CatalogStore returns the store of a coded table as the handler sees it.
func (a *App) CatalogStore(table store.Table) (handler.CatalogStore, error) {
	s, err := a.Catalog.Get(table)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RouterDeps returns the HTTP dependencies backed by a.
func (a *App) RouterDeps(spec []byte, m *metrics.Metrics) api.RouterDeps {
	return api.RouterDeps{
		DBPinger:       a.DB,
		Version:        a.Config.Version,
		OpenAPISpec:    spec,
		Authenticator:  a.Auth,
		Tenants:        a.Tenants,
		Assignments:    a.Assignments,
		Provisioner:    a.Provisioner,
		CatalogStores:  a.CatalogStore,
		Resolvers:      a.Resolvers,
		Sales:          a.Sales,
		Metrics:        m,
		MaxImportBytes: a.Config.MaxImportBytes,
	}
}
