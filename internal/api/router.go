package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/api/handler"
	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/importer"
	"github.com/stockline/stockline/internal/metrics"
	"github.com/stockline/stockline/internal/tenant"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger       handler.DBPinger
	Version        string
	OpenAPISpec    []byte
	Authenticator  middleware.Authenticator
	Tenants        tenant.Repository
	Assignments    tenant.AssignmentRepository
	Provisioner    handler.Provisioner
	CatalogStores  handler.CatalogStores
	Resolvers      importer.Resolvers
	Sales          handler.SalesRepository
	Metrics        *metrics.Metrics
	MaxImportBytes int64
}

// route is one authenticated endpoint. level is enforced by
// middleware.RequireAccess; guard, when set, runs after it.
type route struct {
	method  string
	pattern string
	level   access.Level
	guard   func(http.Handler) http.Handler
	handler http.HandlerFunc
}

func routes(deps RouterDeps) []route {
	var recorder handler.ImportRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	tenants := handler.NewTenantHandler(deps.Tenants, deps.Provisioner)
	shops := handler.NewShopHandler(deps.Tenants)
	assignments := handler.NewAssignmentHandler(deps.Assignments)
	catalog := handler.NewCatalogHandler(deps.CatalogStores, deps.Resolvers, recorder, deps.MaxImportBytes)
	sales := handler.NewSalesHandler(deps.Sales, deps.Resolvers, recorder, deps.MaxImportBytes)

	systemAdmin := middleware.RequireSystemAdmin()
	tenantAdmin := middleware.RequireTenantAdmin()

	return []route{
		{http.MethodGet, "/me", access.LevelNone, nil, handler.Me},

		{http.MethodGet, "/tenants", access.LevelNone, nil, tenants.List},
		{http.MethodPost, "/tenants", access.LevelNone, systemAdmin, tenants.Create},

		{http.MethodGet, "/shops", access.LevelNone, nil, shops.List},
		{http.MethodPost, "/shops", access.LevelNone, tenantAdmin, shops.Create},

		{http.MethodGet, "/role-assignments", access.LevelNone, tenantAdmin, assignments.List},
		{http.MethodPost, "/role-assignments", access.LevelNone, nil, assignments.Create},
		{http.MethodDelete, "/role-assignments/{id}", access.LevelNone, tenantAdmin, assignments.Delete},

		{http.MethodGet, "/catalog/{entity}", access.LevelRead, nil, catalog.List},
		{http.MethodPost, "/catalog/{entity}", access.LevelWrite, nil, catalog.Create},
		{http.MethodGet, "/catalog/{entity}/{id}", access.LevelRead, nil, catalog.GetByID},
		{http.MethodPatch, "/catalog/{entity}/{id}", access.LevelWrite, nil, catalog.Update},
		{http.MethodDelete, "/catalog/{entity}/{id}", access.LevelWrite, nil, catalog.Delete},
		{http.MethodPost, "/catalog/{entity}/bulk", access.LevelWrite, nil, catalog.Bulk},
		{http.MethodPost, "/catalog/{entity}/find-or-create", access.LevelWrite, nil, catalog.FindOrCreate},
		{http.MethodPost, "/catalog/{entity}/import", access.LevelWrite, nil, catalog.Import},

		{http.MethodGet, "/sales-history", access.LevelRead, nil, sales.List},
		{http.MethodPost, "/sales-history/import", access.LevelWrite, nil, sales.Import},
	}
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/health", handler.NewHealthHandler(deps.DBPinger, deps.Version).ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		r.Get("/openapi.json", handler.NewOpenAPIHandler(deps.OpenAPISpec).ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.Authenticator))

		for _, rt := range routes(deps) {
			chain := []func(http.Handler) http.Handler{middleware.RequireAccess(rt.level, deps.Tenants)}
			if rt.guard != nil {
				chain = append(chain, rt.guard)
			}
			r.With(chain...).Method(rt.method, rt.pattern, rt.handler)
		}
	})

	return r
}
