// Package restapi is the C7 REST adapter: it exposes the access graph
// core (C2, generalized here to string-keyed identifiers) over HTTP,
// translating path/query/body values into Manager calls and Manager
// errors into the status codes spec §7 names.
//
// Grounded on the teacher's interfaces/http/rest/router.go: the chi
// router, the RequestID/RealIP/Recoverer/Logger/cors middleware chain and
// the health/readiness endpoints are reused directly. The teacher's v1
// legacy-redirect and per-route command/query-bus wiring have no
// counterpart here — this adapter sits directly on one Manager instead of
// a CQRS bus pair — so versionMiddleware is kept only for the
// X-API-Version response header, without the deprecation/redirect layer
// the teacher's v1 still carried.
package restapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/restapi/handlers"
	"github.com/accessgraph/engine/internal/restapi/middleware"
	"github.com/accessgraph/engine/pkg/auth"
	"github.com/accessgraph/engine/pkg/utils"
)

// Router builds the access graph engine's HTTP handler.
type Router struct {
	engine      handlers.Engine
	logger      *zap.Logger
	jwtSecret   []byte
	corsOrigins []string
	limiter     auth.RateLimiter
}

// New returns a Router over engine. jwtSecret authenticates every
// /api/v1 request; pass nil to disable authentication (e.g. in tests).
// limiter may be nil, in which case every caller shares a process-local
// token-bucket limiter keyed on its JWT subject (or remote address,
// pre-authentication); pass a distributed limiter when running more than
// one node replica behind the same traffic.
func New(engine handlers.Engine, logger *zap.Logger, jwtSecret []byte, corsOrigins []string, limiter auth.RateLimiter) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = auth.NewTokenBucketLimiter(100, 100*time.Millisecond)
	}
	return &Router{
		engine:      engine,
		logger:      logger,
		jwtSecret:   jwtSecret,
		corsOrigins: corsOrigins,
		limiter:     limiter,
	}
}

// Setup assembles the middleware chain and route table.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(rt.logger))
	r.Use(versionMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", rt.healthCheck)
	r.Get("/ready", rt.readinessCheck)

	primary := handlers.NewPrimaryHandler(rt.engine, rt.logger)
	mapping := handlers.NewMappingHandler(rt.engine, rt.logger)
	query := handlers.NewQueryHandler(rt.engine, rt.logger)

	r.Route("/api/v1", func(r chi.Router) {
		if rt.jwtSecret != nil {
			r.Use(middleware.Authenticate(rt.jwtSecret))
		}
		r.Use(middleware.RateLimit(rt.limiter))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", primary.ListUsers)
			r.Route("/{user}", func(r chi.Router) {
				r.Post("/", primary.AddUser)
				r.Delete("/", primary.RemoveUser)
				r.Get("/", primary.GetUser)

				r.Route("/groups", func(r chi.Router) {
					r.Get("/", query.GetUserGroups)
					r.Post("/{group}", mapping.AddUserToGroup)
					r.Delete("/{group}", mapping.RemoveUserToGroup)
				})
				r.Route("/components/{component}/access/{access}", func(r chi.Router) {
					r.Post("/", mapping.AddUserToComponent)
					r.Delete("/", mapping.RemoveUserToComponent)
				})
				r.Get("/components", query.GetUserComponents)
				r.Get("/accessible-components", query.GetAccessibleComponentsForUser)
				r.Get("/accessible-entities", query.GetAccessibleEntitiesForUser)
				r.Get("/entities", query.GetUserEntities)
				r.Route("/entity-types/{entityType}", func(r chi.Router) {
					r.Get("/entities", query.GetUserEntitiesForType)
					r.Route("/entities/{entity}", func(r chi.Router) {
						r.Post("/", mapping.AddUserToEntity)
						r.Delete("/", mapping.RemoveUserToEntity)
					})
				})
				r.Route("/access", func(r chi.Router) {
					r.Get("/components/{component}/access/{access}", query.HasAccessToComponent)
					r.Get("/entity-types/{entityType}/entities/{entity}", query.HasAccessToEntity)
				})
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", primary.ListGroups)
			r.Route("/{group}", func(r chi.Router) {
				r.Post("/", primary.AddGroup)
				r.Delete("/", primary.RemoveGroup)
				r.Get("/", primary.GetGroup)

				r.Get("/users", query.GetGroupUsers)
				r.Route("/groups", func(r chi.Router) {
					r.Get("/", query.GetGroupGroups)
					r.Get("/reverse", query.GetGroupParents)
					r.Post("/{to}", mapping.AddGroupToGroup)
					r.Delete("/{to}", mapping.RemoveGroupToGroup)
				})
				r.Route("/components/{component}/access/{access}", func(r chi.Router) {
					r.Post("/", mapping.AddGroupToComponent)
					r.Delete("/", mapping.RemoveGroupToComponent)
				})
				r.Get("/components", query.GetGroupComponents)
				r.Get("/accessible-components", query.GetAccessibleComponentsForGroup)
				r.Get("/accessible-entities", query.GetAccessibleEntitiesForGroup)
				r.Get("/entities", query.GetGroupEntities)
				r.Route("/entity-types/{entityType}", func(r chi.Router) {
					r.Get("/entities", query.GetGroupEntitiesForType)
					r.Route("/entities/{entity}", func(r chi.Router) {
						r.Post("/", mapping.AddGroupToEntity)
						r.Delete("/", mapping.RemoveGroupToEntity)
					})
				})
			})
		})

		r.Route("/entity-types", func(r chi.Router) {
			r.Get("/", primary.ListEntityTypes)
			r.Route("/{entityType}", func(r chi.Router) {
				r.Post("/", primary.AddEntityType)
				r.Delete("/", primary.RemoveEntityType)
				r.Get("/", primary.GetEntityType)
				r.Route("/entities", func(r chi.Router) {
					r.Get("/", primary.ListEntities)
					r.Route("/{entity}", func(r chi.Router) {
						r.Post("/", primary.AddEntity)
						r.Delete("/", primary.RemoveEntity)
						r.Get("/", primary.GetEntity)
					})
				})
			})
		})
	})

	return r
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","time":"` + utils.NowRFC3339() + `"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// versionMiddleware stamps every response with the adapter's API version,
// a weaker descendant of the teacher's versionMiddleware now that there is
// only one version to stamp.
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		next.ServeHTTP(w, r)
	})
}
