package coordinator

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// Queryable is the subset of Coordinator's surface Router needs; both
// Coordinator and LiveCoordinator satisfy it, so the HTTP layer doesn't
// care whether the process behind it ever rebalances.
type Queryable interface {
	Users(ctx context.Context) ([]string, error)
	Groups(ctx context.Context) ([]string, error)
	ContainsUser(ctx context.Context, user string) (bool, error)
	ContainsGroup(ctx context.Context, group string) (bool, error)
	HasAccessToApplicationComponent(ctx context.Context, user, component, access string) (bool, error)
}

// Router exposes the Coordinator's global/fan-out queries over HTTP: the
// subset of spec §6's REST surface that only the coordinator, not a single
// shard, can answer. Mutations and single-shard-scoped queries go directly
// to the owning node's own internal/restapi instance.
type Router struct {
	coordinator Queryable
	logger      *zap.Logger
}

// NewRouter returns a Router over c.
func NewRouter(c Queryable, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{coordinator: c, logger: logger}
}

// Setup assembles the route table.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users", rt.users)
		r.Get("/groups", rt.groups)
		r.Get("/users/{user}", rt.containsUser)
		r.Get("/groups/{group}", rt.containsGroup)
		r.Get("/users/{user}/access/components/{component}/access/{access}", rt.hasAccess)
	})

	return r
}

func (rt *Router) users(w http.ResponseWriter, r *http.Request) {
	out, err := rt.coordinator.Users(r.Context())
	rt.respond(w, out, err)
}

func (rt *Router) groups(w http.ResponseWriter, r *http.Request) {
	out, err := rt.coordinator.Groups(r.Context())
	rt.respond(w, out, err)
}

func (rt *Router) containsUser(w http.ResponseWriter, r *http.Request) {
	user, err := decodeParam(r, "user")
	if err != nil {
		rt.respond(w, nil, err)
		return
	}
	out, err := rt.coordinator.ContainsUser(r.Context(), user)
	rt.respond(w, out, err)
}

func (rt *Router) containsGroup(w http.ResponseWriter, r *http.Request) {
	group, err := decodeParam(r, "group")
	if err != nil {
		rt.respond(w, nil, err)
		return
	}
	out, err := rt.coordinator.ContainsGroup(r.Context(), group)
	rt.respond(w, out, err)
}

func (rt *Router) hasAccess(w http.ResponseWriter, r *http.Request) {
	user, err := decodeParam(r, "user")
	if err != nil {
		rt.respond(w, nil, err)
		return
	}
	component, err := decodeParam(r, "component")
	if err != nil {
		rt.respond(w, nil, err)
		return
	}
	access, err := decodeParam(r, "access")
	if err != nil {
		rt.respond(w, nil, err)
		return
	}
	out, err := rt.coordinator.HasAccessToApplicationComponent(r.Context(), user, component, access)
	rt.respond(w, out, err)
}

func decodeParam(r *http.Request, name string) (string, error) {
	return url.PathUnescape(chi.URLParam(r, name))
}

func (rt *Router) respond(w http.ResponseWriter, body interface{}, err error) {
	if err != nil {
		accesserrors.WriteHTTP(w, rt.logger, err)
		return
	}
	writeJSONBody(w, body)
}
