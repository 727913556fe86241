// Package adminapi exposes the C8 router-control surface — Pause/Resume
// Operations and the RoutingOn boolean setter — over its own small HTTP
// server, deliberately built on gorilla/mux rather than the chi query
// surface internal/restapi uses. This mirrors the teacher's own split
// between a chi-based API router (interfaces/http/rest) and a
// gorilla/mux-based admin/ws command surface: the operator console that
// drives a shard split/merge is a different trust boundary from the
// public query API and gets a different, deliberately smaller router.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/shardsplit"
)

// Router serves the control surface for one shardsplit.Router target —
// typically the coordinator's own routing table for a single shard range.
type Router struct {
	target shardsplit.Router
	logger *zap.Logger
}

// New returns a Router driving target.
func New(target shardsplit.Router, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{target: target, logger: logger}
}

// Setup assembles the gorilla/mux route table.
func (rt *Router) Setup() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/admin/operations/pause", rt.pauseOperations).Methods(http.MethodPost)
	r.HandleFunc("/admin/operations/resume", rt.resumeOperations).Methods(http.MethodPost)
	r.HandleFunc("/admin/routing", rt.getRouting).Methods(http.MethodGet)
	r.HandleFunc("/admin/routing", rt.setRouting).Methods(http.MethodPut)
	return r
}

type rangeRequest struct {
	Lo uint64 `json:"lo"`
	Hi uint64 `json:"hi"`
}

func (rt *Router) pauseOperations(w http.ResponseWriter, r *http.Request) {
	rangeReq, ok := rt.decodeRange(w, r)
	if !ok {
		return
	}
	if err := rt.target.PauseOperations(r.Context(), rangeReq.Lo, rangeReq.Hi); err != nil {
		rt.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) resumeOperations(w http.ResponseWriter, r *http.Request) {
	rangeReq, ok := rt.decodeRange(w, r)
	if !ok {
		return
	}
	if err := rt.target.ResumeOperations(r.Context(), rangeReq.Lo, rangeReq.Hi); err != nil {
		rt.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getRouting(w http.ResponseWriter, r *http.Request) {
	on, err := rt.target.RoutingOn(r.Context())
	if err != nil {
		rt.fail(w, err)
		return
	}
	rt.writeBool(w, on)
}

func (rt *Router) setRouting(w http.ResponseWriter, r *http.Request) {
	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if err != nil {
		http.Error(w, "on must be true or false", http.StatusBadRequest)
		return
	}
	if err := rt.target.SetRoutingOn(r.Context(), on); err != nil {
		rt.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) decodeRange(w http.ResponseWriter, r *http.Request) (rangeRequest, bool) {
	var rangeReq rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&rangeReq); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return rangeRequest{}, false
	}
	return rangeReq, true
}

func (rt *Router) writeBool(w http.ResponseWriter, v bool) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (rt *Router) fail(w http.ResponseWriter, err error) {
	rt.logger.Error("admin operation failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
