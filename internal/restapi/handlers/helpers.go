// Package handlers implements spec §6's REST surface: CRUD endpoints for
// each of the six mapping relations and the four primary-element sets,
// plus the query endpoints, over a string-keyed access graph Manager.
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/accessmanager"
	"github.com/accessgraph/engine/internal/accesserrors"
	"github.com/accessgraph/engine/pkg/utils"
)

// Engine is the string-keyed Manager every handler in this package calls
// into. The REST surface only ever deals in path/body strings, so the
// adapter fixes all four of Manager's type parameters to string.
type Engine = *accessmanager.Manager[string, string, string, string]

func decodeStruct(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return utils.ValidateStruct(dst)
}

// pathParam reads a chi URL parameter and URL-decodes it exactly once, per
// spec §6: "Identifiers appearing in URL paths must be URL-escaped; the
// server decodes once and matches the raw value."
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	return url.PathUnescape(raw)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	accesserrors.WriteHTTP(w, log, err)
}

func writeBadRequest(w http.ResponseWriter, log *zap.Logger, message string) {
	log.Warn("bad request", zap.String("message", message))
	writeJSON(w, http.StatusBadRequest, accesserrors.Response{Error: true, Kind: "BAD_REQUEST", Message: message})
}

// pairResponse is the `{item1, item2}` shape spec §6 names for list
// queries returning tuples rather than bare strings.
type pairResponse struct {
	Item1 string `json:"item1"`
	Item2 string `json:"item2"`
}

func componentAccessPairs(in []accessmanager.ComponentAccess[string, string]) []pairResponse {
	out := make([]pairResponse, 0, len(in))
	for _, ca := range in {
		out = append(out, pairResponse{Item1: ca.Component, Item2: ca.Access})
	}
	return out
}

func entityRefPairs(in []accessmanager.EntityRef) []pairResponse {
	out := make([]pairResponse, 0, len(in))
	for _, ref := range in {
		out = append(out, pairResponse{Item1: ref.Type, Item2: ref.Entity})
	}
	return out
}

func boolQueryParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}
