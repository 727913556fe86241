package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accessmanager"
)

func newTestRouter() *Router {
	engine := accessmanager.NewBuilder[string, string, string, string]().Build()
	return New(engine, nil, nil, []string{"*"}, nil)
}

func TestRouterAddAndGetUserRoundTrips(t *testing.T) {
	rt := newTestRouter()
	handler := rt.Setup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/alice", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/alice", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var exists bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exists))
	assert.True(t, exists)
}

func TestRouterHasAccessReflectsGroupMembership(t *testing.T) {
	rt := newTestRouter()
	handler := rt.Setup()

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/v1/users/alice").Code)
	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/v1/groups/engineers").Code)
	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/v1/users/alice/groups/engineers").Code)
	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/v1/groups/engineers/components/billing/access/read").Code)

	w := do(http.MethodGet, "/api/v1/users/alice/access/components/billing/access/read")
	require.Equal(t, http.StatusOK, w.Code)
	var has bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &has))
	assert.True(t, has)
}

func TestRouterRejectsUnauthenticatedWhenJWTSecretSet(t *testing.T) {
	engine := accessmanager.NewBuilder[string, string, string, string]().Build()
	rt := New(engine, nil, []byte("secret"), []string{"*"}, nil)
	handler := rt.Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterHealthCheckReportsHealthy(t *testing.T) {
	rt := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	rt.Setup().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestRouterRemoveNonexistentUserReturns404(t *testing.T) {
	rt := newTestRouter()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/ghost", nil)
	w := httptest.NewRecorder()

	rt.Setup().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
