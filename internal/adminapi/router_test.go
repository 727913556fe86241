package adminapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	paused    []uint64
	resumed   []uint64
	routingOn bool
	err       error
}

func (f *fakeRouter) PauseOperations(ctx context.Context, lo, hi uint64) error {
	f.paused = []uint64{lo, hi}
	return f.err
}
func (f *fakeRouter) ResumeOperations(ctx context.Context, lo, hi uint64) error {
	f.resumed = []uint64{lo, hi}
	return f.err
}
func (f *fakeRouter) SetRoutingOn(ctx context.Context, on bool) error {
	f.routingOn = on
	return f.err
}
func (f *fakeRouter) RoutingOn(ctx context.Context) (bool, error) { return f.routingOn, f.err }
func (f *fakeRouter) Handover(ctx context.Context, lo, hi uint64, destinationShardID string) error {
	return f.err
}

func TestPauseOperationsWritesRangeToTarget(t *testing.T) {
	target := &fakeRouter{}
	rt := New(target, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/operations/pause", bytes.NewBufferString(`{"lo":0,"hi":100}`))
	w := httptest.NewRecorder()

	rt.Setup().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uint64{0, 100}, target.paused)
}

func TestPauseOperationsRejectsMalformedBody(t *testing.T) {
	rt := New(&fakeRouter{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/operations/pause", bytes.NewBufferString(`not json`))
	w := httptest.NewRecorder()

	rt.Setup().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoutingReturnsCurrentState(t *testing.T) {
	target := &fakeRouter{routingOn: true}
	rt := New(target, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/routing", nil)
	w := httptest.NewRecorder()

	rt.Setup().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true\n", w.Body.String())
}

func TestSetRoutingUpdatesTarget(t *testing.T) {
	target := &fakeRouter{}
	rt := New(target, nil)
	req := httptest.NewRequest(http.MethodPut, "/admin/routing?on=false", nil)
	w := httptest.NewRecorder()
	target.routingOn = true

	rt.Setup().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, target.routingOn)
}

func TestSetRoutingRejectsInvalidBoolean(t *testing.T) {
	rt := New(&fakeRouter{}, nil)
	req := httptest.NewRequest(http.MethodPut, "/admin/routing?on=maybe", nil)
	w := httptest.NewRecorder()

	rt.Setup().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
