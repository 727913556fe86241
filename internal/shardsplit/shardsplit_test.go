package shardsplit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// fakeSource serves a fixed queue of events per cursor walk: calling
// GetNextEventAfter(cursor) returns the event at index len(served) in
// sequence, ignoring the cursor value itself (as the real range-scoped
// persister would, since it already knows its own position).
type fakeSource struct {
	queue      []string // event IDs in walk order
	served     int
	getCalls   int
	copyCalls  int
	failGetAt  int // GetNextEventAfter call index (1-based) that errors, 0 = never
	failCopyAt int // CopyEvent call index (1-based) that errors, 0 = never
}

func (f *fakeSource) GetNextEventAfter(ctx context.Context, eventID string) (EventRecord, bool, error) {
	f.getCalls++
	if f.failGetAt != 0 && f.getCalls == f.failGetAt {
		return EventRecord{}, false, errors.New("lookup failed")
	}
	if f.served >= len(f.queue) {
		return EventRecord{}, false, nil
	}
	id := f.queue[f.served]
	f.served++
	return EventRecord{EventID: id}, true, nil
}

func (f *fakeSource) CopyEvent(ctx context.Context, dst DestinationPersister, eventID string) error {
	f.copyCalls++
	if f.failCopyAt != 0 && f.copyCalls == f.failCopyAt {
		return errors.New("copy failed")
	}
	return nil
}

type fakeDestination struct {
	rolledBack bool
}

func (f *fakeDestination) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeWriter struct {
	paused          bool
	flushCalled     bool
	flushErr        error
	inProgressQueue []int // values InProgressCount returns on successive calls
	inProgressErr   error
}

func (f *fakeWriter) PauseWrites(ctx context.Context, lo, hi uint64) error {
	f.paused = true
	return nil
}
func (f *fakeWriter) ResumeWrites(ctx context.Context, lo, hi uint64) error {
	f.paused = false
	return nil
}
func (f *fakeWriter) FlushEventBuffers(ctx context.Context) error {
	f.flushCalled = true
	return f.flushErr
}
func (f *fakeWriter) InProgressCount(ctx context.Context, lo, hi uint64) (int, error) {
	if f.inProgressErr != nil {
		return 0, f.inProgressErr
	}
	if len(f.inProgressQueue) == 0 {
		return 0, nil
	}
	n := f.inProgressQueue[0]
	f.inProgressQueue = f.inProgressQueue[1:]
	return n, nil
}

type fakeRouter struct {
	paused       bool
	routingOn    bool
	handedOverTo string
}

func (f *fakeRouter) PauseOperations(ctx context.Context, lo, hi uint64) error  { f.paused = true; return nil }
func (f *fakeRouter) ResumeOperations(ctx context.Context, lo, hi uint64) error { f.paused = false; return nil }
func (f *fakeRouter) SetRoutingOn(ctx context.Context, on bool) error           { f.routingOn = on; return nil }
func (f *fakeRouter) RoutingOn(ctx context.Context) (bool, error)              { return f.routingOn, nil }
func (f *fakeRouter) Handover(ctx context.Context, lo, hi uint64, destinationShardID string) error {
	f.handedOverTo = destinationShardID
	return nil
}

func basePlan() (Plan, *fakeSource, *fakeDestination, *fakeWriter, *fakeRouter) {
	src := &fakeSource{queue: []string{"evt-1", "evt-2", "evt-3"}}
	dst := &fakeDestination{}
	w := &fakeWriter{}
	r := &fakeRouter{routingOn: true}
	p := Plan{
		Lo: 0, Hi: 1 << 62,
		DestinationShardID: "shard-2",
		Source:              src,
		Destination:         dst,
		Writer:              w,
		Router:              r,
		Retry:               RetryBudget{Retries: 3, Interval: time.Millisecond},
	}
	return p, src, dst, w, r
}

func TestRunHappyPathReachesDone(t *testing.T) {
	p, _, _, w, r := basePlan()
	s := New(nil)

	res := s.Run(context.Background(), p)

	require.NoError(t, res.Err)
	assert.Equal(t, StateDone, res.State)
	assert.False(t, w.paused)
	assert.False(t, r.paused)
	assert.Equal(t, "shard-2", r.handedOverTo)
}

func TestRunAbortsOnDrainFailureAndRollsBackDestination(t *testing.T) {
	p, src, dst, _, r := basePlan()
	src.failGetAt = 1
	s := New(nil)

	res := s.Run(context.Background(), p)

	assert.Equal(t, StateAbort, res.State)
	require.Error(t, res.Err)
	assert.True(t, accesserrors.Is(res.Err, accesserrors.KindNextEventRetrievalFailed))
	assert.True(t, dst.rolledBack)
	assert.False(t, r.paused)
}

func TestRunFlushTimesOutWhenInProgressNeverReachesZero(t *testing.T) {
	p, _, dst, w, _ := basePlan()
	w.inProgressQueue = []int{2, 1, 1}
	s := New(nil)

	res := s.Run(context.Background(), p)

	assert.Equal(t, StateAbort, res.State)
	require.Error(t, res.Err)
	assert.True(t, accesserrors.Is(res.Err, accesserrors.KindDrainTimeout))
	assert.True(t, dst.rolledBack)
}

func TestRunAbortsOnFlushFailure(t *testing.T) {
	p, _, dst, w, _ := basePlan()
	w.flushErr = errors.New("buffer flush exploded")
	s := New(nil)

	res := s.Run(context.Background(), p)

	assert.Equal(t, StateAbort, res.State)
	assert.True(t, accesserrors.Is(res.Err, accesserrors.KindFlushFailed))
	assert.True(t, dst.rolledBack)
}

func TestRunHandoverFailureDoesNotRollBack(t *testing.T) {
	p, src, dst, _, _ := basePlan()
	// an empty queue lets DRAIN finish after a single GetNextEventAfter
	// call (call 1); HANDOVER resumes the walk from the same cursor and
	// makes call 2, which we fail to exercise the no-rollback path.
	src.queue = nil
	src.failGetAt = 2
	s := New(nil)

	res := s.Run(context.Background(), p)

	assert.Equal(t, StateHandover, res.State)
	require.Error(t, res.Err)
	assert.False(t, dst.rolledBack)
}
