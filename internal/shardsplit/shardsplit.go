// Package shardsplit implements the Shard Splitter/Merger (C8): an
// online, lock-free-to-the-core rebalance of a hash range from one source
// shard to one destination shard. Each Plan moves a single [lo, hi] range;
// splitting a range across two destinations, or merging two source ranges,
// is not done within one Plan.
//
// Grounded on the teacher's application/sagas/saga.go Saga: the
// sequential-phase, fail-forward-into-compensation shape (advance through
// named steps, and on failure run a rollback path instead of leaving
// state half-migrated) is reused directly — ABORT here plays the role
// Saga.compensate plays there — generalized from a generic step list with
// per-step retry to the fixed six-phase IDLE/DRAIN/PAUSE/FLUSH/HANDOVER/
// RESUME state machine spec §4.8 names, since C8's phases are not
// interchangeable steps but a specific sequence with its own named
// contracts (drain-until-persister-says-no-more, poll-in-progress-count-
// with-a-fixed-retry-budget) that a generic step list would obscure.
package shardsplit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// State names one phase of the split/merge state machine.
type State string

const (
	StateIdle     State = "IDLE"
	StateDrain    State = "DRAIN"
	StatePause    State = "PAUSE"
	StateFlush    State = "FLUSH"
	StateHandover State = "HANDOVER"
	StateResume   State = "RESUME"
	StateAbort    State = "ABORT"
	StateDone     State = "DONE"
)

// EventRecord is the minimal shape the drain phase copies between
// persisters — just enough to identify and hand off one event; the
// persister's own storage format stays behind EventPersister's interface.
type EventRecord struct {
	EventID string
	TxTime  time.Time
}

// SourcePersister is the subset of persist.EventPersister capability C8
// needs from the shard being drained: a source is constructed already
// scoped to one Plan's [lo, hi] key range, so walking it forward with
// GetNextEventAfter visits exactly the events that must move.
type SourcePersister interface {
	// GetNextEventAfter returns the event immediately following eventID
	// within this source's range, or ok=false once the range is
	// exhausted. A non-nil error is always wrapped by the caller as
	// NextEventRetrievalFailed.
	GetNextEventAfter(ctx context.Context, eventID string) (next EventRecord, ok bool, err error)
	// CopyEvent copies the single event identified by eventID into dst.
	CopyEvent(ctx context.Context, dst DestinationPersister, eventID string) error
}

// DestinationPersister is the write side of a drain/handover copy; it is
// deliberately a separate interface from SourcePersister since a
// destination never needs GetNextEventAfter during a split.
type DestinationPersister interface {
	// Rollback discards everything copied into this destination so far,
	// used on ABORT.
	Rollback(ctx context.Context) error
}

// Writer is the shard's write-path admin surface: pausing/resuming new
// writes for a range, and flushing/counting in-flight buffered events.
type Writer interface {
	PauseWrites(ctx context.Context, lo, hi uint64) error
	ResumeWrites(ctx context.Context, lo, hi uint64) error
	// FlushEventBuffers flushes in-memory event buffers; failures are
	// wrapped by the caller as FlushFailed.
	FlushEventBuffers(ctx context.Context) error
	// InProgressCount reports how many mutations are still mid-flight for
	// the range being migrated.
	InProgressCount(ctx context.Context, lo, hi uint64) (int, error)
}

// Router is the routing-table mutator; PauseOperations/ResumeOperations
// and the RoutingOn switch are spec §4.8's named router primitives, and
// the splitter is their only legitimate caller.
type Router interface {
	PauseOperations(ctx context.Context, lo, hi uint64) error
	ResumeOperations(ctx context.Context, lo, hi uint64) error
	SetRoutingOn(ctx context.Context, on bool) error
	RoutingOn(ctx context.Context) (bool, error)
	// Handover atomically repoints reads/writes for [lo, hi] at
	// destinationShardID.
	Handover(ctx context.Context, lo, hi uint64, destinationShardID string) error
}

// RetryBudget bounds the FLUSH phase's "events in progress" poll: up to N
// retries spaced T apart before DrainTimeout.
type RetryBudget struct {
	Retries  int
	Interval time.Duration
}

// Plan describes one rebalance operation: move [lo, hi] out of source,
// into destination, which will be routed as destinationShardID once the
// handover completes.
type Plan struct {
	Lo, Hi             uint64
	DestinationShardID string
	Source             SourcePersister
	Destination        DestinationPersister
	Writer             Writer
	Router             Router
	Retry              RetryBudget
}

// Splitter runs Plans through the IDLE→DRAIN→PAUSE→FLUSH→HANDOVER→RESUME
// state machine, logging each phase transition the way the teacher's Saga
// logs each step.
type Splitter struct {
	logger *zap.Logger
}

// New returns a Splitter. logger may be nil, in which case a no-op logger
// is used.
func New(logger *zap.Logger) *Splitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{logger: logger}
}

// Result reports the terminal state a Run landed in and, for ABORT, why.
type Result struct {
	State State
	Err   error
}

// Run executes one rebalance plan end to end. A failure in DRAIN, PAUSE,
// or FLUSH transitions to ABORT, which restores routing and rolls back
// the destination; a failure during HANDOVER or RESUME is returned
// without rollback, since the handover step has already made partial
// state externally visible and must be resolved by an operator, not
// silently undone.
func (s *Splitter) Run(ctx context.Context, p Plan) Result {
	id := zap.String("destination_shard", p.DestinationShardID)
	s.logger.Info("shard rebalance starting", id, zap.Uint64("lo", p.Lo), zap.Uint64("hi", p.Hi))

	cursor, err := s.drain(ctx, p)
	if err != nil {
		return s.abort(ctx, p, err)
	}
	if err := s.pause(ctx, p); err != nil {
		return s.abort(ctx, p, err)
	}
	if err := s.flush(ctx, p); err != nil {
		return s.abort(ctx, p, err)
	}
	if err := s.handover(ctx, p, cursor); err != nil {
		s.logger.Error("handover failed after point of no return", id, zap.Error(err))
		return Result{State: StateHandover, Err: err}
	}
	if err := s.resume(ctx, p); err != nil {
		s.logger.Error("resume failed after handover committed", id, zap.Error(err))
		return Result{State: StateResume, Err: err}
	}

	s.logger.Info("shard rebalance complete", id)
	return Result{State: StateDone}
}

// drain walks the source's event log one event at a time from the empty
// cursor, copying each event across as it's found, until GetNextEventAfter
// says there's nothing left. It returns the last event ID it copied so
// handover can resume the walk from there instead of starting over.
func (s *Splitter) drain(ctx context.Context, p Plan) (string, error) {
	s.logger.Debug("entering DRAIN", zap.Uint64("lo", p.Lo), zap.Uint64("hi", p.Hi))
	return s.walkAndCopy(ctx, p, "")
}

func (s *Splitter) pause(ctx context.Context, p Plan) error {
	s.logger.Debug("entering PAUSE")
	if err := p.Router.PauseOperations(ctx, p.Lo, p.Hi); err != nil {
		return err
	}
	return p.Writer.PauseWrites(ctx, p.Lo, p.Hi)
}

// flush asks the writer to flush its in-memory buffers, then polls the
// in-progress count down to zero with the plan's fixed retry budget,
// failing with DrainTimeout on exhaustion.
func (s *Splitter) flush(ctx context.Context, p Plan) error {
	s.logger.Debug("entering FLUSH")
	if err := p.Writer.FlushEventBuffers(ctx); err != nil {
		return accesserrors.FlushFailed(err)
	}

	retries := p.Retry.Retries
	if retries <= 0 {
		retries = 1
	}

	var remaining int
	for attempt := 0; attempt < retries; attempt++ {
		n, err := p.Writer.InProgressCount(ctx, p.Lo, p.Hi)
		if err != nil {
			return accesserrors.FlushFailed(err)
		}
		remaining = n
		if remaining == 0 {
			return nil
		}
		if attempt < retries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Retry.Interval):
			}
		}
	}
	return accesserrors.DrainTimeout(remaining, retries, p.Retry.Interval.Milliseconds())
}

// handover resumes the event walk from where drain left off — catching
// whatever landed between drain's last check and writes pausing — then
// atomically repoints the router.
func (s *Splitter) handover(ctx context.Context, p Plan, cursor string) error {
	s.logger.Debug("entering HANDOVER")
	if _, err := s.walkAndCopy(ctx, p, cursor); err != nil {
		return err
	}
	return p.Router.Handover(ctx, p.Lo, p.Hi, p.DestinationShardID)
}

// walkAndCopy advances the source's cursor from after, copying each event
// it visits, until GetNextEventAfter reports the range is exhausted. It
// returns the last event ID copied.
func (s *Splitter) walkAndCopy(ctx context.Context, p Plan, after string) (string, error) {
	cursor := after
	for {
		next, ok, err := p.Source.GetNextEventAfter(ctx, cursor)
		if err != nil {
			return cursor, accesserrors.NextEventRetrievalFailed(cursor, err)
		}
		if !ok {
			return cursor, nil
		}
		if err := p.Source.CopyEvent(ctx, p.Destination, next.EventID); err != nil {
			return cursor, accesserrors.NextEventRetrievalFailed(next.EventID, err)
		}
		cursor = next.EventID
	}
}

func (s *Splitter) resume(ctx context.Context, p Plan) error {
	s.logger.Debug("entering RESUME")
	if err := p.Router.ResumeOperations(ctx, p.Lo, p.Hi); err != nil {
		return err
	}
	return p.Writer.ResumeWrites(ctx, p.Lo, p.Hi)
}

// abort restores routing/writes and rolls back the destination, mirroring
// Saga.compensate's "undo what committed so far, keep going even if one
// undo step fails" policy.
func (s *Splitter) abort(ctx context.Context, p Plan, cause error) Result {
	s.logger.Warn("aborting shard rebalance", zap.Error(cause))

	if err := p.Router.ResumeOperations(ctx, p.Lo, p.Hi); err != nil {
		s.logger.Error("abort: failed to restore router operations", zap.Error(err))
	}
	if err := p.Writer.ResumeWrites(ctx, p.Lo, p.Hi); err != nil {
		s.logger.Error("abort: failed to resume writer", zap.Error(err))
	}
	if err := p.Destination.Rollback(ctx); err != nil {
		s.logger.Error("abort: failed to roll back destination", zap.Error(err))
	}

	return Result{State: StateAbort, Err: cause}
}
