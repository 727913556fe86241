package coordinator

import (
	"context"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// LiveCoordinator adapts a RoutingTable whose bindings can change mid-flight
// (a C8 rebalance in progress) into the same query surface Coordinator
// exposes. Each call takes a fresh Snapshot, builds a short-lived
// Coordinator from it, and rejects the call outright if routing is off or
// the relevant hash range is paused — the in-flight query neither blocks
// the rebalance nor sees a half-migrated range.
type LiveCoordinator struct {
	table   *RoutingTable
	metrics Metrics
}

// NewLiveCoordinator returns a LiveCoordinator over table.
func NewLiveCoordinator(table *RoutingTable, metrics Metrics) *LiveCoordinator {
	return &LiveCoordinator{table: table, metrics: metrics}
}

func (lc *LiveCoordinator) checkRouting(ctx context.Context) error {
	on, err := lc.table.RoutingOn(ctx)
	if err != nil {
		return err
	}
	if !on {
		return accesserrors.Unavailable("routing is disabled")
	}
	return nil
}

func (lc *LiveCoordinator) checkRange(id string) error {
	h := hashOf(id)
	lc.table.mu.RLock()
	defer lc.table.mu.RUnlock()
	for _, r := range lc.table.paused {
		if r.contains(h) {
			return accesserrors.Unavailable("hash range [%d,%d] is paused for rebalancing", r.Lo, r.Hi)
		}
	}
	return nil
}

func (lc *LiveCoordinator) snapshot() *Coordinator {
	userShards, groupShards := lc.table.Snapshot()
	return New(userShards, groupShards, lc.metrics)
}

// Users reports every user known to any user shard.
func (lc *LiveCoordinator) Users(ctx context.Context) ([]string, error) {
	if err := lc.checkRouting(ctx); err != nil {
		return nil, err
	}
	return lc.snapshot().Users(ctx)
}

// Groups reports every group known to any group shard.
func (lc *LiveCoordinator) Groups(ctx context.Context) ([]string, error) {
	if err := lc.checkRouting(ctx); err != nil {
		return nil, err
	}
	return lc.snapshot().Groups(ctx)
}

// ContainsUser routes to the single owning shard, rejecting the call if
// that user's hash range is paused.
func (lc *LiveCoordinator) ContainsUser(ctx context.Context, user string) (bool, error) {
	if err := lc.checkRouting(ctx); err != nil {
		return false, err
	}
	if err := lc.checkRange(user); err != nil {
		return false, err
	}
	return lc.snapshot().ContainsUser(ctx, user)
}

// ContainsGroup routes to the single owning shard, rejecting the call if
// that group's hash range is paused.
func (lc *LiveCoordinator) ContainsGroup(ctx context.Context, group string) (bool, error) {
	if err := lc.checkRouting(ctx); err != nil {
		return false, err
	}
	if err := lc.checkRange(group); err != nil {
		return false, err
	}
	return lc.snapshot().ContainsGroup(ctx, group)
}

// HasAccessToApplicationComponent runs the two-phase dispatch against a
// fresh shard snapshot, rejecting the call if the user's own hash range is
// paused.
func (lc *LiveCoordinator) HasAccessToApplicationComponent(ctx context.Context, user, component, access string) (bool, error) {
	if err := lc.checkRouting(ctx); err != nil {
		return false, err
	}
	if err := lc.checkRange(user); err != nil {
		return false, err
	}
	return lc.snapshot().HasAccessToApplicationComponent(ctx, user, component, access)
}
