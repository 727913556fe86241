package coordinator

import (
	"context"
	"sync"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// RoutingTable is the coordinator's mutable view of which shard owns which
// hash range. It is the concrete shardsplit.Router the C8 Splitter (and,
// through internal/adminapi, an operator) drives during a rebalance: a
// Coordinator itself holds an immutable snapshot for the lifetime of one
// query, but the table underneath it can be paused, repointed and resumed
// mid-flight without the coordinator process restarting.
type RoutingTable struct {
	mu sync.RWMutex

	userShards  []ShardBinding
	groupShards []ShardBinding

	paused    []HashRange
	routingOn bool
}

// NewRoutingTable returns a RoutingTable seeded with the given bindings,
// with routing enabled.
func NewRoutingTable(userShards, groupShards []ShardBinding) *RoutingTable {
	return &RoutingTable{
		userShards:  append([]ShardBinding(nil), userShards...),
		groupShards: append([]ShardBinding(nil), groupShards...),
		routingOn:   true,
	}
}

// Snapshot returns the current user and group shard bindings, safe to hand
// to coordinator.New for one query's worth of fan-out.
func (t *RoutingTable) Snapshot() (userShards, groupShards []ShardBinding) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]ShardBinding(nil), t.userShards...), append([]ShardBinding(nil), t.groupShards...)
}

func (t *RoutingTable) isPaused(lo, hi uint64) bool {
	for _, r := range t.paused {
		if r.Lo == lo && r.Hi == hi {
			return true
		}
	}
	return false
}

// PauseOperations marks [lo, hi] as paused; LiveCoordinator rejects queries
// routed into a paused range until ResumeOperations lifts it.
func (t *RoutingTable) PauseOperations(_ context.Context, lo, hi uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isPaused(lo, hi) {
		t.paused = append(t.paused, HashRange{Lo: lo, Hi: hi})
	}
	return nil
}

// ResumeOperations lifts a pause previously set by PauseOperations.
func (t *RoutingTable) ResumeOperations(_ context.Context, lo, hi uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.paused[:0]
	for _, r := range t.paused {
		if r.Lo != lo || r.Hi != hi {
			out = append(out, r)
		}
	}
	t.paused = out
	return nil
}

// SetRoutingOn flips the table's global routing switch; LiveCoordinator
// rejects every query while it is off instead of fanning out to shards
// that may be mid-rebalance.
func (t *RoutingTable) SetRoutingOn(_ context.Context, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routingOn = on
	return nil
}

// RoutingOn reports the table's global routing switch.
func (t *RoutingTable) RoutingOn(context.Context) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.routingOn, nil
}

// Handover atomically repoints [lo, hi] at destinationShardID: every
// binding whose range exactly matches is reassigned, and the caller is
// expected to have already registered destinationShardID's client via
// RegisterShard before calling this.
func (t *RoutingTable) Handover(_ context.Context, lo, hi uint64, destinationShardID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dst, err := shardByID(append(t.userShards, t.groupShards...), destinationShardID)
	if err != nil {
		return accesserrors.NotFound("handover destination %q is not a registered shard", destinationShardID)
	}

	repoint := func(shards []ShardBinding) []ShardBinding {
		for i := range shards {
			if shards[i].Range.Lo == lo && shards[i].Range.Hi == hi {
				shards[i] = ShardBinding{ID: dst.ID, Range: HashRange{Lo: lo, Hi: hi}, Client: dst.Client}
			}
		}
		return shards
	}
	t.userShards = repoint(t.userShards)
	t.groupShards = repoint(t.groupShards)
	return nil
}

// RegisterShard adds a new shard binding to the given shard group ("user"
// or "group"), ahead of a Handover that will hand it live traffic.
func (t *RoutingTable) RegisterShard(group string, binding ShardBinding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch group {
	case "user":
		t.userShards = append(t.userShards, binding)
	case "group":
		t.groupShards = append(t.groupShards, binding)
	}
}
