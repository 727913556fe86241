// Package coordinator implements the Distributed Query Coordinator (C7):
// given a query naming a user, a group set, or nothing (a global scatter),
// it routes to the owning shard(s) by hash range and merges results,
// without ever holding a core lock across the fan-out.
//
// Grounded on the teacher's pkg/observability/tracing.go Tracer —
// TraceFunction's "wrap an outbound call in an X-Ray subsegment, record
// the error if any" shape is reused verbatim around every shard RPC, since
// fan-out calls are exactly the kind of outbound boundary that package
// exists to trace. Hash-range partitioning itself has no teacher or pack
// precedent (no example repo ships a consistent-hash or range-sharding
// library), so it is built on the standard library's hash/fnv — the
// smallest hash that gives a stable, well-distributed uint64 per
// identifier without pulling in a dependency none of the examples use for
// this purpose.
package coordinator

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/accessgraph/engine/internal/accesserrors"
	"github.com/accessgraph/engine/pkg/observability"
)

// HashRange is a half-open-on-neither-end inclusive range [Lo, Hi] of the
// 64-bit identifier hash space one shard owns.
type HashRange struct {
	Lo, Hi uint64
}

func (r HashRange) contains(h uint64) bool { return h >= r.Lo && h <= r.Hi }

// hashOf computes the stable hash spec §4.7's routing rules partition by.
func hashOf(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

// ShardClient is the RPC contract the coordinator holds against one shard
// node. Identifiers cross this boundary as plain strings, the same
// flattening internal/events.Envelope and internal/persist use at their
// own wire boundaries, since a shard process need not share the
// coordinator's U/G/P/A type parameters.
type ShardClient interface {
	Users(ctx context.Context) ([]string, error)
	Groups(ctx context.Context) ([]string, error)
	ContainsUser(ctx context.Context, user string) (bool, error)
	ContainsGroup(ctx context.Context, group string) (bool, error)
	ReachableGroupsFromUser(ctx context.Context, user string) ([]string, error)
	HasUserDirectAccessToComponent(ctx context.Context, user, component, access string) (bool, error)
	HasGroupsAccessToComponent(ctx context.Context, groups []string, component, access string) (bool, error)
}

// ShardBinding pairs one shard's owned hash range with the client used to
// reach it.
type ShardBinding struct {
	ID     string
	Range  HashRange
	Client ShardClient
}

// Metrics is the C7-specific emission seam: spec §4.7 requires "number of
// groups mapped to user" and "number of group shards queried" per
// distributed query, neither of which fits metrics.Sink's relation/
// frequency vocabulary, so the coordinator gets its own small interface
// in the same spirit.
type Metrics interface {
	ObserveGroupsMappedToUser(n int)
	ObserveGroupShardsQueried(n int)
}

// NoopMetrics discards every observation; the zero value is ready to use.
type NoopMetrics struct{}

func (NoopMetrics) ObserveGroupsMappedToUser(int) {}
func (NoopMetrics) ObserveGroupShardsQueried(int) {}

// Coordinator fans queries across a user shard group and a group shard
// group. Both groups are assumed to cover their full hash range with no
// gaps; shardFor calling code before that invariant holds is the job of
// whatever assembles the ShardBinding slices (normally config, or C8
// mid-rebalance).
type Coordinator struct {
	tracer *observability.Tracer

	userShards  []ShardBinding
	groupShards []ShardBinding

	metrics Metrics
}

// New builds a Coordinator over the given shard bindings. metrics may be
// nil, in which case observations are discarded.
func New(userShards, groupShards []ShardBinding, metrics Metrics) *Coordinator {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Coordinator{
		tracer:      observability.NewTracer("coordinator"),
		userShards:  userShards,
		groupShards: groupShards,
		metrics:     metrics,
	}
}

func (c *Coordinator) trace(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.tracer.TraceFunction(ctx, name, fn)
}

// shardForUser resolves the single shard owning user's hash range.
func (c *Coordinator) shardForUser(user string) (ShardBinding, error) {
	return shardFor(c.userShards, user)
}

// shardForGroup resolves the single shard owning group's hash range.
func (c *Coordinator) shardForGroup(group string) (ShardBinding, error) {
	return shardFor(c.groupShards, group)
}

func shardFor(shards []ShardBinding, id string) (ShardBinding, error) {
	h := hashOf(id)
	for _, s := range shards {
		if s.Range.contains(h) {
			return s, nil
		}
	}
	return ShardBinding{}, accesserrors.NotFound("no shard owns hash range containing %q", id)
}

// partitionGroups buckets groups by the group shard that owns each one's
// hash range, per spec §4.7's group-set-scoped routing rule.
func partitionGroups(shards []ShardBinding, groups []string) map[string][]string {
	out := make(map[string][]string)
	for _, g := range groups {
		h := hashOf(g)
		for _, s := range shards {
			if s.Range.contains(h) {
				out[s.ID] = append(out[s.ID], g)
				break
			}
		}
	}
	return out
}

// Users scatters to every shard in the user shard group and concatenates.
func (c *Coordinator) Users(ctx context.Context) ([]string, error) {
	var out []string
	err := c.trace(ctx, "Users", func(ctx context.Context) error {
		for _, s := range c.userShards {
			users, err := s.Client.Users(ctx)
			if err != nil {
				return fmt.Errorf("shard %s: %w", s.ID, err)
			}
			out = append(out, users...)
		}
		return nil
	})
	return out, err
}

// Groups scatters to every shard in the group shard group and concatenates.
func (c *Coordinator) Groups(ctx context.Context) ([]string, error) {
	var out []string
	err := c.trace(ctx, "Groups", func(ctx context.Context) error {
		for _, s := range c.groupShards {
			groups, err := s.Client.Groups(ctx)
			if err != nil {
				return fmt.Errorf("shard %s: %w", s.ID, err)
			}
			out = append(out, groups...)
		}
		return nil
	})
	return out, err
}

// ContainsUser routes to the single owning shard.
func (c *Coordinator) ContainsUser(ctx context.Context, user string) (bool, error) {
	var found bool
	err := c.trace(ctx, "ContainsUser", func(ctx context.Context) error {
		s, err := c.shardForUser(user)
		if err != nil {
			return err
		}
		found, err = s.Client.ContainsUser(ctx, user)
		return err
	})
	return found, err
}

// ContainsGroup routes to the single owning shard.
func (c *Coordinator) ContainsGroup(ctx context.Context, group string) (bool, error) {
	var found bool
	err := c.trace(ctx, "ContainsGroup", func(ctx context.Context) error {
		s, err := c.shardForGroup(group)
		if err != nil {
			return err
		}
		found, err = s.Client.ContainsGroup(ctx, group)
		return err
	})
	return found, err
}

// HasAccessToApplicationComponent implements spec §4.7's two-phase
// transitive-query dispatch:
//  1. route to the user's shard, check direct user-to-component access;
//  2. take the reached group set, partition by hash range, fan out the
//     group-set overload to every group shard it touches;
//  3. return true iff any shard responds true.
func (c *Coordinator) HasAccessToApplicationComponent(ctx context.Context, user, component, access string) (bool, error) {
	var result bool
	err := c.trace(ctx, "HasAccessToApplicationComponent", func(ctx context.Context) error {
		userShard, err := c.shardForUser(user)
		if err != nil {
			return err
		}

		direct, err := userShard.Client.HasUserDirectAccessToComponent(ctx, user, component, access)
		if err != nil {
			return fmt.Errorf("shard %s: %w", userShard.ID, err)
		}
		if direct {
			result = true
			return nil
		}

		groups, err := userShard.Client.ReachableGroupsFromUser(ctx, user)
		if err != nil {
			return fmt.Errorf("shard %s: %w", userShard.ID, err)
		}
		c.metrics.ObserveGroupsMappedToUser(len(groups))
		if len(groups) == 0 {
			return nil
		}

		byShard := partitionGroups(c.groupShards, groups)
		c.metrics.ObserveGroupShardsQueried(len(byShard))

		shardIDs := make([]string, 0, len(byShard))
		for id := range byShard {
			shardIDs = append(shardIDs, id)
		}
		sort.Strings(shardIDs)

		for _, id := range shardIDs {
			s, err := shardByID(c.groupShards, id)
			if err != nil {
				return err
			}
			ok, err := s.Client.HasGroupsAccessToComponent(ctx, byShard[id], component, access)
			if err != nil {
				return fmt.Errorf("shard %s: %w", id, err)
			}
			if ok {
				result = true
				return nil
			}
		}
		return nil
	})
	return result, err
}

func shardByID(shards []ShardBinding, id string) (ShardBinding, error) {
	for _, s := range shards {
		if s.ID == id {
			return s, nil
		}
	}
	return ShardBinding{}, accesserrors.NotFound("no shard bound with id %q", id)
}
