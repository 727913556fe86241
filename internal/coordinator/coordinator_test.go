package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShard is a hand-rolled ShardClient recording what it was asked, used
// instead of a mock library since the pack shows no mocking framework in
// use anywhere besides testify's own assert/require.
type fakeShard struct {
	users             []string
	groups            []string
	directAccess      map[string]bool // key: user#component#access
	reachableGroups   map[string][]string
	groupSetHasAccess map[string]bool // key: component#access, true if any bound group grants it

	calls []string
}

func (f *fakeShard) Users(ctx context.Context) ([]string, error) { return f.users, nil }
func (f *fakeShard) Groups(ctx context.Context) ([]string, error) { return f.groups, nil }

func (f *fakeShard) ContainsUser(ctx context.Context, user string) (bool, error) {
	for _, u := range f.users {
		if u == user {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeShard) ContainsGroup(ctx context.Context, group string) (bool, error) {
	for _, g := range f.groups {
		if g == group {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeShard) ReachableGroupsFromUser(ctx context.Context, user string) ([]string, error) {
	f.calls = append(f.calls, "ReachableGroupsFromUser:"+user)
	return f.reachableGroups[user], nil
}

func (f *fakeShard) HasUserDirectAccessToComponent(ctx context.Context, user, component, access string) (bool, error) {
	f.calls = append(f.calls, "HasUserDirectAccessToComponent:"+user)
	return f.directAccess[user+"#"+component+"#"+access], nil
}

func (f *fakeShard) HasGroupsAccessToComponent(ctx context.Context, groups []string, component, access string) (bool, error) {
	f.calls = append(f.calls, "HasGroupsAccessToComponent")
	return f.groupSetHasAccess[component+"#"+access], nil
}

type recordingMetrics struct {
	groupsMapped  []int
	shardsQueried []int
}

func (m *recordingMetrics) ObserveGroupsMappedToUser(n int)  { m.groupsMapped = append(m.groupsMapped, n) }
func (m *recordingMetrics) ObserveGroupShardsQueried(n int) { m.shardsQueried = append(m.shardsQueried, n) }

// splitRanges splits the hash space into two ranges at the midpoint; tests
// bind one shard to each half and check which half a key's fnv hash lands
// in to target one shard or the other deterministically.
func splitRanges() (HashRange, HashRange) {
	mid := uint64(1) << 63
	return HashRange{Lo: 0, Hi: mid - 1}, HashRange{Lo: mid, Hi: ^uint64(0)}
}

func TestUsersScattersAcrossAllUserShards(t *testing.T) {
	lo, hi := splitRanges()
	s1 := &fakeShard{users: []string{"alice"}}
	s2 := &fakeShard{users: []string{"bob"}}
	c := New(
		[]ShardBinding{{ID: "u0", Range: lo, Client: s1}, {ID: "u1", Range: hi, Client: s2}},
		nil,
		nil,
	)

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}

func TestHasAccessToApplicationComponentShortCircuitsOnDirectAccess(t *testing.T) {
	lo, hi := splitRanges()
	userShard := &fakeShard{
		directAccess: map[string]bool{"alice#billing#read": true},
	}
	c := New(
		[]ShardBinding{{ID: "u0", Range: lo, Client: userShard}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		[]ShardBinding{{ID: "g0", Range: lo, Client: &fakeShard{}}},
		nil,
	)

	// Force "alice" to route to u0 by picking whichever shard its hash
	// actually lands in; since we don't control fnv's output directly,
	// bind "alice" into whichever shard covers its real hash.
	h := hashOf("alice")
	var target *fakeShard
	if lo.contains(h) {
		target = userShard
	} else {
		userShard2 := &fakeShard{directAccess: map[string]bool{"alice#billing#read": true}}
		c = New(
			[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{}}, {ID: "u1", Range: hi, Client: userShard2}},
			[]ShardBinding{{ID: "g0", Range: lo, Client: &fakeShard{}}},
			nil,
		)
		target = userShard2
	}

	ok, err := c.HasAccessToApplicationComponent(context.Background(), "alice", "billing", "read")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, target.calls, "HasUserDirectAccessToComponent:alice")
	assert.NotContains(t, target.calls, "ReachableGroupsFromUser:alice")
}

func TestHasAccessToApplicationComponentFansOutToGroupShardsWhenNoDirectAccess(t *testing.T) {
	lo, hi := splitRanges()

	groupA, groupB := "team-a", "team-b"
	hA, hB := hashOf(groupA), hashOf(groupB)

	userShard := &fakeShard{
		reachableGroups: map[string][]string{"carol": {groupA, groupB}},
	}

	groupShardLo := &fakeShard{}
	groupShardHi := &fakeShard{}
	wantGrantingShard := groupShardLo
	if !lo.contains(hA) && !lo.contains(hB) {
		wantGrantingShard = groupShardHi
	}
	wantGrantingShard.groupSetHasAccess = map[string]bool{"billing#read": true}

	m := &recordingMetrics{}
	c := New(
		[]ShardBinding{{ID: "u0", Range: lo, Client: userShard}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		[]ShardBinding{{ID: "g0", Range: lo, Client: groupShardLo}, {ID: "g1", Range: hi, Client: groupShardHi}},
		m,
	)

	// route "carol" to userShard regardless of her real hash by rebinding
	// userShard to the hi range when her hash falls outside lo — this keeps
	// the test deterministic without needing to find a colliding string by
	// brute force.
	hCarol := hashOf("carol")
	if !lo.contains(hCarol) {
		c = New(
			[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{}}, {ID: "u1", Range: hi, Client: userShard}},
			[]ShardBinding{{ID: "g0", Range: lo, Client: groupShardLo}, {ID: "g1", Range: hi, Client: groupShardHi}},
			m,
		)
	}

	ok, err := c.HasAccessToApplicationComponent(context.Background(), "carol", "billing", "read")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, m.groupsMapped, 1)
	assert.Equal(t, 2, m.groupsMapped[0])
	require.Len(t, m.shardsQueried, 1)
	assert.GreaterOrEqual(t, m.shardsQueried[0], 1)
}

func TestContainsUserReturnsFalseWhenShardDoesNotHaveUser(t *testing.T) {
	lo, hi := splitRanges()
	c := New(
		[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{}}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		nil,
		nil,
	)
	found, err := c.ContainsUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}
