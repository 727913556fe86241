package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accesserrors"
)

func TestLiveCoordinatorRejectsQueriesWhenRoutingOff(t *testing.T) {
	lo, hi := splitRanges()
	table := NewRoutingTable(
		[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{users: []string{"alice"}}}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		nil,
	)
	require.NoError(t, table.SetRoutingOn(context.Background(), false))
	lc := NewLiveCoordinator(table, NoopMetrics{})

	_, err := lc.Users(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &accesserrors.Error{Kind: accesserrors.KindUnavailable}))
}

func TestLiveCoordinatorRejectsQueryIntoPausedRange(t *testing.T) {
	lo, hi := splitRanges()
	table := NewRoutingTable(
		[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{}}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		nil,
	)
	h := hashOf("alice")
	var target HashRange
	if lo.contains(h) {
		target = lo
	} else {
		target = hi
	}
	require.NoError(t, table.PauseOperations(context.Background(), target.Lo, target.Hi))
	lc := NewLiveCoordinator(table, NoopMetrics{})

	_, err := lc.ContainsUser(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &accesserrors.Error{Kind: accesserrors.KindUnavailable}))
}

func TestLiveCoordinatorServesQueriesWhenRoutingOnAndUnpaused(t *testing.T) {
	lo, hi := splitRanges()
	table := NewRoutingTable(
		[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{users: []string{"alice"}}}, {ID: "u1", Range: hi, Client: &fakeShard{users: []string{"bob"}}}},
		nil,
	)
	lc := NewLiveCoordinator(table, NoopMetrics{})

	users, err := lc.Users(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}

func TestLiveCoordinatorSnapshotReflectsHandover(t *testing.T) {
	lo, hi := splitRanges()
	oldClient := &fakeShard{users: []string{"alice"}}
	table := NewRoutingTable(
		[]ShardBinding{{ID: "u0", Range: lo, Client: oldClient}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		nil,
	)
	lc := NewLiveCoordinator(table, NoopMetrics{})

	newClient := &fakeShard{users: []string{"alice-migrated"}}
	table.RegisterShard("user", ShardBinding{ID: "u0-new", Range: HashRange{}, Client: newClient})
	require.NoError(t, table.Handover(context.Background(), lo.Lo, lo.Hi, "u0-new"))

	users, err := lc.Users(context.Background())
	require.NoError(t, err)
	assert.Contains(t, users, "alice-migrated")
	assert.NotContains(t, users, "alice")
}
