package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accesserrors"
)

func TestRoutingTableSnapshotIsIndependentOfLaterMutation(t *testing.T) {
	lo, hi := splitRanges()
	table := NewRoutingTable(
		[]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{}}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		nil,
	)

	users, _ := table.Snapshot()
	require.Len(t, users, 2)

	table.RegisterShard("user", ShardBinding{ID: "u2", Range: HashRange{Lo: 1, Hi: 1}, Client: &fakeShard{}})

	// the snapshot taken before RegisterShard must not observe the new binding
	assert.Len(t, users, 2)

	users, _ = table.Snapshot()
	assert.Len(t, users, 3)
}

func TestRoutingTablePauseResumeOperations(t *testing.T) {
	table := NewRoutingTable(nil, nil)
	ctx := context.Background()

	require.NoError(t, table.PauseOperations(ctx, 0, 100))
	assert.True(t, table.isPaused(0, 100))

	// pausing the same range twice must not duplicate it
	require.NoError(t, table.PauseOperations(ctx, 0, 100))
	assert.Len(t, table.paused, 1)

	require.NoError(t, table.ResumeOperations(ctx, 0, 100))
	assert.False(t, table.isPaused(0, 100))
}

func TestRoutingTableSetRoutingOnDefaultsToEnabled(t *testing.T) {
	table := NewRoutingTable(nil, nil)
	ctx := context.Background()

	on, err := table.RoutingOn(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, table.SetRoutingOn(ctx, false))
	on, err = table.RoutingOn(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestRoutingTableHandoverRepointsMatchingRange(t *testing.T) {
	lo, hi := splitRanges()
	oldClient := &fakeShard{users: []string{"alice"}}
	newClient := &fakeShard{users: []string{"alice"}}
	table := NewRoutingTable(
		[]ShardBinding{{ID: "u0", Range: lo, Client: oldClient}, {ID: "u1", Range: hi, Client: &fakeShard{}}},
		nil,
	)
	table.RegisterShard("user", ShardBinding{ID: "u0-new", Range: HashRange{}, Client: newClient})

	err := table.Handover(context.Background(), lo.Lo, lo.Hi, "u0-new")
	require.NoError(t, err)

	users, _ := table.Snapshot()
	var found bool
	for _, b := range users {
		if b.Range.Lo == lo.Lo && b.Range.Hi == lo.Hi {
			assert.Equal(t, "u0-new", b.ID)
			found = true
		}
	}
	assert.True(t, found)
}

func TestRoutingTableHandoverUnknownDestinationFails(t *testing.T) {
	lo, _ := splitRanges()
	table := NewRoutingTable([]ShardBinding{{ID: "u0", Range: lo, Client: &fakeShard{}}}, nil)

	err := table.Handover(context.Background(), lo.Lo, lo.Hi, "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &accesserrors.Error{Kind: accesserrors.KindNotFound}))
}
