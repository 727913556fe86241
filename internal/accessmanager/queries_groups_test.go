package accessmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildGroupFrontierFixture wires two disjoint group chains so tests can
// tell "seeded directly" apart from "reached transitively" apart from
// "never in the frontier at all."
func buildGroupFrontierFixture(t *testing.T) *Manager[string, string, string, string] {
	t.Helper()
	ctx := context.Background()
	m, _ := newTestManager()

	for _, g := range []string{"team-a", "div-a", "team-b", "div-b"} {
		require.NoError(t, m.AddGroup(ctx, g))
	}
	require.NoError(t, m.AddGroupToGroupMapping(ctx, "team-a", "div-a"))
	require.NoError(t, m.AddGroupToGroupMapping(ctx, "team-b", "div-b"))
	require.NoError(t, m.AddGroupToApplicationComponentAndAccessLevelMapping(ctx, "div-a", "billing", "read"))
	require.NoError(t, m.AddGroupToApplicationComponentAndAccessLevelMapping(ctx, "team-b", "payroll", "admin"))
	require.NoError(t, m.AddEntityType(ctx, "document"))
	require.NoError(t, m.AddEntity(ctx, "document", "doc-1"))
	require.NoError(t, m.AddGroupToEntityMapping(ctx, "div-a", "document", "doc-1"))
	return m
}

func TestHasAccessToApplicationComponentForGroupsSeesTransitiveReach(t *testing.T) {
	m := buildGroupFrontierFixture(t)

	assert.True(t, m.HasAccessToApplicationComponentForGroups([]string{"team-a"}, "billing", "read"))
	assert.True(t, m.HasAccessToApplicationComponentForGroups([]string{"team-b"}, "payroll", "admin"))
	assert.False(t, m.HasAccessToApplicationComponentForGroups([]string{"div-a"}, "payroll", "admin"))
}

func TestHasAccessToApplicationComponentForGroupsIgnoresUserMembership(t *testing.T) {
	ctx := context.Background()
	m := buildGroupFrontierFixture(t)
	require.NoError(t, m.AddUser(ctx, "carol"))
	require.NoError(t, m.AddUserToGroupMapping(ctx, "carol", "team-b"))

	// carol belongs to team-b, but the frontier here is div-a only, so
	// carol's own membership must not leak payroll access in.
	assert.False(t, m.HasAccessToApplicationComponentForGroups([]string{"div-a"}, "payroll", "admin"))
}

func TestHasAccessToEntityForGroupsSeesTransitiveReach(t *testing.T) {
	m := buildGroupFrontierFixture(t)

	assert.True(t, m.HasAccessToEntityForGroups([]string{"team-a"}, "document", "doc-1"))
	assert.False(t, m.HasAccessToEntityForGroups([]string{"team-b"}, "document", "doc-1"))
}

func TestGetApplicationComponentsAccessibleByGroupsMergesFrontier(t *testing.T) {
	m := buildGroupFrontierFixture(t)

	comps := m.GetApplicationComponentsAccessibleByGroups([]string{"team-a", "team-b"})
	assert.Contains(t, comps, ComponentAccess[string, string]{Component: "billing", Access: "read"})
	assert.Contains(t, comps, ComponentAccess[string, string]{Component: "payroll", Access: "admin"})
	assert.Len(t, comps, 2)
}

func TestGetEntitiesAccessibleByGroupsMergesFrontier(t *testing.T) {
	m := buildGroupFrontierFixture(t)

	refs := m.GetEntitiesAccessibleByGroups([]string{"team-a", "team-b"})
	assert.Contains(t, refs, EntityRef{Type: "document", Entity: "doc-1"})
	assert.Len(t, refs, 1)
}

func TestGetApplicationComponentsAccessibleByGroupsEmptyFrontierIsEmpty(t *testing.T) {
	m := buildGroupFrontierFixture(t)

	assert.Empty(t, m.GetApplicationComponentsAccessibleByGroups(nil))
}
