package accessmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accesserrors"
	"github.com/accessgraph/engine/internal/metrics"
)

func newTestManager() (*Manager[string, string, string, string], *metrics.InMemorySink[string, string]) {
	sink := metrics.NewInMemorySink[string, string]()
	m := NewBuilder[string, string, string, string]().WithMetrics(sink).Build()
	return m, sink
}

func TestBasicAccessDerivation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	require.NoError(t, m.AddUser(ctx, "alice"))
	require.NoError(t, m.AddGroup(ctx, "engineers"))
	require.NoError(t, m.AddUserToGroupMapping(ctx, "alice", "engineers"))
	require.NoError(t, m.AddGroupToApplicationComponentAndAccessLevelMapping(ctx, "engineers", "billing", "read"))

	assert.True(t, m.HasAccessToApplicationComponent("alice", "billing", "read"))
	assert.False(t, m.HasAccessToApplicationComponent("alice", "billing", "write"))
}

func TestIndirectGroupReachGrantsAccess(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	for _, u := range []string{"bob"} {
		require.NoError(t, m.AddUser(ctx, u))
	}
	for _, g := range []string{"team", "org", "company"} {
		require.NoError(t, m.AddGroup(ctx, g))
	}
	require.NoError(t, m.AddUserToGroupMapping(ctx, "bob", "team"))
	require.NoError(t, m.AddGroupToGroupMapping(ctx, "team", "org"))
	require.NoError(t, m.AddGroupToGroupMapping(ctx, "org", "company"))
	require.NoError(t, m.AddGroupToApplicationComponentAndAccessLevelMapping(ctx, "company", "payroll", "admin"))

	assert.True(t, m.HasAccessToApplicationComponent("bob", "payroll", "admin"))

	comps := m.GetApplicationComponentsAccessibleByUser("bob")
	assert.Contains(t, comps, ComponentAccess[string, string]{Component: "payroll", Access: "admin"})
}

func TestCycleRejectionAtManagerLevel(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	for _, g := range []string{"g1", "g2", "g3"} {
		require.NoError(t, m.AddGroup(ctx, g))
	}
	require.NoError(t, m.AddGroupToGroupMapping(ctx, "g1", "g2"))
	require.NoError(t, m.AddGroupToGroupMapping(ctx, "g2", "g3"))

	err := m.AddGroupToGroupMapping(ctx, "g3", "g1")
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindCycleDetected))

	assert.ElementsMatch(t, []string{"g2"}, m.GetGroupToGroupMappings("g1", false))
}

func TestCascadingRemovalUpdatesTallies(t *testing.T) {
	ctx := context.Background()
	m, sink := newTestManager()

	require.NoError(t, m.AddUser(ctx, "carol"))
	require.NoError(t, m.AddGroup(ctx, "finance"))
	require.NoError(t, m.AddUserToGroupMapping(ctx, "carol", "finance"))
	require.NoError(t, m.AddUserToApplicationComponentAndAccessLevelMapping(ctx, "carol", "ledger", "write"))
	require.NoError(t, m.AddEntityType(ctx, "ClientAccount"))
	require.NoError(t, m.AddEntity(ctx, "ClientAccount", "acct-1"))
	require.NoError(t, m.AddUserToEntityMapping(ctx, "carol", "ClientAccount", "acct-1"))

	assert.Equal(t, 1, sink.UserEntityFrequency("carol", "ClientAccount"))

	require.NoError(t, m.RemoveUser(ctx, "carol"))

	assert.False(t, m.ContainsUser("carol"))
	assert.Empty(t, m.GetUserToApplicationComponentAndAccessLevelMappings("carol"))
	assert.Empty(t, m.GetUserToEntityMappings("carol"))
	assert.Equal(t, 0, sink.UserEntityFrequency("carol", "ClientAccount"))
	assert.Equal(t, 0, sink.Stored(metrics.RelationUsers))
}

func TestIdempotentAddUserEmitsBeginSetCancelNotEndIncrement(t *testing.T) {
	ctx := context.Background()
	m, sink := newTestManager()

	require.NoError(t, m.AddUser(ctx, "dave"))
	require.NoError(t, m.AddUser(ctx, "dave"))

	assert.Equal(t, int64(1), sink.Completed("UserAdd"))

	events := sink.Events()
	ops := make([]string, len(events))
	for i, e := range events {
		ops[i] = e.Op
	}
	assert.Equal(t, []string{"begin", "end", "increment", "set", "begin", "set", "cancelBegin"}, ops)
}

func TestDependencyFreeMappingSynthesizesPrerequisites(t *testing.T) {
	ctx := context.Background()
	sink := metrics.NewInMemorySink[string, string]()
	m := NewBuilder[string, string, string, string]().WithMetrics(sink).DependencyFree(true).Build()

	require.NoError(t, m.AddUserToGroupMapping(ctx, "erin", "newgroup"))

	assert.True(t, m.ContainsUser("erin"))
	assert.True(t, m.ContainsGroup("newgroup"))
	assert.Equal(t, int64(1), sink.Completed("UserAdd"))
	assert.Equal(t, int64(1), sink.Completed("GroupAdd"))
	assert.Equal(t, int64(1), sink.Completed("UserToGroupAdd"))
}

func TestStrictModeRejectsMappingOfUnknownElements(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	err := m.AddUserToGroupMapping(ctx, "frank", "ghost-group")
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindNotFound))
}

func TestDependencyFreeRemoveOfUnknownUserIsNoop(t *testing.T) {
	ctx := context.Background()
	sink := metrics.NewInMemorySink[string, string]()
	m := NewBuilder[string, string, string, string]().WithMetrics(sink).DependencyFree(true).Build()

	err := m.RemoveUser(ctx, "nobody")
	require.NoError(t, err)
}

func TestStrictModeRemoveOfUnknownUserFails(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	err := m.RemoveUser(ctx, "nobody")
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindNotFound))
}

func TestThrowIdempotencyExceptionsRejectsDuplicateAdd(t *testing.T) {
	ctx := context.Background()
	sink := metrics.NewInMemorySink[string, string]()
	m := NewBuilder[string, string, string, string]().WithMetrics(sink).ThrowIdempotencyExceptions(true).Build()

	require.NoError(t, m.AddUser(ctx, "gina"))
	err := m.AddUser(ctx, "gina")
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindAlreadyExists))
}

func TestPostProcessingRunsAfterMutationIsVisible(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	var sawUserDuringPostProcess bool
	err := m.AddUser(ctx, "hank", WithPostProcessing(func(ctx context.Context) error {
		sawUserDuringPostProcess = m.graph.HasUser("hank")
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, sawUserDuringPostProcess)
}

func TestPostProcessingFailureWrapsErrorButKeepsMutation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	err := m.AddUser(ctx, "iris", WithPostProcessing(func(ctx context.Context) error {
		return assert.AnError
	}))
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindPostprocessingFailed))
	assert.True(t, m.ContainsUser("iris"))
}

type recordingSink struct {
	adds []string
}

func (r *recordingSink) OnUserAdd(ctx context.Context, meta EventMeta, user string) error {
	r.adds = append(r.adds, "user:"+user)
	return nil
}
func (r *recordingSink) OnUserRemove(context.Context, EventMeta, string) error { return nil }
func (r *recordingSink) OnGroupAdd(ctx context.Context, meta EventMeta, group string) error {
	r.adds = append(r.adds, "group:"+group)
	return nil
}
func (r *recordingSink) OnGroupRemove(context.Context, EventMeta, string) error { return nil }
func (r *recordingSink) OnUserToGroupAdd(ctx context.Context, meta EventMeta, user, group string) error {
	r.adds = append(r.adds, "u2g:"+user+"->"+group)
	return nil
}
func (r *recordingSink) OnUserToGroupRemove(context.Context, EventMeta, string, string) error {
	return nil
}
func (r *recordingSink) OnGroupToGroupAdd(context.Context, EventMeta, string, string) error {
	return nil
}
func (r *recordingSink) OnGroupToGroupRemove(context.Context, EventMeta, string, string) error {
	return nil
}
func (r *recordingSink) OnUserToComponentAdd(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnUserToComponentRemove(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnGroupToComponentAdd(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnGroupToComponentRemove(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnEntityTypeAdd(context.Context, EventMeta, string) error { return nil }
func (r *recordingSink) OnEntityTypeRemove(context.Context, EventMeta, string) error {
	return nil
}
func (r *recordingSink) OnEntityAdd(context.Context, EventMeta, string, string) error { return nil }
func (r *recordingSink) OnEntityRemove(context.Context, EventMeta, string, string) error {
	return nil
}
func (r *recordingSink) OnUserToEntityAdd(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnUserToEntityRemove(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnGroupToEntityAdd(context.Context, EventMeta, string, string, string) error {
	return nil
}
func (r *recordingSink) OnGroupToEntityRemove(context.Context, EventMeta, string, string, string) error {
	return nil
}

func TestDependencyFreeSynthesisForwardsToDownstream(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSink{}
	m := NewBuilder[string, string, string, string]().WithDownstream(rec).DependencyFree(true).Build()

	require.NoError(t, m.AddUserToGroupMapping(ctx, "jill", "newteam"))

	assert.Contains(t, rec.adds, "user:jill")
	assert.Contains(t, rec.adds, "group:newteam")
	assert.Contains(t, rec.adds, "u2g:jill->newteam")
}

func TestClearResetsEverything(t *testing.T) {
	ctx := context.Background()
	m, sink := newTestManager()

	require.NoError(t, m.AddUser(ctx, "kate"))
	require.NoError(t, m.AddGroup(ctx, "ops"))
	require.NoError(t, m.AddUserToGroupMapping(ctx, "kate", "ops"))

	m.Clear(ctx)

	assert.False(t, m.ContainsUser("kate"))
	assert.False(t, m.ContainsGroup("ops"))
	assert.Equal(t, 0, sink.Stored(metrics.RelationUsers))
	assert.Equal(t, 0, sink.Stored(metrics.RelationUserToGroupMappings))
}
