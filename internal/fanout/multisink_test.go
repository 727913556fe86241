package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accessmanager"
)

// recordingSink is a hand-rolled accessmanager.EventSink recording every
// call it receives, in the same vein as the coordinator package's
// fakeShard.
type recordingSink struct {
	calls []string
	failOn string
}

func (s *recordingSink) record(name string) error {
	s.calls = append(s.calls, name)
	if s.failOn == name {
		return errors.New("boom")
	}
	return nil
}

func (s *recordingSink) OnUserAdd(ctx context.Context, meta accessmanager.EventMeta, user string) error {
	return s.record("OnUserAdd")
}
func (s *recordingSink) OnUserRemove(ctx context.Context, meta accessmanager.EventMeta, user string) error {
	return s.record("OnUserRemove")
}
func (s *recordingSink) OnGroupAdd(ctx context.Context, meta accessmanager.EventMeta, group string) error {
	return s.record("OnGroupAdd")
}
func (s *recordingSink) OnGroupRemove(ctx context.Context, meta accessmanager.EventMeta, group string) error {
	return s.record("OnGroupRemove")
}
func (s *recordingSink) OnUserToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, user, group string) error {
	return s.record("OnUserToGroupAdd")
}
func (s *recordingSink) OnUserToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, user, group string) error {
	return s.record("OnUserToGroupRemove")
}
func (s *recordingSink) OnGroupToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, from, to string) error {
	return s.record("OnGroupToGroupAdd")
}
func (s *recordingSink) OnGroupToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, from, to string) error {
	return s.record("OnGroupToGroupRemove")
}
func (s *recordingSink) OnUserToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, user, component, access string) error {
	return s.record("OnUserToComponentAdd")
}
func (s *recordingSink) OnUserToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, user, component, access string) error {
	return s.record("OnUserToComponentRemove")
}
func (s *recordingSink) OnGroupToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, group, component, access string) error {
	return s.record("OnGroupToComponentAdd")
}
func (s *recordingSink) OnGroupToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, group, component, access string) error {
	return s.record("OnGroupToComponentRemove")
}
func (s *recordingSink) OnEntityTypeAdd(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	return s.record("OnEntityTypeAdd")
}
func (s *recordingSink) OnEntityTypeRemove(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	return s.record("OnEntityTypeRemove")
}
func (s *recordingSink) OnEntityAdd(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	return s.record("OnEntityAdd")
}
func (s *recordingSink) OnEntityRemove(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	return s.record("OnEntityRemove")
}
func (s *recordingSink) OnUserToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, user, entityType, entity string) error {
	return s.record("OnUserToEntityAdd")
}
func (s *recordingSink) OnUserToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, user, entityType, entity string) error {
	return s.record("OnUserToEntityRemove")
}
func (s *recordingSink) OnGroupToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, group, entityType, entity string) error {
	return s.record("OnGroupToEntityAdd")
}
func (s *recordingSink) OnGroupToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, group, entityType, entity string) error {
	return s.record("OnGroupToEntityRemove")
}

func TestMultiSinkForwardsToEverySinkInOrder(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := NewMultiSink[string, string, string, string](a, b)

	err := m.OnUserAdd(context.Background(), accessmanager.EventMeta{}, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"OnUserAdd"}, a.calls)
	assert.Equal(t, []string{"OnUserAdd"}, b.calls)
}

func TestMultiSinkStopsAtFirstError(t *testing.T) {
	a := &recordingSink{failOn: "OnGroupAdd"}
	b := &recordingSink{}
	m := NewMultiSink[string, string, string, string](a, b)

	err := m.OnGroupAdd(context.Background(), accessmanager.EventMeta{}, "team")
	require.Error(t, err)
	assert.Equal(t, []string{"OnGroupAdd"}, a.calls)
	assert.Empty(t, b.calls)
}

func TestMultiSinkWithNoSinksIsNoop(t *testing.T) {
	m := NewMultiSink[string, string, string, string]()
	err := m.OnUserToComponentAdd(context.Background(), accessmanager.EventMeta{}, "alice", "billing", "read")
	require.NoError(t, err)
}
