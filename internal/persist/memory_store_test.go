package persist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgraph/engine/internal/accessmanager"
	"github.com/accessgraph/engine/internal/accesserrors"
)

func TestCreateEventAssignsIncreasingSequenceWithinSameTxTime(t *testing.T) {
	s := NewMemoryStore[string, string, string, string]()
	ctx := context.Background()
	t0 := time.Now().UTC()

	seq1, err := s.CreateEvent(ctx, nil, uuid.NewString(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq1.Sequence)

	seq2, err := s.CreateEvent(ctx, nil, uuid.NewString(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq2.Sequence)

	seq3, err := s.CreateEvent(ctx, nil, uuid.NewString(), t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq3.Sequence)
}

func TestCreateEventRejectsRegression(t *testing.T) {
	s := NewMemoryStore[string, string, string, string]()
	ctx := context.Background()
	t0 := time.Now().UTC()

	_, err := s.CreateEvent(ctx, nil, uuid.NewString(), t0)
	require.NoError(t, err)

	_, err = s.CreateEvent(ctx, nil, uuid.NewString(), t0.Add(-time.Second))
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindMonotonicityViolated))
}

func TestAddThenRemoveClosesOpenRow(t *testing.T) {
	s := NewMemoryStore[string, string, string, string]()
	ctx := context.Background()
	t0 := time.Now().UTC()

	require.NoError(t, s.AddUser(ctx, nil, uuid.NewString(), t0, "alice"))
	assert.True(t, s.IsOpen(key("user", "alice")))

	require.NoError(t, s.RemoveUser(ctx, nil, uuid.NewString(), t0.Add(time.Second), "alice"))
	assert.False(t, s.IsOpen(key("user", "alice")))
}

func TestRemoveAbsentRowFails(t *testing.T) {
	s := NewMemoryStore[string, string, string, string]()
	ctx := context.Background()

	err := s.RemoveUser(ctx, nil, uuid.NewString(), time.Now().UTC(), "ghost")
	require.Error(t, err)
	assert.True(t, accesserrors.Is(err, accesserrors.KindNotFound))
}

func TestRemoveUserCascadesOpenMappingRows(t *testing.T) {
	s := NewMemoryStore[string, string, string, string]()
	ctx := context.Background()
	t0 := time.Now().UTC()

	require.NoError(t, s.AddUser(ctx, nil, uuid.NewString(), t0, "bob"))
	require.NoError(t, s.AddGroup(ctx, nil, uuid.NewString(), t0, "team"))
	require.NoError(t, s.AddUserToGroup(ctx, nil, uuid.NewString(), t0, "bob", "team"))
	require.NoError(t, s.AddUserToComponent(ctx, nil, uuid.NewString(), t0, "bob", "billing", "read"))

	require.NoError(t, s.RemoveUser(ctx, nil, uuid.NewString(), t0.Add(time.Second), "bob"))

	assert.False(t, s.IsOpen(key("u2g", "bob", "team")))
	assert.False(t, s.IsOpen(key("u2c", "bob", "billing", "read")))
	assert.True(t, s.IsOpen(key("group", "team")))
}

func TestAdapterForwardsManagerMutationsThroughPersister(t *testing.T) {
	s := NewMemoryStore[string, string, string, string]()
	adapter := &Adapter[string, string, string, string]{Persister: s}

	ctx := context.Background()
	meta := accessmanager.EventMeta{EventID: uuid.NewString(), TxTime: time.Now().UTC()}

	err := adapter.OnUserAdd(ctx, meta, "carol")
	require.NoError(t, err)
	assert.True(t, s.IsOpen(key("user", "carol")))
}
