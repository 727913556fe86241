// Package persist implements the Temporal Event Persister (C6): an
// append-only, monotonically time-ordered log of access-manager events,
// plus a bi-temporal row per primary element and mapping tuple so a
// persister can answer "what did the graph look like at time T" queries.
//
// Grounded on the teacher's infrastructure/persistence/dynamodb/
// event_store.go outbox/event-record shape: EventPersister's CreateEvent
// is the teacher's EventRecord row, generalized from a per-aggregate
// append log to the flat (txTime, sequence) ordering spec §4.6 specifies,
// and Add<Relation>/Remove<Relation> are the bi-temporal ValidFrom/ValidTo
// row pair the teacher's outbox pattern inspired but did not itself need
// (the teacher's rows are never "closed", only appended).
package persist

import (
	"context"
	"time"

	"github.com/accessgraph/engine/internal/accessmanager"
)

// Session is an optional transaction handle a caller can thread through a
// sequence of persister calls so they commit atomically. nil means "no
// transaction; auto-commit each call."
type Session interface {
	// Discriminator method only; concrete persisters define their own
	// session type and type-assert it back out.
	isSession()
}

// Sequence is the (transactionTime, sequence) ordering key CreateEvent
// assigns to one event.
type Sequence struct {
	TxTime   time.Time
	Sequence int64
}

// EventPersister is the C6 contract: U, G, P, A mirror
// accessmanager.Manager's identifier type parameters so a persister can be
// wired directly as that Manager's downstream EventSink via Adapter.
type EventPersister[U comparable, G comparable, P comparable, A comparable] interface {
	// CreateEvent appends an event-id-to-time row. Fails with
	// MonotonicityViolated if txTime < the persister's lastTxTime.
	CreateEvent(ctx context.Context, session Session, eventID string, txTime time.Time) (Sequence, error)

	AddUser(ctx context.Context, session Session, eventID string, txTime time.Time, user U) error
	RemoveUser(ctx context.Context, session Session, eventID string, txTime time.Time, user U) error
	AddGroup(ctx context.Context, session Session, eventID string, txTime time.Time, group G) error
	RemoveGroup(ctx context.Context, session Session, eventID string, txTime time.Time, group G) error

	AddUserToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, user U, group G) error
	RemoveUserToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, user U, group G) error
	AddGroupToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, from, to G) error
	RemoveGroupToGroup(ctx context.Context, session Session, eventID string, txTime time.Time, from, to G) error

	AddUserToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, user U, component P, access A) error
	RemoveUserToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, user U, component P, access A) error
	AddGroupToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, group G, component P, access A) error
	RemoveGroupToComponent(ctx context.Context, session Session, eventID string, txTime time.Time, group G, component P, access A) error

	AddEntityType(ctx context.Context, session Session, eventID string, txTime time.Time, entityType string) error
	RemoveEntityType(ctx context.Context, session Session, eventID string, txTime time.Time, entityType string) error
	AddEntity(ctx context.Context, session Session, eventID string, txTime time.Time, entityType, entity string) error
	RemoveEntity(ctx context.Context, session Session, eventID string, txTime time.Time, entityType, entity string) error

	AddUserToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, user U, entityType, entity string) error
	RemoveUserToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, user U, entityType, entity string) error
	AddGroupToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, group G, entityType, entity string) error
	RemoveGroupToEntity(ctx context.Context, session Session, eventID string, txTime time.Time, group G, entityType, entity string) error
}

// Adapter satisfies accessmanager.EventSink by calling CreateEvent ahead
// of every relation write, so any EventPersister can be wired directly as
// a Manager's downstream without each persister implementation repeating
// the createEvent-then-relation-write sequence itself.
type Adapter[U comparable, G comparable, P comparable, A comparable] struct {
	Persister EventPersister[U, G, P, A]
}

var _ accessmanager.EventSink[string, string, string, string] = (*Adapter[string, string, string, string])(nil)

func (a *Adapter[U, G, P, A]) createEvent(ctx context.Context, meta accessmanager.EventMeta) error {
	_, err := a.Persister.CreateEvent(ctx, nil, meta.EventID, meta.TxTime)
	return err
}

func (a *Adapter[U, G, P, A]) OnUserAdd(ctx context.Context, meta accessmanager.EventMeta, user U) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddUser(ctx, nil, meta.EventID, meta.TxTime, user)
}

func (a *Adapter[U, G, P, A]) OnUserRemove(ctx context.Context, meta accessmanager.EventMeta, user U) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveUser(ctx, nil, meta.EventID, meta.TxTime, user)
}

func (a *Adapter[U, G, P, A]) OnGroupAdd(ctx context.Context, meta accessmanager.EventMeta, group G) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddGroup(ctx, nil, meta.EventID, meta.TxTime, group)
}

func (a *Adapter[U, G, P, A]) OnGroupRemove(ctx context.Context, meta accessmanager.EventMeta, group G) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveGroup(ctx, nil, meta.EventID, meta.TxTime, group)
}

func (a *Adapter[U, G, P, A]) OnUserToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, user U, group G) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddUserToGroup(ctx, nil, meta.EventID, meta.TxTime, user, group)
}

func (a *Adapter[U, G, P, A]) OnUserToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, user U, group G) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveUserToGroup(ctx, nil, meta.EventID, meta.TxTime, user, group)
}

func (a *Adapter[U, G, P, A]) OnGroupToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, from, to G) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddGroupToGroup(ctx, nil, meta.EventID, meta.TxTime, from, to)
}

func (a *Adapter[U, G, P, A]) OnGroupToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, from, to G) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveGroupToGroup(ctx, nil, meta.EventID, meta.TxTime, from, to)
}

func (a *Adapter[U, G, P, A]) OnUserToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, user U, component P, access A) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddUserToComponent(ctx, nil, meta.EventID, meta.TxTime, user, component, access)
}

func (a *Adapter[U, G, P, A]) OnUserToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, user U, component P, access A) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveUserToComponent(ctx, nil, meta.EventID, meta.TxTime, user, component, access)
}

func (a *Adapter[U, G, P, A]) OnGroupToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, group G, component P, access A) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddGroupToComponent(ctx, nil, meta.EventID, meta.TxTime, group, component, access)
}

func (a *Adapter[U, G, P, A]) OnGroupToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, group G, component P, access A) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveGroupToComponent(ctx, nil, meta.EventID, meta.TxTime, group, component, access)
}

func (a *Adapter[U, G, P, A]) OnEntityTypeAdd(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddEntityType(ctx, nil, meta.EventID, meta.TxTime, entityType)
}

func (a *Adapter[U, G, P, A]) OnEntityTypeRemove(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveEntityType(ctx, nil, meta.EventID, meta.TxTime, entityType)
}

func (a *Adapter[U, G, P, A]) OnEntityAdd(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddEntity(ctx, nil, meta.EventID, meta.TxTime, entityType, entity)
}

func (a *Adapter[U, G, P, A]) OnEntityRemove(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveEntity(ctx, nil, meta.EventID, meta.TxTime, entityType, entity)
}

func (a *Adapter[U, G, P, A]) OnUserToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, user U, entityType, entity string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddUserToEntity(ctx, nil, meta.EventID, meta.TxTime, user, entityType, entity)
}

func (a *Adapter[U, G, P, A]) OnUserToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, user U, entityType, entity string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveUserToEntity(ctx, nil, meta.EventID, meta.TxTime, user, entityType, entity)
}

func (a *Adapter[U, G, P, A]) OnGroupToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, group G, entityType, entity string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.AddGroupToEntity(ctx, nil, meta.EventID, meta.TxTime, group, entityType, entity)
}

func (a *Adapter[U, G, P, A]) OnGroupToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, group G, entityType, entity string) error {
	if err := a.createEvent(ctx, meta); err != nil {
		return err
	}
	return a.Persister.RemoveGroupToEntity(ctx, nil, meta.EventID, meta.TxTime, group, entityType, entity)
}

// temporalMax marks a row that has never been closed ("live"). Spec §3
// calls this TemporalMax; we use the largest representable time.
var temporalMax = time.Unix(1<<62, 0).UTC()

func tick(t time.Time) time.Time { return t.Add(-time.Nanosecond) }
