package fanout

import (
	"context"

	"github.com/accessgraph/engine/internal/accessmanager"
)

// MultiSink fans every accessmanager.EventSink callback out to each sink in
// order, so a Manager can have both a durable persister and a replication
// sink wired through the single WithDownstream seam. The first error from
// any sink stops the fan-out and is returned to the caller.
type MultiSink[U, G, P, A comparable] struct {
	sinks []accessmanager.EventSink[U, G, P, A]
}

// NewMultiSink returns a MultiSink forwarding to sinks in order.
func NewMultiSink[U, G, P, A comparable](sinks ...accessmanager.EventSink[U, G, P, A]) *MultiSink[U, G, P, A] {
	return &MultiSink[U, G, P, A]{sinks: sinks}
}

func (m *MultiSink[U, G, P, A]) each(fn func(accessmanager.EventSink[U, G, P, A]) error) error {
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink[U, G, P, A]) OnUserAdd(ctx context.Context, meta accessmanager.EventMeta, user U) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnUserAdd(ctx, meta, user) })
}
func (m *MultiSink[U, G, P, A]) OnUserRemove(ctx context.Context, meta accessmanager.EventMeta, user U) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnUserRemove(ctx, meta, user) })
}
func (m *MultiSink[U, G, P, A]) OnGroupAdd(ctx context.Context, meta accessmanager.EventMeta, group G) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnGroupAdd(ctx, meta, group) })
}
func (m *MultiSink[U, G, P, A]) OnGroupRemove(ctx context.Context, meta accessmanager.EventMeta, group G) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnGroupRemove(ctx, meta, group) })
}
func (m *MultiSink[U, G, P, A]) OnUserToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, user U, group G) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnUserToGroupAdd(ctx, meta, user, group) })
}
func (m *MultiSink[U, G, P, A]) OnUserToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, user U, group G) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnUserToGroupRemove(ctx, meta, user, group) })
}
func (m *MultiSink[U, G, P, A]) OnGroupToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, from, to G) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnGroupToGroupAdd(ctx, meta, from, to) })
}
func (m *MultiSink[U, G, P, A]) OnGroupToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, from, to G) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnGroupToGroupRemove(ctx, meta, from, to) })
}
func (m *MultiSink[U, G, P, A]) OnUserToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, user U, component P, access A) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnUserToComponentAdd(ctx, meta, user, component, access)
	})
}
func (m *MultiSink[U, G, P, A]) OnUserToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, user U, component P, access A) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnUserToComponentRemove(ctx, meta, user, component, access)
	})
}
func (m *MultiSink[U, G, P, A]) OnGroupToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, group G, component P, access A) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnGroupToComponentAdd(ctx, meta, group, component, access)
	})
}
func (m *MultiSink[U, G, P, A]) OnGroupToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, group G, component P, access A) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnGroupToComponentRemove(ctx, meta, group, component, access)
	})
}
func (m *MultiSink[U, G, P, A]) OnEntityTypeAdd(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnEntityTypeAdd(ctx, meta, entityType) })
}
func (m *MultiSink[U, G, P, A]) OnEntityTypeRemove(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnEntityTypeRemove(ctx, meta, entityType) })
}
func (m *MultiSink[U, G, P, A]) OnEntityAdd(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnEntityAdd(ctx, meta, entityType, entity) })
}
func (m *MultiSink[U, G, P, A]) OnEntityRemove(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error { return s.OnEntityRemove(ctx, meta, entityType, entity) })
}
func (m *MultiSink[U, G, P, A]) OnUserToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, user U, entityType, entity string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnUserToEntityAdd(ctx, meta, user, entityType, entity)
	})
}
func (m *MultiSink[U, G, P, A]) OnUserToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, user U, entityType, entity string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnUserToEntityRemove(ctx, meta, user, entityType, entity)
	})
}
func (m *MultiSink[U, G, P, A]) OnGroupToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, group G, entityType, entity string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnGroupToEntityAdd(ctx, meta, group, entityType, entity)
	})
}
func (m *MultiSink[U, G, P, A]) OnGroupToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, group G, entityType, entity string) error {
	return m.each(func(s accessmanager.EventSink[U, G, P, A]) error {
		return s.OnGroupToEntityRemove(ctx, meta, group, entityType, entity)
	})
}
