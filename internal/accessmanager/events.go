package accessmanager

import (
	"context"

	"github.com/accessgraph/engine/internal/accesserrors"
	"github.com/accessgraph/engine/internal/concurrency"
	"github.com/accessgraph/engine/internal/graph"
	"github.com/accessgraph/engine/internal/metrics"
)

// addSpec describes one Add* operation's data-plane effect so doAdd can
// apply the shared prereqs -> metricBegin -> data -> post -> metricClose
// pipeline from spec §9 uniformly across every mapping and primary-element
// kind.
type addSpec struct {
	resources []concurrency.Resource
	kind      metrics.EventKind
	exists    func() bool
	apply     func() error
	setCounts func()
	forward   func(ctx context.Context) error
	prereqs   func(ctx context.Context) error
}

func (m *Manager[U, G, P, A]) doAdd(ctx context.Context, spec addSpec, opts ...MutationOption) error {
	release := m.guard.Acquire(concurrency.Write, spec.resources...)
	defer release()

	if spec.prereqs != nil {
		if err := spec.prereqs(ctx); err != nil {
			return err
		}
	}

	already := spec.exists()
	if already && m.throwIdempotencyExceptions {
		id := m.sink.Begin(spec.kind)
		m.sink.CancelBegin(id, spec.kind)
		return accesserrors.AlreadyExists("%s already present", spec.kind)
	}

	id := m.sink.Begin(spec.kind)

	if already {
		spec.setCounts()
		m.sink.CancelBegin(id, spec.kind)
		return nil
	}

	if err := spec.apply(); err != nil {
		m.sink.CancelBegin(id, spec.kind)
		return err
	}

	if spec.forward != nil {
		if err := spec.forward(ctx); err != nil {
			m.sink.CancelBegin(id, spec.kind)
			return err
		}
	}

	cfg := buildMutationConfig(opts)
	if cfg.postProcess != nil {
		if err := cfg.postProcess(ctx); err != nil {
			m.sink.CancelBegin(id, spec.kind)
			return accesserrors.PostprocessingFailed(err)
		}
	}

	m.sink.End(id, spec.kind)
	m.sink.Increment(spec.kind)
	spec.setCounts()
	return nil
}

// removeSpec is addSpec's counterpart for Remove* operations: under
// dependencyFree, a missing element is a silent no-op rather than NotFound.
type removeSpec struct {
	resources []concurrency.Resource
	kind      metrics.EventKind
	exists    func() bool
	apply     func()
	setCounts func()
	forward   func(ctx context.Context) error
}

func (m *Manager[U, G, P, A]) doRemove(ctx context.Context, spec removeSpec, opts ...MutationOption) error {
	release := m.guard.Acquire(concurrency.Write, spec.resources...)
	defer release()

	id := m.sink.Begin(spec.kind)

	if !spec.exists() {
		if m.dependencyFree {
			spec.setCounts()
			m.sink.CancelBegin(id, spec.kind)
			return nil
		}
		m.sink.CancelBegin(id, spec.kind)
		return accesserrors.NotFound("%s not present", spec.kind)
	}

	spec.apply()

	if spec.forward != nil {
		if err := spec.forward(ctx); err != nil {
			m.sink.CancelBegin(id, spec.kind)
			return err
		}
	}

	cfg := buildMutationConfig(opts)
	if cfg.postProcess != nil {
		if err := cfg.postProcess(ctx); err != nil {
			m.sink.CancelBegin(id, spec.kind)
			return accesserrors.PostprocessingFailed(err)
		}
	}

	m.sink.End(id, spec.kind)
	m.sink.Increment(spec.kind)
	spec.setCounts()
	return nil
}

func (m *Manager[U, G, P, A]) setPrimaryCounts() {
	m.sink.Set(metrics.RelationUsers, len(m.graph.Users()))
	m.sink.Set(metrics.RelationGroups, len(m.graph.Groups()))
}

func (m *Manager[U, G, P, A]) setEntityTypeCounts() {
	m.sink.Set(metrics.RelationEntityTypes, len(m.entityTypes))
	entityCount := 0
	for _, entities := range m.entityTypes {
		entityCount += len(entities)
	}
	m.sink.Set(metrics.RelationEntities, entityCount)
}

func (m *Manager[U, G, P, A]) setMappingCounts() {
	u2g := 0
	for _, u := range m.graph.Users() {
		u2g += len(m.graph.GroupsOfUser(u))
	}
	m.sink.Set(metrics.RelationUserToGroupMappings, u2g)

	g2g := 0
	for _, gr := range m.graph.Groups() {
		g2g += len(m.graph.ChildGroups(gr))
	}
	m.sink.Set(metrics.RelationGroupToGroupMappings, g2g)

	uc := 0
	for _, s := range m.userComponents {
		uc += len(s)
	}
	m.sink.Set(metrics.RelationUserToComponentMappings, uc)

	gc := 0
	for _, s := range m.groupComponents {
		gc += len(s)
	}
	m.sink.Set(metrics.RelationGroupToComponentMappings, gc)

	ue := 0
	for _, s := range m.userEntities {
		ue += len(s)
	}
	m.sink.Set(metrics.RelationUserToEntityMappings, ue)

	ge := 0
	for _, s := range m.groupEntities {
		ge += len(s)
	}
	m.sink.Set(metrics.RelationGroupToEntityMappings, ge)
}

// ---- Users ----

// AddUser adds user u. See spec §4.2's Event API / idempotence contract.
func (m *Manager[U, G, P, A]) AddUser(ctx context.Context, u U, opts ...MutationOption) error {
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Users},
		kind:      "UserAdd",
		exists:    func() bool { return m.graph.HasUser(u) },
		apply:     func() error { m.graph.AddUser(u); return nil },
		setCounts: func() { m.sink.Set(metrics.RelationUsers, len(m.graph.Users())) },
		forward: func(ctx context.Context) error {
			return m.forwardUserAdd(ctx, u)
		},
	}, opts...)
}

func (m *Manager[U, G, P, A]) forwardUserAdd(ctx context.Context, u U) error {
	if m.downstream == nil {
		return nil
	}
	return m.downstream.OnUserAdd(ctx, newEventMeta(), u)
}

// RemoveUser removes u, cascading relations 1 (UserToGroup), 3
// (UserToComponent) and 5 (UserToEntity).
func (m *Manager[U, G, P, A]) RemoveUser(ctx context.Context, u U, opts ...MutationOption) error {
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.UserToGroupMap, concurrency.UserToComponentMap, concurrency.UserToEntityMap},
		kind:      "UserRemove",
		exists:    func() bool { return m.graph.HasUser(u) },
		apply: func() {
			for ref := range m.userEntities[u] {
				m.sink.AdjustUserEntityFrequency(u, ref.Type, -1)
			}
			delete(m.userEntities, u)
			delete(m.userComponents, u)
			m.graph.RemoveUser(u)
		},
		setCounts: func() {
			m.setPrimaryCounts()
			m.setMappingCounts()
		},
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserRemove(ctx, newEventMeta(), u)
		},
	}, opts...)
}

// ---- Groups ----

// AddGroup adds group g.
func (m *Manager[U, G, P, A]) AddGroup(ctx context.Context, g G, opts ...MutationOption) error {
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Groups},
		kind:      "GroupAdd",
		exists:    func() bool { return m.graph.HasGroup(g) },
		apply:     func() error { m.graph.AddGroup(g); return nil },
		setCounts: func() { m.sink.Set(metrics.RelationGroups, len(m.graph.Groups())) },
		forward: func(ctx context.Context) error {
			return m.forwardGroupAdd(ctx, g)
		},
	}, opts...)
}

func (m *Manager[U, G, P, A]) forwardGroupAdd(ctx context.Context, g G) error {
	if m.downstream == nil {
		return nil
	}
	return m.downstream.OnGroupAdd(ctx, newEventMeta(), g)
}

// RemoveGroup removes g, cascading relations 1, 2, 4 and 6 in both
// directions.
func (m *Manager[U, G, P, A]) RemoveGroup(ctx context.Context, g G, opts ...MutationOption) error {
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{
			concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap,
			concurrency.GroupToGroupMap, concurrency.GroupToComponentMap, concurrency.GroupToEntityMap,
		},
		kind:   "GroupRemove",
		exists: func() bool { return m.graph.HasGroup(g) },
		apply: func() {
			for ref := range m.groupEntities[g] {
				m.sink.AdjustGroupEntityFrequency(g, ref.Type, -1)
			}
			delete(m.groupEntities, g)
			delete(m.groupComponents, g)
			m.graph.RemoveGroup(g)
		},
		setCounts: func() {
			m.setPrimaryCounts()
			m.setMappingCounts()
		},
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupRemove(ctx, newEventMeta(), g)
		},
	}, opts...)
}

// ---- EntityType / Entity ----

// AddEntityType registers a new entity type with an empty entity set.
func (m *Manager[U, G, P, A]) AddEntityType(ctx context.Context, entityType string, opts ...MutationOption) error {
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Entities},
		kind:      "EntityTypeAdd",
		exists:    func() bool { _, ok := m.entityTypes[entityType]; return ok },
		apply:     func() error { m.entityTypes[entityType] = make(map[string]struct{}); return nil },
		setCounts: m.setEntityTypeCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnEntityTypeAdd(ctx, newEventMeta(), entityType)
		},
	}, opts...)
}

// RemoveEntityType removes entityType, every entity under it, and every
// mapping tuple in relations 5 and 6 referring to that type.
func (m *Manager[U, G, P, A]) RemoveEntityType(ctx context.Context, entityType string, opts ...MutationOption) error {
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Entities, concurrency.UserToEntityMap, concurrency.GroupToEntityMap},
		kind:      "EntityTypeRemove",
		exists:    func() bool { _, ok := m.entityTypes[entityType]; return ok },
		apply: func() {
			for u, refs := range m.userEntities {
				for ref := range refs {
					if ref.Type == entityType {
						m.sink.AdjustUserEntityFrequency(u, entityType, -1)
						delete(refs, ref)
					}
				}
			}
			for g, refs := range m.groupEntities {
				for ref := range refs {
					if ref.Type == entityType {
						m.sink.AdjustGroupEntityFrequency(g, entityType, -1)
						delete(refs, ref)
					}
				}
			}
			delete(m.entityTypes, entityType)
		},
		setCounts: func() {
			m.setEntityTypeCounts()
			m.setMappingCounts()
		},
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnEntityTypeRemove(ctx, newEventMeta(), entityType)
		},
	}, opts...)
}

// AddEntity adds entity under entityType. If entityType is absent it fails
// with NotFound, except under DependencyFree, where the entity type is
// synthesized first as a prerequisite, the same way mapping events
// synthesize theirs (see userEntityPrereqs/groupEntityPrereqs).
func (m *Manager[U, G, P, A]) AddEntity(ctx context.Context, entityType, entity string, opts ...MutationOption) error {
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Entities},
		kind:      "EntityAdd",
		exists: func() bool {
			set, ok := m.entityTypes[entityType]
			if !ok {
				return false
			}
			_, ok = set[entity]
			return ok
		},
		prereqs: func(ctx context.Context) error {
			if _, ok := m.entityTypes[entityType]; ok {
				return nil
			}
			if !m.dependencyFree {
				return accesserrors.NotFound("entity type %q not present", entityType)
			}
			return m.synthesizeEntityType(ctx, entityType)
		},
		apply:     func() error { m.entityTypes[entityType][entity] = struct{}{}; return nil },
		setCounts: m.setEntityTypeCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnEntityAdd(ctx, newEventMeta(), entityType, entity)
		},
	}, opts...)
}

// RemoveEntity removes entity from entityType and all mapping tuples in
// relations 5 and 6 referring to it.
func (m *Manager[U, G, P, A]) RemoveEntity(ctx context.Context, entityType, entity string, opts ...MutationOption) error {
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Entities, concurrency.UserToEntityMap, concurrency.GroupToEntityMap},
		kind:      "EntityRemove",
		exists: func() bool {
			set, ok := m.entityTypes[entityType]
			if !ok {
				return false
			}
			_, ok = set[entity]
			return ok
		},
		apply: func() {
			ref := EntityRef{Type: entityType, Entity: entity}
			for u, refs := range m.userEntities {
				if _, ok := refs[ref]; ok {
					delete(refs, ref)
					m.sink.AdjustUserEntityFrequency(u, entityType, -1)
				}
			}
			for g, refs := range m.groupEntities {
				if _, ok := refs[ref]; ok {
					delete(refs, ref)
					m.sink.AdjustGroupEntityFrequency(g, entityType, -1)
				}
			}
			delete(m.entityTypes[entityType], entity)
		},
		setCounts: func() {
			m.setEntityTypeCounts()
			m.setMappingCounts()
		},
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnEntityRemove(ctx, newEventMeta(), entityType, entity)
		},
	}, opts...)
}

// ---- UserToGroup ----

// AddUserToGroupMapping adds u->g. Under DependencyFree, absent u and/or
// g are synthesized first (relation 1's prerequisite elements).
func (m *Manager[U, G, P, A]) AddUserToGroupMapping(ctx context.Context, u U, g G, opts ...MutationOption) error {
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap},
		kind:      "UserToGroupAdd",
		exists:    func() bool { return m.graph.HasUser(u) && hasEdge(m.graph.GroupsOfUser(u), g) },
		prereqs: func(ctx context.Context) error {
			return m.userGroupPrereqs(ctx, u, g)
		},
		apply: func() error { _, err := m.graph.AddUserToGroupEdge(u, g); return err },
		setCounts: func() {
			m.setMappingCounts()
		},
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserToGroupAdd(ctx, newEventMeta(), u, g)
		},
	}, opts...)
}

// RemoveUserToGroupMapping removes u->g.
func (m *Manager[U, G, P, A]) RemoveUserToGroupMapping(ctx context.Context, u U, g G, opts ...MutationOption) error {
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap},
		kind:      "UserToGroupRemove",
		exists:    func() bool { return hasEdge(m.graph.GroupsOfUser(u), g) },
		apply:     func() { _ = m.graph.RemoveUserToGroupEdge(u, g) },
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserToGroupRemove(ctx, newEventMeta(), u, g)
		},
	}, opts...)
}

// ---- GroupToGroup ----

// AddGroupToGroupMapping adds from->to. Fails with CycleDetected when to
// can already reach from transitively.
func (m *Manager[U, G, P, A]) AddGroupToGroupMapping(ctx context.Context, from, to G, opts ...MutationOption) error {
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Groups, concurrency.GroupToGroupMap},
		kind:      "GroupToGroupAdd",
		exists:    func() bool { return hasEdge(m.graph.ChildGroups(from), to) },
		prereqs: func(ctx context.Context) error {
			return m.groupGroupPrereqs(ctx, from, to)
		},
		apply: func() error {
			_, err := m.graph.AddGroupToGroupEdge(from, to)
			return err
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupToGroupAdd(ctx, newEventMeta(), from, to)
		},
	}, opts...)
}

// RemoveGroupToGroupMapping removes from->to.
func (m *Manager[U, G, P, A]) RemoveGroupToGroupMapping(ctx context.Context, from, to G, opts ...MutationOption) error {
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Groups, concurrency.GroupToGroupMap},
		kind:      "GroupToGroupRemove",
		exists:    func() bool { return hasEdge(m.graph.ChildGroups(from), to) },
		apply:     func() { _ = m.graph.RemoveGroupToGroupEdge(from, to) },
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupToGroupRemove(ctx, newEventMeta(), from, to)
		},
	}, opts...)
}

// ---- UserToComponent ----

// AddUserToApplicationComponentAndAccessLevelMapping adds (u,p,a).
func (m *Manager[U, G, P, A]) AddUserToApplicationComponentAndAccessLevelMapping(ctx context.Context, u U, p P, a A, opts ...MutationOption) error {
	key := ComponentAccess[P, A]{Component: p, Access: a}
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.UserToComponentMap},
		kind:      "UserToComponentAdd",
		exists:    func() bool { _, ok := m.userComponents[u][key]; return ok },
		prereqs: func(ctx context.Context) error {
			return m.userPrereq(ctx, u)
		},
		apply: func() error {
			if m.userComponents[u] == nil {
				m.userComponents[u] = make(map[ComponentAccess[P, A]]struct{})
			}
			m.userComponents[u][key] = struct{}{}
			return nil
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserToComponentAdd(ctx, newEventMeta(), u, p, a)
		},
	}, opts...)
}

// RemoveUserToApplicationComponentAndAccessLevelMapping removes (u,p,a).
func (m *Manager[U, G, P, A]) RemoveUserToApplicationComponentAndAccessLevelMapping(ctx context.Context, u U, p P, a A, opts ...MutationOption) error {
	key := ComponentAccess[P, A]{Component: p, Access: a}
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.UserToComponentMap},
		kind:      "UserToComponentRemove",
		exists:    func() bool { _, ok := m.userComponents[u][key]; return ok },
		apply:     func() { delete(m.userComponents[u], key) },
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserToComponentRemove(ctx, newEventMeta(), u, p, a)
		},
	}, opts...)
}

// ---- GroupToComponent ----

// AddGroupToApplicationComponentAndAccessLevelMapping adds (g,p,a).
func (m *Manager[U, G, P, A]) AddGroupToApplicationComponentAndAccessLevelMapping(ctx context.Context, g G, p P, a A, opts ...MutationOption) error {
	key := ComponentAccess[P, A]{Component: p, Access: a}
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Groups, concurrency.GroupToComponentMap},
		kind:      "GroupToComponentAdd",
		exists:    func() bool { _, ok := m.groupComponents[g][key]; return ok },
		prereqs: func(ctx context.Context) error {
			return m.groupPrereq(ctx, g)
		},
		apply: func() error {
			if m.groupComponents[g] == nil {
				m.groupComponents[g] = make(map[ComponentAccess[P, A]]struct{})
			}
			m.groupComponents[g][key] = struct{}{}
			return nil
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupToComponentAdd(ctx, newEventMeta(), g, p, a)
		},
	}, opts...)
}

// RemoveGroupToApplicationComponentAndAccessLevelMapping removes (g,p,a).
func (m *Manager[U, G, P, A]) RemoveGroupToApplicationComponentAndAccessLevelMapping(ctx context.Context, g G, p P, a A, opts ...MutationOption) error {
	key := ComponentAccess[P, A]{Component: p, Access: a}
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Groups, concurrency.GroupToComponentMap},
		kind:      "GroupToComponentRemove",
		exists:    func() bool { _, ok := m.groupComponents[g][key]; return ok },
		apply:     func() { delete(m.groupComponents[g], key) },
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupToComponentRemove(ctx, newEventMeta(), g, p, a)
		},
	}, opts...)
}

// ---- UserToEntity ----

// AddUserToEntityMapping adds (u, entityType, entity).
func (m *Manager[U, G, P, A]) AddUserToEntityMapping(ctx context.Context, u U, entityType, entity string, opts ...MutationOption) error {
	ref := EntityRef{Type: entityType, Entity: entity}
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.Entities, concurrency.UserToEntityMap},
		kind:      "UserToEntityAdd",
		exists:    func() bool { _, ok := m.userEntities[u][ref]; return ok },
		prereqs: func(ctx context.Context) error {
			return m.userEntityPrereqs(ctx, u, entityType, entity)
		},
		apply: func() error {
			if m.userEntities[u] == nil {
				m.userEntities[u] = make(map[EntityRef]struct{})
			}
			m.userEntities[u][ref] = struct{}{}
			m.sink.AdjustUserEntityFrequency(u, entityType, 1)
			return nil
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserToEntityAdd(ctx, newEventMeta(), u, entityType, entity)
		},
	}, opts...)
}

// RemoveUserToEntityMapping removes (u, entityType, entity).
func (m *Manager[U, G, P, A]) RemoveUserToEntityMapping(ctx context.Context, u U, entityType, entity string, opts ...MutationOption) error {
	ref := EntityRef{Type: entityType, Entity: entity}
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Users, concurrency.Entities, concurrency.UserToEntityMap},
		kind:      "UserToEntityRemove",
		exists:    func() bool { _, ok := m.userEntities[u][ref]; return ok },
		apply: func() {
			delete(m.userEntities[u], ref)
			m.sink.AdjustUserEntityFrequency(u, entityType, -1)
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnUserToEntityRemove(ctx, newEventMeta(), u, entityType, entity)
		},
	}, opts...)
}

// ---- GroupToEntity ----

// AddGroupToEntityMapping adds (g, entityType, entity).
func (m *Manager[U, G, P, A]) AddGroupToEntityMapping(ctx context.Context, g G, entityType, entity string, opts ...MutationOption) error {
	ref := EntityRef{Type: entityType, Entity: entity}
	return m.doAdd(ctx, addSpec{
		resources: []concurrency.Resource{concurrency.Groups, concurrency.Entities, concurrency.GroupToEntityMap},
		kind:      "GroupToEntityAdd",
		exists:    func() bool { _, ok := m.groupEntities[g][ref]; return ok },
		prereqs: func(ctx context.Context) error {
			return m.groupEntityPrereqs(ctx, g, entityType, entity)
		},
		apply: func() error {
			if m.groupEntities[g] == nil {
				m.groupEntities[g] = make(map[EntityRef]struct{})
			}
			m.groupEntities[g][ref] = struct{}{}
			m.sink.AdjustGroupEntityFrequency(g, entityType, 1)
			return nil
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupToEntityAdd(ctx, newEventMeta(), g, entityType, entity)
		},
	}, opts...)
}

// RemoveGroupToEntityMapping removes (g, entityType, entity).
func (m *Manager[U, G, P, A]) RemoveGroupToEntityMapping(ctx context.Context, g G, entityType, entity string, opts ...MutationOption) error {
	ref := EntityRef{Type: entityType, Entity: entity}
	return m.doRemove(ctx, removeSpec{
		resources: []concurrency.Resource{concurrency.Groups, concurrency.Entities, concurrency.GroupToEntityMap},
		kind:      "GroupToEntityRemove",
		exists:    func() bool { _, ok := m.groupEntities[g][ref]; return ok },
		apply: func() {
			delete(m.groupEntities[g], ref)
			m.sink.AdjustGroupEntityFrequency(g, entityType, -1)
		},
		setCounts: m.setMappingCounts,
		forward: func(ctx context.Context) error {
			if m.downstream == nil {
				return nil
			}
			return m.downstream.OnGroupToEntityRemove(ctx, newEventMeta(), g, entityType, entity)
		},
	}, opts...)
}

// ---- Clear ----

// Clear empties every primary set and mapping relation and resets every
// tally counter to 0. It takes every resource this Manager guards.
func (m *Manager[U, G, P, A]) Clear(ctx context.Context) {
	release := m.guard.Acquire(concurrency.Write,
		concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap, concurrency.GroupToGroupMap,
		concurrency.UserToComponentMap, concurrency.GroupToComponentMap, concurrency.Entities,
		concurrency.UserToEntityMap, concurrency.GroupToEntityMap,
	)
	defer release()

	m.graph = graph.New[U, G]()
	m.entityTypes = make(map[string]map[string]struct{})
	m.userComponents = make(map[U]map[ComponentAccess[P, A]]struct{})
	m.groupComponents = make(map[G]map[ComponentAccess[P, A]]struct{})
	m.userEntities = make(map[U]map[EntityRef]struct{})
	m.groupEntities = make(map[G]map[EntityRef]struct{})

	m.setPrimaryCounts()
	m.setEntityTypeCounts()
	m.setMappingCounts()
}

// ---- dependency-free prerequisite synthesis (C5) ----

func (m *Manager[U, G, P, A]) synthesizeUser(ctx context.Context, u U) error {
	if m.graph.HasUser(u) {
		return nil
	}
	id := m.sink.Begin("UserAdd")
	m.graph.AddUser(u)
	if err := m.forwardUserAdd(ctx, u); err != nil {
		m.sink.CancelBegin(id, "UserAdd")
		return err
	}
	m.sink.End(id, "UserAdd")
	m.sink.Increment("UserAdd")
	m.setPrimaryCounts()
	return nil
}

func (m *Manager[U, G, P, A]) synthesizeGroup(ctx context.Context, g G) error {
	if m.graph.HasGroup(g) {
		return nil
	}
	id := m.sink.Begin("GroupAdd")
	m.graph.AddGroup(g)
	if err := m.forwardGroupAdd(ctx, g); err != nil {
		m.sink.CancelBegin(id, "GroupAdd")
		return err
	}
	m.sink.End(id, "GroupAdd")
	m.sink.Increment("GroupAdd")
	m.setPrimaryCounts()
	return nil
}

func (m *Manager[U, G, P, A]) synthesizeEntityType(ctx context.Context, entityType string) error {
	if _, ok := m.entityTypes[entityType]; ok {
		return nil
	}
	id := m.sink.Begin("EntityTypeAdd")
	m.entityTypes[entityType] = make(map[string]struct{})
	if m.downstream != nil {
		if err := m.downstream.OnEntityTypeAdd(ctx, newEventMeta(), entityType); err != nil {
			m.sink.CancelBegin(id, "EntityTypeAdd")
			return err
		}
	}
	m.sink.End(id, "EntityTypeAdd")
	m.sink.Increment("EntityTypeAdd")
	m.setEntityTypeCounts()
	return nil
}

func (m *Manager[U, G, P, A]) synthesizeEntity(ctx context.Context, entityType, entity string) error {
	if err := m.synthesizeEntityType(ctx, entityType); err != nil {
		return err
	}
	if _, ok := m.entityTypes[entityType][entity]; ok {
		return nil
	}
	id := m.sink.Begin("EntityAdd")
	m.entityTypes[entityType][entity] = struct{}{}
	if m.downstream != nil {
		if err := m.downstream.OnEntityAdd(ctx, newEventMeta(), entityType, entity); err != nil {
			m.sink.CancelBegin(id, "EntityAdd")
			return err
		}
	}
	m.sink.End(id, "EntityAdd")
	m.sink.Increment("EntityAdd")
	m.setEntityTypeCounts()
	return nil
}

func (m *Manager[U, G, P, A]) userGroupPrereqs(ctx context.Context, u U, g G) error {
	if !m.graph.HasUser(u) {
		if !m.dependencyFree {
			return accesserrors.NotFound("user not present")
		}
		if err := m.synthesizeUser(ctx, u); err != nil {
			return err
		}
	}
	if !m.graph.HasGroup(g) {
		if !m.dependencyFree {
			return accesserrors.NotFound("group not present")
		}
		if err := m.synthesizeGroup(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager[U, G, P, A]) groupGroupPrereqs(ctx context.Context, from, to G) error {
	if !m.graph.HasGroup(from) {
		if !m.dependencyFree {
			return accesserrors.NotFound("group not present")
		}
		if err := m.synthesizeGroup(ctx, from); err != nil {
			return err
		}
	}
	if !m.graph.HasGroup(to) {
		if !m.dependencyFree {
			return accesserrors.NotFound("group not present")
		}
		if err := m.synthesizeGroup(ctx, to); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager[U, G, P, A]) userPrereq(ctx context.Context, u U) error {
	if m.graph.HasUser(u) {
		return nil
	}
	if !m.dependencyFree {
		return accesserrors.NotFound("user not present")
	}
	return m.synthesizeUser(ctx, u)
}

func (m *Manager[U, G, P, A]) groupPrereq(ctx context.Context, g G) error {
	if m.graph.HasGroup(g) {
		return nil
	}
	if !m.dependencyFree {
		return accesserrors.NotFound("group not present")
	}
	return m.synthesizeGroup(ctx, g)
}

func (m *Manager[U, G, P, A]) userEntityPrereqs(ctx context.Context, u U, entityType, entity string) error {
	if err := m.userPrereq(ctx, u); err != nil {
		return err
	}
	set, ok := m.entityTypes[entityType]
	entityPresent := ok
	if ok {
		_, entityPresent = set[entity]
	}
	if ok && entityPresent {
		return nil
	}
	if !m.dependencyFree {
		return accesserrors.NotFound("entity %s/%s not present", entityType, entity)
	}
	return m.synthesizeEntity(ctx, entityType, entity)
}

func (m *Manager[U, G, P, A]) groupEntityPrereqs(ctx context.Context, g G, entityType, entity string) error {
	if err := m.groupPrereq(ctx, g); err != nil {
		return err
	}
	set, ok := m.entityTypes[entityType]
	entityPresent := ok
	if ok {
		_, entityPresent = set[entity]
	}
	if ok && entityPresent {
		return nil
	}
	if !m.dependencyFree {
		return accesserrors.NotFound("entity %s/%s not present", entityType, entity)
	}
	return m.synthesizeEntity(ctx, entityType, entity)
}

func hasEdge[G comparable](neighbors []G, target G) bool {
	for _, n := range neighbors {
		if n == target {
			return true
		}
	}
	return false
}
