package accessmanager

import (
	"github.com/accessgraph/engine/internal/concurrency"
)

// ContainsUser reports whether u is a known user.
func (m *Manager[U, G, P, A]) ContainsUser(u U) bool {
	release := m.guard.Acquire(concurrency.Read, concurrency.Users)
	defer release()
	return m.graph.HasUser(u)
}

// ContainsGroup reports whether g is a known group.
func (m *Manager[U, G, P, A]) ContainsGroup(g G) bool {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups)
	defer release()
	return m.graph.HasGroup(g)
}

// ContainsEntityType reports whether entityType is registered.
func (m *Manager[U, G, P, A]) ContainsEntityType(entityType string) bool {
	release := m.guard.Acquire(concurrency.Read, concurrency.Entities)
	defer release()
	_, ok := m.entityTypes[entityType]
	return ok
}

// ContainsEntity reports whether entity is registered under entityType.
func (m *Manager[U, G, P, A]) ContainsEntity(entityType, entity string) bool {
	release := m.guard.Acquire(concurrency.Read, concurrency.Entities)
	defer release()
	set, ok := m.entityTypes[entityType]
	if !ok {
		return false
	}
	_, ok = set[entity]
	return ok
}

// Users returns every known user.
func (m *Manager[U, G, P, A]) Users() []U {
	release := m.guard.Acquire(concurrency.Read, concurrency.Users)
	defer release()
	return m.graph.Users()
}

// Groups returns every known group.
func (m *Manager[U, G, P, A]) Groups() []G {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups)
	defer release()
	return m.graph.Groups()
}

// EntityTypes returns every registered entity type.
func (m *Manager[U, G, P, A]) EntityTypes() []string {
	release := m.guard.Acquire(concurrency.Read, concurrency.Entities)
	defer release()
	out := make([]string, 0, len(m.entityTypes))
	for t := range m.entityTypes {
		out = append(out, t)
	}
	return out
}

// GetEntities returns every entity registered under entityType.
func (m *Manager[U, G, P, A]) GetEntities(entityType string) []string {
	release := m.guard.Acquire(concurrency.Read, concurrency.Entities)
	defer release()
	set, ok := m.entityTypes[entityType]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// GetUserToGroupMappings returns the groups u directly belongs to. When
// includeIndirect is true it also includes every group transitively
// reachable through those direct groups.
func (m *Manager[U, G, P, A]) GetUserToGroupMappings(u U, includeIndirect bool) []G {
	release := m.guard.Acquire(concurrency.Read, concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap, concurrency.GroupToGroupMap)
	defer release()
	if includeIndirect {
		return m.graph.ReachableGroupsFromUser(u)
	}
	return m.graph.GroupsOfUser(u)
}

// GetGroupToUserMappings returns the users directly mapped to g.
func (m *Manager[U, G, P, A]) GetGroupToUserMappings(g G) []U {
	release := m.guard.Acquire(concurrency.Read, concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap)
	defer release()
	return m.graph.UsersOfGroup(g)
}

// GetGroupToGroupMappings returns the groups g directly points to. When
// includeIndirect is true it also includes every transitively reachable
// group.
func (m *Manager[U, G, P, A]) GetGroupToGroupMappings(g G, includeIndirect bool) []G {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap)
	defer release()
	if includeIndirect {
		return m.graph.ReachableGroups(g)
	}
	return m.graph.ChildGroups(g)
}

// GetGroupToGroupReverseMappings returns the groups that directly point to g.
func (m *Manager[U, G, P, A]) GetGroupToGroupReverseMappings(g G) []G {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap)
	defer release()
	return m.graph.ParentGroups(g)
}

// GetUserToApplicationComponentAndAccessLevelMappings returns every
// (component, access) pair mapped directly to u.
func (m *Manager[U, G, P, A]) GetUserToApplicationComponentAndAccessLevelMappings(u U) []ComponentAccess[P, A] {
	release := m.guard.Acquire(concurrency.Read, concurrency.UserToComponentMap)
	defer release()
	out := make([]ComponentAccess[P, A], 0, len(m.userComponents[u]))
	for ca := range m.userComponents[u] {
		out = append(out, ca)
	}
	return out
}

// GetGroupToApplicationComponentAndAccessLevelMappings returns every
// (component, access) pair mapped directly to g.
func (m *Manager[U, G, P, A]) GetGroupToApplicationComponentAndAccessLevelMappings(g G) []ComponentAccess[P, A] {
	release := m.guard.Acquire(concurrency.Read, concurrency.GroupToComponentMap)
	defer release()
	out := make([]ComponentAccess[P, A], 0, len(m.groupComponents[g]))
	for ca := range m.groupComponents[g] {
		out = append(out, ca)
	}
	return out
}

// GetUserToEntityMappings returns every (entityType, entity) pair mapped
// directly to u.
func (m *Manager[U, G, P, A]) GetUserToEntityMappings(u U) []EntityRef {
	release := m.guard.Acquire(concurrency.Read, concurrency.UserToEntityMap)
	defer release()
	out := make([]EntityRef, 0, len(m.userEntities[u]))
	for ref := range m.userEntities[u] {
		out = append(out, ref)
	}
	return out
}

// GetUserToEntityMappingsForType returns every entity of entityType mapped
// directly to u.
func (m *Manager[U, G, P, A]) GetUserToEntityMappingsForType(u U, entityType string) []string {
	release := m.guard.Acquire(concurrency.Read, concurrency.UserToEntityMap)
	defer release()
	var out []string
	for ref := range m.userEntities[u] {
		if ref.Type == entityType {
			out = append(out, ref.Entity)
		}
	}
	return out
}

// GetGroupToEntityMappings returns every (entityType, entity) pair mapped
// directly to g.
func (m *Manager[U, G, P, A]) GetGroupToEntityMappings(g G) []EntityRef {
	release := m.guard.Acquire(concurrency.Read, concurrency.GroupToEntityMap)
	defer release()
	out := make([]EntityRef, 0, len(m.groupEntities[g]))
	for ref := range m.groupEntities[g] {
		out = append(out, ref)
	}
	return out
}

// GetGroupToEntityMappingsForType returns every entity of entityType
// mapped directly to g.
func (m *Manager[U, G, P, A]) GetGroupToEntityMappingsForType(g G, entityType string) []string {
	release := m.guard.Acquire(concurrency.Read, concurrency.GroupToEntityMap)
	defer release()
	var out []string
	for ref := range m.groupEntities[g] {
		if ref.Type == entityType {
			out = append(out, ref.Entity)
		}
	}
	return out
}

// HasAccessToApplicationComponent reports whether u has (component, access)
// either directly, or indirectly through any group u can reach.
func (m *Manager[U, G, P, A]) HasAccessToApplicationComponent(u U, p P, a A) bool {
	release := m.guard.Acquire(concurrency.Read,
		concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap, concurrency.GroupToGroupMap,
		concurrency.UserToComponentMap, concurrency.GroupToComponentMap,
	)
	defer release()
	key := ComponentAccess[P, A]{Component: p, Access: a}
	if _, ok := m.userComponents[u][key]; ok {
		return true
	}
	for _, g := range m.graph.ReachableGroupsFromUser(u) {
		if _, ok := m.groupComponents[g][key]; ok {
			return true
		}
	}
	return false
}

// HasAccessToEntity reports whether u has access to (entityType, entity)
// either directly, or indirectly through any group u can reach.
func (m *Manager[U, G, P, A]) HasAccessToEntity(u U, entityType, entity string) bool {
	release := m.guard.Acquire(concurrency.Read,
		concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap, concurrency.GroupToGroupMap,
		concurrency.UserToEntityMap, concurrency.GroupToEntityMap,
	)
	defer release()
	ref := EntityRef{Type: entityType, Entity: entity}
	if _, ok := m.userEntities[u][ref]; ok {
		return true
	}
	for _, g := range m.graph.ReachableGroupsFromUser(u) {
		if _, ok := m.groupEntities[g][ref]; ok {
			return true
		}
	}
	return false
}

// HasAccessToApplicationComponentForGroups reports whether (component,
// access) is reachable starting from groups directly or through any group
// any of them can reach. Unlike HasAccessToApplicationComponent it never
// consults a user-to-group mapping: groups is the frontier, not a lookup
// key, which is what lets the coordinator fan this check out to group
// shards without first resolving a user.
func (m *Manager[U, G, P, A]) HasAccessToApplicationComponentForGroups(groups []G, p P, a A) bool {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap, concurrency.GroupToComponentMap)
	defer release()
	key := ComponentAccess[P, A]{Component: p, Access: a}
	for _, g := range groups {
		if _, ok := m.groupComponents[g][key]; ok {
			return true
		}
		for _, reached := range m.graph.ReachableGroups(g) {
			if _, ok := m.groupComponents[reached][key]; ok {
				return true
			}
		}
	}
	return false
}

// HasAccessToEntityForGroups reports whether (entityType, entity) is
// reachable starting from groups directly or through any group any of
// them can reach, skipping user-to-group lookup the same way
// HasAccessToApplicationComponentForGroups does.
func (m *Manager[U, G, P, A]) HasAccessToEntityForGroups(groups []G, entityType, entity string) bool {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap, concurrency.GroupToEntityMap)
	defer release()
	ref := EntityRef{Type: entityType, Entity: entity}
	for _, g := range groups {
		if _, ok := m.groupEntities[g][ref]; ok {
			return true
		}
		for _, reached := range m.graph.ReachableGroups(g) {
			if _, ok := m.groupEntities[reached][ref]; ok {
				return true
			}
		}
	}
	return false
}

// GetApplicationComponentsAccessibleByGroups returns the distinct
// (component, access) pairs reachable starting from groups, directly or
// through any group any of them can reach. groups is the starting
// frontier; no user-to-group lookup happens here.
func (m *Manager[U, G, P, A]) GetApplicationComponentsAccessibleByGroups(groups []G) []ComponentAccess[P, A] {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap, concurrency.GroupToComponentMap)
	defer release()

	seen := make(map[ComponentAccess[P, A]]struct{})
	var out []ComponentAccess[P, A]
	add := func(ca ComponentAccess[P, A]) {
		if _, ok := seen[ca]; !ok {
			seen[ca] = struct{}{}
			out = append(out, ca)
		}
	}
	for _, g := range groups {
		for ca := range m.groupComponents[g] {
			add(ca)
		}
		for _, reached := range m.graph.ReachableGroups(g) {
			for ca := range m.groupComponents[reached] {
				add(ca)
			}
		}
	}
	return out
}

// GetEntitiesAccessibleByGroups returns the distinct (entityType, entity)
// pairs reachable starting from groups, directly or through any group any
// of them can reach. groups is the starting frontier; no user-to-group
// lookup happens here.
func (m *Manager[U, G, P, A]) GetEntitiesAccessibleByGroups(groups []G) []EntityRef {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap, concurrency.GroupToEntityMap)
	defer release()

	seen := make(map[EntityRef]struct{})
	var out []EntityRef
	add := func(ref EntityRef) {
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	for _, g := range groups {
		for ref := range m.groupEntities[g] {
			add(ref)
		}
		for _, reached := range m.graph.ReachableGroups(g) {
			for ref := range m.groupEntities[reached] {
				add(ref)
			}
		}
	}
	return out
}

// GetApplicationComponentsAccessibleByUser returns the distinct
// (component, access) pairs reachable by u, directly or through any group
// it can reach.
func (m *Manager[U, G, P, A]) GetApplicationComponentsAccessibleByUser(u U) []ComponentAccess[P, A] {
	release := m.guard.Acquire(concurrency.Read,
		concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap, concurrency.GroupToGroupMap,
		concurrency.UserToComponentMap, concurrency.GroupToComponentMap,
	)
	defer release()

	seen := make(map[ComponentAccess[P, A]]struct{})
	var out []ComponentAccess[P, A]
	for ca := range m.userComponents[u] {
		if _, ok := seen[ca]; !ok {
			seen[ca] = struct{}{}
			out = append(out, ca)
		}
	}
	for _, g := range m.graph.ReachableGroupsFromUser(u) {
		for ca := range m.groupComponents[g] {
			if _, ok := seen[ca]; !ok {
				seen[ca] = struct{}{}
				out = append(out, ca)
			}
		}
	}
	return out
}

// GetApplicationComponentsAccessibleByGroup returns the distinct
// (component, access) pairs reachable by g, directly or through any group
// it can reach.
func (m *Manager[U, G, P, A]) GetApplicationComponentsAccessibleByGroup(g G) []ComponentAccess[P, A] {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap, concurrency.GroupToComponentMap)
	defer release()

	seen := make(map[ComponentAccess[P, A]]struct{})
	var out []ComponentAccess[P, A]
	for ca := range m.groupComponents[g] {
		if _, ok := seen[ca]; !ok {
			seen[ca] = struct{}{}
			out = append(out, ca)
		}
	}
	for _, reached := range m.graph.ReachableGroups(g) {
		for ca := range m.groupComponents[reached] {
			if _, ok := seen[ca]; !ok {
				seen[ca] = struct{}{}
				out = append(out, ca)
			}
		}
	}
	return out
}

// GetEntitiesAccessibleByUser returns the distinct (entityType, entity)
// pairs reachable by u, directly or through any group it can reach.
func (m *Manager[U, G, P, A]) GetEntitiesAccessibleByUser(u U) []EntityRef {
	release := m.guard.Acquire(concurrency.Read,
		concurrency.Users, concurrency.Groups, concurrency.UserToGroupMap, concurrency.GroupToGroupMap,
		concurrency.UserToEntityMap, concurrency.GroupToEntityMap,
	)
	defer release()

	seen := make(map[EntityRef]struct{})
	var out []EntityRef
	for ref := range m.userEntities[u] {
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	for _, g := range m.graph.ReachableGroupsFromUser(u) {
		for ref := range m.groupEntities[g] {
			if _, ok := seen[ref]; !ok {
				seen[ref] = struct{}{}
				out = append(out, ref)
			}
		}
	}
	return out
}

// GetEntitiesAccessibleByGroup returns the distinct (entityType, entity)
// pairs reachable by g, directly or through any group it can reach.
func (m *Manager[U, G, P, A]) GetEntitiesAccessibleByGroup(g G) []EntityRef {
	release := m.guard.Acquire(concurrency.Read, concurrency.Groups, concurrency.GroupToGroupMap, concurrency.GroupToEntityMap)
	defer release()

	seen := make(map[EntityRef]struct{})
	var out []EntityRef
	for ref := range m.groupEntities[g] {
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	for _, reached := range m.graph.ReachableGroups(g) {
		for ref := range m.groupEntities[reached] {
			if _, ok := seen[ref]; !ok {
				seen[ref] = struct{}{}
				out = append(out, ref)
			}
		}
	}
	return out
}

// UserEntityFrequency returns the number of distinct entities of
// entityType directly mapped to u, for metrics/diagnostics.
func (m *Manager[U, G, P, A]) UserEntityFrequency(u U, entityType string) int {
	if s, ok := m.sink.(interface {
		UserEntityFrequency(U, string) int
	}); ok {
		return s.UserEntityFrequency(u, entityType)
	}
	return 0
}

// GroupEntityFrequency returns the number of distinct entities of
// entityType directly mapped to g, for metrics/diagnostics.
func (m *Manager[U, G, P, A]) GroupEntityFrequency(g G, entityType string) int {
	if s, ok := m.sink.(interface {
		GroupEntityFrequency(G, string) int
	}); ok {
		return s.GroupEntityFrequency(g, entityType)
	}
	return 0
}
