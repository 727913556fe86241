// Package graph implements the directed multigraph underlying the access
// manager: a bipartite User->Group graph and a general Group->Group graph,
// sharing the group identifier space so that reachability queries can walk
// from a user through its direct groups and onward through nested groups.
//
// Graph itself holds no lock; callers (internal/accessmanager) serialize
// access to it through internal/concurrency.Guard. This mirrors the
// aggregate/repository split the rest of the codebase uses elsewhere:
// the aggregate owns structure, something above it owns concurrency.
package graph

import (
	"fmt"

	"github.com/accessgraph/engine/internal/accesserrors"
)

// Graph is a directed multigraph over two node kinds: U (user identifiers)
// and G (group identifiers). Both type parameters must be comparable so
// they can key Go maps directly; identifiers are stored by value.
type Graph[U comparable, G comparable] struct {
	users  map[U]struct{}
	groups map[G]struct{}

	// userGroups / groupUsers: the bipartite User->Group edge set, indexed
	// both ways so neighbor enumeration is O(degree) in either direction.
	userGroups map[U]map[G]struct{}
	groupUsers map[G]map[U]struct{}

	// groupGroupsFwd / groupGroupsRev: the general Group->Group edge set.
	groupGroupsFwd map[G]map[G]struct{}
	groupGroupsRev map[G]map[G]struct{}
}

// New returns an empty graph.
func New[U comparable, G comparable]() *Graph[U, G] {
	return &Graph[U, G]{
		users:          make(map[U]struct{}),
		groups:         make(map[G]struct{}),
		userGroups:     make(map[U]map[G]struct{}),
		groupUsers:     make(map[G]map[U]struct{}),
		groupGroupsFwd: make(map[G]map[G]struct{}),
		groupGroupsRev: make(map[G]map[G]struct{}),
	}
}

// AddUser inserts a user node. Reports whether it was newly added.
func (g *Graph[U, G]) AddUser(u U) bool {
	if _, ok := g.users[u]; ok {
		return false
	}
	g.users[u] = struct{}{}
	g.userGroups[u] = make(map[G]struct{})
	return true
}

// HasUser reports whether u is present.
func (g *Graph[U, G]) HasUser(u U) bool {
	_, ok := g.users[u]
	return ok
}

// RemoveUser deletes a user node and every incident User->Group edge.
// Reports whether the user was present.
func (g *Graph[U, G]) RemoveUser(u U) bool {
	if _, ok := g.users[u]; !ok {
		return false
	}
	for gr := range g.userGroups[u] {
		delete(g.groupUsers[gr], u)
	}
	delete(g.userGroups, u)
	delete(g.users, u)
	return true
}

// AddGroup inserts a group node. Reports whether it was newly added.
func (g *Graph[U, G]) AddGroup(gr G) bool {
	if _, ok := g.groups[gr]; ok {
		return false
	}
	g.groups[gr] = struct{}{}
	g.groupUsers[gr] = make(map[U]struct{})
	g.groupGroupsFwd[gr] = make(map[G]struct{})
	g.groupGroupsRev[gr] = make(map[G]struct{})
	return true
}

// HasGroup reports whether gr is present.
func (g *Graph[U, G]) HasGroup(gr G) bool {
	_, ok := g.groups[gr]
	return ok
}

// RemoveGroup deletes a group node and every incident edge: the bipartite
// edges to users in both directions, and the Group->Group edges in both
// directions.
func (g *Graph[U, G]) RemoveGroup(gr G) bool {
	if _, ok := g.groups[gr]; !ok {
		return false
	}
	for u := range g.groupUsers[gr] {
		delete(g.userGroups[u], gr)
	}
	for child := range g.groupGroupsFwd[gr] {
		delete(g.groupGroupsRev[child], gr)
	}
	for parent := range g.groupGroupsRev[gr] {
		delete(g.groupGroupsFwd[parent], gr)
	}
	delete(g.groupUsers, gr)
	delete(g.groupGroupsFwd, gr)
	delete(g.groupGroupsRev, gr)
	delete(g.groups, gr)
	return true
}

// AddUserToGroupEdge inserts u->gr. Returns wasNew=false and leaves the
// graph unchanged if the edge already exists (idempotent add). Fails with
// NotFound if either endpoint is absent.
func (g *Graph[U, G]) AddUserToGroupEdge(u U, gr G) (bool, error) {
	if _, ok := g.users[u]; !ok {
		return false, accesserrors.NotFound("user not present in graph")
	}
	if _, ok := g.groups[gr]; !ok {
		return false, accesserrors.NotFound("group not present in graph")
	}
	if _, ok := g.userGroups[u][gr]; ok {
		return false, nil
	}
	g.userGroups[u][gr] = struct{}{}
	g.groupUsers[gr][u] = struct{}{}
	return true, nil
}

// RemoveUserToGroupEdge deletes u->gr. Fails with NotFound when absent.
func (g *Graph[U, G]) RemoveUserToGroupEdge(u U, gr G) error {
	if _, ok := g.userGroups[u][gr]; !ok {
		return accesserrors.NotFound("user->group edge not present")
	}
	delete(g.userGroups[u], gr)
	delete(g.groupUsers[gr], u)
	return nil
}

// AddGroupToGroupEdge inserts from->to. Rejects the edge with
// CycleDetected when `to` can already reach `from` transitively (which
// would close a cycle). Idempotent: re-adding an existing edge returns
// wasNew=false and succeeds even though `to` trivially reaches `from`'s
// neighborhood through the edge itself — the cycle check only runs for
// genuinely new edges.
func (g *Graph[U, G]) AddGroupToGroupEdge(from, to G) (bool, error) {
	if _, ok := g.groups[from]; !ok {
		return false, accesserrors.NotFound("group not present in graph")
	}
	if _, ok := g.groups[to]; !ok {
		return false, accesserrors.NotFound("group not present in graph")
	}
	if _, ok := g.groupGroupsFwd[from][to]; ok {
		return false, nil
	}
	if g.groupReaches(to, from) {
		return false, accesserrors.CycleDetected(fmt.Sprintf("%v", from), fmt.Sprintf("%v", to))
	}
	g.groupGroupsFwd[from][to] = struct{}{}
	g.groupGroupsRev[to][from] = struct{}{}
	return true, nil
}

// RemoveGroupToGroupEdge deletes from->to. Fails with NotFound when absent.
func (g *Graph[U, G]) RemoveGroupToGroupEdge(from, to G) error {
	if _, ok := g.groupGroupsFwd[from][to]; !ok {
		return accesserrors.NotFound("group->group edge not present")
	}
	delete(g.groupGroupsFwd[from], to)
	delete(g.groupGroupsRev[to], from)
	return nil
}

// GroupsOfUser returns the groups u directly belongs to.
func (g *Graph[U, G]) GroupsOfUser(u U) []G {
	return keysOf(g.userGroups[u])
}

// UsersOfGroup returns the users directly mapped to gr.
func (g *Graph[U, G]) UsersOfGroup(gr G) []U {
	return keysOf(g.groupUsers[gr])
}

// ChildGroups returns the groups gr directly points to.
func (g *Graph[U, G]) ChildGroups(gr G) []G {
	return keysOf(g.groupGroupsFwd[gr])
}

// ParentGroups returns the groups that directly point to gr.
func (g *Graph[U, G]) ParentGroups(gr G) []G {
	return keysOf(g.groupGroupsRev[gr])
}

// Users returns every user node.
func (g *Graph[U, G]) Users() []U { return keysOf(g.users) }

// Groups returns every group node.
func (g *Graph[U, G]) Groups() []G { return keysOf(g.groups) }

// TraverseGroups runs a BFS over the Group->Group forward adjacency
// starting at start's direct children; start itself is never visited.
// visit is called once per reachable group; returning false aborts the
// traversal early.
func (g *Graph[U, G]) TraverseGroups(start G, visit func(G) bool) {
	g.bfs(start, g.groupGroupsFwd, visit)
}

// TraverseGroupsReverse is TraverseGroups over the reverse adjacency:
// it walks groups that (directly or transitively) point at start.
func (g *Graph[U, G]) TraverseGroupsReverse(start G, visit func(G) bool) {
	g.bfs(start, g.groupGroupsRev, visit)
}

// ReachableGroups returns every group reachable by following forward
// Group->Group edges from start (start excluded). This is reach*(start)
// when start is itself a group already in a user's direct-group set.
func (g *Graph[U, G]) ReachableGroups(start G) []G {
	var out []G
	g.TraverseGroups(start, func(gr G) bool {
		out = append(out, gr)
		return true
	})
	return out
}

// ReachableGroupsFromUser returns every group u can reach: its direct
// groups plus every group transitively reachable from each of them.
func (g *Graph[U, G]) ReachableGroupsFromUser(u U) []G {
	seen := make(map[G]struct{})
	var out []G
	for _, direct := range g.GroupsOfUser(u) {
		if _, ok := seen[direct]; !ok {
			seen[direct] = struct{}{}
			out = append(out, direct)
		}
		g.TraverseGroups(direct, func(gr G) bool {
			if _, ok := seen[gr]; !ok {
				seen[gr] = struct{}{}
				out = append(out, gr)
			}
			return true
		})
	}
	return out
}

// groupReaches reports whether a group-to-group forward path exists from
// start to target (used by the cycle check: target reaches start means
// adding start->target would close a cycle).
func (g *Graph[U, G]) groupReaches(start, target G) bool {
	if equalG(start, target) {
		return true
	}
	found := false
	g.bfs(start, g.groupGroupsFwd, func(gr G) bool {
		if equalG(gr, target) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (g *Graph[U, G]) bfs(start G, adj map[G]map[G]struct{}, visit func(G) bool) {
	visited := make(map[G]struct{})
	queue := append([]G{}, keysOf(adj[start])...)
	for _, n := range queue {
		visited[n] = struct{}{}
	}
	for i := 0; i < len(queue); i++ {
		current := queue[i]
		if !visit(current) {
			return
		}
		for next := range adj[current] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
}

func equalG[G comparable](a, b G) bool { return a == b }

func keysOf[K comparable, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
