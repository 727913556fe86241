// Package metrics implements the metric-logging decorator's emission
// side: interval (begin/end/cancel) metrics, count/amount metrics, and
// the per-principal entity-mapping frequency tables the decorator keeps
// so a primary removal can report the right post-removal count in
// constant time.
//
// Sink is the seam accessmanager.Manager calls through; InMemorySink is
// the default/test backend and CloudWatchSink is the production one,
// grounded on the teacher pack's repository-metrics-decorator idiom
// (buildBaseTags / classifyError / per-operation counters) but emitting
// through a real metrics backend instead of an abstract collector.
package metrics

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind names one interval or count metric emitted around a mutation.
// Kinds mirror the event taxonomy in spec §6. The access manager's query
// methods emit no metrics, so there are no query kinds.
type EventKind string

// RelationKind names one of the six mapping relations (or a primary set)
// whose cardinality is reported via Set.
type RelationKind string

const (
	RelationUsers                  RelationKind = "UsersStored"
	RelationGroups                 RelationKind = "GroupsStored"
	RelationEntityTypes             RelationKind = "EntityTypesStored"
	RelationEntities                RelationKind = "EntitiesStored"
	RelationUserToGroupMappings      RelationKind = "UserToGroupMappingsStored"
	RelationGroupToGroupMappings     RelationKind = "GroupToGroupMappingsStored"
	RelationUserToComponentMappings  RelationKind = "UserToComponentMappingsStored"
	RelationGroupToComponentMappings RelationKind = "GroupToComponentMappingsStored"
	RelationUserToEntityMappings     RelationKind = "UserToEntityMappingsStored"
	RelationGroupToEntityMappings    RelationKind = "GroupToEntityMappingsStored"
)

// BeginID identifies one in-flight interval metric between Begin and its
// matching End/CancelBegin.
type BeginID string

// Sink is the metric emission seam. U and G are the access manager's user
// and group identifier types; they appear only in the per-principal
// entity frequency adjustments.
type Sink[U comparable, G comparable] interface {
	// Begin starts an interval metric for kind and returns an id that
	// must be passed to exactly one later End or CancelBegin call.
	Begin(kind EventKind) BeginID
	// End closes a successful interval.
	End(id BeginID, kind EventKind)
	// CancelBegin closes an interval that did not complete: either the
	// mutation raised, or it was a no-op under idempotent semantics.
	CancelBegin(id BeginID, kind EventKind)
	// Increment bumps a monotonic completed-event counter for kind.
	Increment(kind EventKind)
	// Set reports the current cardinality of relation.
	Set(relation RelationKind, count int)
	// AdjustUserEntityFrequency changes by delta the number of distinct
	// entities of entityType mapped (directly) to user. delta == 0 is a
	// documented no-op: it must never reach the underlying counter as a
	// DecrementBy(0) call.
	AdjustUserEntityFrequency(user U, entityType string, delta int)
	// AdjustGroupEntityFrequency is AdjustUserEntityFrequency for groups.
	AdjustGroupEntityFrequency(group G, entityType string, delta int)
	// Enabled reports whether emission is currently active.
	Enabled() bool
	// SetEnabled toggles emission; mutations still occur either way.
	SetEnabled(enabled bool)
}

// InMemorySink is a dependency-free Sink used by default and in tests. It
// keeps exact tallies and frequency tables, and records every begin/end/
// cancel pair for assertions.
type InMemorySink[U comparable, G comparable] struct {
	mu sync.Mutex

	enabled bool

	completed map[EventKind]int64
	stored    map[RelationKind]int
	userFreq  map[U]map[string]int
	groupFreq map[G]map[string]int

	// events records, in order, every Begin/End/CancelBegin/Increment/Set
	// call — intended for test assertions on wrapping order.
	events []Event
}

// Event is one recorded emission, used by tests asserting on the exact
// prereqs -> metricBegin -> data -> post -> metricClose sequence.
type Event struct {
	Op       string // "begin", "end", "cancelBegin", "increment", "set"
	Kind     EventKind
	Relation RelationKind
	Count    int
	ID       BeginID
}

// NewInMemorySink returns an enabled InMemorySink.
func NewInMemorySink[U comparable, G comparable]() *InMemorySink[U, G] {
	return &InMemorySink[U, G]{
		enabled:   true,
		completed: make(map[EventKind]int64),
		stored:    make(map[RelationKind]int),
		userFreq:  make(map[U]map[string]int),
		groupFreq: make(map[G]map[string]int),
	}
}

func (s *InMemorySink[U, G]) Begin(kind EventKind) BeginID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := BeginID(uuid.NewString())
	if s.enabled {
		s.events = append(s.events, Event{Op: "begin", Kind: kind, ID: id})
	}
	return id
}

func (s *InMemorySink[U, G]) End(id BeginID, kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	s.events = append(s.events, Event{Op: "end", Kind: kind, ID: id})
}

func (s *InMemorySink[U, G]) CancelBegin(id BeginID, kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	s.events = append(s.events, Event{Op: "cancelBegin", Kind: kind, ID: id})
}

func (s *InMemorySink[U, G]) Increment(kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[kind]++
	if s.enabled {
		s.events = append(s.events, Event{Op: "increment", Kind: kind})
	}
}

func (s *InMemorySink[U, G]) Set(relation RelationKind, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[relation] = count
	if s.enabled {
		s.events = append(s.events, Event{Op: "set", Relation: relation, Count: count})
	}
}

func (s *InMemorySink[U, G]) AdjustUserEntityFrequency(user U, entityType string, delta int) {
	if delta == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userFreq[user] == nil {
		s.userFreq[user] = make(map[string]int)
	}
	s.userFreq[user][entityType] += delta
	if s.userFreq[user][entityType] <= 0 {
		delete(s.userFreq[user], entityType)
	}
}

func (s *InMemorySink[U, G]) AdjustGroupEntityFrequency(group G, entityType string, delta int) {
	if delta == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupFreq[group] == nil {
		s.groupFreq[group] = make(map[string]int)
	}
	s.groupFreq[group][entityType] += delta
	if s.groupFreq[group][entityType] <= 0 {
		delete(s.groupFreq[group], entityType)
	}
}

func (s *InMemorySink[U, G]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *InMemorySink[U, G]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Events returns a copy of every recorded emission, in order.
func (s *InMemorySink[U, G]) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Stored returns the last Set value recorded for relation.
func (s *InMemorySink[U, G]) Stored(relation RelationKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[relation]
}

// Completed returns the Increment count recorded for kind.
func (s *InMemorySink[U, G]) Completed(kind EventKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[kind]
}

// UserEntityFrequency returns the current frequency for (user, entityType).
func (s *InMemorySink[U, G]) UserEntityFrequency(user U, entityType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userFreq[user][entityType]
}

// GroupEntityFrequency returns the current frequency for (group, entityType).
func (s *InMemorySink[U, G]) GroupEntityFrequency(group G, entityType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupFreq[group][entityType]
}
