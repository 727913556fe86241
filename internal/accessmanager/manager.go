// Package accessmanager is the authorization graph engine's core: the
// owner of the six mapping relations, the primary element sets, and the
// entity-type/entity catalogue.
//
// The layered design spec.md describes for C2 (core), C3 (lock
// acquisition), C4 (metric-logging decorator) and C5 (dependency-free
// event processor) is collapsed here into one Manager type built through
// a Builder, per the redesign guidance in spec §9: "avoid deep
// inheritance, prefer composition and a builder." C3 is the injected
// *concurrency.Guard, C4 is the injected metrics.Sink, and C5 is the
// dependencyFree flag plus the synthetic-prerequisite logic in events.go.
// C6 (the persister) is whatever downstream EventSink is supplied to the
// builder — the same interface synthetic prerequisite events are forwarded
// through, so a single seam keeps the durable log and any replicas in
// lockstep with the in-memory graph.
package accessmanager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/accessgraph/engine/internal/concurrency"
	"github.com/accessgraph/engine/internal/graph"
	"github.com/accessgraph/engine/internal/metrics"
)

// ComponentAccess is the (ApplicationComponent, AccessLevel) pair mapping
// relations 3 and 4 associate with a user or group.
type ComponentAccess[P comparable, A comparable] struct {
	Component P
	Access    A
}

// EntityRef identifies one (EntityType, Entity) pair mapping relations 5
// and 6 associate with a user or group.
type EntityRef struct {
	Type   string
	Entity string
}

// EventMeta carries the identity and ordering key a mutation's downstream
// EventSink call is recorded under.
type EventMeta struct {
	EventID string
	TxTime  time.Time
}

func newEventMeta() EventMeta {
	return EventMeta{EventID: uuid.NewString(), TxTime: time.Now().UTC()}
}

// EventSink is the downstream seam every successful mutation — including
// the synthetic prerequisite events C5 issues — is forwarded through. A
// Temporal Event Persister (C6) implementation satisfies this interface;
// so can a fan-out to replicated in-memory processors.
type EventSink[U comparable, G comparable, P comparable, A comparable] interface {
	OnUserAdd(ctx context.Context, meta EventMeta, user U) error
	OnUserRemove(ctx context.Context, meta EventMeta, user U) error
	OnGroupAdd(ctx context.Context, meta EventMeta, group G) error
	OnGroupRemove(ctx context.Context, meta EventMeta, group G) error
	OnUserToGroupAdd(ctx context.Context, meta EventMeta, user U, group G) error
	OnUserToGroupRemove(ctx context.Context, meta EventMeta, user U, group G) error
	OnGroupToGroupAdd(ctx context.Context, meta EventMeta, from, to G) error
	OnGroupToGroupRemove(ctx context.Context, meta EventMeta, from, to G) error
	OnUserToComponentAdd(ctx context.Context, meta EventMeta, user U, component P, access A) error
	OnUserToComponentRemove(ctx context.Context, meta EventMeta, user U, component P, access A) error
	OnGroupToComponentAdd(ctx context.Context, meta EventMeta, group G, component P, access A) error
	OnGroupToComponentRemove(ctx context.Context, meta EventMeta, group G, component P, access A) error
	OnEntityTypeAdd(ctx context.Context, meta EventMeta, entityType string) error
	OnEntityTypeRemove(ctx context.Context, meta EventMeta, entityType string) error
	OnEntityAdd(ctx context.Context, meta EventMeta, entityType, entity string) error
	OnEntityRemove(ctx context.Context, meta EventMeta, entityType, entity string) error
	OnUserToEntityAdd(ctx context.Context, meta EventMeta, user U, entityType, entity string) error
	OnUserToEntityRemove(ctx context.Context, meta EventMeta, user U, entityType, entity string) error
	OnGroupToEntityAdd(ctx context.Context, meta EventMeta, group G, entityType, entity string) error
	OnGroupToEntityRemove(ctx context.Context, meta EventMeta, group G, entityType, entity string) error
}

// PostProcessingFunc is the "OnApply" callback spec §9 calls for: a
// typed, by-value hook invoked synchronously by the mutator while every
// lock the operation holds is still held. It must not block on I/O that
// could itself need one of those locks.
type PostProcessingFunc func(ctx context.Context) error

// MutationOption configures one call to an Event API method.
type MutationOption func(*mutationConfig)

type mutationConfig struct {
	postProcess PostProcessingFunc
}

// WithPostProcessing attaches a post-processing action to a single
// mutation call. It runs exactly once, after the in-memory change (and
// any downstream forward) is visible and before the metric-closing
// emission, per spec §4.2/§4.4.
func WithPostProcessing(f PostProcessingFunc) MutationOption {
	return func(c *mutationConfig) { c.postProcess = f }
}

func buildMutationConfig(opts []MutationOption) mutationConfig {
	var cfg mutationConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Manager is the access manager core. U, G, P, A are the user, group,
// application-component and access-level identifier types; all four must
// be comparable so they can key Go maps directly.
type Manager[U comparable, G comparable, P comparable, A comparable] struct {
	guard *concurrency.Guard
	graph *graph.Graph[U, G]

	entityTypes map[string]map[string]struct{}

	userComponents  map[U]map[ComponentAccess[P, A]]struct{}
	groupComponents map[G]map[ComponentAccess[P, A]]struct{}
	userEntities    map[U]map[EntityRef]struct{}
	groupEntities   map[G]map[EntityRef]struct{}

	sink       metrics.Sink[U, G]
	downstream EventSink[U, G, P, A]

	dependencyFree             bool
	throwIdempotencyExceptions bool
}

// Builder assembles a Manager. The zero value is not usable; start from
// NewBuilder.
type Builder[U comparable, G comparable, P comparable, A comparable] struct {
	m *Manager[U, G, P, A]
}

// NewBuilder returns a Builder defaulting to an in-memory metrics sink,
// no downstream event sink, dependencyFree=false and
// throwIdempotencyExceptions=false — i.e. the strict C2 contract. Use
// DependencyFree(true) to get the C5 upgrade.
func NewBuilder[U comparable, G comparable, P comparable, A comparable]() *Builder[U, G, P, A] {
	return &Builder[U, G, P, A]{
		m: &Manager[U, G, P, A]{
			guard:           concurrency.New(),
			graph:           graph.New[U, G](),
			entityTypes:     make(map[string]map[string]struct{}),
			userComponents:  make(map[U]map[ComponentAccess[P, A]]struct{}),
			groupComponents: make(map[G]map[ComponentAccess[P, A]]struct{}),
			userEntities:    make(map[U]map[EntityRef]struct{}),
			groupEntities:   make(map[G]map[EntityRef]struct{}),
			sink:            metrics.NewInMemorySink[U, G](),
		},
	}
}

// WithMetrics overrides the metrics sink (C4).
func (b *Builder[U, G, P, A]) WithMetrics(sink metrics.Sink[U, G]) *Builder[U, G, P, A] {
	b.m.sink = sink
	return b
}

// WithDownstream sets the event sink every mutation (and every synthetic
// prerequisite event, under DependencyFree) is forwarded to.
func (b *Builder[U, G, P, A]) WithDownstream(sink EventSink[U, G, P, A]) *Builder[U, G, P, A] {
	b.m.downstream = sink
	return b
}

// DependencyFree turns on the C5 upgrade: mapping adds synthesize missing
// primary elements, and Remove* of an absent element is a silent no-op.
func (b *Builder[U, G, P, A]) DependencyFree(on bool) *Builder[U, G, P, A] {
	b.m.dependencyFree = on
	return b
}

// ThrowIdempotencyExceptions makes Add* of an already-present
// element/edge fail with AlreadyExists instead of silently no-opping.
func (b *Builder[U, G, P, A]) ThrowIdempotencyExceptions(on bool) *Builder[U, G, P, A] {
	b.m.throwIdempotencyExceptions = on
	return b
}

// Build returns the assembled Manager.
func (b *Builder[U, G, P, A]) Build() *Manager[U, G, P, A] {
	return b.m
}
