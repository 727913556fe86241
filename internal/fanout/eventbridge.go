// Package fanout implements the downstream half of the C5 dependency-free
// upgrade: forwarding every mutation (and, under DependencyFree, every
// synthetic prerequisite event accessmanager.Manager synthesizes) to other
// replicas or subscribers via Amazon EventBridge, so a cluster of nodes can
// stay eventually consistent without sharing the same in-memory graph.
//
// Grounded on the teacher's domain/events/base.go event shape for the wire
// envelope (internal/events.Envelope) and on its outbox/EventBridge
// publishing idiom from infrastructure/persistence/dynamodb/
// outbox_processor.go, using github.com/aws/aws-sdk-go-v2/service/
// eventbridge directly from the teacher's go.mod.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/accessgraph/engine/internal/accessmanager"
	"github.com/accessgraph/engine/internal/events"
)

// EventBridgeSink publishes every accessmanager.EventSink callback as one
// PutEvents entry on busName, carrying an events.Envelope as its detail.
// It implements accessmanager.EventSink directly rather than a separate
// processor interface, so it can be handed to accessmanager.Builder.
// WithDownstream the same way any other sink can.
type EventBridgeSink[U, G, P, A comparable] struct {
	client  *eventbridge.Client
	busName string
	source  string
}

// NewEventBridgeSink returns a sink publishing to busName on client,
// stamping every entry with source as its EventBridge Source field.
func NewEventBridgeSink[U, G, P, A comparable](client *eventbridge.Client, busName, source string) *EventBridgeSink[U, G, P, A] {
	return &EventBridgeSink[U, G, P, A]{client: client, busName: busName, source: source}
}

func (s *EventBridgeSink[U, G, P, A]) publish(ctx context.Context, kind events.Kind, meta accessmanager.EventMeta, key1, key2, key3 string) error {
	env := events.Envelope{
		EventID: meta.EventID,
		Kind:    kind,
		TxTime:  meta.TxTime.UTC().Format(time.RFC3339Nano),
		Key1:    key1,
		Key2:    key2,
		Key3:    key3,
	}
	detail, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	out, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(s.busName),
				Source:       aws.String(s.source),
				DetailType:   aws.String(string(kind)),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", kind, err)
	}
	if out.FailedEntryCount > 0 && len(out.Entries) > 0 {
		return fmt.Errorf("publish event %s: %s", kind, aws.ToString(out.Entries[0].ErrorMessage))
	}
	return nil
}

func str(v interface{}) string { return fmt.Sprint(v) }

func (s *EventBridgeSink[U, G, P, A]) OnUserAdd(ctx context.Context, meta accessmanager.EventMeta, user U) error {
	return s.publish(ctx, events.KindUserAdd, meta, str(user), "", "")
}
func (s *EventBridgeSink[U, G, P, A]) OnUserRemove(ctx context.Context, meta accessmanager.EventMeta, user U) error {
	return s.publish(ctx, events.KindUserRemove, meta, str(user), "", "")
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupAdd(ctx context.Context, meta accessmanager.EventMeta, group G) error {
	return s.publish(ctx, events.KindGroupAdd, meta, str(group), "", "")
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupRemove(ctx context.Context, meta accessmanager.EventMeta, group G) error {
	return s.publish(ctx, events.KindGroupRemove, meta, str(group), "", "")
}
func (s *EventBridgeSink[U, G, P, A]) OnUserToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, user U, group G) error {
	return s.publish(ctx, events.KindUserToGroupAdd, meta, str(user), str(group), "")
}
func (s *EventBridgeSink[U, G, P, A]) OnUserToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, user U, group G) error {
	return s.publish(ctx, events.KindUserToGroupRemove, meta, str(user), str(group), "")
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupToGroupAdd(ctx context.Context, meta accessmanager.EventMeta, from, to G) error {
	return s.publish(ctx, events.KindGroupToGroupAdd, meta, str(from), str(to), "")
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupToGroupRemove(ctx context.Context, meta accessmanager.EventMeta, from, to G) error {
	return s.publish(ctx, events.KindGroupToGroupRemove, meta, str(from), str(to), "")
}
func (s *EventBridgeSink[U, G, P, A]) OnUserToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, user U, component P, access A) error {
	return s.publish(ctx, events.KindUserToComponentAdd, meta, str(user), str(component), str(access))
}
func (s *EventBridgeSink[U, G, P, A]) OnUserToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, user U, component P, access A) error {
	return s.publish(ctx, events.KindUserToComponentRemove, meta, str(user), str(component), str(access))
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupToComponentAdd(ctx context.Context, meta accessmanager.EventMeta, group G, component P, access A) error {
	return s.publish(ctx, events.KindGroupToComponentAdd, meta, str(group), str(component), str(access))
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupToComponentRemove(ctx context.Context, meta accessmanager.EventMeta, group G, component P, access A) error {
	return s.publish(ctx, events.KindGroupToComponentRemove, meta, str(group), str(component), str(access))
}
func (s *EventBridgeSink[U, G, P, A]) OnEntityTypeAdd(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	return s.publish(ctx, events.KindEntityTypeAdd, meta, entityType, "", "")
}
func (s *EventBridgeSink[U, G, P, A]) OnEntityTypeRemove(ctx context.Context, meta accessmanager.EventMeta, entityType string) error {
	return s.publish(ctx, events.KindEntityTypeRemove, meta, entityType, "", "")
}
func (s *EventBridgeSink[U, G, P, A]) OnEntityAdd(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	return s.publish(ctx, events.KindEntityAdd, meta, entityType, entity, "")
}
func (s *EventBridgeSink[U, G, P, A]) OnEntityRemove(ctx context.Context, meta accessmanager.EventMeta, entityType, entity string) error {
	return s.publish(ctx, events.KindEntityRemove, meta, entityType, entity, "")
}
func (s *EventBridgeSink[U, G, P, A]) OnUserToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, user U, entityType, entity string) error {
	return s.publish(ctx, events.KindUserToEntityAdd, meta, str(user), entityType, entity)
}
func (s *EventBridgeSink[U, G, P, A]) OnUserToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, user U, entityType, entity string) error {
	return s.publish(ctx, events.KindUserToEntityRemove, meta, str(user), entityType, entity)
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupToEntityAdd(ctx context.Context, meta accessmanager.EventMeta, group G, entityType, entity string) error {
	return s.publish(ctx, events.KindGroupToEntityAdd, meta, str(group), entityType, entity)
}
func (s *EventBridgeSink[U, G, P, A]) OnGroupToEntityRemove(ctx context.Context, meta accessmanager.EventMeta, group G, entityType, entity string) error {
	return s.publish(ctx, events.KindGroupToEntityRemove, meta, str(group), entityType, entity)
}
