// Package dynamopersist is the production Temporal Event Persister (C6):
// it satisfies persist.EventPersister against DynamoDB, grounded on the
// teacher's infrastructure/persistence/dynamodb/event_store.go outbox
// table shape. Each relation's rows live in one table keyed by
// (PK=relation#keys, SK=ValidFrom), with the currently-open row marked by
// its Open attribute, and the event log lives in a second item family
// keyed by (PK=EVENTLOG#LAST, SK=txTime#seq).
package dynamopersist

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/accessgraph/engine/internal/accesserrors"
	"github.com/accessgraph/engine/internal/persist"
)

// row is the item shape for one bi-temporal relation record.
type row struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	EventID   string `dynamodbav:"EventID"`
	ValidFrom string `dynamodbav:"ValidFrom"`
	ValidTo   string `dynamodbav:"ValidTo"`
	Open      bool   `dynamodbav:"Open"`
}

// eventLogRow is the item shape for one append-only event-log entry.
type eventLogRow struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	EventID  string `dynamodbav:"EventID"`
	TxTime   string `dynamodbav:"TxTime"`
	Sequence int64  `dynamodbav:"Sequence"`
}

const eventLogPK = "EVENTLOG#LAST"

var temporalMax = "9999-12-31T23:59:59.999999999Z"

func tick(t time.Time) time.Time { return t.Add(-time.Nanosecond) }

// Persister is the DynamoDB-backed persist.EventPersister implementation.
// U, G, P, A are stringified at the storage boundary the same way
// persist.MemoryStore does, since the wire format here is a flat DynamoDB
// item keyed on a string partition key.
type Persister[U comparable, G comparable, P comparable, A comparable] struct {
	client    *dynamodb.Client
	tableName string
}

// New wires a Persister against an already-configured client (see
// cmd/node for the aws-sdk-go-v2/config bootstrap).
func New[U comparable, G comparable, P comparable, A comparable](client *dynamodb.Client, tableName string) *Persister[U, G, P, A] {
	return &Persister[U, G, P, A]{client: client, tableName: tableName}
}

var _ persist.EventPersister[string, string, string, string] = (*Persister[string, string, string, string])(nil)

func pk(parts ...any) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "#"
		}
		out += fmt.Sprintf("%v", p)
	}
	return out
}

func (p *Persister[U, G, P, A]) CreateEvent(ctx context.Context, session persist.Session, eventID string, txTime time.Time) (persist.Sequence, error) {
	last, err := p.lastEvent(ctx)
	if err != nil {
		return persist.Sequence{}, err
	}

	var seq int64
	if last != nil {
		lastTxTime, parseErr := time.Parse(time.RFC3339Nano, last.TxTime)
		if parseErr != nil {
			return persist.Sequence{}, fmt.Errorf("parse stored lastTxTime: %w", parseErr)
		}
		if txTime.Before(lastTxTime) {
			return persist.Sequence{}, accesserrors.MonotonicityViolated("event %s has txTime %s before lastTxTime %s", eventID, txTime, lastTxTime)
		}
		if txTime.Equal(lastTxTime) {
			seq = last.Sequence + 1
		}
	}

	item, err := attributevalue.MarshalMap(eventLogRow{
		PK:       eventLogPK,
		SK:       fmt.Sprintf("%s#%020d", txTime.Format(time.RFC3339Nano), seq),
		EventID:  eventID,
		TxTime:   txTime.Format(time.RFC3339Nano),
		Sequence: seq,
	})
	if err != nil {
		return persist.Sequence{}, fmt.Errorf("marshal event log row: %w", err)
	}
	if _, err := p.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(p.tableName), Item: item}); err != nil {
		return persist.Sequence{}, fmt.Errorf("put event log row: %w", err)
	}
	return persist.Sequence{TxTime: txTime, Sequence: seq}, nil
}

func (p *Persister[U, G, P, A]) lastEvent(ctx context.Context) (*eventLogRow, error) {
	out, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: eventLogPK},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query last event log row: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var r eventLogRow
	if err := attributevalue.UnmarshalMap(out.Items[0], &r); err != nil {
		return nil, fmt.Errorf("unmarshal event log row: %w", err)
	}
	return &r, nil
}

func (p *Persister[U, G, P, A]) add(ctx context.Context, relationKey, eventID string, txTime time.Time) error {
	item, err := attributevalue.MarshalMap(row{
		PK:        relationKey,
		SK:        txTime.Format(time.RFC3339Nano),
		EventID:   eventID,
		ValidFrom: txTime.Format(time.RFC3339Nano),
		ValidTo:   temporalMax,
		Open:      true,
	})
	if err != nil {
		return fmt.Errorf("marshal relation row: %w", err)
	}
	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(p.tableName), Item: item})
	if err != nil {
		return fmt.Errorf("put relation row: %w", err)
	}
	return nil
}

func (p *Persister[U, G, P, A]) remove(ctx context.Context, relationKey, eventID string, txTime time.Time) error {
	out, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		FilterExpression:       aws.String("#open = :true"),
		ExpressionAttributeNames: map[string]string{
			"#open": "Open",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: relationKey},
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("query open relation row: %w", err)
	}
	if len(out.Items) == 0 {
		return accesserrors.NotFound("no open row for key %q", relationKey)
	}
	var r row
	if err := attributevalue.UnmarshalMap(out.Items[0], &r); err != nil {
		return fmt.Errorf("unmarshal relation row: %w", err)
	}

	update, err := attributevalue.MarshalMap(map[string]any{
		"ValidTo": tick(txTime).Format(time.RFC3339Nano),
		"Open":    false,
	})
	if err != nil {
		return fmt.Errorf("marshal relation row close: %w", err)
	}
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	expr := "SET "
	i := 0
	for k, v := range update {
		placeholder := fmt.Sprintf(":v%d", i)
		namePlaceholder := fmt.Sprintf("#n%d", i)
		names[namePlaceholder] = k
		values[placeholder] = v
		if i > 0 {
			expr += ", "
		}
		expr += namePlaceholder + " = " + placeholder
		i++
	}

	_, err = p.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(p.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: r.PK},
			"SK": &types.AttributeValueMemberS{Value: r.SK},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("close relation row: %w", err)
	}
	_ = eventID // closure is keyed by the row found; eventID is recorded via the preceding CreateEvent call
	return nil
}

// removePrefix closes every still-open row under a relation partition key
// prefix, for cascading removal of dependent mapping rows when a primary
// element is removed (spec §4.6's close-dependents-on-primary-removal rule).
func (p *Persister[U, G, P, A]) removePrefix(ctx context.Context, prefix string, txTime time.Time) error {
	out, err := p.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(p.tableName),
		FilterExpression: aws.String("begins_with(PK, :prefix) AND #open = :true"),
		ExpressionAttributeNames: map[string]string{
			"#open": "Open",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
			":true":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("scan open rows by prefix: %w", err)
	}
	for _, item := range out.Items {
		var r row
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			return fmt.Errorf("unmarshal relation row: %w", err)
		}
		update, err := attributevalue.MarshalMap(map[string]any{
			"ValidTo": tick(txTime).Format(time.RFC3339Nano),
			"Open":    false,
		})
		if err != nil {
			return fmt.Errorf("marshal relation row close: %w", err)
		}
		_, err = p.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(p.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: r.PK},
				"SK": &types.AttributeValueMemberS{Value: r.SK},
			},
			UpdateExpression: aws.String("SET ValidTo = :vt, #open = :false"),
			ExpressionAttributeNames: map[string]string{
				"#open": "Open",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":vt":    update["ValidTo"],
				":false": &types.AttributeValueMemberBOOL{Value: false},
			},
		})
		if err != nil {
			return fmt.Errorf("close cascaded relation row: %w", err)
		}
	}
	return nil
}

func (p *Persister[U, G, P, A]) AddUser(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U) error {
	return p.add(ctx, pk("user", user), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveUser(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U) error {
	if err := p.remove(ctx, pk("user", user), eventID, txTime); err != nil {
		return err
	}
	if err := p.removePrefix(ctx, pk("u2g", user)+"#", txTime); err != nil {
		return err
	}
	if err := p.removePrefix(ctx, pk("u2c", user)+"#", txTime); err != nil {
		return err
	}
	return p.removePrefix(ctx, pk("u2e", user)+"#", txTime)
}

func (p *Persister[U, G, P, A]) AddGroup(ctx context.Context, session persist.Session, eventID string, txTime time.Time, group G) error {
	return p.add(ctx, pk("group", group), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveGroup(ctx context.Context, session persist.Session, eventID string, txTime time.Time, group G) error {
	if err := p.remove(ctx, pk("group", group), eventID, txTime); err != nil {
		return err
	}
	if err := p.removePrefix(ctx, pk("g2g", group)+"#", txTime); err != nil {
		return err
	}
	if err := p.removePrefix(ctx, pk("g2c", group)+"#", txTime); err != nil {
		return err
	}
	return p.removePrefix(ctx, pk("g2e", group)+"#", txTime)
}

func (p *Persister[U, G, P, A]) AddUserToGroup(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U, group G) error {
	return p.add(ctx, pk("u2g", user, group), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveUserToGroup(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U, group G) error {
	return p.remove(ctx, pk("u2g", user, group), eventID, txTime)
}

func (p *Persister[U, G, P, A]) AddGroupToGroup(ctx context.Context, session persist.Session, eventID string, txTime time.Time, from, to G) error {
	return p.add(ctx, pk("g2g", from, to), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveGroupToGroup(ctx context.Context, session persist.Session, eventID string, txTime time.Time, from, to G) error {
	return p.remove(ctx, pk("g2g", from, to), eventID, txTime)
}

func (p *Persister[U, G, P, A]) AddUserToComponent(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U, component P, access A) error {
	return p.add(ctx, pk("u2c", user, component, access), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveUserToComponent(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U, component P, access A) error {
	return p.remove(ctx, pk("u2c", user, component, access), eventID, txTime)
}

func (p *Persister[U, G, P, A]) AddGroupToComponent(ctx context.Context, session persist.Session, eventID string, txTime time.Time, group G, component P, access A) error {
	return p.add(ctx, pk("g2c", group, component, access), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveGroupToComponent(ctx context.Context, session persist.Session, eventID string, txTime time.Time, group G, component P, access A) error {
	return p.remove(ctx, pk("g2c", group, component, access), eventID, txTime)
}

func (p *Persister[U, G, P, A]) AddEntityType(ctx context.Context, session persist.Session, eventID string, txTime time.Time, entityType string) error {
	return p.add(ctx, pk("etype", entityType), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveEntityType(ctx context.Context, session persist.Session, eventID string, txTime time.Time, entityType string) error {
	if err := p.remove(ctx, pk("etype", entityType), eventID, txTime); err != nil {
		return err
	}
	return p.removePrefix(ctx, pk("entity", entityType)+"#", txTime)
}

func (p *Persister[U, G, P, A]) AddEntity(ctx context.Context, session persist.Session, eventID string, txTime time.Time, entityType, entity string) error {
	return p.add(ctx, pk("entity", entityType, entity), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveEntity(ctx context.Context, session persist.Session, eventID string, txTime time.Time, entityType, entity string) error {
	return p.remove(ctx, pk("entity", entityType, entity), eventID, txTime)
}

func (p *Persister[U, G, P, A]) AddUserToEntity(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U, entityType, entity string) error {
	return p.add(ctx, pk("u2e", user, entityType, entity), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveUserToEntity(ctx context.Context, session persist.Session, eventID string, txTime time.Time, user U, entityType, entity string) error {
	return p.remove(ctx, pk("u2e", user, entityType, entity), eventID, txTime)
}

func (p *Persister[U, G, P, A]) AddGroupToEntity(ctx context.Context, session persist.Session, eventID string, txTime time.Time, group G, entityType, entity string) error {
	return p.add(ctx, pk("g2e", group, entityType, entity), eventID, txTime)
}

func (p *Persister[U, G, P, A]) RemoveGroupToEntity(ctx context.Context, session persist.Session, eventID string, txTime time.Time, group G, entityType, entity string) error {
	return p.remove(ctx, pk("g2e", group, entityType, entity), eventID, txTime)
}
