// Package localstore is the key/value persistence the cart engine writes
// its snapshot to: the server-side stand-in for browser-local storage.
package localstore

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/aws"
)

// Store reads and writes opaque snapshots by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// record is one row of the carts table. expires_at drives DynamoDB TTL so
// abandoned carts age out.
type record struct {
	CartID    string `dynamodbav:"cart_id"`
	Payload   string `dynamodbav:"payload"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// Dynamo stores snapshots in a DynamoDB table keyed by cart_id.
type Dynamo struct {
	client    aws.DynamoDBAPI
	tableName string
	ttl       time.Duration
	nowFunc   func() time.Time
}

func NewDynamo(client aws.DynamoDBAPI, tableName string, ttl time.Duration) *Dynamo {
	return &Dynamo{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		nowFunc:   time.Now,
	}
}

// Get treats a row past its expiry as absent; TTL deletion is lazy.
func (d *Dynamo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := d.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &d.tableName,
		Key:       cartKey(key),
	})
	if err != nil {
		return nil, false, apperr.External(err, "get cart")
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		// unreadable row: behave as if nothing was stored
		return nil, false, nil
	}
	if rec.ExpiresAt > 0 && rec.ExpiresAt < d.nowFunc().Unix() {
		return nil, false, nil
	}
	return []byte(rec.Payload), true, nil
}

func (d *Dynamo) Put(ctx context.Context, key string, value []byte) error {
	rec := record{CartID: key, Payload: string(value)}
	if d.ttl > 0 {
		rec.ExpiresAt = d.nowFunc().Add(d.ttl).Unix()
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return err
	}
	if _, err := d.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	}); err != nil {
		return apperr.External(err, "put cart")
	}
	return nil
}

func (d *Dynamo) Delete(ctx context.Context, key string) error {
	if _, err := d.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &d.tableName,
		Key:       cartKey(key),
	}); err != nil {
		return apperr.External(err, "delete cart")
	}
	return nil
}

func cartKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"cart_id": &types.AttributeValueMemberS{Value: key},
	}
}
