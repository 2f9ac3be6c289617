// Package catalog stores the product catalog in DynamoDB.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/aws"
)

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new catalog Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches an item by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            itemKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, apperr.External(err, "get product")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &it, nil
}

// List returns the items matching f ordered by creation time, then id.
func (s *Store) List(ctx context.Context, f Filter) ([]Item, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName:      &s.tableName,
		ConsistentRead: awsBool(true),
	})

	items := []Item{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apperr.External(err, "scan products")
		}
		var batch []Item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		for _, it := range batch {
			if f.match(it) {
				items = append(items, it)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Upsert creates the item when it has no id, otherwise replaces every
// mutable field of the stored item while keeping its id and creation time.
func (s *Store) Upsert(ctx context.Context, it Item) (*Item, error) {
	it.Name = strings.TrimSpace(it.Name)
	it.Category = strings.TrimSpace(it.Category)
	it.Sizes = NormalizeSizes(it.Sizes)
	if err := Validate(it); err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	if it.ID == "" {
		it.ID = "product-" + uuid.NewString()
		it.CreatedAt = now
	} else {
		existing, err := s.Get(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case existing != nil:
			it.CreatedAt = existing.CreatedAt
		case it.CreatedAt.IsZero():
			it.CreatedAt = now
		}
	}
	it.UpdatedAt = now

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	}); err != nil {
		return nil, apperr.External(err, "put product")
	}
	return &it, nil
}

// Delete removes an item. Deleting an unknown id is NotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 itemKey(id),
		ConditionExpression: awsString("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperr.NewNotFound("product %s not found", id)
		}
		return apperr.External(err, "delete product")
	}
	return nil
}

// SetImage points an item at a new image URL.
func (s *Store) SetImage(ctx context.Context, id, url string) (*Item, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 itemKey(id),
		UpdateExpression:    awsString("SET image = :img, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":img": &types.AttributeValueMemberS{Value: url},
			":ua":  &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, apperr.NewNotFound("product %s not found", id)
		}
		return nil, apperr.External(err, "update product image")
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &it, nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
