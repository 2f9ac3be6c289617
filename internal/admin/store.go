package admin

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

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/aws"
)

// Principal is one member of the admin set, stored in the admins table.
type Principal struct {
	ID        string    `dynamodbav:"principal_id" json:"id"` // PK
	Email     string    `dynamodbav:"email" json:"email"`
	GrantedAt time.Time `dynamodbav:"granted_at" json:"granted_at"`
	GrantedBy string    `dynamodbav:"granted_by,omitempty" json:"granted_by,omitempty"`
}

// Store persists the admin set.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// IsAdmin reports whether principalID is in the admin set.
func (s *Store) IsAdmin(ctx context.Context, principalID string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            principalKey(principalID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return false, apperr.External(err, "get admin")
	}
	return len(out.Item) > 0, nil
}

// List returns the admin set ordered by grant time.
func (s *Store) List(ctx context.Context) ([]Principal, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})

	admins := []Principal{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apperr.External(err, "scan admins")
		}
		var batch []Principal
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal admins: %w", err)
		}
		admins = append(admins, batch...)
	}
	sort.SliceStable(admins, func(i, j int) bool {
		return admins[i].GrantedAt.Before(admins[j].GrantedAt)
	})
	return admins, nil
}

// Grant adds principalID to the admin set. Granting an existing admin
// refreshes the stored email and keeps the original grant.
func (s *Store) Grant(ctx context.Context, principalID, email, grantedBy string) (*Principal, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, apperr.NewInvalidArgument("principal id is required")
	}
	p := Principal{
		ID:        principalID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		GrantedAt: s.nowFunc().UTC(),
		GrantedBy: grantedBy,
	}
	av, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal admin: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: awsString("attribute_not_exists(principal_id)"),
	})
	if err == nil {
		return &p, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return nil, apperr.External(err, "put admin")
	}
	if p.Email == "" {
		return s.get(ctx, principalID)
	}
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              principalKey(principalID),
		UpdateExpression: awsString("SET email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: p.Email},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, apperr.External(err, "update admin")
	}
	var existing Principal
	if err := attributevalue.UnmarshalMap(out.Attributes, &existing); err != nil {
		return nil, fmt.Errorf("unmarshal admin: %w", err)
	}
	return &existing, nil
}

// Remove deletes principalID from the admin set.
func (s *Store) Remove(ctx context.Context, principalID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 principalKey(principalID),
		ConditionExpression: awsString("attribute_exists(principal_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperr.NewNotFound("admin %s not found", principalID)
		}
		return apperr.External(err, "delete admin")
	}
	return nil
}

func (s *Store) get(ctx context.Context, principalID string) (*Principal, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            principalKey(principalID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, apperr.External(err, "get admin")
	}
	var p Principal
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal admin: %w", err)
	}
	return &p, nil
}

func principalKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"principal_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
