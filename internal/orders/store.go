package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/aws"
)

// AWBIndex is the GSI on awb_key used for tracking-number lookups.
const AWBIndex = "awb-index"

var (
	// ErrStatusMismatch means the stored status was not the expected one.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateKey means the idempotency key was already used.
	ErrDuplicateKey = errors.New("idempotency key already used")
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create writes a new order. An existing id is a Conflict.
func (s *Store) Create(ctx context.Context, o Order) error {
	item, err := s.marshalNew(o)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperr.Newf(apperr.CodeConflict, "order %s already exists", o.ID)
		}
		return apperr.External(err, "put order")
	}
	return nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key),
//     or an expired record DynamoDB's TTL sweep has not removed yet)
//   - order record in orders table (with ConditionExpression attribute_not_exists(order_id))
//
// idempotencyItem must marshal to a map holding idempotency_key. A used key
// returns ErrDuplicateKey and writes nothing.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, o Order, ttlWindow time.Duration) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	now := s.nowFunc()
	// ensure idempotency TTL if needed: caller can include expires_at field; if not present, add it
	if _, ok := idempMap["expires_at"]; !ok && ttlWindow > 0 {
		expires := now.Add(ttlWindow).Unix()
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expires)}
	}

	expired := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
	}

	orderMap, err := s.marshalNew(o)
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 &idempotencyTable,
					Item:                      idempMap,
					ConditionExpression:       awsString("attribute_not_exists(idempotency_key) OR expires_at < :now"),
					ExpressionAttributeValues: expired,
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if len(tce.CancellationReasons) > 0 && reasonCode(tce.CancellationReasons[0]) == "ConditionalCheckFailed" {
				return ErrDuplicateKey
			}
			return apperr.Wrap(apperr.CodeConflict, err, "order transaction canceled")
		}
		return apperr.External(err, "transact write order")
	}
	return nil
}

func (s *Store) marshalNew(o Order) (map[string]types.AttributeValue, error) {
	now := s.nowFunc()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order item: %w", err)
	}
	return item, nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, apperr.External(err, "get order")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return unmarshalOrder(out.Item)
}

// FindByAWB looks an order up by courier tracking number, ignoring case.
// Returns (nil, nil) if no order carries it.
func (s *Store) FindByAWB(ctx context.Context, awb string) (*Order, error) {
	key := strings.ToUpper(strings.TrimSpace(awb))
	if key == "" {
		return nil, nil
	}
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(AWBIndex),
		KeyConditionExpression: awsString("awb_key = :awb"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":awb": &types.AttributeValueMemberS{Value: key},
		},
		Limit: awsInt32(1),
	})
	if err != nil {
		return nil, apperr.External(err, "query order by awb")
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return unmarshalOrder(out.Items[0])
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	out := []Order{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apperr.External(err, "scan orders")
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus writes the lifecycle fields of updated, conditional on the
// stored status still being expected. Returns ErrStatusMismatch if the
// condition failed.
func (s *Store) UpdateStatus(ctx context.Context, updated Order, expected Status) error {
	values, err := marshalValues(map[string]interface{}{
		":new":      updated.Status,
		":ps":       updated.PaymentStatus,
		":tl":       updated.Timeline,
		":ua":       updated.UpdatedAt,
		":expected": expected,
	})
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(updated.ID),
		UpdateExpression:          awsString("SET #s = :new, payment_status = :ps, timeline = :tl, updated_at = :ua"),
		ConditionExpression:       awsString("#s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return apperr.External(err, "update order status")
	}
	return nil
}

// UpdatePayment sets the payment status of an existing order, conditional on
// its status still being expected. Returns ErrStatusMismatch if the order
// moved in between.
func (s *Store) UpdatePayment(ctx context.Context, orderID string, ps PaymentStatus, expected Status) error {
	values, err := marshalValues(map[string]interface{}{
		":ps":       ps,
		":ua":       s.nowFunc(),
		":expected": expected,
	})
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          awsString("SET payment_status = :ps, updated_at = :ua"),
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if o, gerr := s.Get(ctx, orderID); gerr == nil && o != nil {
			return ErrStatusMismatch
		}
	}
	return s.notFoundOr(err, orderID, "update payment status")
}

// UpdateTracking writes the courier annotations of o.
func (s *Store) UpdateTracking(ctx context.Context, o Order) error {
	fields := map[string]interface{}{
		":ua":  o.UpdatedAt,
		":upd": o.Updates,
		":loc": o.CurrentLocation,
	}
	expr := "SET updated_at = :ua, updates = :upd, current_location = :loc"
	if o.Shipment != nil {
		fields[":shp"] = o.Shipment
		fields[":awb"] = o.AWBKey
		expr += ", shipment = :shp, awb_key = :awb"
	}
	if o.EstimatedDelivery != nil {
		fields[":eta"] = *o.EstimatedDelivery
		expr += ", estimated_delivery = :eta"
	}
	values, err := marshalValues(fields)
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(o.ID),
		UpdateExpression:          &expr,
		ConditionExpression:       awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: values,
	})
	return s.notFoundOr(err, o.ID, "update order tracking")
}

func (s *Store) notFoundOr(err error, orderID, op string) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return apperr.NewNotFound("order %s not found", orderID)
	}
	return apperr.External(err, op)
}

func marshalValues(in map[string]interface{}) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func unmarshalOrder(item map[string]types.AttributeValue) (*Order, error) {
	var o Order
	if err := attributevalue.UnmarshalMap(item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func reasonCode(r types.CancellationReason) string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

func awsInt32(n int32) *int32 { return &n }
