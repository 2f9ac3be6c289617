// Package dynamotest provides an in-memory DynamoDB for unit tests. It
// understands the small expression dialect the stores use: SET updates,
// equality, less-than, attribute_exists and attribute_not_exists conditions
// joined by AND or OR (AND binding tighter), and equality key conditions on
// tables or indexes.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/lbvp-storefront/internal/aws"
)

type item = map[string]types.AttributeValue

type table struct {
	pk    string
	items map[string]item
}

var _ aws.DynamoDBAPI = (*Fake)(nil)

// Fake implements the DynamoDBAPI interface of internal/aws.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table
	fail   map[string]error
	calls  map[string]int
}

func New() *Fake {
	return &Fake{
		tables: map[string]*table{},
		fail:   map[string]error{},
		calls:  map[string]int{},
	}
}

// CreateTable registers a table keyed by the string attribute pk.
func (f *Fake) CreateTable(name, pk string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{pk: pk, items: map[string]item{}}
	return f
}

// FailNext makes the next call of op ("PutItem", "Scan", ...) return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// Calls reports how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Len returns the number of items in a table.
func (f *Fake) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

// Raw returns a copy of the stored item with the given key, or nil.
func (f *Fake) Raw(tableName, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableName]
	if !ok {
		return nil
	}
	if it, ok := t.items[key]; ok {
		return clone(it)
	}
	return nil
}

func (f *Fake) enter(op string) error {
	f.calls[op]++
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *Fake) table(name *string) (*table, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := f.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: awsString("table not found: " + *name)}
	}
	return t, nil
}

func (t *table) keyOf(it item) (string, error) {
	v, ok := it[t.pk].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.pk)
	}
	return v.Value, nil
}

func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, t.items[k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	t.items[k] = clone(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(it)}, nil
}

func (f *Fake) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, t.items[k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	delete(t.items, k)
	return &dyn.DeleteItemOutput{}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	updated, err := t.update(in.Key, in.UpdateExpression, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.UpdateItemOutput{Attributes: clone(updated)}, nil
}

func (t *table) update(key item, updateExpr, condExpr *string, names map[string]string, values map[string]types.AttributeValue) (item, error) {
	k, err := t.keyOf(key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(condExpr, names, values, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	next := clone(current)
	if next == nil {
		next = clone(key)
	}
	if err := applySet(updateExpr, names, values, next); err != nil {
		return nil, err
	}
	t.items[k] = next
	return next, nil
}

// Scan returns every item in one page, ordered by key.
func (f *Fake) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	out, _ := t.sorted(func(item) (bool, error) { return true, nil })
	return &dyn.ScanOutput{Items: out, Count: int32(len(out))}, nil
}

// Query matches KeyConditionExpression against every item, so it serves
// both the base table and any secondary index.
func (f *Fake) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if in.KeyConditionExpression == nil {
		return nil, errors.New("query requires a key condition")
	}
	out, err := t.sorted(func(it item) (bool, error) {
		return evalCondition(in.KeyConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, it)
	})
	if err != nil {
		return nil, err
	}
	if in.Limit != nil && int(*in.Limit) < len(out) {
		out = out[:*in.Limit]
	}
	return &dyn.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

func (t *table) sorted(match func(item) (bool, error)) ([]item, error) {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := []item{}
	for _, k := range keys {
		ok, err := match(t.items[k])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, clone(t.items[k]))
		}
	}
	return out, nil
}

// TransactWriteItems checks every condition before applying any write.
func (f *Fake) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false
	for i, ti := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: awsString("None")}
		var (
			tableName *string
			current   item
			cond      *string
			names     map[string]string
			values    map[string]types.AttributeValue
			keySrc    item
		)
		switch {
		case ti.Put != nil:
			tableName, keySrc, cond, names, values = ti.Put.TableName, ti.Put.Item, ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues
		case ti.Update != nil:
			tableName, keySrc, cond, names, values = ti.Update.TableName, ti.Update.Key, ti.Update.ConditionExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues
		case ti.Delete != nil:
			tableName, keySrc, cond, names, values = ti.Delete.TableName, ti.Delete.Key, ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues
		case ti.ConditionCheck != nil:
			tableName, keySrc, cond, names, values = ti.ConditionCheck.TableName, ti.ConditionCheck.Key, ti.ConditionCheck.ConditionExpression, ti.ConditionCheck.ExpressionAttributeNames, ti.ConditionCheck.ExpressionAttributeValues
		default:
			return nil, errors.New("empty transact item")
		}
		t, err := f.table(tableName)
		if err != nil {
			return nil, err
		}
		k, err := t.keyOf(keySrc)
		if err != nil {
			return nil, err
		}
		current = t.items[k]
		ok, err := evalCondition(cond, names, values, current)
		if err != nil {
			return nil, err
		}
		if !ok {
			cancelled = true
			reasons[i] = types.CancellationReason{Code: awsString("ConditionalCheckFailed")}
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             awsString("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			t, _ := f.table(ti.Put.TableName)
			k, _ := t.keyOf(ti.Put.Item)
			t.items[k] = clone(ti.Put.Item)
		case ti.Update != nil:
			t, _ := f.table(ti.Update.TableName)
			if _, err := t.update(ti.Update.Key, ti.Update.UpdateExpression, nil, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		case ti.Delete != nil:
			t, _ := f.table(ti.Delete.TableName)
			k, _ := t.keyOf(ti.Delete.Key)
			delete(t.items, k)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, current item) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, disjunct := range strings.Split(*expr, " OR ") {
		ok, err := evalConjunction(disjunct, names, values, current)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalConjunction(expr string, names map[string]string, values map[string]types.AttributeValue, current item) (bool, error) {
	for _, clause := range splitAnd(expr) {
		ok, err := evalClause(clause, names, values, current)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

func splitAnd(expr string) []string {
	var out []string
	for _, part := range strings.Split(expr, " AND ") {
		out = append(out, strings.Trim(strings.TrimSpace(part), "()"))
	}
	return out
}

func evalClause(clause string, names map[string]string, values map[string]types.AttributeValue, current item) (bool, error) {
	switch {
	case strings.HasPrefix(clause, "attribute_not_exists"):
		attr := resolveName(fnArg(clause), names)
		_, ok := current[attr]
		return !ok, nil
	case strings.HasPrefix(clause, "attribute_exists"):
		attr := resolveName(fnArg(clause), names)
		_, ok := current[attr]
		return ok, nil
	}

	op := "="
	lhs, rhs, ok := strings.Cut(clause, op)
	if !ok {
		op = "<"
		if lhs, rhs, ok = strings.Cut(clause, op); !ok {
			return false, fmt.Errorf("unsupported condition %q", clause)
		}
	}
	attr := resolveName(strings.TrimSpace(lhs), names)
	ph := strings.TrimSpace(rhs)
	want, ok := values[ph]
	if !ok {
		return false, fmt.Errorf("missing expression value %s", ph)
	}
	got, ok := current[attr]
	if !ok {
		return false, nil
	}
	if op == "<" {
		return lessThan(got, want)
	}
	return reflect.DeepEqual(got, want), nil
}

// lessThan compares two numbers numerically or two strings lexically. Other
// pairs never match, as in DynamoDB.
func lessThan(a, b types.AttributeValue) (bool, error) {
	switch x := a.(type) {
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		l, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			return false, fmt.Errorf("bad number %q: %w", x.Value, err)
		}
		r, err := strconv.ParseFloat(y.Value, 64)
		if err != nil {
			return false, fmt.Errorf("bad number %q: %w", y.Value, err)
		}
		return l < r, nil
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		return ok && x.Value < y.Value, nil
	}
	return false, nil
}

// fnArg extracts x from "fn(x"; splitAnd already trimmed the closing paren.
func fnArg(clause string) string {
	_, arg, _ := strings.Cut(clause, "(")
	return strings.TrimSpace(strings.TrimSuffix(arg, ")"))
}

func applySet(expr *string, names map[string]string, values map[string]types.AttributeValue, target item) error {
	if expr == nil {
		return errors.New("missing update expression")
	}
	body := strings.TrimSpace(*expr)
	if !strings.HasPrefix(body, "SET ") {
		return fmt.Errorf("unsupported update expression %q", body)
	}
	for _, assignment := range strings.Split(strings.TrimPrefix(body, "SET "), ",") {
		lhs, rhs, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("bad assignment %q", assignment)
		}
		v, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return fmt.Errorf("missing expression value %s", strings.TrimSpace(rhs))
		}
		target[resolveName(strings.TrimSpace(lhs), names)] = v
	}
	return nil
}

func resolveName(n string, names map[string]string) string {
	if strings.HasPrefix(n, "#") {
		if real, ok := names[n]; ok {
			return real
		}
	}
	return n
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: awsString("The conditional request failed")}
}

func awsString(s string) *string { return &s }
