package idempotency

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/lbvp-storefront/internal/dynamotest"
)

func seed(t *testing.T, mock *dynamotest.Fake, rec IdempotencyRecord) {
	t.Helper()
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	table := "idempotency-table"
	if _, err := mock.PutItem(context.Background(), &dyn.PutItemInput{TableName: &table, Item: item}); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestNewRecord_Get_MarkDone(t *testing.T) {
	mock := dynamotest.New().CreateTable("idempotency-table", "idempotency_key")
	s := NewStore(mock, "idempotency-table", 48*time.Hour)
	ctx := context.Background()

	rec := s.NewRecord("test-key-1", "LBVP123")
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.ExpiresAt <= time.Now().Unix() {
		t.Fatalf("expires_at must be in the future")
	}
	seed(t, mock, rec)

	got, err := s.Get(ctx, "test-key-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil || got.OrderID != "LBVP123" {
		t.Fatalf("expected record for LBVP123, got %+v", got)
	}

	if err := s.MarkDone(ctx, "test-key-1", 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	item := mock.Raw("idempotency-table", "test-key-1")
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	if rs, ok := item["response_status"].(*types.AttributeValueMemberN); !ok || rs.Value != "201" {
		t.Fatalf("response_status not set correctly: %+v", item["response_status"])
	}
}

func TestGet_MissingAndExpired(t *testing.T) {
	mock := dynamotest.New().CreateTable("idempotency-table", "idempotency_key")
	s := NewStore(mock, "idempotency-table", time.Hour)
	ctx := context.Background()

	if rec, err := s.Get(ctx, "nope"); err != nil || rec != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", rec, err)
	}

	old := s.NewRecord("old-key", "LBVP1")
	old.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	seed(t, mock, old)
	if rec, err := s.Get(ctx, "old-key"); err != nil || rec != nil {
		t.Fatalf("expired record should read as absent, got %+v, %v", rec, err)
	}
}

func TestMarkDone_MissingKey(t *testing.T) {
	mock := dynamotest.New().CreateTable("idempotency-table", "idempotency_key")
	s := NewStore(mock, "idempotency-table", time.Hour)
	if err := s.MarkDone(context.Background(), "ghost", 201); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestValidateKey(t *testing.T) {
	for _, ok := range []string{"abc", "2f1c9e9a-5d1e-4b8e-9c55-0f7f1f0b0c11"} {
		if err := ValidateKey(ok); err != nil {
			t.Fatalf("%q: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "has space", strings.Repeat("k", MaxKeyLength+1)} {
		if err := ValidateKey(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
