package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/lbvp-storefront/internal/events"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_PublishSetsAttributes(t *testing.T) {
	q := &mockSQS{}
	p := NewPublisher(q, "http://localhost:4566/000000000000/orders")

	e := events.Event{
		Type:          events.OrderSubmitted,
		OrderID:       "LBVP-ABC",
		PaymentMethod: "cod",
		Total:         149900,
		ItemCount:     2,
		OccurredAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, q.inputs, 1)

	in := q.inputs[0]
	assert.Equal(t, "http://localhost:4566/000000000000/orders", *in.QueueUrl)
	assert.Equal(t, "order.submitted", *in.MessageAttributes["event_type"].StringValue)
	assert.Equal(t, "LBVP-ABC", *in.MessageAttributes["order_id"].StringValue)

	decoded, err := events.Decode([]byte(*in.MessageBody))
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestPublisher_SendErrorIsWrapped(t *testing.T) {
	boom := errors.New("throttled")
	p := NewPublisher(&mockSQS{err: boom}, "q")

	err := p.SendOrderMessage(context.Background(), `{}`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
