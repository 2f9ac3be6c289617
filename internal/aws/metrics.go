package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/lbvp-storefront/internal/events"
)

// Metrics records order activity as CloudWatch custom metrics.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
}

// NewMetrics returns a Metrics publisher for the given namespace.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	if namespace == "" {
		namespace = "LBVP/Storefront"
	}
	return &Metrics{client: client, namespace: namespace}
}

// Record converts one order event into metric datums.
func (m *Metrics) Record(ctx context.Context, e events.Event) error {
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var data []cwtypes.MetricDatum
	switch e.Type {
	case events.OrderSubmitted:
		data = append(data,
			datum("OrdersSubmitted", 1, cwtypes.StandardUnitCount, ts, "PaymentMethod", e.PaymentMethod),
			// revenue in rupees; paise are too fine for dashboards
			datum("Revenue", float64(e.Total)/100, cwtypes.StandardUnitNone, ts, "PaymentMethod", e.PaymentMethod),
			datum("ItemsSold", float64(e.ItemCount), cwtypes.StandardUnitCount, ts, "PaymentMethod", e.PaymentMethod),
		)
	case events.OrderStatusChanged:
		data = append(data, datum("OrderStatusChanged", 1, cwtypes.StandardUnitCount, ts, "Status", e.Status))
	case events.OrderPaymentChanged:
		data = append(data, datum("PaymentStatusChanged", 1, cwtypes.StandardUnitCount, ts, "PaymentStatus", e.PaymentStatus))
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func datum(name string, value float64, unit cwtypes.StandardUnit, ts time.Time, dimName, dimValue string) cwtypes.MetricDatum {
	d := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       unit,
		Timestamp:  &ts,
	}
	if dimValue != "" {
		d.Dimensions = []cwtypes.Dimension{{Name: awsString(dimName), Value: awsString(dimValue)}}
	}
	return d
}
