package orders

import "time"

// Status is the fulfillment state of an order.
type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
)

// PaymentStatus tracks settlement independently of fulfillment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentMethod is how the shopper pays.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentUPI  PaymentMethod = "upi"
	PaymentCard PaymentMethod = "card"
)

// LineItem is a cart line frozen at submission with catalog values.
type LineItem struct {
	ItemID   string `dynamodbav:"item_id" json:"item_id"`
	Name     string `dynamodbav:"name" json:"name"`
	Size     string `dynamodbav:"size" json:"size"`
	Quantity int    `dynamodbav:"quantity" json:"quantity"`
	Price    int64  `dynamodbav:"price" json:"price"`
	Image    string `dynamodbav:"image,omitempty" json:"image,omitempty"`
}

// Customer is the delivery contact captured at checkout.
type Customer struct {
	Name    string `dynamodbav:"name" json:"name"`
	Email   string `dynamodbav:"email" json:"email"`
	Phone   string `dynamodbav:"phone" json:"phone"`
	Address string `dynamodbav:"address" json:"address"`
	City    string `dynamodbav:"city" json:"city"`
	Pincode string `dynamodbav:"pincode" json:"pincode"`
}

// TimelineEntry records when the order entered a status.
type TimelineEntry struct {
	Status      Status    `dynamodbav:"status" json:"status"`
	Title       string    `dynamodbav:"title" json:"title"`
	Description string    `dynamodbav:"description" json:"description"`
	At          time.Time `dynamodbav:"at" json:"at"`
}

// Shipment is the courier hand-off.
type Shipment struct {
	Courier     string `dynamodbav:"courier" json:"courier"`
	AWB         string `dynamodbav:"awb" json:"awb"`
	TrackingURL string `dynamodbav:"tracking_url,omitempty" json:"tracking_url,omitempty"`
}

// CourierUpdate is one entry of the courier's scan feed.
type CourierUpdate struct {
	Location string    `dynamodbav:"location" json:"location"`
	Message  string    `dynamodbav:"message" json:"message"`
	At       time.Time `dynamodbav:"at" json:"at"`
}

// Order represents the item stored in the orders DynamoDB table. Items,
// Customer, PaymentMethod, the totals, ID and CreatedAt never change once
// written; the remaining fields are lifecycle and tracking annotations.
type Order struct {
	ID                string          `dynamodbav:"order_id" json:"id"` // PK
	Items             []LineItem      `dynamodbav:"items" json:"items"`
	Customer          Customer        `dynamodbav:"customer" json:"customer"`
	PaymentMethod     PaymentMethod   `dynamodbav:"payment_method" json:"payment_method"`
	PaymentStatus     PaymentStatus   `dynamodbav:"payment_status" json:"payment_status"`
	Status            Status          `dynamodbav:"status" json:"status"`
	Subtotal          int64           `dynamodbav:"subtotal" json:"subtotal"`
	Shipping          int64           `dynamodbav:"shipping" json:"shipping"`
	Total             int64           `dynamodbav:"total" json:"total"`
	Timeline          []TimelineEntry `dynamodbav:"timeline" json:"timeline"`
	Shipment          *Shipment       `dynamodbav:"shipment,omitempty" json:"shipment,omitempty"`
	AWBKey            string          `dynamodbav:"awb_key,omitempty" json:"-"` // upper-cased AWB, GSI awb-index
	CurrentLocation   string          `dynamodbav:"current_location,omitempty" json:"current_location,omitempty"`
	Updates           []CourierUpdate `dynamodbav:"updates" json:"updates"`
	EstimatedDelivery *time.Time      `dynamodbav:"estimated_delivery,omitempty" json:"estimated_delivery,omitempty"`
	CreatedAt         time.Time       `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `dynamodbav:"updated_at" json:"updated_at"`
}

// ItemCount is the sum of line quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
