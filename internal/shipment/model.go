package shipment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPaid Status = "PAID"
	// StatusOpen marks the shipment whose order is being modified. A store
	// holds at most one.
	StatusOpen Status = "OPEN"
)

type LineItem struct {
	Reference   string   `json:"reference"`
	Description string   `json:"description,omitempty"`
	Value       float64  `json:"value"`
	Quantity    int      `json:"quantity"`
	Weight      *float64 `json:"weight,omitempty"`
}

type Shipment struct {
	ID               uuid.UUID  `json:"id"`
	StoreID          int64      `json:"store_id"`
	PaymentID        string     `json:"payment_id"`
	CustomerStripeID string     `json:"customer_stripe_id"`
	Status           Status     `json:"status"`
	PaidValueCents   int64      `json:"paid_value_cents"`
	Items            []LineItem `json:"items"`
	OpenedAt         *time.Time `json:"opened_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type OpenParams struct {
	PaymentID string `json:"payment_id"`
	Force     bool   `json:"force"`
}

type OpenResult struct {
	ShipmentID       uuid.UUID `json:"shipment_id"`
	PaymentID        string    `json:"payment_id"`
	StoreID          int64     `json:"store_id"`
	CustomerStripeID string    `json:"customer_stripe_id"`
	// CreditCents is the value already paid for the order being modified.
	CreditCents int64 `json:"credit_balance_cents"`
}

type CancelParams struct {
	StoreID    int64      `json:"store_id"`
	ShipmentID *uuid.UUID `json:"shipment_id,omitempty"`
}

type CancelResult struct {
	Released int64 `json:"released"`
}

type ActiveShipment struct {
	ShipmentID uuid.UUID `json:"shipment_id"`
	PaymentID  string    `json:"payment_id"`
	StoreID    int64     `json:"store_id"`
	OpenedAt   time.Time `json:"opened_at"`
}

// ActiveResponse wraps the lock holder; OpenShipment is null when the store
// has no open shipment.
type ActiveResponse struct {
	OpenShipment *ActiveShipment `json:"open_shipment"`
}

type RebuildParams struct {
	PaymentID string `json:"payment_id"`
}

type RebuildResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
}
