package payment

import (
	"paylive-be/internal/delivery"
	"paylive-be/internal/store"
)

// Customer is the Stripe customer with the delivery preferences kept in its
// metadata.
type Customer struct {
	StripeID        string         `json:"stripe_id"`
	Email           string         `json:"email"`
	Name            string         `json:"name,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Address         *store.Address `json:"address,omitempty"`
	DeliveryMethod  string         `json:"delivery_method,omitempty"`
	DeliveryNetwork string         `json:"delivery_network,omitempty"`
	ParcelPointCode string         `json:"parcel_point_code,omitempty"`
}

type CustomerUpdate struct {
	Name            string
	Phone           string
	Address         *store.Address
	DeliveryMethod  delivery.Method
	DeliveryNetwork string
	ParcelPointCode string
}

type CheckoutSessionRequest struct {
	StoreID          int64           `json:"store_id"`
	CustomerStripeID string          `json:"customer_stripe_id"`
	CartItemIDs      []int64         `json:"cart_item_ids"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	DeliveryMethod   delivery.Method `json:"delivery_method"`
	ShippingAddress  *store.Address  `json:"shipping_address,omitempty"`
	// ShippingOfferCode is the carrier offer, e.g. MONR-CpourToi.
	ShippingOfferCode  string `json:"shipping_offer_code,omitempty"`
	ParcelPointCode    string `json:"parcel_point_code,omitempty"`
	ParcelPointNetwork string `json:"parcel_point_network,omitempty"`
	// TempCreditBalanceCents is applied as a one-off discount when an open
	// shipment is being modified.
	TempCreditBalanceCents int64  `json:"temp_credit_balance_cents,omitempty"`
	OpenShipmentPaymentID  string `json:"open_shipment_payment_id,omitempty"`
}

type CheckoutSessionResponse struct {
	ClientSecret string `json:"client_secret"`
	SessionID    string `json:"session_id"`
	CouponID     string `json:"coupon_id,omitempty"`
}

type DeleteCouponRequest struct {
	CouponID string `json:"coupon_id"`
}

type LineItem struct {
	Name           string
	UnitAmountCent int64
	Quantity       int
}

type SessionParams struct {
	CustomerID string
	LineItems  []LineItem
	CouponID   string
	Metadata   map[string]string
	ReturnURL  string
}

type Session struct {
	ID            string            `json:"id"`
	ClientSecret  string            `json:"client_secret"`
	PaymentIntent string            `json:"payment_intent"`
	Customer      string            `json:"customer"`
	AmountTotal   int64             `json:"amount_total"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// Metadata keys written on checkout sessions and read back by the webhook.
const (
	MetaStoreID               = "store_id"
	MetaCartItemIDs           = "cart_item_ids"
	MetaDeliveryMethod        = "delivery_method"
	MetaShippingOffer         = "shipping_offer_code"
	MetaParcelPointCode       = "parcel_point_code"
	MetaOpenShipmentPaymentID = "open_shipment_payment_id"
	MetaCreditCents           = "credit_cents"
)
