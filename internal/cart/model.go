package cart

import "time"

type CartItem struct {
	ID               int64     `json:"id"`
	StoreID          int64     `json:"store_id"`
	CustomerStripeID string    `json:"customer_stripe_id"`
	ProductReference string    `json:"product_reference"`
	Description      string    `json:"description,omitempty"`
	Value            float64   `json:"value"`
	Quantity         int       `json:"quantity"`
	Weight           *float64  `json:"weight,omitempty"`
	ProductStripeID  *string   `json:"product_stripe_id,omitempty"`
	PaymentID        *string   `json:"payment_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// LineTotal is value x quantity in euros.
func (c CartItem) LineTotal() float64 {
	return c.Value * float64(c.Quantity)
}

type CreateCartItemParams struct {
	StoreID          int64    `json:"store_id"`
	CustomerStripeID string   `json:"customer_stripe_id"`
	ProductReference string   `json:"product_reference"`
	Description      string   `json:"description,omitempty"`
	Value            float64  `json:"value"`
	Quantity         int      `json:"quantity"`
	Weight           *float64 `json:"weight,omitempty"`
	ProductStripeID  *string  `json:"product_stripe_id,omitempty"`
	// PaymentID scopes the item to an order being modified.
	PaymentID *string `json:"payment_id,omitempty"`
}

type UpdateQuantityParams struct {
	Quantity int `json:"quantity"`
}

type StoreRef struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// StoreGroup is one store's slice of a customer's cart summary.
type StoreGroup struct {
	Store StoreRef   `json:"store"`
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

type summaryRow struct {
	CartItem
	StoreSlug string
	StoreName string
}
