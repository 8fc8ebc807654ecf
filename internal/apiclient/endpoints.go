package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"paylive-be/internal/boxtal"
	"paylive-be/internal/cart"
	"paylive-be/internal/payment"
	"paylive-be/internal/shipment"
	"paylive-be/internal/store"

	"github.com/google/uuid"
)

// -- Stores --

func (c *Client) GetStore(ctx context.Context, slug string) (*store.Store, error) {
	var st store.Store
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/stores/" + url.PathEscape(slug),
		out:    &st,
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) SearchStock(ctx context.Context, slug, q string) ([]store.StockItem, error) {
	items := []store.StockItem{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/stores/" + url.PathEscape(slug) + "/stock/search",
		query:  url.Values{"q": {q}},
		out:    &items,
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// -- Stripe --

func (c *Client) GetCustomerDetails(ctx context.Context, email string) (*payment.Customer, error) {
	var cust payment.Customer
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/stripe/get-customer-details",
		query:  url.Values{"customerEmail": {email}},
		out:    &cust,
	})
	if err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSessionResponse, error) {
	var res payment.CheckoutSessionResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/stripe/create-checkout-session",
		in:     req,
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteCoupon(ctx context.Context, couponID string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/stripe/delete-coupon",
		auth:   true,
		in:     payment.DeleteCouponRequest{CouponID: couponID},
	})
}

// -- Carts --

func (c *Client) CartSummary(ctx context.Context, stripeID string, paymentID *string) ([]cart.StoreGroup, error) {
	q := url.Values{"stripeId": {stripeID}}
	if paymentID != nil && *paymentID != "" {
		q.Set("paymentId", *paymentID)
	}

	groups := []cart.StoreGroup{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/carts/summary",
		query:  q,
		out:    &groups,
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) AddCartItem(ctx context.Context, params cart.CreateCartItemParams) (*cart.CartItem, error) {
	var item cart.CartItem
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/carts",
		in:     params,
		out:    &item,
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, id int64, quantity int) (*cart.CartItem, error) {
	var item cart.CartItem
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/carts/" + strconv.FormatInt(id, 10),
		in:     cart.UpdateQuantityParams{Quantity: quantity},
		out:    &item,
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteCartItem(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/api/carts/" + strconv.FormatInt(id, 10),
	})
}

// -- Shipments --

// OpenShipment requests the store's edit lock for paymentID. A 409 comes
// back as *shipment.ConflictError naming the current holder.
func (c *Client) OpenShipment(ctx context.Context, paymentID string, force bool) (*shipment.OpenResult, error) {
	var res shipment.OpenResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/shipments/open-shipment-by-payment",
		auth:   true,
		in:     shipment.OpenParams{PaymentID: paymentID, Force: force},
		out:    &res,
	})
	if err != nil {
		return nil, asConflict(err)
	}
	return &res, nil
}

func asConflict(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsConflict() {
		return err
	}

	var holder shipment.ConflictError
	if jsonErr := json.Unmarshal(apiErr.Body, &holder); jsonErr != nil {
		return err
	}
	return &holder
}

func (c *Client) CancelOpenShipment(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error) {
	var res shipment.CancelResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/shipments/cancel-open-shipment",
		auth:   true,
		in:     shipment.CancelParams{StoreID: storeID, ShipmentID: shipmentID},
		out:    &res,
	})
	if err != nil {
		return 0, err
	}
	return res.Released, nil
}

func (c *Client) RebuildCarts(ctx context.Context, paymentID string) (*shipment.RebuildResult, error) {
	var res shipment.RebuildResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/shipments/rebuild-carts-from-payment",
		auth:   true,
		in:     shipment.RebuildParams{PaymentID: paymentID},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ActiveOpenShipment returns nil when no shipment is open for the store.
func (c *Client) ActiveOpenShipment(ctx context.Context, storeID int64) (*shipment.ActiveShipment, error) {
	var res shipment.ActiveResponse
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/shipments/active-open-shipment",
		query:  url.Values{"storeId": {strconv.FormatInt(storeID, 10)}},
		auth:   true,
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return res.OpenShipment, nil
}

// -- Boxtal --

func (c *Client) SearchParcelPoints(ctx context.Context, q boxtal.SearchQuery) ([]boxtal.ParcelPoint, error) {
	var res boxtal.SearchResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/boxtal/parcel-points",
		in:     q,
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return res.ParcelPoints, nil
}
