package checkout

import (
	"context"

	"paylive-be/internal/cart"
	"paylive-be/internal/delivery"
	"paylive-be/internal/payment"
	"paylive-be/internal/shipment"
	"paylive-be/internal/store"

	"github.com/google/uuid"
)

// Backend is the REST surface the checkout flow depends on.
type Backend interface {
	delivery.PointSearcher

	GetStore(ctx context.Context, slug string) (*store.Store, error)
	SearchStock(ctx context.Context, slug, q string) ([]store.StockItem, error)

	GetCustomerDetails(ctx context.Context, email string) (*payment.Customer, error)
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSessionResponse, error)
	DeleteCoupon(ctx context.Context, couponID string) error

	CartSummary(ctx context.Context, stripeID string, paymentID *string) ([]cart.StoreGroup, error)
	AddCartItem(ctx context.Context, params cart.CreateCartItemParams) (*cart.CartItem, error)
	UpdateCartItem(ctx context.Context, id int64, quantity int) (*cart.CartItem, error)
	DeleteCartItem(ctx context.Context, id int64) error

	OpenShipment(ctx context.Context, paymentID string, force bool) (*shipment.OpenResult, error)
	CancelOpenShipment(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error)
	RebuildCarts(ctx context.Context, paymentID string) (*shipment.RebuildResult, error)
	ActiveOpenShipment(ctx context.Context, storeID int64) (*shipment.ActiveShipment, error)
}
