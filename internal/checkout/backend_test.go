package checkout

import (
	"context"

	"paylive-be/internal/boxtal"
	"paylive-be/internal/cart"
	"paylive-be/internal/payment"
	"paylive-be/internal/shipment"
	"paylive-be/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SearchParcelPoints(ctx context.Context, q boxtal.SearchQuery) ([]boxtal.ParcelPoint, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]boxtal.ParcelPoint), args.Error(1)
}

func (m *MockBackend) GetStore(ctx context.Context, slug string) (*store.Store, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Store), args.Error(1)
}

func (m *MockBackend) SearchStock(ctx context.Context, slug, q string) ([]store.StockItem, error) {
	args := m.Called(ctx, slug, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.StockItem), args.Error(1)
}

func (m *MockBackend) GetCustomerDetails(ctx context.Context, email string) (*payment.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Customer), args.Error(1)
}

func (m *MockBackend) CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSessionResponse), args.Error(1)
}

func (m *MockBackend) DeleteCoupon(ctx context.Context, couponID string) error {
	return m.Called(ctx, couponID).Error(0)
}

func (m *MockBackend) CartSummary(ctx context.Context, stripeID string, paymentID *string) ([]cart.StoreGroup, error) {
	args := m.Called(ctx, stripeID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.StoreGroup), args.Error(1)
}

func (m *MockBackend) AddCartItem(ctx context.Context, params cart.CreateCartItemParams) (*cart.CartItem, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.CartItem), args.Error(1)
}

func (m *MockBackend) UpdateCartItem(ctx context.Context, id int64, quantity int) (*cart.CartItem, error) {
	args := m.Called(ctx, id, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.CartItem), args.Error(1)
}

func (m *MockBackend) DeleteCartItem(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) OpenShipment(ctx context.Context, paymentID string, force bool) (*shipment.OpenResult, error) {
	args := m.Called(ctx, paymentID, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.OpenResult), args.Error(1)
}

func (m *MockBackend) CancelOpenShipment(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error) {
	args := m.Called(ctx, storeID, shipmentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBackend) RebuildCarts(ctx context.Context, paymentID string) (*shipment.RebuildResult, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.RebuildResult), args.Error(1)
}

func (m *MockBackend) ActiveOpenShipment(ctx context.Context, storeID int64) (*shipment.ActiveShipment, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.ActiveShipment), args.Error(1)
}

// httpError stands in for the API client's error type.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string    { return e.message }
func (e *httpError) IsNotFound() bool { return e.status == 404 }

var testStore = &store.Store{ID: 7, Slug: "boutique-lea", Name: "Boutique Léa"}

func item(id int64, ref string, qty int, value float64) cart.CartItem {
	return cart.CartItem{ID: id, StoreID: testStore.ID, CustomerStripeID: "cus_1", ProductReference: ref, Quantity: qty, Value: value}
}

func group(items ...cart.CartItem) []cart.StoreGroup {
	return []cart.StoreGroup{
		{Store: cart.StoreRef{ID: 99, Slug: "autre"}, Items: []cart.CartItem{item(500, "Z9", 1, 1)}},
		{Store: cart.StoreRef{ID: testStore.ID, Slug: testStore.Slug}, Items: items},
	}
}

func newSync(b *MockBackend) *CartSync {
	cs := NewCartSync(b, testStore, "Buyer@Example.com")
	cs.SetStripeID("cus_1")
	return cs
}
