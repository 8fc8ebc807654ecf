package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"paylive-be/internal/delivery"
	"paylive-be/internal/logger"
	"paylive-be/internal/payment"
	"paylive-be/internal/store"

	"go.uber.org/zap"
)

type Options struct {
	StoreSlug string
	Email     string
	// Params are the page's query parameters; a valid pair starts an order edit.
	Params     Params
	ReturnMode bool
}

// Session is one buyer's checkout on one store page.
type Session struct {
	backend Backend
	store   *store.Store
	email   string

	Delivery *delivery.Reconciler
	Cart     *CartSync
	Shipment *ShipmentFlow

	mu       sync.Mutex
	mode     Mode
	customer *payment.Customer
	checkout *payment.CheckoutSessionResponse
}

// NewSession loads the store and the buyer's saved details, restores the
// delivery preference and the cart, and starts an order edit when the
// parameters ask for one. A failed order edit is returned alongside a usable
// session.
func NewSession(ctx context.Context, backend Backend, geo delivery.Geocoder, opts Options) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "checkout"),
		zap.String("method", "NewSession"),
		zap.String("store", opts.StoreSlug),
	)

	st, err := backend.GetStore(ctx, opts.StoreSlug)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(opts.Email))
	cust, err := backend.GetCustomerDetails(ctx, email)
	if err != nil {
		return nil, err
	}

	rec := delivery.NewReconciler(geo, backend, delivery.Options{
		DefaultMethod:          delivery.ParseType(cust.DeliveryMethod),
		InitialNetwork:         cust.DeliveryNetwork,
		InitialParcelPointCode: cust.ParcelPointCode,
		ReturnMode:             opts.ReturnMode,
		StoreAddress:           st.Address,
	})
	if cust.Address != nil {
		if err := rec.SetAddress(ctx, cust.Address); err != nil {
			log.Warn("saved address refresh failed", zap.Error(err))
		}
	}

	cs := NewCartSync(backend, st, email)
	cs.SetStripeID(cust.StripeID)

	s := &Session{
		backend:  backend,
		store:    st,
		email:    email,
		Delivery: rec,
		Cart:     cs,
		Shipment: NewShipmentFlow(backend, cs, st.ID),
		customer: cust,
	}

	if opts.Params.Valid() {
		if err := s.Shipment.Start(ctx, opts.Params); err != nil {
			return s, err
		}
		return s, nil
	}

	if _, err := cs.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Store() *store.Store {
	return s.store
}

func (s *Session) Customer() *payment.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customer
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetMode(to Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setModeLocked(to)
}

func (s *Session) setModeLocked(to Mode) error {
	if s.mode == to {
		return nil
	}
	if !s.mode.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.mode, to)
	}
	s.mode = to
	return nil
}

// ProceedToPayment refuses when the cart is empty, the form is incomplete,
// the cart differs from the server's, or stock is short. Otherwise it
// creates the embedded checkout session and moves to AwaitingPayment.
func (s *Session) ProceedToPayment(ctx context.Context, contact delivery.Contact) (*payment.CheckoutSessionResponse, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "checkout"),
		zap.String("method", "ProceedToPayment"),
		zap.Int64("store_id", s.store.ID),
	)

	if s.Mode() == Completed {
		return nil, ErrInvalidTransition
	}

	if len(s.Cart.Items()) == 0 {
		return nil, ErrEmptyCart
	}
	if err := s.Delivery.Validate(contact); err != nil {
		return nil, err
	}
	if err := s.Cart.VerifyAgainstServer(ctx); err != nil {
		log.Info("cart verification refused payment", zap.Error(err))
		return nil, err
	}
	if len(s.Cart.Items()) == 0 {
		return nil, ErrEmptyCart
	}
	if err := s.Cart.ValidateStock(ctx); err != nil {
		log.Info("stock validation refused payment", zap.Error(err))
		return nil, err
	}

	stripeID := s.Cart.StripeID()
	if stripeID == "" {
		return nil, ErrNoCustomer
	}

	ds := s.Delivery.State()
	req := payment.CheckoutSessionRequest{
		StoreID:           s.store.ID,
		CustomerStripeID:  stripeID,
		CartItemIDs:       s.Cart.IDs(),
		Name:              strings.TrimSpace(contact.Name),
		Phone:             strings.TrimSpace(contact.Phone),
		DeliveryMethod:    ds.Method,
		ShippingOfferCode: ds.OfferCode,
	}
	switch ds.Method {
	case delivery.MethodHome:
		req.ShippingAddress = ds.Address
	case delivery.MethodPickup:
		req.ParcelPointCode = ds.ParcelPoint.Code
		req.ParcelPointNetwork = ds.ParcelPoint.Network
	}

	if s.Shipment.Editing() {
		credit, paymentID, err := s.Shipment.PrepareCommit(ctx)
		if err != nil {
			return nil, err
		}
		req.TempCreditBalanceCents = credit
		req.OpenShipmentPaymentID = paymentID
	}

	res, err := s.backend.CreateCheckoutSession(ctx, req)
	if err != nil {
		log.Warn("checkout session creation failed", zap.Error(err))
		return nil, err
	}
	if res.CouponID != "" {
		s.Shipment.RecordCoupon(res.CouponID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setModeLocked(AwaitingPayment); err != nil {
		return nil, err
	}
	s.checkout = res

	log.Info("checkout session created", zap.String("session_id", res.SessionID))
	return res, nil
}

// MarkCompleted records a successful payment, commits an order edit and
// reloads the buyer's saved details and cart.
func (s *Session) MarkCompleted(ctx context.Context) error {
	s.mu.Lock()
	if err := s.setModeLocked(Completed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if s.Shipment.Editing() {
		if err := s.Shipment.MarkCommitted(); err != nil {
			return err
		}
		s.Cart.SetPaymentScope(nil)
	}

	log := logger.FromCtx(ctx).With(zap.String("service", "checkout"), zap.String("method", "MarkCompleted"))
	if cust, err := s.backend.GetCustomerDetails(ctx, s.email); err == nil {
		s.mu.Lock()
		s.customer = cust
		s.mu.Unlock()
	} else {
		log.Warn("customer refresh failed", zap.Error(err))
	}
	if _, err := s.Cart.Refresh(ctx); err != nil {
		log.Warn("cart refresh failed", zap.Error(err))
	}
	return nil
}
