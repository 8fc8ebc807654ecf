package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"paylive-be/internal/logger"
	"paylive-be/internal/metrics"
	"paylive-be/internal/store"
	"paylive-be/internal/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const signatureTolerance = 5 * time.Minute

// Gateway is the subset of the Stripe API used by checkout.
type Gateway interface {
	FindOrCreateCustomer(ctx context.Context, email string) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, upd CustomerUpdate) error
	CreateCoupon(ctx context.Context, amountCents int64, name string) (string, error)
	DeleteCoupon(ctx context.Context, couponID string) error
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	VerifyWebhook(payload []byte, header string) error
}

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	api           *client.API
}

// ----------------- Constructor -----------------

func NewStripeGateway(secretKey, webhookSecret string, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return newStripeGateway(secretKey, webhookSecret, &http.Client{Timeout: timeout}, "")
}

// newStripeGateway builds the gateway on httpClient. An empty baseURL keeps
// the Stripe default.
func newStripeGateway(secretKey, webhookSecret string, httpClient *http.Client, baseURL string) *stripeGateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.L().Sugar(),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		api: client.New(secretKey, &stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
	}
}

func toCustomer(c *stripe.Customer) *Customer {
	out := &Customer{
		StripeID:        c.ID,
		Email:           c.Email,
		Name:            c.Name,
		Phone:           c.Phone,
		DeliveryMethod:  c.Metadata["delivery_method"],
		DeliveryNetwork: c.Metadata["delivery_network"],
		ParcelPointCode: c.Metadata["parcel_point_code"],
	}
	if a := c.Address; a != nil {
		out.Address = &store.Address{
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	return out
}

// ----------------- Customers -----------------

func (s *stripeGateway) FindOrCreateCustomer(ctx context.Context, email string) (*Customer, error) {
	log := logger.FromCtx(ctx).With(zap.String("gateway", "stripe"), zap.String("email", email))

	var found *stripe.Customer
	err := s.call(func() error {
		params := &stripe.CustomerListParams{Email: stripe.String(email)}
		params.Context = ctx
		params.Limit = stripe.Int64(1)

		it := s.api.Customers.List(params)
		if it.Next() {
			found = it.Customer()
		}
		return it.Err()
	})
	if err != nil {
		log.Error("customer lookup failed", zap.Error(err))
		return nil, err
	}
	if found != nil {
		return toCustomer(found), nil
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.SetIdempotencyKey(utils.GenerateIdempotencyKey("cus"))

	var created *stripe.Customer
	err = s.call(func() (err error) {
		created, err = s.api.Customers.New(params)
		return err
	})
	if err != nil {
		log.Error("customer creation failed", zap.Error(err))
		return nil, err
	}

	log.Info("Stripe customer created", zap.String("customer_id", created.ID))
	return toCustomer(created), nil
}

func (s *stripeGateway) UpdateCustomer(ctx context.Context, customerID string, upd CustomerUpdate) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if upd.Name != "" {
		params.Name = stripe.String(upd.Name)
	}
	if upd.Phone != "" {
		params.Phone = stripe.String(upd.Phone)
	}
	if a := upd.Address; a != nil {
		params.Address = &stripe.AddressParams{
			Line1:      stripe.String(a.Line1),
			Line2:      stripe.String(a.Line2),
			City:       stripe.String(a.City),
			PostalCode: stripe.String(a.PostalCode),
			Country:    stripe.String(a.Country),
		}
	}
	if upd.DeliveryMethod != "" {
		params.AddMetadata("delivery_method", string(upd.DeliveryMethod))
	}
	params.AddMetadata("delivery_network", upd.DeliveryNetwork)
	params.AddMetadata("parcel_point_code", upd.ParcelPointCode)

	err := s.call(func() error {
		_, err := s.api.Customers.Update(customerID, params)
		return err
	})
	if err != nil {
		logger.FromCtx(ctx).Error("customer update failed",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ----------------- Coupons -----------------

func (s *stripeGateway) CreateCoupon(ctx context.Context, amountCents int64, name string) (string, error) {
	params := &stripe.CouponParams{
		AmountOff:      stripe.Int64(amountCents),
		Currency:       stripe.String(string(stripe.CurrencyEUR)),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
		Name:           stripe.String(name),
	}
	params.Context = ctx
	params.SetIdempotencyKey(utils.GenerateIdempotencyKey("cpn"))

	var c *stripe.Coupon
	err := s.call(func() (err error) {
		c, err = s.api.Coupons.New(params)
		return err
	})
	if err != nil {
		logger.FromCtx(ctx).Error("coupon creation failed", zap.Int64("amount_cents", amountCents), zap.Error(err))
		return "", err
	}
	return c.ID, nil
}

// DeleteCoupon treats an already deleted coupon as success.
func (s *stripeGateway) DeleteCoupon(ctx context.Context, couponID string) error {
	params := &stripe.CouponParams{}
	params.Context = ctx

	err := s.call(func() error {
		_, err := s.api.Coupons.Del(couponID, params)
		return err
	})

	var se *StripeError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		logger.FromCtx(ctx).Info("coupon already gone", zap.String("coupon_id", couponID))
		return nil
	}
	return err
}

// ----------------- Checkout Sessions -----------------

func (s *stripeGateway) CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", "stripe"),
		zap.String("customer_id", p.CustomerID),
		zap.Int("line_items", len(p.LineItems)),
	)

	params := &stripe.CheckoutSessionParams{
		Mode:      stripe.String(string(stripe.CheckoutSessionModePayment)),
		UIMode:    stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		Customer:  stripe.String(p.CustomerID),
		ReturnURL: stripe.String(p.ReturnURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			SetupFutureUsage: stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
			Metadata:         p.Metadata,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(utils.GenerateIdempotencyKey("cs"))

	for _, li := range p.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(li.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyEUR)),
				UnitAmount: stripe.Int64(li.UnitAmountCent),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
			},
		})
	}
	if p.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.CouponID)},
		}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	var cs *stripe.CheckoutSession
	err := s.call(func() (err error) {
		cs, err = s.api.CheckoutSessions.New(params)
		return err
	})
	if err != nil {
		log.Error("checkout session creation failed", zap.Error(err))
		return nil, err
	}

	log.Info("Stripe checkout session created", zap.String("session_id", cs.ID))
	return toSession(cs), nil
}

func toSession(cs *stripe.CheckoutSession) *Session {
	sess := &Session{
		ID:            cs.ID,
		ClientSecret:  cs.ClientSecret,
		AmountTotal:   cs.AmountTotal,
		PaymentStatus: string(cs.PaymentStatus),
		Metadata:      cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		sess.PaymentIntent = cs.PaymentIntent.ID
	}
	if cs.Customer != nil {
		sess.Customer = cs.Customer.ID
	}
	return sess
}

// ----------------- Verify Signature -----------------

// VerifyWebhook checks a Stripe-Signature header against the raw payload.
func (s *stripeGateway) VerifyWebhook(payload []byte, header string) error {
	if s.webhookSecret == "" {
		return ErrInvalidSignature
	}

	err := webhook.ValidatePayloadWithTolerance(payload, header, s.webhookSecret, signatureTolerance)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, webhook.ErrTooOld):
		return ErrSignatureExpired
	default:
		return ErrInvalidSignature
	}
}

// ----------------- Transport -----------------

// call runs one Stripe request, timing it and mapping its error.
func (s *stripeGateway) call(fn func() error) error {
	if s.secretKey == "" {
		return ErrGatewayNotConfigured
	}

	timer := metrics.StartTimer()
	defer func() {
		metrics.Default.Observe("stripe_request", timer.Duration())
	}()

	err := fn()
	if err == nil {
		return nil
	}
	metrics.Default.Inc("stripe_error")

	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = http.StatusText(se.HTTPStatusCode)
		}
		return &StripeError{
			Status:  se.HTTPStatusCode,
			Type:    string(se.Type),
			Message: msg,
		}
	}
	return fmt.Errorf("%w: %v", ErrStripe, err)
}
