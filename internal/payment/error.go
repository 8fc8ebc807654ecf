package payment

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidEmail          = errors.New("customerEmail is invalid")
	ErrMissingCustomer       = errors.New("customer_stripe_id is required")
	ErrMissingStore          = errors.New("store_id is required")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidDeliveryMethod = errors.New("invalid delivery method")
	ErrMissingAddress        = errors.New("shipping address is required for home delivery")
	ErrMissingOffer          = errors.New("shipping offer is required for home delivery")
	ErrMissingParcelPoint    = errors.New("parcel point is required for pickup delivery")
	ErrMissingCoupon         = errors.New("coupon_id is required")

	// -- Resource State --
	ErrCartItemsMissing = errors.New("Certains articles ne sont plus disponibles dans le panier")
	ErrCartItemPaid     = errors.New("Certains articles ont déjà été payés")
	ErrCartItemForeign  = errors.New("cart item does not belong to this checkout")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")

	// -- Configuration --
	ErrGatewayNotConfigured = errors.New("STRIPE_SECRET_KEY is not configured")

	// -- Upstream --
	ErrStripe = errors.New("stripe request failed")
)

// StripeError carries the status and message returned by the Stripe API.
type StripeError struct {
	Status  int
	Type    string
	Message string
}

func (e *StripeError) Error() string {
	return "stripe: " + e.Message
}

func (e *StripeError) Unwrap() error {
	return ErrStripe
}

