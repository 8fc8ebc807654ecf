package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"paylive-be/internal/cart"
	"paylive-be/internal/delivery"
	"paylive-be/internal/logger"
	"paylive-be/internal/utils"

	"go.uber.org/zap"
)

// CartReader loads the cart items a checkout session is built from.
type CartReader interface {
	GetItems(ctx context.Context, ids []int64) ([]cart.CartItem, error)
}

type Service interface {
	GetCustomerDetails(ctx context.Context, email string) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResponse, error)
	DeleteCoupon(ctx context.Context, couponID string) error
}

type service struct {
	gateway   Gateway
	carts     CartReader
	returnURL string
}

func NewService(gateway Gateway, carts CartReader, returnURL string) Service {
	return &service{gateway: gateway, carts: carts, returnURL: returnURL}
}

func (s *service) GetCustomerDetails(ctx context.Context, email string) (*Customer, error) {
	email = strings.TrimSpace(email)
	if !utils.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	return s.gateway.FindOrCreateCustomer(ctx, strings.ToLower(email))
}

func validateDelivery(req CheckoutSessionRequest) error {
	switch req.DeliveryMethod {
	case delivery.MethodHome:
		if req.ShippingAddress == nil || strings.TrimSpace(req.ShippingAddress.Line1) == "" {
			return ErrMissingAddress
		}
		if req.ShippingOfferCode == "" {
			return ErrMissingOffer
		}
	case delivery.MethodPickup:
		if req.ParcelPointCode == "" {
			return ErrMissingParcelPoint
		}
	case delivery.MethodStorePickup:
	default:
		return ErrInvalidDeliveryMethod
	}
	return nil
}

func (s *service) CreateCheckoutSession(
	ctx context.Context,
	req CheckoutSessionRequest,
) (*CheckoutSessionResponse, error) {

	switch {
	case req.StoreID <= 0:
		return nil, ErrMissingStore
	case strings.TrimSpace(req.CustomerStripeID) == "":
		return nil, ErrMissingCustomer
	case len(req.CartItemIDs) == 0:
		return nil, ErrEmptyCart
	}
	if err := validateDelivery(req); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Payment"),
		zap.String("method", "CreateCheckoutSession"),
		zap.Int64("store_id", req.StoreID),
		zap.String("customer_id", req.CustomerStripeID),
	)

	items, err := s.carts.GetItems(ctx, req.CartItemIDs)
	if err != nil {
		return nil, err
	}
	if len(items) != len(req.CartItemIDs) {
		log.Warn("cart items missing at checkout",
			zap.Int("requested", len(req.CartItemIDs)),
			zap.Int("found", len(items)),
		)
		return nil, ErrCartItemsMissing
	}

	var (
		lineItems  = make([]LineItem, 0, len(items))
		totalCents int64
		ids        = make([]string, 0, len(items))
	)
	for _, item := range items {
		if item.StoreID != req.StoreID || item.CustomerStripeID != req.CustomerStripeID {
			return nil, ErrCartItemForeign
		}
		if item.PaymentID != nil && *item.PaymentID != req.OpenShipmentPaymentID {
			return nil, ErrCartItemPaid
		}

		name := item.ProductReference
		if item.Description != "" {
			name += " - " + item.Description
		}
		unit := utils.ToCents(item.Value)
		lineItems = append(lineItems, LineItem{Name: name, UnitAmountCent: unit, Quantity: item.Quantity})
		totalCents += unit * int64(item.Quantity)
		ids = append(ids, strconv.FormatInt(item.ID, 10))
	}

	if err := s.gateway.UpdateCustomer(ctx, req.CustomerStripeID, CustomerUpdate{
		Name:            req.Name,
		Phone:           utils.NormalizePhoneFR(req.Phone),
		Address:         req.ShippingAddress,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryNetwork: req.ParcelPointNetwork,
		ParcelPointCode: req.ParcelPointCode,
	}); err != nil {
		return nil, err
	}

	credit := req.TempCreditBalanceCents
	if credit > totalCents {
		credit = totalCents
	}

	var couponID string
	if credit > 0 {
		couponID, err = s.gateway.CreateCoupon(ctx, credit, "Crédit commande modifiée")
		if err != nil {
			return nil, err
		}
	}

	metadata := map[string]string{
		MetaStoreID:        strconv.FormatInt(req.StoreID, 10),
		MetaCartItemIDs:    strings.Join(ids, ","),
		MetaDeliveryMethod: string(req.DeliveryMethod),
	}
	if req.ShippingOfferCode != "" {
		metadata[MetaShippingOffer] = req.ShippingOfferCode
	}
	if req.ParcelPointCode != "" {
		metadata[MetaParcelPointCode] = req.ParcelPointCode
	}
	if req.OpenShipmentPaymentID != "" {
		metadata[MetaOpenShipmentPaymentID] = req.OpenShipmentPaymentID
	}
	if credit > 0 {
		metadata[MetaCreditCents] = strconv.FormatInt(credit, 10)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, SessionParams{
		CustomerID: req.CustomerStripeID,
		LineItems:  lineItems,
		CouponID:   couponID,
		Metadata:   metadata,
		ReturnURL:  s.returnURL,
	})
	if err != nil {
		if couponID != "" {
			if delErr := s.gateway.DeleteCoupon(ctx, couponID); delErr != nil {
				log.Warn("failed to delete orphan coupon", zap.String("coupon_id", couponID), zap.Error(delErr))
			}
		}
		return nil, err
	}

	log.Info("checkout session ready",
		zap.String("session_id", sess.ID),
		zap.Int64("total_cents", totalCents),
		zap.Int64("credit_cents", credit),
	)

	return &CheckoutSessionResponse{
		ClientSecret: sess.ClientSecret,
		SessionID:    sess.ID,
		CouponID:     couponID,
	}, nil
}

func (s *service) DeleteCoupon(ctx context.Context, couponID string) error {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return ErrMissingCoupon
	}
	return s.gateway.DeleteCoupon(ctx, couponID)
}

// IsValidation reports errors caused by the request itself.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidEmail,
		ErrMissingCustomer,
		ErrMissingStore,
		ErrEmptyCart,
		ErrInvalidDeliveryMethod,
		ErrMissingAddress,
		ErrMissingOffer,
		ErrMissingParcelPoint,
		ErrMissingCoupon,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
