package shipment

import (
	"context"
	"errors"
	"strings"

	"paylive-be/internal/cart"
	"paylive-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartStore is the slice of the cart service used to rebuild an order.
type CartStore interface {
	ListByPayment(ctx context.Context, paymentID string) ([]cart.CartItem, error)
	AddToCart(ctx context.Context, params cart.CreateCartItemParams) (*cart.CartItem, error)
}

type Service interface {
	OpenByPayment(ctx context.Context, paymentID string, force bool) (*OpenResult, error)
	CancelOpen(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Shipment, error)
	ActiveOpen(ctx context.Context, storeID int64) (*ActiveShipment, error)
	RebuildCarts(ctx context.Context, paymentID string) (*RebuildResult, error)
	RecordPaid(ctx context.Context, s *Shipment) error
}

type service struct {
	repo  Repository
	carts CartStore
}

func NewService(repo Repository, carts CartStore) Service {
	return &service{repo: repo, carts: carts}
}

func (s *service) OpenByPayment(ctx context.Context, paymentID string, force bool) (*OpenResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrMissingPayment
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Shipment"),
		zap.String("method", "OpenByPayment"),
		zap.String("payment_id", paymentID),
	)

	sh, err := s.repo.Open(ctx, paymentID, force)
	if errors.Is(err, ErrShipmentAlreadyOpen) {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}

		// Lost the race to a concurrent open; report who won.
		target, getErr := s.repo.GetByPaymentID(ctx, paymentID)
		if getErr != nil {
			return nil, err
		}
		holder, getErr := s.repo.GetOpenByStore(ctx, target.StoreID)
		if getErr != nil || holder == nil {
			return nil, err
		}
		return nil, &ConflictError{ShipmentID: holder.ID, PaymentID: holder.PaymentID}
	}
	if err != nil {
		log.Warn("open shipment failed", zap.Error(err))
		return nil, err
	}

	log.Info("shipment edit lock acquired", zap.String("shipment_id", sh.ID.String()))

	return &OpenResult{
		ShipmentID:       sh.ID,
		PaymentID:        sh.PaymentID,
		StoreID:          sh.StoreID,
		CustomerStripeID: sh.CustomerStripeID,
		CreditCents:      sh.PaidValueCents,
	}, nil
}

// CancelOpen is idempotent: releasing a store without a lock is not an error.
func (s *service) CancelOpen(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error) {
	if storeID <= 0 {
		return 0, ErrMissingStore
	}

	n, err := s.repo.Close(ctx, storeID, shipmentID)
	if err != nil {
		return 0, err
	}

	logger.FromCtx(ctx).Info("open shipment cancelled",
		zap.Int64("store_id", storeID),
		zap.Int64("released", n),
	)
	return n, nil
}

func (s *service) GetByPaymentID(ctx context.Context, paymentID string) (*Shipment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrMissingPayment
	}
	return s.repo.GetByPaymentID(ctx, paymentID)
}

func (s *service) ActiveOpen(ctx context.Context, storeID int64) (*ActiveShipment, error) {
	if storeID <= 0 {
		return nil, ErrMissingStore
	}

	sh, err := s.repo.GetOpenByStore(ctx, storeID)
	if err != nil || sh == nil {
		return nil, err
	}

	active := &ActiveShipment{
		ShipmentID: sh.ID,
		PaymentID:  sh.PaymentID,
		StoreID:    sh.StoreID,
	}
	if sh.OpenedAt != nil {
		active.OpenedAt = *sh.OpenedAt
	}
	return active, nil
}

// RebuildCarts materialises the paid line items of paymentID as cart items
// scoped to that payment. Items already present are left untouched.
func (s *service) RebuildCarts(ctx context.Context, paymentID string) (*RebuildResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrMissingPayment
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Shipment"),
		zap.String("method", "RebuildCarts"),
		zap.String("payment_id", paymentID),
	)

	sh, err := s.repo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.carts.ListByPayment(ctx, paymentID)
	if err != nil {
		log.Error("failed to list existing cart items", zap.Error(err))
		return nil, ErrFailedRebuildCarts
	}

	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[strings.ToLower(item.ProductReference)] = struct{}{}
	}

	result := &RebuildResult{}
	for _, li := range sh.Items {
		if _, ok := seen[strings.ToLower(li.Reference)]; ok {
			result.Existing++
			continue
		}

		pid := paymentID
		_, err := s.carts.AddToCart(ctx, cart.CreateCartItemParams{
			StoreID:          sh.StoreID,
			CustomerStripeID: sh.CustomerStripeID,
			ProductReference: li.Reference,
			Description:      li.Description,
			Value:            li.Value,
			Quantity:         li.Quantity,
			Weight:           li.Weight,
			PaymentID:        &pid,
		})
		switch {
		case errors.Is(err, cart.ErrCartItemAlreadyExist):
			result.Existing++
		case err != nil:
			log.Error("failed to recreate cart item", zap.String("reference", li.Reference), zap.Error(err))
			return nil, ErrFailedRebuildCarts
		default:
			result.Created++
		}
		seen[strings.ToLower(li.Reference)] = struct{}{}
	}

	log.Info("carts rebuilt", zap.Int("created", result.Created), zap.Int("existing", result.Existing))
	return result, nil
}

func (s *service) RecordPaid(ctx context.Context, sh *Shipment) error {
	created, err := s.repo.RecordPaid(ctx, sh)
	if err != nil {
		return err
	}
	if !created {
		logger.FromCtx(ctx).Info("shipment already recorded", zap.String("payment_id", sh.PaymentID))
	}
	return nil
}
