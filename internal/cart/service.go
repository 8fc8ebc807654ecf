package cart

import (
	"context"
	"strings"

	"paylive-be/internal/logger"

	"go.uber.org/zap"
)

// Service defines the business logic for carts.
type Service interface {
	AddToCart(ctx context.Context, params CreateCartItemParams) (*CartItem, error)
	UpdateQuantity(ctx context.Context, id int64, quantity int) (*CartItem, error)
	RemoveFromCart(ctx context.Context, id int64) error
	Summary(ctx context.Context, customerStripeID string, paymentID *string) ([]*StoreGroup, error)
	GetItems(ctx context.Context, ids []int64) ([]CartItem, error)
	ListByPayment(ctx context.Context, paymentID string) ([]CartItem, error)
	AttachPayment(ctx context.Context, ids []int64, paymentID string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) AddToCart(ctx context.Context, params CreateCartItemParams) (*CartItem, error) {
	params.ProductReference = strings.TrimSpace(params.ProductReference)

	switch {
	case params.StoreID <= 0:
		return nil, ErrMissingStore
	case strings.TrimSpace(params.CustomerStripeID) == "":
		return nil, ErrMissingCustomer
	case params.ProductReference == "":
		return nil, ErrInvalidReference
	case params.Quantity < 1:
		return nil, ErrInvalidQuantity
	case params.Value < 0:
		return nil, ErrInvalidValue
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "AddToCart"),
		zap.Int64("store_id", params.StoreID),
		zap.String("reference", params.ProductReference),
	)

	existing, err := s.repo.FindByReference(
		ctx,
		params.StoreID,
		params.CustomerStripeID,
		params.ProductReference,
		params.PaymentID,
	)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("reference already in cart", zap.Int64("existing_id", existing.ID))
		return nil, &DuplicateReferenceError{Reference: params.ProductReference}
	}

	// The unique index still guards the race between the check and the insert.
	return s.repo.CreateCartItem(ctx, params)
}

func (s *service) UpdateQuantity(ctx context.Context, id int64, quantity int) (*CartItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return s.repo.UpdateQuantity(ctx, id, quantity)
}

func (s *service) RemoveFromCart(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) Summary(
	ctx context.Context,
	customerStripeID string,
	paymentID *string,
) ([]*StoreGroup, error) {

	if strings.TrimSpace(customerStripeID) == "" {
		return nil, ErrMissingCustomer
	}
	if paymentID != nil && *paymentID == "" {
		paymentID = nil
	}

	rows, err := s.repo.ListSummaryRows(ctx, customerStripeID, paymentID)
	if err != nil {
		return nil, err
	}
	return groupByStore(rows), nil
}

func (s *service) GetItems(ctx context.Context, ids []int64) ([]CartItem, error) {
	if len(ids) == 0 {
		return []CartItem{}, nil
	}
	return s.repo.GetByIDs(ctx, ids)
}

func (s *service) ListByPayment(ctx context.Context, paymentID string) ([]CartItem, error) {
	return s.repo.ListByPayment(ctx, paymentID)
}

func (s *service) AttachPayment(ctx context.Context, ids []int64, paymentID string) error {
	if len(ids) == 0 {
		return nil
	}

	n, err := s.repo.AttachPayment(ctx, ids, paymentID)
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("payment attached to cart items",
		zap.String("payment_id", paymentID),
		zap.Int64("rows", n),
	)
	return nil
}
