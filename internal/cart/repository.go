package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"paylive-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	CreateCartItem(ctx context.Context, params CreateCartItemParams) (*CartItem, error)
	GetByID(ctx context.Context, id int64) (*CartItem, error)
	GetByIDs(ctx context.Context, ids []int64) ([]CartItem, error)
	FindByReference(
		ctx context.Context,
		storeID int64,
		customerStripeID string,
		reference string,
		paymentID *string,
	) (*CartItem, error)
	UpdateQuantity(ctx context.Context, id int64, quantity int) (*CartItem, error)
	Delete(ctx context.Context, id int64) error
	ListSummaryRows(ctx context.Context, customerStripeID string, paymentID *string) ([]summaryRow, error)
	ListByPayment(ctx context.Context, paymentID string) ([]CartItem, error)
	AttachPayment(ctx context.Context, ids []int64, paymentID string) (int64, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const itemColumns = `
		c.id,
		c.store_id,
		c.customer_stripe_id,
		c.product_reference,
		COALESCE(c.description, ''),
		c.value,
		c.quantity,
		c.weight,
		c.product_stripe_id,
		c.payment_id,
		c.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner, extra ...any) (*CartItem, error) {
	var (
		item            CartItem
		weight          sql.NullFloat64
		productStripeID sql.NullString
		paymentID       sql.NullString
	)

	dest := []any{
		&item.ID,
		&item.StoreID,
		&item.CustomerStripeID,
		&item.ProductReference,
		&item.Description,
		&item.Value,
		&item.Quantity,
		&weight,
		&productStripeID,
		&paymentID,
		&item.CreatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if weight.Valid {
		item.Weight = &weight.Float64
	}
	if productStripeID.Valid {
		item.ProductStripeID = &productStripeID.String
	}
	if paymentID.Valid {
		item.PaymentID = &paymentID.String
	}
	return &item, nil
}

func (r *repository) CreateCartItem(ctx context.Context, params CreateCartItemParams) (*CartItem, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateCartItem"),
		zap.Int64("store_id", params.StoreID),
		zap.String("reference", params.ProductReference),
	)

	log.Debug("start create cart item")

	row := r.db.QueryRowContext(ctx, `
	INSERT INTO carts AS c (
		store_id,
		customer_stripe_id,
		product_reference,
		description,
		value,
		quantity,
		weight,
		product_stripe_id,
		payment_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING`+itemColumns,
		params.StoreID,
		params.CustomerStripeID,
		params.ProductReference,
		params.Description,
		params.Value,
		params.Quantity,
		params.Weight,
		params.ProductStripeID,
		params.PaymentID,
	)

	item, err := scanItem(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			log.Warn("duplicate reference rejected by unique index")
			return nil, &DuplicateReferenceError{Reference: params.ProductReference}
		}
		log.Error("failed to create cart item", zap.Error(err))
		return nil, ErrFailedCreateCartItem
	}

	log.Info("success create cart item", zap.Int64("cart_item_id", item.ID))
	return item, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*CartItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, `SELECT`+itemColumns+` FROM carts c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get cart item", zap.Int64("id", id), zap.Error(err))
		return nil, ErrFailedGetCartItem
	}
	return item, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []int64) ([]CartItem, error) {
	return r.list(ctx, "GetByIDs",
		`SELECT`+itemColumns+` FROM carts c WHERE c.id = ANY($1) ORDER BY c.created_at, c.id`,
		pq.Array(ids),
	)
}

// FindByReference returns nil, nil when no item in the scope matches.
func (r *repository) FindByReference(
	ctx context.Context,
	storeID int64,
	customerStripeID string,
	reference string,
	paymentID *string,
) (*CartItem, error) {

	item, err := scanItem(r.db.QueryRowContext(ctx, `
	SELECT`+itemColumns+`
	FROM carts c
	WHERE c.store_id = $1
	  AND c.customer_stripe_id = $2
	  AND lower(c.product_reference) = lower($3)
	  AND c.payment_id IS NOT DISTINCT FROM $4::text
	LIMIT 1
	`, storeID, customerStripeID, reference, paymentID))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to find cart item by reference", zap.Error(err))
		return nil, ErrFailedGetCartItem
	}
	return item, nil
}

func (r *repository) UpdateQuantity(ctx context.Context, id int64, quantity int) (*CartItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, `
	UPDATE carts AS c
	SET quantity = $1, updated_at = NOW()
	WHERE c.id = $2
	RETURNING`+itemColumns,
		quantity, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to update cart quantity", zap.Int64("id", id), zap.Error(err))
		return nil, ErrFailedUpdateCart
	}
	return item, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to delete cart item", zap.Int64("id", id), zap.Error(err))
		return ErrFailedRemoveCart
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return ErrFailedRemoveCart
	}
	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ListSummaryRows returns unpaid items when paymentID is nil, otherwise the
// items attached to that payment.
func (r *repository) ListSummaryRows(
	ctx context.Context,
	customerStripeID string,
	paymentID *string,
) ([]summaryRow, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListSummaryRows"),
		zap.String("customer", customerStripeID),
	)
	start := time.Now()

	rows, err := r.db.QueryContext(ctx, `
	SELECT`+itemColumns+`,
		s.slug,
		s.name
	FROM carts c
	JOIN stores s ON s.id = c.store_id
	WHERE c.customer_stripe_id = $1
	  AND c.payment_id IS NOT DISTINCT FROM $2::text
	ORDER BY s.id, c.created_at, c.id
	`, customerStripeID, paymentID)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, ErrFailedGetCartRows
	}
	defer rows.Close()

	result := make([]summaryRow, 0)
	for rows.Next() {
		var row summaryRow
		item, err := scanItem(rows, &row.StoreSlug, &row.StoreName)
		if err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, ErrFailedGetCartRows
		}
		row.CartItem = *item
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration failed", zap.Error(err))
		return nil, ErrFailedGetCartRows
	}

	log.Info("query success",
		zap.Int("rows", len(result)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID string) ([]CartItem, error) {
	return r.list(ctx, "ListByPayment",
		`SELECT`+itemColumns+` FROM carts c WHERE c.payment_id = $1 ORDER BY c.created_at, c.id`,
		paymentID,
	)
}

func (r *repository) list(ctx context.Context, method, query string, args ...any) ([]CartItem, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", method),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, ErrFailedGetCartRows
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, ErrFailedGetCartRows
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration failed", zap.Error(err))
		return nil, ErrFailedGetCartRows
	}
	return items, nil
}

func (r *repository) AttachPayment(ctx context.Context, ids []int64, paymentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE carts
	SET payment_id = $1, updated_at = NOW()
	WHERE id = ANY($2)
	`, paymentID, pq.Array(ids))
	if err != nil {
		logger.FromCtx(ctx).Error("failed to attach payment",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return 0, ErrFailedAttachPayment
	}
	return res.RowsAffected()
}
