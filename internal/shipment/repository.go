package shipment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"paylive-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*Shipment, error)
	// GetOpenByStore returns nil, nil when the store has no open shipment.
	GetOpenByStore(ctx context.Context, storeID int64) (*Shipment, error)
	Open(ctx context.Context, paymentID string, force bool) (*Shipment, error)
	Close(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error)
	// RecordPaid reports false when the payment was already recorded.
	RecordPaid(ctx context.Context, s *Shipment) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const shipmentColumns = `
		id,
		store_id,
		payment_id,
		customer_stripe_id,
		status,
		paid_value_cents,
		items,
		opened_at,
		created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanShipment(s scanner) (*Shipment, error) {
	var (
		sh       Shipment
		items    []byte
		openedAt sql.NullTime
	)

	err := s.Scan(
		&sh.ID,
		&sh.StoreID,
		&sh.PaymentID,
		&sh.CustomerStripeID,
		&sh.Status,
		&sh.PaidValueCents,
		&items,
		&openedAt,
		&sh.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &sh.Items); err != nil {
			return nil, err
		}
	}
	if openedAt.Valid {
		sh.OpenedAt = &openedAt.Time
	}
	return &sh, nil
}

func (r *repository) GetByPaymentID(ctx context.Context, paymentID string) (*Shipment, error) {
	sh, err := scanShipment(r.db.QueryRowContext(ctx,
		`SELECT`+shipmentColumns+` FROM shipments WHERE payment_id = $1`, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get shipment by payment",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return nil, ErrFailedGetShipment
	}
	return sh, nil
}

func (r *repository) GetOpenByStore(ctx context.Context, storeID int64) (*Shipment, error) {
	sh, err := scanShipment(r.db.QueryRowContext(ctx,
		`SELECT`+shipmentColumns+` FROM shipments WHERE store_id = $1 AND status = 'OPEN'`, storeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get open shipment", zap.Int64("store_id", storeID), zap.Error(err))
		return nil, ErrFailedGetShipment
	}
	return sh, nil
}

// Open takes the store's edit lock for the shipment of paymentID. Without
// force an existing lock held by another shipment yields *ConflictError.
func (r *repository) Open(ctx context.Context, paymentID string, force bool) (*Shipment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Open"),
		zap.String("payment_id", paymentID),
		zap.Bool("force", force),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return nil, ErrFailedOpenShipment
	}
	defer tx.Rollback()

	target, err := scanShipment(tx.QueryRowContext(ctx,
		`SELECT`+shipmentColumns+` FROM shipments WHERE payment_id = $1 FOR UPDATE`, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		log.Error("failed to lock target shipment", zap.Error(err))
		return nil, ErrFailedOpenShipment
	}

	current, err := scanShipment(tx.QueryRowContext(ctx,
		`SELECT`+shipmentColumns+` FROM shipments WHERE store_id = $1 AND status = 'OPEN' FOR UPDATE`, target.StoreID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to lock open shipment", zap.Error(err))
		return nil, ErrFailedOpenShipment
	}

	if current != nil && current.ID == target.ID {
		if err := tx.Commit(); err != nil {
			return nil, ErrFailedOpenShipment
		}
		log.Info("shipment already open")
		return current, nil
	}

	if current != nil {
		if !force {
			log.Info("open shipment conflict", zap.String("holder", current.ID.String()))
			return nil, &ConflictError{ShipmentID: current.ID, PaymentID: current.PaymentID}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE shipments SET status = 'PAID', opened_at = NULL WHERE id = $1`, current.ID); err != nil {
			log.Error("failed to release previous lock", zap.Error(err))
			return nil, ErrFailedOpenShipment
		}
		log.Warn("previous open shipment released by force", zap.String("holder", current.ID.String()))
	}

	var openedAt time.Time
	err = tx.QueryRowContext(ctx,
		`UPDATE shipments SET status = 'OPEN', opened_at = NOW() WHERE id = $1 RETURNING opened_at`,
		target.ID,
	).Scan(&openedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			log.Warn("lock taken concurrently")
			return nil, ErrShipmentAlreadyOpen
		}
		log.Error("failed to open shipment", zap.Error(err))
		return nil, ErrFailedOpenShipment
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit", zap.Error(err))
		return nil, ErrFailedOpenShipment
	}

	target.Status = StatusOpen
	target.OpenedAt = &openedAt
	log.Info("shipment opened", zap.String("shipment_id", target.ID.String()))
	return target, nil
}

// Close releases the store's lock. A nil shipmentID releases whichever
// shipment holds it.
func (r *repository) Close(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error) {
	var id any
	if shipmentID != nil {
		id = *shipmentID
	}

	res, err := r.db.ExecContext(ctx, `
	UPDATE shipments
	SET status = 'PAID', opened_at = NULL
	WHERE store_id = $1
	  AND status = 'OPEN'
	  AND ($2::uuid IS NULL OR id = $2::uuid)
	`, storeID, id)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to close shipment", zap.Int64("store_id", storeID), zap.Error(err))
		return 0, ErrFailedCloseShipment
	}
	return res.RowsAffected()
}

func (r *repository) RecordPaid(ctx context.Context, s *Shipment) (bool, error) {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return false, err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	err = r.db.QueryRowContext(ctx, `
	INSERT INTO shipments (
		id,
		store_id,
		payment_id,
		customer_stripe_id,
		status,
		paid_value_cents,
		items
	)
	VALUES ($1, $2, $3, $4, 'PAID', $5, $6)
	ON CONFLICT (payment_id) DO NOTHING
	RETURNING created_at
	`,
		s.ID,
		s.StoreID,
		s.PaymentID,
		s.CustomerStripeID,
		s.PaidValueCents,
		items,
	).Scan(&s.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to record shipment",
			zap.String("payment_id", s.PaymentID),
			zap.Error(err),
		)
		return false, ErrFailedRecordShipment
	}

	s.Status = StatusPaid
	return true, nil
}
