package payment

import (
	"context"
	"database/sql"
	"encoding/json"
)

// Repository is the Stripe webhook event log. Events are keyed by
// (provider, event_id). Only an event already processed counts as a
// duplicate; a redelivery of a failed one hands back the same row.
type Repository interface {
	SaveWebhookEvent(
		ctx context.Context,
		eventID string,
		eventType string,
		externalID string,
		payload json.RawMessage,
	) (webhookID int64, isDuplicate bool, err error)

	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

const providerStripe = "STRIPE"

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaveWebhookEvent(
	ctx context.Context,
	eventID string,
	eventType string,
	externalID string,
	payload json.RawMessage,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_type,
		event_id,
		external_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET event_type = EXCLUDED.event_type, process_error = NULL
	RETURNING id, processed_at IS NOT NULL;
	`

	var (
		id        int64
		processed bool
	)
	err := r.db.QueryRowContext(
		ctx,
		q,
		providerStripe,
		eventType,
		eventID,
		externalID,
		[]byte(payload),
	).Scan(&id, &processed)
	if err != nil {
		return 0, false, err
	}

	return id, processed, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE payment_webhooks
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
