package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"paylive-be/internal/cart"
	"paylive-be/internal/logger"
	"paylive-be/internal/payment"
	"paylive-be/internal/shipment"
	"paylive-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxBodyBytes           = 1 << 20
	eventCheckoutCompleted = "checkout.session.completed"
)

// Event is the part of a Stripe event envelope the handler reads.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object payment.Session `json:"object"`
	} `json:"data"`
}

type CartService interface {
	GetItems(ctx context.Context, ids []int64) ([]cart.CartItem, error)
	AttachPayment(ctx context.Context, ids []int64, paymentID string) error
}

type ShipmentService interface {
	RecordPaid(ctx context.Context, s *shipment.Shipment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*shipment.Shipment, error)
	CancelOpen(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error)
}

type Handler struct {
	Gateway   payment.Gateway
	Events    payment.Repository
	Carts     CartService
	Shipments ShipmentService
}

func NewWebhookHandler(
	gateway payment.Gateway,
	events payment.Repository,
	carts CartService,
	shipments ShipmentService,
) *Handler {
	return &Handler{
		Gateway:   gateway,
		Events:    events,
		Carts:     carts,
		Shipments: shipments,
	}
}

func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "StripeWebhook"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.Gateway.VerifyWebhook(body, r.Header.Get("Stripe-Signature")); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		utils.WriteJSONError(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if event.Type != eventCheckoutCompleted {
		log.Debug("event ignored")
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	sess := event.Data.Object
	webhookID, duplicate, err := h.Events.SaveWebhookEvent(ctx, event.ID, event.Type, sess.ID, body)
	if err != nil {
		log.Error("failed to save webhook event", zap.Error(err))
		utils.WriteJSONError(w, "failed to record event", http.StatusInternalServerError)
		return
	}
	if duplicate {
		log.Info("duplicate webhook ignored")
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.handleCheckoutCompleted(ctx, sess); err != nil {
		log.Error("failed to process checkout session", zap.String("session_id", sess.ID), zap.Error(err))
		if markErr := h.Events.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("failed to mark webhook failed", zap.Error(markErr))
		}
		utils.WriteJSONError(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	if err := h.Events.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, sess payment.Session) error {
	if sess.PaymentStatus != "paid" && sess.PaymentStatus != "no_payment_required" {
		logger.FromCtx(ctx).Info("checkout session not paid yet",
			zap.String("session_id", sess.ID),
			zap.String("payment_status", sess.PaymentStatus),
		)
		return nil
	}

	storeID, err := strconv.ParseInt(sess.Metadata[payment.MetaStoreID], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid store_id metadata: %w", err)
	}
	ids, err := parseIDs(sess.Metadata[payment.MetaCartItemIDs])
	if err != nil {
		return err
	}

	paymentID := sess.PaymentIntent
	if paymentID == "" {
		// Fully discounted sessions carry no payment intent.
		paymentID = sess.ID
	}

	items, err := h.Carts.GetItems(ctx, ids)
	if err != nil {
		return err
	}
	if err := h.Carts.AttachPayment(ctx, ids, paymentID); err != nil {
		return err
	}

	sh := &shipment.Shipment{
		StoreID:          storeID,
		PaymentID:        paymentID,
		CustomerStripeID: sess.Customer,
		Items:            make([]shipment.LineItem, 0, len(items)),
	}
	for _, item := range items {
		sh.Items = append(sh.Items, shipment.LineItem{
			Reference:   item.ProductReference,
			Description: item.Description,
			Value:       item.Value,
			Quantity:    item.Quantity,
			Weight:      item.Weight,
		})
		sh.PaidValueCents += utils.ToCents(item.Value) * int64(item.Quantity)
	}
	if err := h.Shipments.RecordPaid(ctx, sh); err != nil {
		return err
	}

	if prev := sess.Metadata[payment.MetaOpenShipmentPaymentID]; prev != "" {
		return h.releaseEditedOrder(ctx, storeID, prev, paymentID)
	}
	return nil
}

// releaseEditedOrder closes the lock held by the edited order only. A lock
// taken since by another payment stays in place.
func (h *Handler) releaseEditedOrder(ctx context.Context, storeID int64, prevPaymentID, paymentID string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("previous_payment_id", prevPaymentID),
		zap.String("payment_id", paymentID),
	)

	prev, err := h.Shipments.GetByPaymentID(ctx, prevPaymentID)
	if errors.Is(err, shipment.ErrShipmentNotFound) {
		log.Warn("edited order has no shipment; nothing to release")
		return nil
	}
	if err != nil {
		return err
	}

	id := prev.ID
	n, err := h.Shipments.CancelOpen(ctx, storeID, &id)
	if err != nil {
		return err
	}
	log.Info("modified order committed", zap.Int64("released", n))
	return nil
}

func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("cart_item_ids metadata is empty")
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := utils.ParseInt64(p)
		if err != nil {
			return nil, fmt.Errorf("invalid cart item id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
