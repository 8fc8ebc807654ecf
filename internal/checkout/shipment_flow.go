package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"paylive-be/internal/logger"
	"paylive-be/internal/shipment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxCancelAttempts bounds the cancel, verify, cancel-again loop.
const maxCancelAttempts = 3

type FlowState int

const (
	FlowIdle FlowState = iota
	FlowRequestingLock
	FlowEditing
	FlowBlocked
	FlowCommitted
	FlowCancelling
	FlowCancelled
)

func (s FlowState) String() string {
	return [...]string{"idle", "requesting_lock", "editing", "blocked", "committed", "cancelling", "cancelled"}[s]
}

const (
	paramOpenShipment = "open_shipment"
	paramPaymentID    = "payment_id"
)

// Params are the URL query parameters that start an order edit.
type Params struct {
	OpenShipment bool
	PaymentID    string
}

func ParseParams(q url.Values) Params {
	return Params{
		OpenShipment: q.Get(paramOpenShipment) == "true",
		PaymentID:    strings.TrimSpace(q.Get(paramPaymentID)),
	}
}

func (p Params) Valid() bool {
	return p.OpenShipment && p.PaymentID != ""
}

// Apply writes p into q, removing both keys when p is empty.
func (p Params) Apply(q url.Values) {
	if !p.Valid() {
		q.Del(paramOpenShipment)
		q.Del(paramPaymentID)
		return
	}
	q.Set(paramOpenShipment, "true")
	q.Set(paramPaymentID, p.PaymentID)
}

// ShipmentFlow drives the edit of an already paid order under the store's
// single open-shipment lock.
type ShipmentFlow struct {
	backend Backend
	cart    *CartSync
	storeID int64

	mu          sync.Mutex
	state       FlowState
	params      Params
	shipmentID  uuid.UUID
	creditCents int64
	couponID    string
	conflict    *shipment.ConflictError
}

func NewShipmentFlow(backend Backend, cs *CartSync, storeID int64) *ShipmentFlow {
	return &ShipmentFlow{backend: backend, cart: cs, storeID: storeID}
}

func (f *ShipmentFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *ShipmentFlow) Params() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

// Conflict is the lock holder reported while Blocked.
func (f *ShipmentFlow) Conflict() *shipment.ConflictError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict == nil {
		return nil
	}
	c := *f.conflict
	return &c
}

func (f *ShipmentFlow) CreditCents() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creditCents
}

func (f *ShipmentFlow) Editing() bool {
	return f.State() == FlowEditing
}

func (f *ShipmentFlow) log(ctx context.Context, method string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("service", "checkout"),
		zap.String("method", "ShipmentFlow."+method),
		zap.Int64("store_id", f.storeID),
	)
}

// Start requests the edit lock for p.PaymentID. A lock held by another
// shipment moves the flow to Blocked and returns the *shipment.ConflictError.
// Any other failure leaves the flow where it was.
func (f *ShipmentFlow) Start(ctx context.Context, p Params) error {
	if !p.Valid() {
		return ErrNoShipmentParams
	}

	f.mu.Lock()
	prev := f.state
	switch prev {
	case FlowIdle, FlowBlocked, FlowCancelled, FlowCommitted:
	default:
		f.mu.Unlock()
		return ErrFlowState
	}
	f.state = FlowRequestingLock
	f.params = p
	f.mu.Unlock()

	log := f.log(ctx, "Start").With(zap.String("payment_id", p.PaymentID))

	res, err := f.backend.OpenShipment(ctx, p.PaymentID, false)
	if err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()

		var conflict *shipment.ConflictError
		if errors.As(err, &conflict) {
			log.Info("shipment lock held by another order",
				zap.String("holder_shipment_id", conflict.ShipmentID.String()),
				zap.String("holder_payment_id", conflict.PaymentID),
			)
			f.state = FlowBlocked
			f.conflict = conflict
			return conflict
		}

		log.Warn("failed to open shipment", zap.Error(err))
		f.state = prev
		return err
	}

	f.mu.Lock()
	f.state = FlowEditing
	f.shipmentID = res.ShipmentID
	f.creditCents = res.CreditCents
	f.conflict = nil
	f.mu.Unlock()

	log.Info("shipment opened for editing",
		zap.String("shipment_id", res.ShipmentID.String()),
		zap.Int64("credit_cents", res.CreditCents),
	)

	return f.loadCart(ctx, p.PaymentID)
}

// loadCart reuses items already materialised for paymentID and asks the
// server to rebuild them otherwise.
func (f *ShipmentFlow) loadCart(ctx context.Context, paymentID string) error {
	f.cart.SetPaymentScope(&paymentID)

	items, err := f.cart.Refresh(ctx)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return nil
	}

	if _, err := f.backend.RebuildCarts(ctx, paymentID); err != nil {
		return err
	}
	_, err = f.cart.Refresh(ctx)
	return err
}

// CancelOther releases the lock named in the conflict, then retries Start
// for the original order.
func (f *ShipmentFlow) CancelOther(ctx context.Context) error {
	f.mu.Lock()
	if f.state != FlowBlocked || f.conflict == nil {
		f.mu.Unlock()
		return ErrFlowState
	}
	holder := f.conflict.ShipmentID
	p := f.params
	f.mu.Unlock()

	if err := f.releaseLock(ctx, holder); err != nil {
		return err
	}
	return f.Start(ctx, p)
}

// ResumeOther switches to editing the order that holds the lock.
func (f *ShipmentFlow) ResumeOther(ctx context.Context) error {
	f.mu.Lock()
	if f.state != FlowBlocked || f.conflict == nil {
		f.mu.Unlock()
		return ErrFlowState
	}
	p := Params{OpenShipment: true, PaymentID: f.conflict.PaymentID}
	f.mu.Unlock()

	return f.Start(ctx, p)
}

// releaseLock cancels shipmentID and checks that the store is unlocked
// afterwards, cancelling whatever still holds the lock until it is free.
func (f *ShipmentFlow) releaseLock(ctx context.Context, shipmentID uuid.UUID) error {
	log := f.log(ctx, "releaseLock")

	target := shipmentID
	for attempt := 1; attempt <= maxCancelAttempts; attempt++ {
		var id *uuid.UUID
		if target != uuid.Nil {
			t := target
			id = &t
		}
		if _, err := f.backend.CancelOpenShipment(ctx, f.storeID, id); err != nil {
			return err
		}

		active, err := f.backend.ActiveOpenShipment(ctx, f.storeID)
		if err != nil {
			return err
		}
		if active == nil {
			return nil
		}

		log.Warn("store still locked after cancel",
			zap.Int("attempt", attempt),
			zap.String("cancelled", target.String()),
			zap.String("still_open", active.ShipmentID.String()),
		)
		target = active.ShipmentID
	}
	return ErrLockStillHeld
}

// Cancel abandons the edit: the credit coupon is deleted, the lock is
// released and verified, and the cart returns to the open cart. On failure
// the flow stays in Editing so the user can retry.
func (f *ShipmentFlow) Cancel(ctx context.Context) error {
	f.mu.Lock()
	if f.state != FlowEditing {
		f.mu.Unlock()
		return ErrFlowState
	}
	f.state = FlowCancelling
	coupon := f.couponID
	shipmentID := f.shipmentID
	f.mu.Unlock()

	fail := func(err error) error {
		f.mu.Lock()
		f.state = FlowEditing
		f.mu.Unlock()
		return err
	}

	if coupon != "" {
		if err := f.backend.DeleteCoupon(ctx, coupon); err != nil {
			return fail(err)
		}
		f.mu.Lock()
		f.couponID = ""
		f.mu.Unlock()
	}

	if err := f.releaseLock(ctx, shipmentID); err != nil {
		return fail(err)
	}

	f.mu.Lock()
	f.state = FlowCancelled
	f.params = Params{}
	f.shipmentID = uuid.Nil
	f.creditCents = 0
	f.mu.Unlock()

	f.cart.SetPaymentScope(nil)
	if _, err := f.cart.Refresh(ctx); err != nil {
		f.log(ctx, "Cancel").Warn("cart refresh after cancel failed", zap.Error(err))
	}
	return nil
}

// PrepareCommit deletes any credit coupon from an earlier attempt and
// returns the credit and the original payment id for the new checkout.
func (f *ShipmentFlow) PrepareCommit(ctx context.Context) (credit int64, paymentID string, err error) {
	f.mu.Lock()
	if f.state != FlowEditing {
		f.mu.Unlock()
		return 0, "", ErrFlowState
	}
	coupon := f.couponID
	f.mu.Unlock()

	if coupon != "" {
		if err := f.backend.DeleteCoupon(ctx, coupon); err != nil {
			return 0, "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.couponID == coupon {
		f.couponID = ""
	}
	return f.creditCents, f.params.PaymentID, nil
}

// RecordCoupon remembers the coupon issued with a checkout session.
func (f *ShipmentFlow) RecordCoupon(couponID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.couponID = couponID
}

// MarkCommitted ends the edit once the new payment succeeded.
func (f *ShipmentFlow) MarkCommitted() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowEditing {
		return ErrFlowState
	}
	f.state = FlowCommitted
	f.params = Params{}
	f.couponID = ""
	return nil
}
