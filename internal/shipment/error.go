package shipment

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// -- Validation & Input --
	ErrMissingPayment = errors.New("payment_id is required")
	ErrMissingStore   = errors.New("store_id is required")

	// -- Resource State --
	ErrShipmentNotFound    = errors.New("shipment not found")
	ErrShipmentAlreadyOpen = errors.New("another shipment is already open for this store")

	// -- Database & Operation Failures --
	ErrFailedGetShipment    = errors.New("failed to get shipment")
	ErrFailedOpenShipment   = errors.New("failed to open shipment")
	ErrFailedCloseShipment  = errors.New("failed to close shipment")
	ErrFailedRecordShipment = errors.New("failed to record shipment")
	ErrFailedRebuildCarts   = errors.New("failed to rebuild carts from payment")

	PgUniqueViolation = "23505"
)

// ConflictError names the shipment currently holding a store's edit lock.
type ConflictError struct {
	ShipmentID uuid.UUID `json:"shipment_id"`
	PaymentID  string    `json:"payment_id"`
}

func (e *ConflictError) Error() string {
	return "Une modification de commande est déjà en cours pour cette boutique"
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrShipmentAlreadyOpen
}
