package checkout

import (
	"errors"
	"fmt"
)

var (
	// -- Session --
	ErrInvalidTransition = errors.New("invalid checkout mode transition")
	ErrEmptyCart         = errors.New("Votre panier est vide")
	ErrNoCustomer        = errors.New("client Stripe introuvable")

	// -- Cart --
	ErrInvalidQuantity = errors.New("la quantité doit être au moins 1")
	ErrItemNotInCart   = errors.New("article introuvable dans le panier")
	ErrItemPending     = errors.New("une modification de cet article est déjà en cours")

	// -- Open shipment --
	ErrNoShipmentParams = errors.New("no open_shipment/payment_id parameters")
	ErrFlowState        = errors.New("action not allowed in the current shipment edit state")
	ErrLockStillHeld    = errors.New("Une modification de commande est toujours ouverte pour cette boutique")
)

// StockError is raised when a cart line asks for more than the store has.
type StockError struct {
	Reference string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("Rupture de stock pour %s", e.Reference)
	}
	return fmt.Sprintf("Stock insuffisant pour %s (demandé %d, disponible %d)", e.Reference, e.Requested, e.Available)
}

// MissingItemError means a locally held item no longer exists server-side.
type MissingItemError struct {
	Reference string
}

func (e *MissingItemError) Error() string {
	return fmt.Sprintf("L'article %s n'est plus dans le panier, veuillez actualiser", e.Reference)
}

type DuplicateItemError struct {
	Reference string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("La référence %s apparaît plusieurs fois dans le panier", e.Reference)
}

type notFounder interface {
	IsNotFound() bool
}

func isNotFound(err error) bool {
	var nf notFounder
	return errors.As(err, &nf) && nf.IsNotFound()
}
