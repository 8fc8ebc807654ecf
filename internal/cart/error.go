package cart

import (
	"errors"
	"fmt"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity  = errors.New("invalid cart quantity")
	ErrInvalidReference = errors.New("product reference is required")
	ErrInvalidValue     = errors.New("invalid item value")
	ErrMissingCustomer  = errors.New("stripeId is required")
	ErrMissingStore     = errors.New("store_id is required")

	// -- Resource State --
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrCartItemAlreadyExist = errors.New("cart item already exists")
	ErrCartItemAlreadyPaid  = errors.New("cart item already paid")

	// -- Database & Operation Failures --
	ErrFailedGetCartItem    = errors.New("failed to get cart item")
	ErrFailedGetCartRows    = errors.New("failed to get cart rows")
	ErrFailedCreateCartItem = errors.New("failed to create cart item")
	ErrFailedUpdateCart     = errors.New("failed to update cart item")
	ErrFailedRemoveCart     = errors.New("failed to remove cart item")
	ErrFailedAttachPayment  = errors.New("failed to attach payment")

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)

// DuplicateReferenceError is returned when a reference already sits in the
// same store cart, compared case-insensitively.
type DuplicateReferenceError struct {
	Reference string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("La référence %s est déjà dans le panier", e.Reference)
}

func (e *DuplicateReferenceError) Is(target error) bool {
	return target == ErrCartItemAlreadyExist
}
