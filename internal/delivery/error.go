package delivery

import "errors"

var (
	// -- Selection --
	ErrInvalidMethod     = errors.New("invalid delivery method")
	ErrPickupUnavailable = errors.New("pickup points are not available for this country")
	ErrUnknownNetwork    = errors.New("unknown pickup network for this country")
	ErrUnknownOffer      = errors.New("unknown home delivery offer for this country")
	ErrNoStoreAddress    = errors.New("store has no pickup address")

	// -- Completeness --
	ErrEmailRequired      = errors.New("email is required")
	ErrContactIncomplete  = errors.New("name and phone are required")
	ErrAddressIncomplete  = errors.New("shipping address is incomplete")
	ErrOfferMissing       = errors.New("no shipping offer selected")
	ErrParcelPointMissing = errors.New("no parcel point selected")

	// -- Lookup --
	ErrNoAddress       = errors.New("no address to search around")
	ErrAddressNotFound = errors.New("address not found")
)

// user-facing messages set on the reconciler when a refresh fails
const (
	msgGeocodeFailed = "Adresse introuvable, vérifiez-la puis cliquez sur Actualiser"
	msgSearchFailed  = "Impossible de charger les points relais, cliquez sur Actualiser"
)
