package boxtal

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured     = errors.New("BOXTAL_ACCESS_KEY / BOXTAL_SECRET_KEY are not configured")
	ErrMissingCountry    = errors.New("country is required")
	ErrMissingPostalCode = errors.New("postal_code or city is required")
)

// UpstreamError is a non-2xx answer from Boxtal.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("boxtal responded %d: %s", e.Status, e.Body)
}
