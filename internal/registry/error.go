package registry

import "errors"

var (
	ErrInvalidSIRET       = errors.New("Numéro SIRET invalide")
	ErrInvalidBCE         = errors.New("Numéro BCE invalide")
	ErrInseeNotConfigured = errors.New("INSEE_API_KEY is not configured")
	ErrBCENotConfigured   = errors.New("BCE_API_KEY is not configured")
)

type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}
