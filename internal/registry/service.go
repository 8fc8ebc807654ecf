package registry

import (
	"context"
	"encoding/json"
)

type Service interface {
	LookupSIRET(ctx context.Context, siret string) (json.RawMessage, error)
	LookupBCE(ctx context.Context, number string) (json.RawMessage, error)
}

type service struct {
	insee *Client
	bce   *Client
}

func NewService(insee, bce *Client) Service {
	return &service{insee: insee, bce: bce}
}

func (s *service) LookupSIRET(ctx context.Context, siret string) (json.RawMessage, error) {
	siret = NormalizeSIRET(siret)
	if !ValidSIRET(siret) {
		return nil, ErrInvalidSIRET
	}
	if !s.insee.Configured() {
		return nil, ErrInseeNotConfigured
	}
	return s.insee.Get(ctx, "/siret/"+escape(siret))
}

func (s *service) LookupBCE(ctx context.Context, number string) (json.RawMessage, error) {
	number = NormalizeBCE(number)
	if !ValidBCE(number) {
		return nil, ErrInvalidBCE
	}
	if !s.bce.Configured() {
		return nil, ErrBCENotConfigured
	}
	return s.bce.Get(ctx, "/enterprise/"+escape(number))
}
