package prospect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paylive-be/internal/logger"
	"paylive-be/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrInvalidEmail  = errors.New("Adresse email invalide")
	ErrNotConfigured = errors.New("SMTP_HOST / SMTP_USER / SMTP_PASSWORD are not configured")
	ErrSendFailed    = errors.New("Échec de l'envoi de l'email")
)

type Request struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	StoreName string `json:"store_name,omitempty"`
}

type Service interface {
	Send(ctx context.Context, req Request) error
}

type service struct {
	mailer Mailer
}

func NewService(mailer Mailer) Service {
	return &service{mailer: mailer}
}

func (s *service) Send(ctx context.Context, req Request) error {
	email := strings.TrimSpace(req.Email)
	if !utils.IsValidEmail(email) {
		return ErrInvalidEmail
	}
	if !s.mailer.Configured() {
		return ErrNotConfigured
	}

	log := logger.FromCtx(ctx).With(zap.String("service", "Prospect"), zap.String("to", email))

	err := s.mailer.Send(ctx, Message{
		To:      email,
		Subject: "Vendez en live avec Paylive",
		Body:    prospectBody(req),
	})
	if err != nil {
		log.Error("prospect email failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	log.Info("prospect email sent")
	return nil
}

func prospectBody(req Request) string {
	greeting := "Bonjour,"
	if name := strings.TrimSpace(req.Name); name != "" {
		greeting = fmt.Sprintf("Bonjour %s,", name)
	}

	shop := "votre boutique"
	if st := strings.TrimSpace(req.StoreName); st != "" {
		shop = st
	}

	return greeting + "\r\n\r\n" +
		"Paylive permet à " + shop + " d'encaisser vos ventes en live en quelques secondes : " +
		"page boutique, paiement sécurisé et expédition en point relais ou à domicile.\r\n\r\n" +
		"Créez votre boutique sur https://paylive.cc\r\n\r\n" +
		"L'équipe Paylive\r\n"
}
