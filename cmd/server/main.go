package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paylive-be/internal/boxtal"
	"paylive-be/internal/cart"
	"paylive-be/internal/config"
	"paylive-be/internal/db"
	"paylive-be/internal/forms"
	"paylive-be/internal/logger"
	"paylive-be/internal/metrics"
	"paylive-be/internal/middleware"
	"paylive-be/internal/payment"
	"paylive-be/internal/payment/webhook"
	"paylive-be/internal/prospect"
	"paylive-be/internal/registry"
	"paylive-be/internal/shipment"
	"paylive-be/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	initDBFunc = func(dsn string) *sql.DB {
		return db.InitDB(dsn)
	}

	startServerFunc = func(srv *http.Server) error {
		return srv.ListenAndServe()
	}
)

func main() {
	if err := run(context.Background()); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := initDBFunc(cfg.DatabaseURL())
	defer database.Close()

	formsDB := database
	if cfg.FormsDatabaseURL() != cfg.DatabaseURL() {
		formsDB = initDBFunc(cfg.FormsDatabaseURL())
		defer formsDB.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := newServer(ctx, cfg, database, formsDB)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newServer builds every service from cfg and returns the routed handler.
// The limiter cleanup goroutine lives until ctx is done.
func newServer(ctx context.Context, cfg *config.Config, database, formsDB *sql.DB) (http.Handler, error) {
	verifier, err := middleware.NewVerifier(cfg.ClerkJWTKey, cfg.ClerkJWTPublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("auth verifier: %w", err)
	}
	if !verifier.Configured() {
		logger.L().Warn("no JWT verification key configured; protected routes will reject every request")
	}

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	go limiter.Run(ctx)

	storeSvc := store.NewService(store.NewRepository(database))
	cartSvc := cart.NewService(cart.NewRepository(database))
	shipmentSvc := shipment.NewService(shipment.NewRepository(database), cartSvc)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.HTTPTimeout)
	paymentSvc := payment.NewService(gateway, cartSvc, cfg.StripeReturnURL)
	stripeWebhook := webhook.NewWebhookHandler(gateway, payment.NewRepository(database), cartSvc, shipmentSvc)

	boxtalClient := boxtal.NewClient(cfg.BoxtalAccessKey, cfg.BoxtalSecretKey, cfg.BoxtalBaseURL, cfg.HTTPTimeout)

	registrySvc := registry.NewService(
		registry.NewInseeClient(cfg.InseeAPIKey, cfg.InseeBaseURL, cfg.HTTPTimeout),
		registry.NewBCEClient(cfg.BCEAPIKey, cfg.BCEBaseURL, cfg.HTTPTimeout),
	)

	prospectSvc := prospect.NewService(prospect.NewSMTPMailer(prospect.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}))

	formsSvc := forms.NewService(forms.NewRepository(formsDB))

	handlers := routes{
		store:         store.NewHandler(storeSvc),
		cart:          cart.NewHandler(cartSvc),
		shipment:      shipment.NewHandler(shipmentSvc),
		payment:       payment.NewHandler(paymentSvc),
		boxtal:        boxtal.NewHandler(boxtalClient),
		registry:      registry.NewHandler(registrySvc),
		prospect:      prospect.NewHandler(prospectSvc),
		forms:         forms.NewHandler(formsSvc),
		stripeWebhook: stripeWebhook.PaymentWebhookHandler,
	}

	return setupRouter(handlers, verifier, limiter), nil
}

type routes struct {
	store         *store.Handler
	cart          *cart.Handler
	shipment      *shipment.Handler
	payment       *payment.Handler
	boxtal        *boxtal.Handler
	registry      *registry.Handler
	prospect      *prospect.Handler
	forms         *forms.Handler
	stripeWebhook http.HandlerFunc
}

func setupRouter(h routes, verifier *middleware.Verifier, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Stripe signs the raw body; keep it outside auth and rate limiting.
	r.Post("/api/stripe/webhook", h.stripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(verifier.Authenticate)
		r.Use(limiter.Middleware)

		r.With(middleware.RequireInternal).Get("/metrics", metrics.Default.Handler())

		h.store.RegisterRoutes(r)
		h.cart.RegisterRoutes(r)
		h.shipment.RegisterRoutes(r, verifier.RequireAuth)
		h.payment.RegisterRoutes(r, verifier.RequireAuth)
		h.boxtal.RegisterRoutes(r)
		h.registry.RegisterRoutes(r)
		h.prospect.RegisterRoutes(r, verifier.RequireAuth)
		h.forms.RegisterRoutes(r)
	})

	return r
}
