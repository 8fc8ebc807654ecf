// Command checkout drives one buyer checkout against a running Paylive API:
// it restores the saved cart and delivery preference, optionally opens a paid
// order for editing, and creates the Stripe checkout session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"paylive-be/internal/apiclient"
	"paylive-be/internal/checkout"
	"paylive-be/internal/delivery"
	"paylive-be/internal/logger"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type clientConfig struct {
	AppEnv           string        `env:"APP_ENV" envDefault:"development"`
	APIBaseURL       string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	NominatimBaseURL string        `env:"NOMINATIM_BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	SessionToken     string        `env:"CLERK_SESSION_TOKEN"`
}

type options struct {
	store       string
	email       string
	paymentID   string
	force       bool
	method      string
	network     string
	offer       string
	parcelPoint string
	pay         bool
	returnMode  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "checkout:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.StringVar(&o.store, "store", "", "store slug")
	fs.StringVar(&o.email, "email", "", "buyer email")
	fs.StringVar(&o.paymentID, "payment-id", "", "paid order to reopen for editing")
	fs.BoolVar(&o.force, "force", false, "cancel another order edit holding the store lock")
	fs.StringVar(&o.method, "method", "", "delivery method: home_delivery, pickup_point or store_pickup")
	fs.StringVar(&o.network, "network", "", "parcel network filter (e.g. MONR), ALL by default")
	fs.StringVar(&o.offer, "offer", "", "home delivery offer code")
	fs.StringVar(&o.parcelPoint, "parcel-point", "", "parcel point code")
	fs.BoolVar(&o.pay, "pay", false, "create the checkout session")
	fs.BoolVar(&o.returnMode, "return", false, "return flow: search parcel points immediately")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if strings.TrimSpace(o.store) == "" || strings.TrimSpace(o.email) == "" {
		return o, errors.New("-store and -email are required")
	}
	return o, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	var cfg clientConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	client, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Token: func(context.Context) (string, error) {
			return cfg.SessionToken, nil
		},
	})
	if err != nil {
		return err
	}
	geo := delivery.NewNominatim(cfg.NominatimBaseURL, cfg.HTTPTimeout)

	return drive(ctx, client, geo, opts, out)
}

func drive(ctx context.Context, backend checkout.Backend, geo delivery.Geocoder, opts options, out io.Writer) error {
	log := logger.FromCtx(ctx).With(zap.String("store", opts.store))

	params := checkout.Params{OpenShipment: opts.paymentID != "", PaymentID: opts.paymentID}
	sess, err := checkout.NewSession(ctx, backend, geo, checkout.Options{
		StoreSlug:  opts.store,
		Email:      opts.email,
		Params:     params,
		ReturnMode: opts.returnMode,
	})
	if sess == nil {
		return err
	}
	if err != nil {
		if sess.Shipment.State() != checkout.FlowBlocked {
			return err
		}
		if !opts.force {
			c := sess.Shipment.Conflict()
			return fmt.Errorf("%w (payment %s); rerun with -force to take over", err, c.PaymentID)
		}
		log.Info("cancelling the other order edit")
		if err := sess.Shipment.CancelOther(ctx); err != nil {
			return err
		}
	}

	if sess.Shipment.Editing() {
		if err := sess.SetMode(checkout.EditingOrder); err != nil {
			return err
		}
	}

	if err := applyDelivery(ctx, sess.Delivery, opts); err != nil {
		return err
	}

	printSummary(out, sess)

	if !opts.pay {
		return nil
	}

	cust := sess.Customer()
	res, err := sess.ProceedToPayment(ctx, delivery.Contact{
		Email: opts.email,
		Name:  cust.Name,
		Phone: cust.Phone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "checkout session %s\nclient secret %s\n", res.SessionID, res.ClientSecret)
	return nil
}

func applyDelivery(ctx context.Context, rec *delivery.Reconciler, opts options) error {
	if opts.method != "" {
		if err := rec.SetMethod(delivery.Method(opts.method)); err != nil {
			return err
		}
	}
	if opts.network != "" {
		if err := rec.SetNetworkFilter(opts.network); err != nil {
			return err
		}
	}
	if opts.offer != "" {
		if err := rec.SelectHomeOffer(opts.offer); err != nil {
			return err
		}
	}

	if rec.State().NeedsRefresh {
		if err := rec.Refresh(ctx); err != nil {
			return err
		}
	}

	if opts.parcelPoint == "" {
		return nil
	}
	for _, p := range rec.FilteredParcelPoints() {
		if strings.EqualFold(p.Code, opts.parcelPoint) {
			return rec.SelectParcelPoint(p)
		}
	}
	return fmt.Errorf("parcel point %s not found near the shipping address", opts.parcelPoint)
}

func printSummary(out io.Writer, sess *checkout.Session) {
	fmt.Fprintf(out, "%s (%s)\n", sess.Store().Name, sess.Mode())
	if sess.Shipment.Editing() {
		fmt.Fprintf(out, "editing payment %s, credit %.2f EUR\n",
			sess.Shipment.Params().PaymentID, float64(sess.Shipment.CreditCents())/100)
	}

	for _, it := range sess.Cart.Items() {
		fmt.Fprintf(out, "  %-12s x%d  %8.2f\n", it.ProductReference, it.Quantity, it.LineTotal())
	}
	fmt.Fprintf(out, "total %.2f EUR\n", sess.Cart.Total())

	st := sess.Delivery.State()
	fmt.Fprintf(out, "delivery %s", st.Method)
	switch {
	case st.ParcelPoint != nil:
		fmt.Fprintf(out, " at %s (%s)", st.ParcelPoint.Name, st.ParcelPoint.Code)
	case st.OfferCode != "":
		fmt.Fprintf(out, " with %s", st.OfferCode)
	}
	fmt.Fprintln(out)

	if st.Error != "" {
		fmt.Fprintln(out, "delivery error:", st.Error)
	}
	if pts := sess.Delivery.FilteredParcelPoints(); st.ParcelPoint == nil && len(pts) > 0 {
		fmt.Fprintf(out, "%d parcel points available:\n", len(pts))
		for _, p := range pts {
			fmt.Fprintf(out, "  %s  %s, %s %s\n", p.Code, p.Name, p.Location.PostalCode, p.Location.City)
		}
	}
}
