// Command reconcile cross-checks gateway payment intents against recorded
// orders. For every intent id given (as arguments or one per line on stdin)
// it asks the gateway for the intent's state; a completed capture with no
// matching order row is an orphaned payment that needs a refund or a
// manually created order.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/gearbox-checkout/internal/domain/order"
	"github.com/xenking/gearbox-checkout/internal/payment"
	"github.com/xenking/gearbox-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		baseURL      string
		clientID     string
		clientSecret string
		concurrency  int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&baseURL, "paypal-base-url", "https://api-m.sandbox.paypal.com", "PayPal API base URL")
	flag.StringVar(&clientID, "paypal-client-id", "", "PayPal client id (or GEARBOX_PAYPAL_CLIENT_ID env)")
	flag.StringVar(&clientSecret, "paypal-client-secret", "", "PayPal client secret (or GEARBOX_PAYPAL_CLIENT_SECRET env)")
	flag.IntVar(&concurrency, "concurrency", 8, "max concurrent gateway lookups")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if clientID == "" {
		clientID = os.Getenv("GEARBOX_PAYPAL_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GEARBOX_PAYPAL_CLIENT_SECRET")
	}
	if databaseURL == "" || clientID == "" || clientSecret == "" {
		slog.Error("database URL and PayPal credentials are required")
		os.Exit(1)
	}

	intentIDs := flag.Args()
	if len(intentIDs) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				intentIDs = append(intentIDs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("read stdin", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if len(intentIDs) == 0 {
		slog.Error("no intent ids given")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, payment.PayPalConfig{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Timeout:      30 * time.Second,
	}, intentIDs, concurrency); err != nil {
		slog.Error("reconcile failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, gatewayCfg payment.PayPalConfig, intentIDs []string, concurrency int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	orders := postgres.NewOrderStore(pool)
	gateway := payment.NewPayPalClient(gatewayCfg)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, intentID := range intentIDs {
		g.Go(func() error {
			return probe(ctx, gateway, orders, intentID)
		})
	}
	return g.Wait()
}

func probe(ctx context.Context, gateway payment.Gateway, orders order.Store, intentID string) error {
	intent, err := gateway.GetIntent(ctx, intentID)
	if err != nil {
		return errors.Wrapf(err, "get intent %s", intentID)
	}

	if intent.Status != payment.StatusCompleted || intent.CaptureID == "" {
		slog.Info("intent not captured, nothing to reconcile",
			slog.String("intent_id", intentID),
			slog.String("status", intent.Status),
		)
		return nil
	}

	o, err := orders.GetByCaptureID(ctx, intent.CaptureID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			slog.Warn("orphaned capture: payment taken but no order recorded",
				slog.String("intent_id", intentID),
				slog.String("capture_id", intent.CaptureID),
			)
			return nil
		}
		return errors.Wrapf(err, "lookup capture %s", intent.CaptureID)
	}

	slog.Info("capture recorded",
		slog.String("intent_id", intentID),
		slog.String("capture_id", intent.CaptureID),
		slog.String("order_id", o.ID),
	)
	return nil
}
