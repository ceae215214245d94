package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phillip/event-ticketing-go/config"
	"github.com/phillip/event-ticketing-go/credential"
	"github.com/phillip/event-ticketing-go/grouppay"
	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/logger"
	"github.com/phillip/event-ticketing-go/notify"
	"github.com/phillip/event-ticketing-go/payment"
)

// loadConfig reads the environment and applies command line overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.LoadConfig()
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store = v
	}
	if v, _ := cmd.Flags().GetString("bolt-path"); v != "" {
		cfg.BoltPath = v
	}

	logger.Init(logger.Config{
		Level:      logger.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg
}

// openLedger connects the configured backend and stores it on cfg.
func openLedger(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store {
	case config.StoreBolt:
		store, err := ledger.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return fmt.Errorf("failed to open bolt ledger: %v", err)
		}
		cfg.Ledger = store
	case config.StoreMongo:
		client, err := ledger.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		store, err := ledger.NewMongoStore(ctx, client, cfg.DBName)
		if err != nil {
			_ = client.Disconnect(ctx)
			return err
		}
		cfg.MongoClient = client
		cfg.Ledger = store
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}
	return nil
}

// wireGroupPay builds the payment, credential and notification adapters and
// the group payment service on top of cfg.Ledger.
func wireGroupPay(cfg *config.Config) error {
	log := logger.WithComponent("setup")

	issuer, err := credential.NewIssuer(cfg.CredentialSecret)
	if err != nil {
		return err
	}

	stripe := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	cfg.Webhooks = stripe

	opts := grouppay.Options{
		Store:    cfg.Ledger,
		Payments: stripe,
		Issuer:   issuer,
		Currency: cfg.Currency,
		AppURL:   cfg.AppURL,
	}

	if cfg.EmailEnabled() {
		mailer, err := notify.NewEmailNotifier(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom)
		if err != nil {
			return err
		}
		opts.Notifier = mailer
	} else {
		log.Warn().Msg("Email not configured, ticket notifications go to the log")
	}

	if cfg.QRUploadsEnabled() {
		images, err := credential.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return err
		}
		opts.Images = images
	}

	svc, err := grouppay.NewService(opts)
	if err != nil {
		return err
	}
	cfg.GroupPay = svc
	return nil
}
