package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v2"

	"github.com/Skotchmaster/treat_shop/internal/auth"
	"github.com/Skotchmaster/treat_shop/internal/catalog"
	"github.com/Skotchmaster/treat_shop/internal/checkout"
	"github.com/Skotchmaster/treat_shop/internal/httpserver"
	"github.com/Skotchmaster/treat_shop/internal/models"
	"github.com/Skotchmaster/treat_shop/internal/notify"
	"github.com/Skotchmaster/treat_shop/internal/sms"
	"github.com/Skotchmaster/treat_shop/internal/stripeapi"
	"github.com/Skotchmaster/treat_shop/pkg/cache"
	"github.com/Skotchmaster/treat_shop/pkg/config"
	"github.com/Skotchmaster/treat_shop/pkg/events"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
	loggingmw "github.com/Skotchmaster/treat_shop/pkg/middleware/logging"
)

func main() {
	app := &cli.App{
		Name:  "treat-shop",
		Usage: "pet treat storefront server",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load", Value: cli.NewStringSlice(".env")},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:  "check-config",
				Usage: "load and validate configuration, then exit",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.StringSlice("env-file")...)
					if err != nil {
						return err
					}
					if err := cfg.Validate(); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "configuration ok")
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	authenticator, err := auth.New(auth.Settings{
		AdminPassword: cfg.AdminPassword,
		SessionSecret: cfg.AdminSessionSecret,
		CookieSecure:  cfg.CookieSecure,
	})
	if err != nil {
		return err
	}

	publisher, err := events.New(cfg.KafkaBrokers)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	defer publisher.Close()

	provider := stripeapi.New(cfg.StripeSecretKey)

	catalogSvc := &catalog.CatalogService{
		Provider:  provider,
		Cache:     cache.New[[]models.PublicProduct](cfg.CatalogCacheTTL),
		Publisher: publisher,
		Settings: catalog.Settings{
			ShippingProductID:      cfg.ShippingProductID,
			LocalDeliveryProductID: cfg.LocalDeliveryProductID,
		},
	}
	checkoutSvc := &checkout.CheckoutService{
		Provider:         provider,
		Delivery:         catalogSvc,
		AllowedCountries: cfg.AllowedShippingCountries,
	}

	dispatcher := &notify.Dispatcher{Recipient: cfg.TwilioRecipientNumber, Publisher: publisher}
	if cfg.SMSEnabled() {
		sender, err := sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			return err
		}
		dispatcher.Sender = sender
	} else {
		logger.Warn("sms_disabled", "reason", "twilio credentials not set", "recipient_set", cfg.TwilioRecipientNumber != "")
	}
	webhookSvc := &notify.WebhookService{
		Secret: cfg.StripeWebhookSecret,
		Normalizer: &notify.Normalizer{
			Provider:               provider,
			LocalDeliveryProductID: cfg.LocalDeliveryProductID,
			ShippingProductID:      cfg.ShippingProductID,
		},
		Dispatcher: dispatcher,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		Auth:               authenticator,
		CatalogHandler:     &httpserver.CatalogHTTP{Svc: catalogSvc},
		CheckoutHandler:    &httpserver.CheckoutHTTP{Svc: checkoutSvc, BaseURL: cfg.PublicBaseURL},
		WebhookHandler:     &httpserver.WebhookHTTP{Svc: webhookSvc},
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		LoginBurst:         cfg.LoginBurst,
		AdminOrigins:       cfg.AdminOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", "error", err)
	}
	logger.Info("server_stopped")
	return nil
}
