package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	appdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/application/discount"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/pricing"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/kafkarelay"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
)

const (
	// systemTraceID marks log lines emitted outside any request or trace.
	systemTraceID = "system"
	systemSpanID  = "system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(getenvDefault("CONFIG_DIR", "configs"), getenvDefault("ENV", "dev"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zaplogger.New(zaplogger.Options{
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		File:    cfg.App.LogFile,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	systemLogger := logger.With(
		observability.F("trace_id", systemTraceID),
		observability.F("span_id", systemSpanID),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.RegisterDefaults(prometrics.New("", "", promRegistry))
	tel := infraobs.New(oteltrace.New(cfg.App.Name), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, systemLogger)
	if err != nil {
		return err
	}
	defer stores.close()

	gw, err := gateway.New(gateway.Config{
		BaseURL:            cfg.Gateway.BaseURL,
		APIKey:             cfg.Gateway.APIKey,
		WebhookSecret:      cfg.Gateway.WebhookSecret,
		Timeout:            cfg.Gateway.Timeout,
		SignatureTolerance: cfg.Gateway.SignatureTolerance,
		BreakerFailures:    cfg.Gateway.BreakerFailures,
		BreakerCooldown:    cfg.Gateway.BreakerCooldown,
	}, logger)
	if err != nil {
		return fmt.Errorf("build payment gateway: %w", err)
	}

	engine, err := newPricingEngine(cfg)
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		return err
	}

	bus := outbox.NewBus(logger, outbox.Options{
		QueueSize:      cfg.Outbox.QueueSize,
		Concurrency:    cfg.Outbox.Concurrency,
		HandlerTimeout: cfg.Outbox.HandlerTimeout,
	})
	if cfg.Kafka.Enabled {
		writer := kafkarelay.NewWriter(kafkarelay.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		defer func() { _ = writer.Close() }()
		relay := kafkarelay.New(writer, cfg.Kafka.Topic, tel)
		relay.Register(bus, workerpresentation.EventHandler(tel, "kafka_relay"),
			domorder.EventCreated, domorder.EventStatusChanged)
		systemLogger.Info("kafka_relay_enabled", observability.F("topic", cfg.Kafka.Topic))
	}
	bus.Start(ctx)

	cartService := appcart.NewService(stores.carts, stores.products, tel)
	lifecycle := apporder.NewLifecycle(stores.orders, stores.products, stores.discounts, bus, tel)
	createOrder := apporder.NewCreateOrderUseCase(
		stores.orders, stores.products, stores.discounts, engine, gw, id.NewUUIDGenerator(), lifecycle,
		apporder.CheckoutOptions{
			Currency:       cfg.Gateway.Currency,
			SuccessURL:     cfg.Gateway.SuccessURL,
			CancelURL:      cfg.Gateway.CancelURL,
			Attempts:       cfg.Gateway.Attempts,
			AttemptTimeout: cfg.Gateway.AttemptTimeout,
			RetryBackoff:   cfg.Gateway.RetryBackoff,
		},
		tel,
	)

	handler := httppresentation.NewHandler(httppresentation.Deps{
		CreateOrder:    createOrder,
		UpdateStatus:   apporder.NewUpdateStatusUseCase(stores.orders, lifecycle, tel),
		Orders:         apporder.NewQueryService(stores.orders),
		Webhooks:       apppayment.NewWebhookProcessor(gw, stores.orders, stores.discounts, lifecycle, cartService, tel),
		Carts:          cartService,
		CreateDiscount: appdiscount.NewCreateDiscountUseCase(stores.discounts, tel),
		Auth:           verifier,
		Metrics:        promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	}, logger, tel)

	server := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("storage", cfg.Storage.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.F("error", err))
			return err
		}
	}

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	// In-flight requests are done, so every event they published is already queued.
	bus.Stop(shutdownCtx)
	return nil
}

func newPricingEngine(cfg config.Config) (*pricing.Engine, error) {
	rate, err := cfg.TaxRate()
	if err != nil {
		return nil, err
	}
	tiers := make([]pricing.Tier, 0, len(cfg.Pricing.Tiers))
	for _, t := range cfg.Pricing.Tiers {
		tiers = append(tiers, pricing.Tier{Locality: t.Locality, Cost: t.Cost})
	}
	engine, err := pricing.NewEngine(pricing.Config{
		Tiers:           tiers,
		DefaultShipping: cfg.Pricing.DefaultShipping,
		TaxRate:         rate,
	})
	if err != nil {
		return nil, fmt.Errorf("build pricing engine: %w", err)
	}
	return engine, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
