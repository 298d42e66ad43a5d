package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sso-requester/internal/api/http"
	"github.com/spec-kit/sso-requester/internal/api/http/handlers"
	"github.com/spec-kit/sso-requester/internal/config"
	"github.com/spec-kit/sso-requester/internal/events"
	"github.com/spec-kit/sso-requester/internal/observability"
	"github.com/spec-kit/sso-requester/internal/sso"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	metrics.Observe(dispatcher)

	httpClient := &http.Client{Timeout: cfg.SSO.HTTPTimeout()}

	protocol := sso.NewProtocol(sso.ProtocolConfig{
		BaseEndpoint: cfg.SSO.BaseEndpoint,
		LoginPath:    cfg.SSO.LoginEndpoint,
		HTTPClient:   httpClient,
		Logger:       logger.Named("sso.login"),
	})
	tokens := sso.NewTokenCache(sso.CacheConfig{
		Authenticator: protocol,
		Credentials: sso.Credentials{
			Email:    cfg.SSO.DefaultEmail,
			Password: cfg.SSO.DefaultPassword,
		},
		Skew:       cfg.SSO.TokenSkew(),
		Dispatcher: dispatcher,
		Logger:     logger.Named("sso.cache"),
	})

	var requester handlers.Requester
	if cfg.Downstream.BaseURL != "" {
		requester = sso.NewRequester(sso.RequesterConfig{
			BaseURL:     cfg.Downstream.BaseURL,
			Tokens:      tokens,
			HTTPClient:  httpClient,
			MaxAttempts: cfg.SSO.MaxRequestAttempts,
			Logger:      logger.Named("sso.requester"),
		})
	} else {
		logger.Info("DOWNSTREAM_BASE_URL not set, proxy disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, tokens),
		Token:   handlers.NewTokenHandler(tokens),
		Proxy:   handlers.NewProxyHandler(requester),
		Metrics: metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("sso", cfg.SSO.BaseEndpoint))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
