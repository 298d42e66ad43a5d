package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/sso-requester/internal/config"
	"github.com/spec-kit/sso-requester/internal/observability"
	"github.com/spec-kit/sso-requester/internal/ssotest"
)

// fakesso runs a local SSO provider for development against the sidecar.
func main() {
	cfg := config.LoadFakeSSO()

	logger, err := observability.NewLogger(config.LoggerConfig{Level: "info"}, config.AppConfig{Name: "fakesso", Env: "development", Version: "dev"})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	provider := ssotest.New(ssotest.Config{
		Secret:     cfg.Secret,
		TokenTTL:   cfg.TokenTTL(),
		BcryptCost: cfg.BcryptCost,
	})
	if err := provider.AddAccount(cfg.Email, cfg.Password); err != nil {
		logger.Fatal("failed to register account", zap.Error(err))
	}

	go func() {
		logger.Info("fake sso listening", zap.String("addr", cfg.Addr), zap.String("email", cfg.Email))
		if err := provider.App().Listen(cfg.Addr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()), zap.Int64("logins", provider.Logins()))

	_ = provider.App().Shutdown()
}
