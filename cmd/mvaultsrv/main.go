// Copyright 2026 Mandatevault Ltd.

package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	service "github.com/canonical/go-service"
	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	mvault "github.com/mandatevault/mvault"
	"github.com/mandatevault/mvault/internal/vault"
	"github.com/mandatevault/mvault/internal/webhook"
	"github.com/mandatevault/mvault/version"
)

func main() {
	ctx, s := service.NewService(context.Background(), os.Interrupt, syscall.SIGTERM)
	s.Go(func() error {
		return start(ctx, s)
	})
	err := s.Wait()

	zapctx.Error(context.Background(), "shutdown", zap.Error(err))
	if _, ok := err.(*service.SignalError); !ok {
		os.Exit(1)
	}
}

// start initialises the mvaultsrv service.
func start(ctx context.Context, s *service.Service) error {
	zapctx.Info(ctx, "mvault info",
		zap.String("version", version.VersionInfo.Version),
		zap.String("commit", version.VersionInfo.GitCommit),
	)
	if logLevel := os.Getenv("MVAULT_LOG_LEVEL"); logLevel != "" {
		if err := zapctx.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			zapctx.Error(ctx, "cannot set log level", zap.Error(err))
		}
	}
	addr := os.Getenv("MVAULT_LISTEN_ADDR")
	if addr == "" {
		addr = ":http-alt"
	}

	trustRefreshInterval := durationEnv(ctx, "MVAULT_TRUSTSTORE_REFRESH_INTERVAL", time.Hour)
	workerTick := durationEnv(ctx, "MVAULT_WEBHOOK_WORKER_TICK", webhook.DefaultWorkerInterval)
	reaperInterval := durationEnv(ctx, "MVAULT_RETENTION_REAPER_INTERVAL", vault.DefaultReaperInterval)
	webhookDefaults := webhook.RetryPolicy{
		MaxAttempts: intEnv(ctx, "MVAULT_WEBHOOK_MAX_ATTEMPTS", 0),
		BaseDelay:   durationEnv(ctx, "MVAULT_WEBHOOK_BASE_DELAY", 0),
		Timeout:     durationEnv(ctx, "MVAULT_WEBHOOK_TIMEOUT", 0),
	}

	var pspAllowlist []string
	if v := os.Getenv("MVAULT_PSP_ALLOWLIST"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				pspAllowlist = append(pspAllowlist, id)
			}
		}
	}

	svc, err := mvault.NewService(ctx, mvault.Params{
		DSN:                    os.Getenv("MVAULT_DSN"),
		AuthJWTSecret:          os.Getenv("MVAULT_AUTH_JWT_SECRET"),
		DelegatedTokensEnabled: os.Getenv("MVAULT_DELEGATED_TOKEN_ENABLED") != "",
		PSPAllowlist:           pspAllowlist,
		TrustRefreshInterval:   trustRefreshInterval,
		IssuerJWKSBaseURL:      os.Getenv("MVAULT_ISSUER_JWKS_BASE_URL"),
		WebhookWorkerTick:      workerTick,
		WebhookDefaults:        webhookDefaults,
		ReaperInterval:         reaperInterval,
		InboundSharedSecret:    os.Getenv("MVAULT_INBOUND_SHARED_SECRET"),
	})
	if err != nil {
		return err
	}

	s.Go(func() error { return svc.WatchWebhookDeliveries(ctx) })
	s.Go(func() error { return svc.WatchRetention(ctx) })
	svc.StartTrustStoreRefresher(ctx, trustRefreshInterval)

	httpsrv := &http.Server{
		Addr:    addr,
		Handler: svc,
	}
	s.OnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zapctx.Warn(ctx, "server shutdown triggered")
		httpsrv.Shutdown(ctx)
		svc.Cleanup()
	})
	s.Go(httpsrv.ListenAndServe)
	zapctx.Info(ctx, "Successfully started mvault server")
	return nil
}

// durationEnv parses a duration environment variable, returning the
// given default when unset or unparseable.
func durationEnv(ctx context.Context, name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zapctx.Error(ctx, "cannot parse duration", zap.String("name", name), zap.Error(err))
		return def
	}
	return d
}

// intEnv parses an integer environment variable, returning the given
// default when unset or unparseable.
func intEnv(ctx context.Context, name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		zapctx.Error(ctx, "cannot parse integer", zap.String("name", name), zap.Error(err))
		return def
	}
	return n
}
