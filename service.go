// Copyright 2026 Mandatevault Ltd.

// Package mvault contains the wiring of the mandate vault service: the
// database, the trust store, the verification pipeline, the webhook
// engine and the HTTP surface.
package mvault

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/juju/zaputil/zapctx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/logger"
	"github.com/mandatevault/mvault/internal/middleware"
	"github.com/mandatevault/mvault/internal/truststore"
	"github.com/mandatevault/mvault/internal/vault"
	"github.com/mandatevault/mvault/internal/vaulthttp"
	"github.com/mandatevault/mvault/internal/verifier"
	"github.com/mandatevault/mvault/internal/webhook"
)

// A Params structure contains the parameters required to initialise a
// new Service.
type Params struct {
	// DSN is the data source name the service connects to. Prefix
	// "pgx:", "postgres:" or "postgresql:" selects PostgreSQL,
	// "file:" selects SQLite. If empty an in-memory SQLite database
	// is used.
	DSN string

	// AuthJWTSecret is the HS256 key bearer tokens are verified with.
	AuthJWTSecret string

	// DelegatedTokensEnabled gates creation of DelegatedToken
	// authorizations.
	DelegatedTokensEnabled bool

	// PSPAllowlist, when non-empty, restricts DelegatedToken creation
	// to the listed PSP ids.
	PSPAllowlist []string

	// TrustRefreshInterval is the TTL for cached issuer key sets.
	TrustRefreshInterval time.Duration

	// IssuerJWKSBaseURL is the base URL did:example issuers resolve
	// against.
	IssuerJWKSBaseURL string

	// WebhookWorkerTick is the retry worker tick interval.
	WebhookWorkerTick time.Duration

	// WebhookDefaults is the retry policy applied to subscriptions
	// without one of their own. Zero fields take the engine defaults.
	WebhookDefaults webhook.RetryPolicy

	// ReaperInterval is the retention reaper tick interval.
	ReaperInterval time.Duration

	// InboundSharedSecret is the HMAC secret inbound token signals are
	// authenticated with. If empty the inbound endpoint is not
	// mounted.
	InboundSharedSecret string
}

// A Service is the mandate vault service.
type Service struct {
	vault  vault.Vault
	trust  *truststore.Store
	worker *webhook.Worker
	reaper *vault.Reaper
	mux    *chi.Mux
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

// WatchWebhookDeliveries runs the webhook retry worker until the given
// context is closed.
func (s *Service) WatchWebhookDeliveries(ctx context.Context) error {
	return s.worker.Run(ctx)
}

// WatchRetention runs the retention reaper until the given context is
// closed.
func (s *Service) WatchRetention(ctx context.Context) error {
	return s.reaper.Run(ctx)
}

// StartTrustStoreRefresher starts the background refresh of cached
// issuer key sets.
func (s *Service) StartTrustStoreRefresher(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = truststore.DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		<-ctx.Done()
		ticker.Stop()
	}()
	s.trust.StartRefresher(ctx, ticker.C)
}

// Cleanup cleans up resources that need to be released on shutdown.
func (s *Service) Cleanup() {
	if err := s.vault.Database.Close(); err != nil {
		zapctx.Error(context.Background(), "cannot close database")
	}
}

// NewService creates a new Service using the given params.
func NewService(ctx context.Context, p Params) (*Service, error) {
	const op = errors.Op("NewService")

	s := new(Service)
	s.mux = chi.NewRouter()

	if p.DSN == "" {
		p.DSN = "file::memory:?mode=memory&cache=shared"
	}
	gdb, err := openDB(ctx, p.DSN)
	if err != nil {
		return nil, errors.E(op, err)
	}
	s.vault.Database = &db.Database{DB: gdb}
	if err := s.vault.Database.Migrate(ctx, false); err != nil {
		return nil, errors.E(op, err)
	}

	s.trust = truststore.NewStore(truststore.Params{
		RefreshInterval:      p.TrustRefreshInterval,
		ExampleIssuerBaseURL: p.IssuerJWKSBaseURL,
	})
	s.vault.Trust = s.trust
	s.vault.Dispatcher = verifier.NewDispatcher(s.trust)
	s.vault.Webhooks = &webhook.Engine{
		Database: s.vault.Database,
		Defaults: p.WebhookDefaults,
	}
	s.vault.DelegatedTokensEnabled = p.DelegatedTokensEnabled
	s.vault.PSPAllowlist = p.PSPAllowlist

	s.worker = &webhook.Worker{
		Database: s.vault.Database,
		Engine:   s.vault.Webhooks,
		Interval: p.WebhookWorkerTick,
	}
	s.reaper = &vault.Reaper{
		Vault:    &s.vault,
		Interval: p.ReaperInterval,
	}

	if p.AuthJWTSecret == "" {
		return nil, errors.E(op, errors.CodeServerConfiguration, "no auth secret configured")
	}
	authenticator, err := auth.NewAuthenticator([]byte(p.AuthJWTSecret))
	if err != nil {
		return nil, errors.E(op, err)
	}

	s.mux.Use(middleware.MeasureResponseTime)

	mountHandler := func(path string, h vaulthttp.VaultHTTPHandler) {
		s.mux.Mount(path, h.Routes())
	}

	mountHandler(
		"/debug",
		vaulthttp.NewDebugHandler(
			map[string]vaulthttp.StatusCheck{
				"start_time": vaulthttp.ServerStartTime,
				"database": vaulthttp.MakeStatusCheck("database", func(ctx context.Context) (interface{}, error) {
					sqlDB, err := gdb.DB()
					if err != nil {
						return nil, err
					}
					if err := sqlDB.PingContext(ctx); err != nil {
						return nil, err
					}
					return "ok", nil
				}),
			},
		),
	)
	s.mux.Handle("/metrics", promhttp.Handler())
	if p.InboundSharedSecret != "" {
		mountHandler("/acp/webhook", vaulthttp.NewACPHandler(&s.vault, p.InboundSharedSecret))
	} else {
		zapctx.Warn(ctx, "not mounting inbound webhook endpoint - no shared secret configured")
	}

	s.mux.Group(func(r chi.Router) {
		r.Use(middleware.AuthenticateViaBearer(authenticator))
		r.Mount("/authorizations", vaulthttp.NewAuthorizationHandler(&s.vault).Routes())
		r.Mount("/webhook-subscriptions", vaulthttp.NewSubscriptionHandler(&s.vault).Routes())
		r.Mount("/trust", vaulthttp.NewTrustHandler(s.trust).Routes())
	})

	return s, nil
}

// openDB connects to the database identified by the given DSN.
func openDB(ctx context.Context, dsn string) (*gorm.DB, error) {
	zapctx.Info(ctx, "connecting database")

	var dialect gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "pgx:"):
		dialect = postgres.Open(strings.TrimPrefix(dsn, "pgx:"))
	case strings.HasPrefix(dsn, "postgres:") || strings.HasPrefix(dsn, "postgresql:"):
		dialect = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "file:"):
		dialect = sqlite.Open(dsn)
	default:
		return nil, errors.E(errors.CodeServerConfiguration, "unsupported DSN")
	}
	return gorm.Open(dialect, &gorm.Config{
		Logger: logger.GormLogger{},
	})
}
