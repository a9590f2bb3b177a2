// Copyright 2026 Mandatevault Ltd.

// Package middleware provides the HTTP middleware of the vault
// service.
package middleware

import (
	"net/http"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/servermon"
)

// AuthenticateViaBearer returns a middleware that authenticates
// requests with the given authenticator and stores the resulting
// identity in the request context.
func AuthenticateViaBearer(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, err := a.Authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				servermon.AuthenticationFailCount.WithLabelValues("bearer").Inc()
				zapctx.Debug(ctx, "authentication failed", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"unauthorized","code":"unauthorized"}`))
				return
			}
			servermon.AuthenticationSuccessCount.WithLabelValues("bearer").Inc()
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, id)))
		})
	}
}
