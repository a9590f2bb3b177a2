// Copyright 2026 Mandatevault Ltd.

// Package vaulthttp contains the HTTP handlers of the vault service.
package vaulthttp

import (
	"github.com/go-chi/chi/v5"
)

// A VaultHTTPHandler is a mountable group of routes of the vault
// service.
type VaultHTTPHandler interface {
	Routes() chi.Router
	SetupMiddleware()
}
