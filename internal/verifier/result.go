// Copyright 2026 Mandatevault Ltd.

// Package verifier contains the protocol verifiers that check delegated
// payment credentials and the dispatcher that selects between them.
package verifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// A Status is the outcome of verifying a credential.
type Status string

const (
	StatusValid                Status = "VALID"
	StatusExpired              Status = "EXPIRED"
	StatusSigInvalid           Status = "SIG_INVALID"
	StatusIssuerUnknown        Status = "ISSUER_UNKNOWN"
	StatusInvalidFormat        Status = "INVALID_FORMAT"
	StatusScopeInvalid         Status = "SCOPE_INVALID"
	StatusMissingRequiredField Status = "MISSING_REQUIRED_FIELD"
	StatusRevoked              Status = "REVOKED"
)

// A Result is the uniform outcome shape shared by all protocol
// verifiers. Verifiers never return errors; every failure mode is a
// Status with a human-readable reason.
type Result struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`

	Issuer  string `json:"issuer,omitempty"`
	Subject string `json:"subject,omitempty"`

	// TokenRef is the external reference of the credential: the
	// token_id of a delegated token or the jti of a JWT-VC.
	TokenRef string `json:"token_ref,omitempty"`

	AmountLimit decimal.NullDecimal `json:"amount_limit,omitempty"`
	Currency    string              `json:"currency,omitempty"`

	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope holds the protocol-specific constraint map.
	Scope map[string]interface{} `json:"scope,omitempty"`

	// Details holds diagnostic detail such as protocol error codes.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Valid reports whether the result is a successful verification.
func (r Result) Valid() bool {
	return r.Status == StatusValid
}

// Options are caller-supplied constraints applied during verification.
type Options struct {
	// ExpectedScope, when non-empty, requires the credential's scope
	// claim to equal it exactly.
	ExpectedScope string
}

// A Verifier checks a single credential wire format.
type Verifier interface {
	Verify(ctx context.Context, payload []byte, opts Options) Result
}
