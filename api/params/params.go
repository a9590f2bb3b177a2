// Copyright 2026 Mandatevault Ltd.

// Package params holds the request and response documents of the HTTP
// API.
package params

import (
	"encoding/json"
	"time"
)

// A CreateAuthorizationRequest is the request sent when presenting a
// credential for ingestion.
type CreateAuthorizationRequest struct {
	// Protocol is the wire format of the credential, "JWT-VC" or
	// "DelegatedToken".
	Protocol string `json:"protocol"`

	// Payload is the credential exactly as presented. For JWT-VC this
	// is an envelope object carrying the compact serialization in
	// "vc_jwt"; for DelegatedToken it is the token object itself.
	Payload json.RawMessage `json:"payload"`

	// TenantID is the tenant the authorization belongs to.
	TenantID string `json:"tenant_id"`

	// RetentionDays is the number of days a soft-deleted authorization
	// remains recoverable, 0 to 365.
	RetentionDays int `json:"retention_days,omitempty"`

	// ExpectedScope, when set, requires the credential's scope claim
	// to equal it exactly.
	ExpectedScope string `json:"expected_scope,omitempty"`
}

// A Verification is the verification metadata of an authorization.
type Verification struct {
	Status     string                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	VerifiedAt *time.Time             `json:"verified_at,omitempty"`
}

// An Authorization is the API representation of a stored
// authorization. The status reported is the effective status at the
// time of the request.
type Authorization struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Protocol string `json:"protocol"`
	Issuer   string `json:"issuer"`
	Subject  string `json:"subject"`
	TokenRef string `json:"token_ref,omitempty"`

	Scope map[string]interface{} `json:"scope,omitempty"`

	// AmountLimit is a fixed-point decimal string with two fractional
	// digits, empty when the credential carries no limit.
	AmountLimit string `json:"amount_limit,omitempty"`
	Currency    string `json:"currency,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`

	Verification Verification `json:"verification"`

	RetentionDays int    `json:"retention_days"`
	CreatedBy     string `json:"created_by,omitempty"`

	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// A SearchAuthorizationsRequest is the filter document accepted by the
// search endpoint. String fields match exactly and are ignored when
// empty.
type SearchAuthorizationsRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Status   string `json:"status,omitempty"`

	ExpiresBefore *time.Time `json:"expires_before,omitempty"`
	ExpiresAfter  *time.Time `json:"expires_after,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`

	// MinAmount and MaxAmount are fixed-point decimal strings.
	MinAmount string `json:"min_amount,omitempty"`
	MaxAmount string `json:"max_amount,omitempty"`
	Currency  string `json:"currency,omitempty"`

	ScopeMerchant string `json:"scope_merchant,omitempty"`
	ScopeCategory string `json:"scope_category,omitempty"`
	ScopeItem     string `json:"scope_item,omitempty"`

	IncludeSoftDeleted bool `json:"include_soft_deleted,omitempty"`

	// Limit is the page size, at most 1000. 0 applies the server
	// default.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortField is one of created_at, updated_at, expires_at, issuer,
	// subject or status.
	SortField string `json:"sort_field,omitempty"`
	SortDesc  bool   `json:"sort_desc,omitempty"`
}

// A SearchAuthorizationsResponse is the page returned by the search
// endpoint.
type SearchAuthorizationsResponse struct {
	Authorizations []Authorization `json:"authorizations"`
	Count          int             `json:"count"`
}

// A RevokeAuthorizationRequest optionally carries the revocation
// reason.
type RevokeAuthorizationRequest struct {
	Reason string `json:"reason,omitempty"`
}

// An InboundEvent is the document POSTed by the external authority to
// the inbound webhook endpoint.
type InboundEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// An InboundEventResponse reports whether the event was applied or had
// already been processed.
type InboundEventResponse struct {
	Status string `json:"status"`
}

// Inbound event response statuses.
const (
	StatusProcessed        = "processed"
	StatusAlreadyProcessed = "already_processed"
)

// An AddWebhookSubscriptionRequest is the request sent when
// registering a webhook subscription.
type AddWebhookSubscriptionRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`

	// Events is the set of event types the subscription receives.
	Events []string `json:"events"`

	// Secret, when set, is the HMAC key used to sign deliveries.
	Secret string `json:"secret,omitempty"`

	// MaxAttempts, BaseDelaySeconds and TimeoutSeconds override the
	// server retry defaults when non-zero.
	MaxAttempts      int `json:"max_attempts,omitempty"`
	BaseDelaySeconds int `json:"base_delay_seconds,omitempty"`
	TimeoutSeconds   int `json:"timeout_seconds,omitempty"`
}

// A WebhookSubscription is the API representation of a subscription.
// The secret is never returned.
type WebhookSubscription struct {
	ID               string   `json:"id"`
	TenantID         string   `json:"tenant_id"`
	Name             string   `json:"name"`
	URL              string   `json:"url"`
	Events           []string `json:"events"`
	Active           bool     `json:"active"`
	MaxAttempts      int      `json:"max_attempts,omitempty"`
	BaseDelaySeconds int      `json:"base_delay_seconds,omitempty"`
	TimeoutSeconds   int      `json:"timeout_seconds,omitempty"`
}

// A RegisterIssuerRequest registers a trusted issuer with an
// out-of-band key set.
type RegisterIssuerRequest struct {
	Issuer string `json:"issuer"`

	// JWKS is the issuer's key set as a standard JWKS document.
	JWKS json.RawMessage `json:"jwks"`
}

// An IssuerStatus describes one trusted issuer.
type IssuerStatus struct {
	Issuer      string     `json:"issuer"`
	Keys        int        `json:"keys"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	Static      bool       `json:"static"`
}

// A TrustStatusResponse reports the state of the trust store.
type TrustStatusResponse struct {
	Issuers []IssuerStatus `json:"issuers"`
}

// An Error is the error document returned on request failure.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
