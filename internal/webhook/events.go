// Copyright 2026 Mandatevault Ltd.

package webhook

import (
	"time"

	"github.com/mandatevault/mvault/internal/dbmodel"
)

// Outbound event types.
const (
	EventMandateCreated            = "MandateCreated"
	EventMandateVerificationFailed = "MandateVerificationFailed"
	EventMandateExpired            = "MandateExpired"
	EventMandateRevoked            = "MandateRevoked"
)

// mandateSnapshot is the authorization snapshot embedded in every
// outbound payload.
type mandateSnapshot struct {
	ID          string                 `json:"id"`
	TenantID    string                 `json:"tenant_id"`
	Protocol    string                 `json:"protocol"`
	Issuer      string                 `json:"issuer"`
	Subject     string                 `json:"subject"`
	Status      string                 `json:"status"`
	Scope       map[string]interface{} `json:"scope,omitempty"`
	AmountLimit string                 `json:"amount_limit,omitempty"`
	Currency    string                 `json:"currency,omitempty"`
	ExpiresAt   time.Time              `json:"expires_at"`
	CreatedAt   time.Time              `json:"created_at"`
}

// buildPayload assembles the payload document for an event. Extras are
// merged in at the top level alongside event_type, timestamp and
// mandate.
func buildPayload(eventType string, a *dbmodel.Authorization, extras map[string]interface{}) map[string]interface{} {
	snapshot := mandateSnapshot{
		ID:        a.ID,
		TenantID:  a.TenantID,
		Protocol:  a.Protocol,
		Issuer:    a.Issuer,
		Subject:   a.Subject,
		Status:    a.EffectiveStatus(time.Now()),
		Scope:     a.Scope,
		Currency:  a.Currency,
		ExpiresAt: a.ExpiresAt,
		CreatedAt: a.CreatedAt,
	}
	if a.AmountLimit.Valid {
		snapshot.AmountLimit = a.AmountLimit.Decimal.StringFixed(2)
	}
	payload := map[string]interface{}{
		"event_type": eventType,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"mandate":    snapshot,
	}
	for k, v := range extras {
		payload[k] = v
	}
	return payload
}
