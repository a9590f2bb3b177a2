// Copyright 2026 Mandatevault Ltd.

package dbmodel

import (
	"database/sql"
	"time"
)

// A WebhookSubscription describes a tenant's interest in lifecycle
// events. Deliveries are only created for active subscriptions whose
// Events set contains the emitted event type.
type WebhookSubscription struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// TenantID is the tenant the subscription belongs to.
	TenantID string `gorm:"index"`

	// Name is a human-readable label for the subscription.
	Name string

	// URL is the target the payload is POSTed to.
	URL string

	// Events holds the event types the subscription wants.
	Events Strings

	// Secret, when set, is used to compute the X-Webhook-Signature
	// header over the exact body bytes sent.
	Secret string

	// Active subscriptions receive deliveries; inactive ones are
	// skipped by both the engine and the retry worker.
	Active bool

	// Retry policy.
	MaxAttempts      int
	BaseDelaySeconds int
	TimeoutSeconds   int
}

// TableName overrides the table name gorm will use to find
// WebhookSubscription records.
func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}

// A WebhookDelivery records a single logical delivery of an event to a
// subscription, across however many attempts it takes. A delivery with
// a null NextAttemptAt is terminal: either delivered, or failed
// permanently.
type WebhookDelivery struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// SubscriptionID is the subscription the delivery belongs to.
	SubscriptionID string `gorm:"index"`

	// AuthorizationID is the authorization the event relates to, if
	// any.
	AuthorizationID sql.NullString `gorm:"index"`

	// EventType is the emitted event type.
	EventType string

	// Payload is a snapshot of the exact bytes sent as the request
	// body. The HMAC signature is computed over these same bytes.
	Payload JSON

	// Attempts counts delivery attempts made so far.
	Attempts int

	// LastStatus holds the HTTP status of the most recent attempt, if
	// a response was received.
	LastStatus sql.NullInt32

	// LastResponse holds an excerpt (at most 1 KB) of the most recent
	// response body.
	LastResponse string

	// FirstFailedAt is the time of the first failed attempt.
	FirstFailedAt sql.NullTime

	// DeliveredAt is the time the delivery succeeded, if it has.
	DeliveredAt sql.NullTime

	// NextAttemptAt is the time the retry worker should attempt the
	// delivery again. Null means no further attempts will be made.
	NextAttemptAt sql.NullTime `gorm:"index"`
}

// TableName overrides the table name gorm will use to find
// WebhookDelivery records.
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}

// IsDelivered reports whether the delivery has succeeded.
func (d *WebhookDelivery) IsDelivered() bool {
	return d.DeliveredAt.Valid
}
