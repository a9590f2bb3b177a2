// Copyright 2026 Mandatevault Ltd.

// Package webhook contains the outbound webhook delivery engine and
// its retry worker.
package webhook

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// RetryPolicy holds the delivery retry parameters applied when a
// subscription does not carry its own.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy is applied when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   60 * time.Second,
	Timeout:     30 * time.Second,
}

// maxResponseExcerpt bounds the response body excerpt persisted with
// each delivery attempt.
const maxResponseExcerpt = 1024

// An Engine delivers lifecycle events to webhook subscriptions. The
// HTTP client is process-wide and connection-pooled.
type Engine struct {
	// Database is the delivery and subscription store.
	Database *db.Database

	// Client is the HTTP client used for deliveries. If nil,
	// http.DefaultClient is used.
	Client *http.Client

	// Defaults is the retry policy applied to subscriptions without
	// one of their own.
	Defaults RetryPolicy
}

func (e *Engine) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e *Engine) policy(sub *dbmodel.WebhookSubscription) RetryPolicy {
	p := e.Defaults
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	if sub.MaxAttempts > 0 {
		p.MaxAttempts = sub.MaxAttempts
	}
	if sub.BaseDelaySeconds > 0 {
		p.BaseDelay = time.Duration(sub.BaseDelaySeconds) * time.Second
	}
	if sub.TimeoutSeconds > 0 {
		p.Timeout = time.Duration(sub.TimeoutSeconds) * time.Second
	}
	return p
}

// SendEvent delivers the given event to every active subscription of
// the authorization's tenant that wants it. The payload document is
// serialized to bytes exactly once; the same bytes are stored with
// each delivery, sent as each request body and fed to the HMAC. A
// delivery failure is never surfaced to the caller beyond the retry
// schedule recorded on the delivery row.
func (e *Engine) SendEvent(ctx context.Context, eventType string, a *dbmodel.Authorization, extras map[string]interface{}) error {
	const op = errors.Op("webhook.SendEvent")

	subscriptions, err := e.Database.ActiveSubscriptionsForEvent(ctx, a.TenantID, eventType)
	if err != nil {
		return errors.E(op, err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(eventType, a, extras))
	if err != nil {
		return errors.E(op, err)
	}

	for i := range subscriptions {
		sub := &subscriptions[i]
		delivery := dbmodel.WebhookDelivery{
			SubscriptionID:  sub.ID,
			AuthorizationID: sql.NullString{String: a.ID, Valid: true},
			EventType:       eventType,
			Payload:         dbmodel.JSON(body),
		}
		if err := e.Database.AddWebhookDelivery(ctx, &delivery); err != nil {
			return errors.E(op, err)
		}
		e.Attempt(ctx, &delivery, sub)
	}
	return nil
}

// Attempt performs a single delivery attempt and persists its outcome.
// On a non-2xx response, timeout or transport error the next attempt is
// scheduled with exponential backoff until the subscription's attempt
// budget is exhausted, at which point the delivery becomes terminal.
func (e *Engine) Attempt(ctx context.Context, d *dbmodel.WebhookDelivery, sub *dbmodel.WebhookSubscription) {
	policy := e.policy(sub)
	d.Attempts++

	status, excerpt, err := e.post(ctx, sub, d.Payload, policy.Timeout)
	now := db.Now()
	if err == nil && status >= 200 && status < 300 {
		d.LastStatus = sql.NullInt32{Int32: int32(status), Valid: true}
		d.LastResponse = excerpt
		d.DeliveredAt = now
		d.NextAttemptAt = sql.NullTime{}
		servermon.WebhookDeliveryCount.WithLabelValues("delivered").Inc()
	} else {
		if status != 0 {
			d.LastStatus = sql.NullInt32{Int32: int32(status), Valid: true}
		} else {
			d.LastStatus = sql.NullInt32{}
		}
		d.LastResponse = excerpt
		if !d.FirstFailedAt.Valid {
			d.FirstFailedAt = now
		}
		if d.Attempts < policy.MaxAttempts {
			delay := time.Duration(math.Pow(2, float64(d.Attempts-1))) * policy.BaseDelay
			d.NextAttemptAt = sql.NullTime{Time: now.Time.Add(delay), Valid: true}
			servermon.WebhookDeliveryCount.WithLabelValues("retry_scheduled").Inc()
		} else {
			d.NextAttemptAt = sql.NullTime{}
			servermon.WebhookDeliveryCount.WithLabelValues("failed").Inc()
		}
		zapctx.Debug(ctx, "webhook delivery attempt failed",
			zap.String("delivery", d.ID),
			zap.Int("attempts", d.Attempts),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	if err := e.Database.UpdateWebhookDelivery(ctx, d); err != nil {
		zapctx.Error(ctx, "failed to record webhook delivery attempt",
			zap.String("delivery", d.ID), zap.Error(err))
	}
}

// post sends the payload to the subscription URL, returning the HTTP
// status and a bounded excerpt of the response body.
func (e *Engine) post(ctx context.Context, sub *dbmodel.WebhookSubscription, body []byte, timeout time.Duration) (int, string, error) {
	defer servermon.DurationObserver(servermon.WebhookDeliveryDurationHistogram, sub.Name)()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if sub.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(sub.Secret, body))
	}
	resp, err := e.client().Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseExcerpt))
	return resp.StatusCode, string(excerpt), nil
}
