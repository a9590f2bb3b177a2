// Copyright 2026 Mandatevault Ltd.

package vault

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/webhook"
)

var knownEventTypes = map[string]bool{
	webhook.EventMandateCreated:            true,
	webhook.EventMandateVerificationFailed: true,
	webhook.EventMandateExpired:            true,
	webhook.EventMandateRevoked:            true,
}

// AddWebhookSubscription registers a webhook subscription for the
// identity's tenant. The target URL must be absolute http or https and
// every subscribed event type must be known.
func (v *Vault) AddWebhookSubscription(ctx context.Context, id *auth.Identity, sub *dbmodel.WebhookSubscription) error {
	const op = errors.Op("vault.AddWebhookSubscription")

	if !id.AllowedTenant(sub.TenantID) {
		return errors.E(op, errors.CodeForbidden, "tenant mismatch")
	}
	u, err := url.Parse(sub.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.E(op, errors.CodeBadRequest, "invalid subscription url")
	}
	if len(sub.Events) == 0 {
		return errors.E(op, errors.CodeBadRequest, "no subscribed events")
	}
	for _, e := range sub.Events {
		if !knownEventTypes[e] {
			return errors.E(op, errors.CodeBadRequest, fmt.Sprintf("unknown event type %q", e))
		}
	}
	if err := v.Database.AddWebhookSubscription(ctx, sub); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// ListWebhookSubscriptions returns the subscriptions for the given
// tenant.
func (v *Vault) ListWebhookSubscriptions(ctx context.Context, id *auth.Identity, tenantID string) ([]dbmodel.WebhookSubscription, error) {
	const op = errors.Op("vault.ListWebhookSubscriptions")

	if !id.AllowedTenant(tenantID) {
		return nil, errors.E(op, errors.CodeForbidden, "tenant mismatch")
	}
	var subs []dbmodel.WebhookSubscription
	err := v.Database.ForEachWebhookSubscription(ctx, tenantID, func(s *dbmodel.WebhookSubscription) error {
		subs = append(subs, *s)
		return nil
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return subs, nil
}

// RemoveWebhookSubscription deletes a subscription. Deliveries already
// queued for it are retired by the retry worker.
func (v *Vault) RemoveWebhookSubscription(ctx context.Context, id *auth.Identity, tenantID, subscriptionID string) error {
	const op = errors.Op("vault.RemoveWebhookSubscription")

	if !id.AllowedTenant(tenantID) {
		return errors.E(op, errors.CodeForbidden, "tenant mismatch")
	}
	sub := dbmodel.WebhookSubscription{ID: subscriptionID}
	if !id.Admin {
		sub.TenantID = tenantID
	}
	if err := v.Database.GetWebhookSubscription(ctx, &sub); err != nil {
		return errors.E(op, err)
	}
	if err := v.Database.DeleteWebhookSubscription(ctx, &sub); err != nil {
		return errors.E(op, err)
	}
	return nil
}
