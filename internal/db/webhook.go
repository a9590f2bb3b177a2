// Copyright 2026 Mandatevault Ltd.

package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// AddWebhookSubscription stores a new webhook subscription. If the
// subscription does not have an ID one is assigned.
func (d *Database) AddWebhookSubscription(ctx context.Context, s *dbmodel.WebhookSubscription) error {
	const op = errors.Op("db.AddWebhookSubscription")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if s.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.E(op, err)
		}
		s.ID = id.String()
	}
	if err := d.DB.WithContext(ctx).Create(s).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// GetWebhookSubscription fills in the given subscription from the
// database, matching on its ID and, if set, its TenantID.
func (d *Database) GetWebhookSubscription(ctx context.Context, s *dbmodel.WebhookSubscription) error {
	const op = errors.Op("db.GetWebhookSubscription")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if s.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing subscription id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	db := d.DB.WithContext(ctx).Where("id = ?", s.ID)
	if s.TenantID != "" {
		db = db.Where("tenant_id = ?", s.TenantID)
	}
	if err := db.First(s).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// DeleteWebhookSubscription removes the given subscription. Existing
// deliveries for the subscription are kept; the retry worker skips
// deliveries whose subscription no longer exists.
func (d *Database) DeleteWebhookSubscription(ctx context.Context, s *dbmodel.WebhookSubscription) error {
	const op = errors.Op("db.DeleteWebhookSubscription")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if s.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing subscription id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if err := d.DB.WithContext(ctx).Delete(s).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// ForEachWebhookSubscription iterates through all subscriptions for the
// given tenant calling f for each. If f returns an error iteration
// stops immediately and the error is returned unmodified.
func (d *Database) ForEachWebhookSubscription(ctx context.Context, tenantID string, f func(*dbmodel.WebhookSubscription) error) error {
	const op = errors.Op("db.ForEachWebhookSubscription")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	db := d.DB.WithContext(ctx).Model(&dbmodel.WebhookSubscription{})
	if tenantID != "" {
		db = db.Where("tenant_id = ?", tenantID)
	}
	rows, err := db.Rows()
	if err != nil {
		return errors.E(op, dbError(err))
	}
	defer rows.Close()
	for rows.Next() {
		var s dbmodel.WebhookSubscription
		if err := db.ScanRows(rows, &s); err != nil {
			return errors.E(op, err)
		}
		if err := f(&s); err != nil {
			return err
		}
	}
	if rows.Err() != nil {
		return errors.E(op, rows.Err())
	}
	return nil
}

// ActiveSubscriptionsForEvent returns the active subscriptions in the
// given tenant whose event set contains the given event type. The event
// set is stored as a JSON array so membership is checked here rather
// than with dialect-specific JSON operators.
func (d *Database) ActiveSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]dbmodel.WebhookSubscription, error) {
	const op = errors.Op("db.ActiveSubscriptionsForEvent")
	if err := d.ready(); err != nil {
		return nil, errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	var all []dbmodel.WebhookSubscription
	err := d.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("active = ?", true).
		Find(&all).Error
	if err != nil {
		return nil, errors.E(op, dbError(err))
	}
	var matched []dbmodel.WebhookSubscription
	for _, s := range all {
		if s.Events.Contains(eventType) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// AddWebhookDelivery stores a new webhook delivery. If the delivery
// does not have an ID one is assigned.
func (d *Database) AddWebhookDelivery(ctx context.Context, w *dbmodel.WebhookDelivery) error {
	const op = errors.Op("db.AddWebhookDelivery")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if w.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.E(op, err)
		}
		w.ID = id.String()
	}
	if err := d.DB.WithContext(ctx).Create(w).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// GetWebhookDelivery fills in the given delivery from the database,
// matching on its ID.
func (d *Database) GetWebhookDelivery(ctx context.Context, w *dbmodel.WebhookDelivery) error {
	const op = errors.Op("db.GetWebhookDelivery")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if w.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing delivery id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if err := d.DB.WithContext(ctx).Where("id = ?", w.ID).First(w).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// UpdateWebhookDelivery stores the changed fields of the given
// delivery.
func (d *Database) UpdateWebhookDelivery(ctx context.Context, w *dbmodel.WebhookDelivery) error {
	const op = errors.Op("db.UpdateWebhookDelivery")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if w.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing delivery id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if err := d.DB.WithContext(ctx).Save(w).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// DueWebhookDeliveries returns undelivered deliveries whose next
// attempt time has passed. Deliveries with a null next attempt time are
// terminal and never returned, which also keeps the retry worker from
// racing an in-progress original emission attempt.
func (d *Database) DueWebhookDeliveries(ctx context.Context, now time.Time, limit int) ([]dbmodel.WebhookDelivery, error) {
	const op = errors.Op("db.DueWebhookDeliveries")
	if err := d.ready(); err != nil {
		return nil, errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	var deliveries []dbmodel.WebhookDelivery
	db := d.DB.WithContext(ctx).
		Where("delivered_at IS NULL").
		Where("next_attempt_at IS NOT NULL").
		Where("next_attempt_at <= ?", now).
		Order("next_attempt_at")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&deliveries).Error; err != nil {
		return nil, errors.E(op, dbError(err))
	}
	return deliveries, nil
}
