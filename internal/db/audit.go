// Copyright 2026 Mandatevault Ltd.

package db

import (
	"context"
	"time"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// AddAuditEvent adds a new entry to the audit log. The entry's ID and,
// if unset, its Time are assigned by the server; callers may not forge
// either.
func (d *Database) AddAuditEvent(ctx context.Context, e *dbmodel.AuditEvent) error {
	const op = errors.Op("db.AddAuditEvent")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	e.ID = 0
	if e.Time.IsZero() {
		e.Time = time.Now().UTC().Truncate(time.Millisecond)
	}
	if err := d.DB.WithContext(ctx).Create(e).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// An AuditEventFilter defines a filter for audit events.
type AuditEventFilter struct {
	// AuthorizationID matches events for a single authorization. If
	// this is empty events for all authorizations are found.
	AuthorizationID string

	// TenantID matches events within a single tenant scope.
	TenantID string

	// Kind matches a single event kind.
	Kind string

	// Start defines the earliest time to show audit events for. If
	// this is zero then all audit events that are before the End time
	// are found.
	Start time.Time

	// End defines the latest time to show audit events for. If this is
	// zero then all audit events that are after the Start time are
	// found.
	End time.Time
}

// ForEachAuditEvent iterates through all audit events that match the
// given filter, in chronological order, calling f for each event. If f
// returns an error iteration stops immediately and the error is
// returned unmodified.
func (d *Database) ForEachAuditEvent(ctx context.Context, filter AuditEventFilter, f func(*dbmodel.AuditEvent) error) error {
	const op = errors.Op("db.ForEachAuditEvent")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	db := d.DB.WithContext(ctx).Model(&dbmodel.AuditEvent{})
	if filter.AuthorizationID != "" {
		db = db.Where("authorization_id = ?", filter.AuthorizationID)
	}
	if filter.TenantID != "" {
		db = db.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Kind != "" {
		db = db.Where("kind = ?", filter.Kind)
	}
	if !filter.Start.IsZero() {
		db = db.Where("time >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		db = db.Where("time <= ?", filter.End)
	}
	db = db.Order("time")
	rows, err := db.Rows()
	if err != nil {
		return errors.E(op, dbError(err))
	}
	defer rows.Close()
	for rows.Next() {
		var e dbmodel.AuditEvent
		if err := db.ScanRows(rows, &e); err != nil {
			return errors.E(op, err)
		}
		if err := f(&e); err != nil {
			return err
		}
	}
	if rows.Err() != nil {
		return errors.E(op, rows.Err())
	}
	return nil
}
