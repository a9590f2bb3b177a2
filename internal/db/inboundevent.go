// Copyright 2026 Mandatevault Ltd.

package db

import (
	"context"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// AddInboundEvent records a processed inbound event id. An error with a
// code of errors.CodeAlreadyExists is returned if the event id has been
// recorded before.
func (d *Database) AddInboundEvent(ctx context.Context, e *dbmodel.InboundEvent) error {
	const op = errors.Op("db.AddInboundEvent")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if e.EventID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing event id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = Now().Time
	}
	if err := d.DB.WithContext(ctx).Create(e).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// GetInboundEvent fills in the given inbound event from the database,
// matching on its EventID. An error with a code of errors.CodeNotFound
// is returned if the event id has not been recorded.
func (d *Database) GetInboundEvent(ctx context.Context, e *dbmodel.InboundEvent) error {
	const op = errors.Op("db.GetInboundEvent")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if e.EventID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing event id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if err := d.DB.WithContext(ctx).Where("event_id = ?", e.EventID).First(e).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}
