// Copyright 2026 Mandatevault Ltd.

package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
)

// audit appends an event to the audit log. The id and timestamp are
// server-assigned; an empty authorizationID records a null reference,
// which is how events predating a successful create are kept. Audit
// failures are logged but never fail the surrounding operation.
func (v *Vault) audit(ctx context.Context, authorizationID, tenantID, kind string, details map[string]interface{}) {
	e := dbmodel.AuditEvent{
		TenantID: tenantID,
		Kind:     kind,
	}
	if authorizationID != "" {
		e.AuthorizationID = sql.NullString{String: authorizationID, Valid: true}
	}
	if details != nil {
		buf, err := json.Marshal(details)
		if err != nil {
			zapctx.Error(ctx, "cannot marshal audit details", zap.Error(err))
		} else {
			e.Details = dbmodel.JSON(buf)
		}
	}
	if err := v.Database.AddAuditEvent(ctx, &e); err != nil {
		zapctx.Error(ctx, "cannot add audit event",
			zap.String("kind", kind),
			zap.String("authorization", authorizationID),
			zap.Error(err),
		)
	}
}

// AuditTrail returns the audit events for an authorization in
// chronological order. Administrators may read any tenant's trail.
func (v *Vault) AuditTrail(ctx context.Context, tenantID, authorizationID string, start, end time.Time) ([]dbmodel.AuditEvent, error) {
	const op = errors.Op("vault.AuditTrail")

	filter := db.AuditEventFilter{
		AuthorizationID: authorizationID,
		TenantID:        tenantID,
		Start:           start,
		End:             end,
	}
	var events []dbmodel.AuditEvent
	err := v.Database.ForEachAuditEvent(ctx, filter, func(e *dbmodel.AuditEvent) error {
		events = append(events, *e)
		return nil
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return events, nil
}
