// Copyright 2026 Mandatevault Ltd.

package vault

import (
	"context"
	"encoding/json"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/verifier"
	"github.com/mandatevault/mvault/internal/webhook"
)

// ReverifyAuthorization re-runs verification on the stored raw payload
// and refreshes the stored status. Any outcome the credential can no
// longer prove collapses to REVOKED; the verification reason preserves
// the distinction for consumers that need it.
func (v *Vault) ReverifyAuthorization(ctx context.Context, id *auth.Identity, tenantID, authorizationID string) (*dbmodel.Authorization, verifier.Result, error) {
	const op = errors.Op("vault.ReverifyAuthorization")

	a, err := v.loadAuthorization(ctx, id, tenantID, authorizationID, false)
	if err != nil {
		return nil, verifier.Result{}, errors.E(op, err)
	}

	result := v.Dispatcher.Verify(ctx, a.Protocol, json.RawMessage(a.RawPayload), verifier.Options{})
	oldStatus := a.Status
	newStatus := collapseStatus(result.Status)

	now := db.Now().Time
	a.Status = newStatus
	a.VerificationStatus = string(result.Status)
	a.VerificationReason = result.Reason
	if result.Details != nil {
		a.VerificationDetails = dbmodel.Map(result.Details)
	} else {
		a.VerificationDetails = nil
	}
	a.VerifiedAt.Time, a.VerifiedAt.Valid = now, true
	if err := v.Database.UpdateAuthorization(ctx, a); err != nil {
		return nil, verifier.Result{}, errors.E(op, err)
	}

	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventVerified, map[string]interface{}{
		"actor":      id.Subject,
		"result":     result,
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	if newStatus != dbmodel.StatusValid {
		event := webhook.EventMandateVerificationFailed
		if newStatus == dbmodel.StatusExpired {
			event = webhook.EventMandateExpired
		}
		extras := map[string]interface{}{
			"verification_status": string(result.Status),
			"verification_reason": result.Reason,
		}
		if err := v.Webhooks.SendEvent(ctx, event, a, extras); err != nil {
			zapctx.Error(ctx, "failed to emit re-verification webhooks", zap.Error(err))
		}
	}
	return a, result, nil
}

// collapseStatus maps a verification status onto a stored lifecycle
// status. VALID, EXPIRED and REVOKED map onto themselves; everything
// else becomes REVOKED, since an authorization that can no longer be
// proven valid must not be treated as live.
func collapseStatus(s verifier.Status) string {
	switch s {
	case verifier.StatusValid:
		return dbmodel.StatusValid
	case verifier.StatusExpired:
		return dbmodel.StatusExpired
	default:
		return dbmodel.StatusRevoked
	}
}

// RevokeAuthorization revokes an authorization. Revocation is
// unconditional on any non-soft-deleted row and is terminal.
func (v *Vault) RevokeAuthorization(ctx context.Context, id *auth.Identity, tenantID, authorizationID, reason string) error {
	const op = errors.Op("vault.RevokeAuthorization")

	a, err := v.loadAuthorization(ctx, id, tenantID, authorizationID, false)
	if err != nil {
		return errors.E(op, err)
	}
	now := db.Now().Time
	a.Status = dbmodel.StatusRevoked
	a.RevokedAt.Time, a.RevokedAt.Valid = now, true
	a.RevocationReason = reason
	if err := v.Database.UpdateAuthorization(ctx, a); err != nil {
		return errors.E(op, err)
	}
	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventRevoked, map[string]interface{}{
		"actor":  id.Subject,
		"reason": reason,
	})
	if err := v.Webhooks.SendEvent(ctx, webhook.EventMandateRevoked, a, map[string]interface{}{
		"reason": reason,
	}); err != nil {
		zapctx.Error(ctx, "failed to emit revocation webhooks", zap.Error(err))
	}
	return nil
}

// SoftDeleteAuthorization marks an authorization deleted. The row
// remains recoverable until its retention window elapses.
func (v *Vault) SoftDeleteAuthorization(ctx context.Context, id *auth.Identity, tenantID, authorizationID string) error {
	const op = errors.Op("vault.SoftDeleteAuthorization")

	a, err := v.loadAuthorization(ctx, id, tenantID, authorizationID, false)
	if err != nil {
		return errors.E(op, err)
	}
	now := db.Now().Time
	a.SoftDeletedAt.Time, a.SoftDeletedAt.Valid = now, true
	a.Status = dbmodel.StatusDeleted
	if err := v.Database.UpdateAuthorization(ctx, a); err != nil {
		return errors.E(op, err)
	}
	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventSoftDeleted, map[string]interface{}{
		"actor": id.Subject,
	})
	return nil
}

// RestoreAuthorization undoes a soft-delete. Only soft-deleted rows
// that were never revoked may be restored; the status returns to
// VALID.
func (v *Vault) RestoreAuthorization(ctx context.Context, id *auth.Identity, tenantID, authorizationID string) error {
	const op = errors.Op("vault.RestoreAuthorization")

	a, err := v.loadAuthorization(ctx, id, tenantID, authorizationID, true)
	if err != nil {
		return errors.E(op, err)
	}
	if !a.SoftDeletedAt.Valid {
		return errors.E(op, errors.CodeBadRequest, "authorization is not deleted")
	}
	if a.RevokedAt.Valid {
		return errors.E(op, errors.CodeBadRequest, "cannot restore a revoked authorization")
	}
	a.SoftDeletedAt.Valid = false
	a.Status = dbmodel.StatusValid
	if err := v.Database.UpdateAuthorization(ctx, a); err != nil {
		return errors.E(op, err)
	}
	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventRestored, map[string]interface{}{
		"actor": id.Subject,
	})
	return nil
}
