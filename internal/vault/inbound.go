// Copyright 2026 Mandatevault Ltd.

package vault

import (
	"context"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
	"github.com/mandatevault/mvault/internal/webhook"
)

// Inbound event types accepted from the external authority.
const (
	InboundTokenUsed    = "token.used"
	InboundTokenRevoked = "token.revoked"
)

// An InboundSignal is a token lifecycle notification from the external
// authority, already authenticated by the receiving handler.
type InboundSignal struct {
	EventID  string
	Kind     string
	TokenRef string

	// Details carries the event-specific data fields: amount,
	// currency, transaction id, reason and similar.
	Details map[string]interface{}
}

// ProcessInboundSignal applies an inbound token signal to the
// authorization the token resolves to. Replays of an already recorded
// event id are reported by the returned flag and have no further
// effect. The event id is recorded only after the effect has been
// applied, so a failure part-way is safely replayable.
func (v *Vault) ProcessInboundSignal(ctx context.Context, sig InboundSignal) (alreadyProcessed bool, err error) {
	const op = errors.Op("vault.ProcessInboundSignal")

	e := dbmodel.InboundEvent{EventID: sig.EventID}
	err = v.Database.GetInboundEvent(ctx, &e)
	if err == nil {
		servermon.InboundEventCount.WithLabelValues(sig.Kind, "already_processed").Inc()
		return true, nil
	}
	if errors.ErrorCode(err) != errors.CodeNotFound {
		return false, errors.E(op, err)
	}

	a := dbmodel.Authorization{TokenRef: sig.TokenRef}
	if err := v.Database.GetAuthorizationByTokenRef(ctx, &a); err != nil {
		servermon.InboundEventCount.WithLabelValues(sig.Kind, "error").Inc()
		return false, errors.E(op, err)
	}

	switch sig.Kind {
	case InboundTokenUsed:
		v.audit(ctx, a.ID, a.TenantID, dbmodel.EventTokenUsed, sig.Details)
	case InboundTokenRevoked:
		reason, _ := sig.Details["reason"].(string)
		now := db.Now().Time
		a.Status = dbmodel.StatusRevoked
		a.RevokedAt.Time, a.RevokedAt.Valid = now, true
		a.RevocationReason = reason
		if err := v.Database.UpdateAuthorization(ctx, &a); err != nil {
			servermon.InboundEventCount.WithLabelValues(sig.Kind, "error").Inc()
			return false, errors.E(op, err)
		}
		v.audit(ctx, a.ID, a.TenantID, dbmodel.EventTokenRevokedExternal, sig.Details)
		if err := v.Webhooks.SendEvent(ctx, webhook.EventMandateRevoked, &a, map[string]interface{}{
			"reason": reason,
			"source": "external",
		}); err != nil {
			zapctx.Error(ctx, "failed to emit revocation webhooks", zap.Error(err))
		}
	default:
		return false, errors.E(op, errors.CodeBadRequest, "unknown event type")
	}

	e = dbmodel.InboundEvent{EventID: sig.EventID, Kind: sig.Kind}
	if err := v.Database.AddInboundEvent(ctx, &e); err != nil {
		// A concurrent replay may have recorded the id first.
		if errors.ErrorCode(err) != errors.CodeAlreadyExists {
			return false, errors.E(op, err)
		}
	}
	servermon.InboundEventCount.WithLabelValues(sig.Kind, "processed").Inc()
	return false, nil
}
