// Copyright 2026 Mandatevault Ltd.

package vault

import (
	"context"
	"time"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// DefaultReaperInterval is the retention reaper tick interval applied
// when none is configured.
const DefaultReaperInterval = 24 * time.Hour

// PurgeAuthorizations permanently deletes every soft-deleted
// authorization whose retention window has elapsed at the given time.
// Each purge appends a PURGED audit event before the row is removed;
// the audit trail survives the purge. It returns the number of rows
// purged.
func (v *Vault) PurgeAuthorizations(ctx context.Context, now time.Time) (int, error) {
	const op = errors.Op("vault.PurgeAuthorizations")

	purged := 0
	err := v.Database.ForEachPurgeableAuthorization(ctx, now, func(a *dbmodel.Authorization) error {
		v.audit(ctx, a.ID, a.TenantID, dbmodel.EventPurged, map[string]interface{}{
			"soft_deleted_at": a.SoftDeletedAt.Time,
			"retention_days":  a.RetentionDays,
		})
		if err := v.Database.DeleteAuthorization(ctx, a); err != nil {
			return err
		}
		purged++
		servermon.AuthorizationsPurgedCount.Inc()
		return nil
	})
	if err != nil {
		return purged, errors.E(op, err)
	}
	return purged, nil
}

// A Reaper periodically purges authorizations that have passed their
// retention window.
type Reaper struct {
	Vault *Vault

	// Interval is the tick interval. If zero, DefaultReaperInterval is
	// used.
	Interval time.Duration
}

// Run runs the reaper until the given context is closed.
func (r *Reaper) Run(ctx context.Context) error {
	interval := r.Interval
	if interval == 0 {
		interval = DefaultReaperInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zapctx.Debug(ctx, "shutdown for retention reaper complete")
			return ctx.Err()
		case <-ticker.C:
			purged, err := r.Vault.PurgeAuthorizations(ctx, time.Now().UTC())
			if err != nil {
				zapctx.Error(ctx, "retention purge pass failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				zapctx.Info(ctx, "purged expired authorizations", zap.Int("count", purged))
			}
		}
	}
}
