// Copyright 2026 Mandatevault Ltd.

package webhook

import (
	"context"
	"time"

	"github.com/juju/zaputil/zapctx"
	"go.uber.org/zap"

	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
)

// DefaultWorkerInterval is the retry worker tick interval applied when
// none is configured.
const DefaultWorkerInterval = time.Minute

// workerBatchSize bounds the deliveries drained per tick.
const workerBatchSize = 100

// A Worker periodically drains webhook deliveries whose next-attempt
// time has passed. Deliveries with a null next-attempt time are
// terminal and never picked up, which also keeps the worker from
// racing an in-flight original emission.
type Worker struct {
	Database *db.Database
	Engine   *Engine

	// Interval is the tick interval. If zero, DefaultWorkerInterval
	// is used.
	Interval time.Duration
}

// Run runs the worker until the given context is closed. On shutdown
// the worker stops picking new work; an in-flight attempt observes the
// context and completes within one delivery timeout.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval == 0 {
		interval = DefaultWorkerInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zapctx.Debug(ctx, "shutdown for webhook retry worker complete")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				zapctx.Error(ctx, "webhook retry pass failed", zap.Error(err))
			}
		}
	}
}

// Tick performs one retry pass: every due delivery has its
// subscription re-resolved and, if the subscription is still active,
// one delivery attempt is made. Deliveries whose subscription is gone
// or inactive are made terminal without an attempt.
func (w *Worker) Tick(ctx context.Context) error {
	const op = errors.Op("webhook.Tick")

	deliveries, err := w.Database.DueWebhookDeliveries(ctx, time.Now().UTC(), workerBatchSize)
	if err != nil {
		return errors.E(op, err)
	}
	for i := range deliveries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := &deliveries[i]
		sub := dbmodel.WebhookSubscription{ID: d.SubscriptionID}
		err := w.Database.GetWebhookSubscription(ctx, &sub)
		if errors.ErrorCode(err) == errors.CodeNotFound || (err == nil && !sub.Active) {
			d.NextAttemptAt.Valid = false
			if err := w.Database.UpdateWebhookDelivery(ctx, d); err != nil {
				zapctx.Error(ctx, "failed to retire webhook delivery",
					zap.String("delivery", d.ID), zap.Error(err))
			}
			continue
		}
		if err != nil {
			return errors.E(op, err)
		}
		w.Engine.Attempt(ctx, d, &sub)
	}
	return nil
}
