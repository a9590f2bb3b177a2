// Copyright 2026 Mandatevault Ltd.

package db_test

import (
	"context"
	"database/sql"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
)

func (s *dbSuite) TestWebhookSubscription(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	sub := dbmodel.WebhookSubscription{
		TenantID: "t-1",
		Name:     "all events",
		URL:      "https://example.com/hook",
		Events:   dbmodel.Strings{"MandateCreated", "MandateRevoked"},
		Secret:   "s3cret",
		Active:   true,
	}
	err = s.Database.AddWebhookSubscription(ctx, &sub)
	c.Assert(err, qt.IsNil)
	c.Check(sub.ID, qt.Not(qt.Equals), "")

	sub2 := dbmodel.WebhookSubscription{ID: sub.ID, TenantID: "t-1"}
	err = s.Database.GetWebhookSubscription(ctx, &sub2)
	c.Assert(err, qt.IsNil)
	c.Check(sub2.Events, qt.DeepEquals, dbmodel.Strings{"MandateCreated", "MandateRevoked"})

	sub3 := dbmodel.WebhookSubscription{ID: sub.ID, TenantID: "t-2"}
	err = s.Database.GetWebhookSubscription(ctx, &sub3)
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeNotFound)

	err = s.Database.DeleteWebhookSubscription(ctx, &sub)
	c.Assert(err, qt.IsNil)
	sub4 := dbmodel.WebhookSubscription{ID: sub.ID}
	err = s.Database.GetWebhookSubscription(ctx, &sub4)
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeNotFound)
}

func (s *dbSuite) TestActiveSubscriptionsForEvent(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	subscribed := dbmodel.WebhookSubscription{
		TenantID: "t-1",
		URL:      "https://example.com/hook",
		Events:   dbmodel.Strings{"MandateCreated"},
		Active:   true,
	}
	err = s.Database.AddWebhookSubscription(ctx, &subscribed)
	c.Assert(err, qt.IsNil)

	inactive := dbmodel.WebhookSubscription{
		TenantID: "t-1",
		URL:      "https://example.com/hook2",
		Events:   dbmodel.Strings{"MandateCreated"},
		Active:   false,
	}
	err = s.Database.AddWebhookSubscription(ctx, &inactive)
	c.Assert(err, qt.IsNil)

	otherEvent := dbmodel.WebhookSubscription{
		TenantID: "t-1",
		URL:      "https://example.com/hook3",
		Events:   dbmodel.Strings{"MandateRevoked"},
		Active:   true,
	}
	err = s.Database.AddWebhookSubscription(ctx, &otherEvent)
	c.Assert(err, qt.IsNil)

	otherTenant := dbmodel.WebhookSubscription{
		TenantID: "t-2",
		URL:      "https://example.com/hook4",
		Events:   dbmodel.Strings{"MandateCreated"},
		Active:   true,
	}
	err = s.Database.AddWebhookSubscription(ctx, &otherTenant)
	c.Assert(err, qt.IsNil)

	subs, err := s.Database.ActiveSubscriptionsForEvent(ctx, "t-1", "MandateCreated")
	c.Assert(err, qt.IsNil)
	c.Assert(subs, qt.HasLen, 1)
	c.Check(subs[0].ID, qt.Equals, subscribed.ID)
}

func (s *dbSuite) TestDueWebhookDeliveries(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	now := time.Now().UTC().Truncate(time.Millisecond)

	due := dbmodel.WebhookDelivery{
		SubscriptionID: "sub-1",
		EventType:      "MandateCreated",
		Payload:        dbmodel.JSON(`{}`),
		Attempts:       1,
		NextAttemptAt:  sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}
	err = s.Database.AddWebhookDelivery(ctx, &due)
	c.Assert(err, qt.IsNil)

	future := dbmodel.WebhookDelivery{
		SubscriptionID: "sub-1",
		EventType:      "MandateCreated",
		Payload:        dbmodel.JSON(`{}`),
		Attempts:       1,
		NextAttemptAt:  sql.NullTime{Time: now.Add(time.Hour), Valid: true},
	}
	err = s.Database.AddWebhookDelivery(ctx, &future)
	c.Assert(err, qt.IsNil)

	terminal := dbmodel.WebhookDelivery{
		SubscriptionID: "sub-1",
		EventType:      "MandateCreated",
		Payload:        dbmodel.JSON(`{}`),
		Attempts:       3,
	}
	err = s.Database.AddWebhookDelivery(ctx, &terminal)
	c.Assert(err, qt.IsNil)

	delivered := dbmodel.WebhookDelivery{
		SubscriptionID: "sub-1",
		EventType:      "MandateCreated",
		Payload:        dbmodel.JSON(`{}`),
		Attempts:       1,
		DeliveredAt:    sql.NullTime{Time: now, Valid: true},
	}
	err = s.Database.AddWebhookDelivery(ctx, &delivered)
	c.Assert(err, qt.IsNil)

	deliveries, err := s.Database.DueWebhookDeliveries(ctx, now, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(deliveries, qt.HasLen, 1)
	c.Check(deliveries[0].ID, qt.Equals, due.ID)
}
