// Copyright 2026 Mandatevault Ltd.

package db_test

import (
	"context"
	"database/sql"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
)

func (s *dbSuite) TestAddAuditEvent(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	e := dbmodel.AuditEvent{
		// Forged values, the store must replace both.
		ID:       42,
		TenantID: "t-1",
		Kind:     dbmodel.EventCreated,
		Details:  dbmodel.JSON(`{"actor":"alice"}`),
	}
	err = s.Database.AddAuditEvent(ctx, &e)
	c.Assert(err, qt.IsNil)
	c.Check(e.ID, qt.Not(qt.Equals), uint(42))
	c.Check(e.Time.IsZero(), qt.IsFalse)
}

func (s *dbSuite) TestAddAuditEventNullAuthorization(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	// Events recorded before a successful create have no authorization
	// id.
	e := dbmodel.AuditEvent{
		TenantID: "t-1",
		Kind:     dbmodel.EventVerified,
	}
	err = s.Database.AddAuditEvent(ctx, &e)
	c.Assert(err, qt.IsNil)
	c.Check(e.AuthorizationID.Valid, qt.IsFalse)
}

func (s *dbSuite) TestForEachAuditEvent(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []dbmodel.AuditEvent{{
		Time:            now.Add(-2 * time.Hour),
		AuthorizationID: sql.NullString{String: "a-1", Valid: true},
		TenantID:        "t-1",
		Kind:            dbmodel.EventCreated,
	}, {
		Time:            now.Add(-time.Hour),
		AuthorizationID: sql.NullString{String: "a-1", Valid: true},
		TenantID:        "t-1",
		Kind:            dbmodel.EventRead,
	}, {
		Time:            now,
		AuthorizationID: sql.NullString{String: "a-2", Valid: true},
		TenantID:        "t-2",
		Kind:            dbmodel.EventCreated,
	}}
	for i := range events {
		err := s.Database.AddAuditEvent(ctx, &events[i])
		c.Assert(err, qt.IsNil)
	}

	var kinds []string
	err = s.Database.ForEachAuditEvent(ctx, db.AuditEventFilter{AuthorizationID: "a-1"}, func(e *dbmodel.AuditEvent) error {
		kinds = append(kinds, e.Kind)
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Check(kinds, qt.DeepEquals, []string{dbmodel.EventCreated, dbmodel.EventRead})

	var count int
	err = s.Database.ForEachAuditEvent(ctx, db.AuditEventFilter{
		Kind:  dbmodel.EventCreated,
		Start: now.Add(-30 * time.Minute),
	}, func(e *dbmodel.AuditEvent) error {
		count++
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Check(count, qt.Equals, 1)
}
