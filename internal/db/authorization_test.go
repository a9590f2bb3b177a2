// Copyright 2026 Mandatevault Ltd.

package db_test

import (
	"context"
	"database/sql"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"

	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
)

// newAuthorization returns a valid authorization for tests. The caller
// may modify the returned value before storing it.
func newAuthorization(tenantID string) dbmodel.Authorization {
	return dbmodel.Authorization{
		TenantID: tenantID,
		Protocol: dbmodel.ProtocolDelegatedToken,
		Issuer:   "psp-a",
		Subject:  "m-acme",
		TokenRef: "t1",
		Scope: dbmodel.Map{
			"constraints": map[string]interface{}{
				"merchant": "m-acme",
			},
		},
		ScopeMerchant: "m-acme",
		AmountLimit: decimal.NullDecimal{
			Decimal: decimal.RequireFromString("100.00"),
			Valid:   true,
		},
		Currency:           "USD",
		ExpiresAt:          time.Now().UTC().Add(24 * time.Hour).Truncate(time.Millisecond),
		Status:             dbmodel.StatusValid,
		RawPayload:         dbmodel.JSON(`{"token_id":"t1"}`),
		VerificationStatus: "VALID",
		RetentionDays:      30,
		CreatedBy:          "alice",
	}
}

func (s *dbSuite) TestAddAuthorization(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	a := newAuthorization("t-1")
	err = s.Database.AddAuthorization(ctx, &a)
	c.Assert(err, qt.IsNil)
	c.Check(a.ID, qt.Not(qt.Equals), "")

	a2 := dbmodel.Authorization{ID: a.ID}
	err = s.Database.GetAuthorization(ctx, &a2, false)
	c.Assert(err, qt.IsNil)
	c.Check(a2.Issuer, qt.Equals, "psp-a")
	c.Check(a2.ScopeMerchant, qt.Equals, "m-acme")
	c.Check(a2.AmountLimit.Decimal.StringFixed(2), qt.Equals, "100.00")
}

func (s *dbSuite) TestGetAuthorizationTenantScope(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	a := newAuthorization("t-1")
	err = s.Database.AddAuthorization(ctx, &a)
	c.Assert(err, qt.IsNil)

	// A fetch scoped to another tenant does not find the row.
	a2 := dbmodel.Authorization{ID: a.ID, TenantID: "t-2"}
	err = s.Database.GetAuthorization(ctx, &a2, false)
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeNotFound)

	a3 := dbmodel.Authorization{ID: a.ID, TenantID: "t-1"}
	err = s.Database.GetAuthorization(ctx, &a3, false)
	c.Assert(err, qt.IsNil)
}

func (s *dbSuite) TestGetAuthorizationSoftDeleted(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	a := newAuthorization("t-1")
	err = s.Database.AddAuthorization(ctx, &a)
	c.Assert(err, qt.IsNil)
	a.SoftDeletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	a.Status = dbmodel.StatusDeleted
	err = s.Database.UpdateAuthorization(ctx, &a)
	c.Assert(err, qt.IsNil)

	a2 := dbmodel.Authorization{ID: a.ID}
	err = s.Database.GetAuthorization(ctx, &a2, false)
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeNotFound)

	a3 := dbmodel.Authorization{ID: a.ID}
	err = s.Database.GetAuthorization(ctx, &a3, true)
	c.Assert(err, qt.IsNil)
	c.Check(a3.Status, qt.Equals, dbmodel.StatusDeleted)
}

func (s *dbSuite) TestGetAuthorizationByTokenRef(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	a := newAuthorization("t-1")
	err = s.Database.AddAuthorization(ctx, &a)
	c.Assert(err, qt.IsNil)

	a2 := dbmodel.Authorization{TokenRef: "t1"}
	err = s.Database.GetAuthorizationByTokenRef(ctx, &a2)
	c.Assert(err, qt.IsNil)
	c.Check(a2.ID, qt.Equals, a.ID)

	a3 := dbmodel.Authorization{TokenRef: "no-such-token"}
	err = s.Database.GetAuthorizationByTokenRef(ctx, &a3)
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeNotFound)
}

func (s *dbSuite) TestSearchAuthorizations(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	a1 := newAuthorization("t-1")
	err = s.Database.AddAuthorization(ctx, &a1)
	c.Assert(err, qt.IsNil)

	a2 := newAuthorization("t-1")
	a2.TokenRef = "t2"
	a2.Issuer = "psp-b"
	a2.ScopeMerchant = "m-other"
	err = s.Database.AddAuthorization(ctx, &a2)
	c.Assert(err, qt.IsNil)

	a3 := newAuthorization("t-2")
	a3.TokenRef = "t3"
	err = s.Database.AddAuthorization(ctx, &a3)
	c.Assert(err, qt.IsNil)

	as, err := s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{TenantID: "t-1"})
	c.Assert(err, qt.IsNil)
	c.Check(as, qt.HasLen, 2)

	as, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID: "t-1",
		Issuer:   "psp-b",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(as, qt.HasLen, 1)
	c.Check(as[0].ID, qt.Equals, a2.ID)

	as, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID:      "t-1",
		ScopeMerchant: "m-other",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(as, qt.HasLen, 1)
	c.Check(as[0].ID, qt.Equals, a2.ID)

	as, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID:  "t-1",
		MinAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("200.00"), Valid: true},
	})
	c.Assert(err, qt.IsNil)
	c.Check(as, qt.HasLen, 0)
}

func (s *dbSuite) TestSearchAuthorizationsAmountRange(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	small := newAuthorization("t-1")
	small.TokenRef = "t-small"
	small.AmountLimit = decimal.NullDecimal{Decimal: decimal.RequireFromString("9.00"), Valid: true}
	err = s.Database.AddAuthorization(ctx, &small)
	c.Assert(err, qt.IsNil)

	large := newAuthorization("t-1")
	large.TokenRef = "t-large"
	large.AmountLimit = decimal.NullDecimal{Decimal: decimal.RequireFromString("100.00"), Valid: true}
	err = s.Database.AddAuthorization(ctx, &large)
	c.Assert(err, qt.IsNil)

	// Amounts with different digit counts compare numerically, not as
	// text.
	as, err := s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID:  "t-1",
		MinAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("50.00"), Valid: true},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(as, qt.HasLen, 1)
	c.Check(as[0].ID, qt.Equals, large.ID)

	as, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID:  "t-1",
		MaxAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("50.00"), Valid: true},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(as, qt.HasLen, 1)
	c.Check(as[0].ID, qt.Equals, small.ID)

	as, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID:  "t-1",
		MinAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("9.00"), Valid: true},
		MaxAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("100.00"), Valid: true},
	})
	c.Assert(err, qt.IsNil)
	c.Check(as, qt.HasLen, 2)
}

func (s *dbSuite) TestSearchAuthorizationsEffectiveStatus(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	expired := newAuthorization("t-1")
	expired.TokenRef = "t-expired"
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	err = s.Database.AddAuthorization(ctx, &expired)
	c.Assert(err, qt.IsNil)

	live := newAuthorization("t-1")
	live.TokenRef = "t-live"
	err = s.Database.AddAuthorization(ctx, &live)
	c.Assert(err, qt.IsNil)

	// A stored VALID status with a past expiry matches EXPIRED, not
	// VALID.
	as, err := s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID: "t-1",
		Status:   dbmodel.StatusExpired,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(as, qt.HasLen, 1)
	c.Check(as[0].ID, qt.Equals, expired.ID)

	as, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID: "t-1",
		Status:   dbmodel.StatusValid,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(as, qt.HasLen, 1)
	c.Check(as[0].ID, qt.Equals, live.ID)
}

func (s *dbSuite) TestSearchAuthorizationsLimit(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	_, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID: "t-1",
		Limit:    db.MaxSearchLimit,
	})
	c.Assert(err, qt.IsNil)

	_, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID: "t-1",
		Limit:    db.MaxSearchLimit + 1,
	})
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeBadRequest)
}

func (s *dbSuite) TestSearchAuthorizationsSortField(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	_, err = s.Database.SearchAuthorizations(ctx, db.AuthorizationFilter{
		TenantID:  "t-1",
		SortField: "raw_payload",
	})
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeBadRequest)
}

func (s *dbSuite) TestForEachPurgeableAuthorization(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	now := time.Now().UTC()

	purgeable := newAuthorization("t-1")
	purgeable.TokenRef = "t-purge"
	purgeable.RetentionDays = 1
	purgeable.SoftDeletedAt = sql.NullTime{Time: now.Add(-25 * time.Hour), Valid: true}
	err = s.Database.AddAuthorization(ctx, &purgeable)
	c.Assert(err, qt.IsNil)

	retained := newAuthorization("t-1")
	retained.TokenRef = "t-retain"
	retained.RetentionDays = 30
	retained.SoftDeletedAt = sql.NullTime{Time: now.Add(-25 * time.Hour), Valid: true}
	err = s.Database.AddAuthorization(ctx, &retained)
	c.Assert(err, qt.IsNil)

	active := newAuthorization("t-1")
	active.TokenRef = "t-active"
	err = s.Database.AddAuthorization(ctx, &active)
	c.Assert(err, qt.IsNil)

	var ids []string
	err = s.Database.ForEachPurgeableAuthorization(ctx, now, func(a *dbmodel.Authorization) error {
		ids = append(ids, a.ID)
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Check(ids, qt.DeepEquals, []string{purgeable.ID})
}
