// Copyright 2026 Mandatevault Ltd.

package db_test

import (
	"context"

	qt "github.com/frankban/quicktest"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
)

func (s *dbSuite) TestInboundEvent(c *qt.C) {
	ctx := context.Background()
	err := s.Database.Migrate(ctx, false)
	c.Assert(err, qt.IsNil)

	e := dbmodel.InboundEvent{EventID: "e-1", Kind: "token.used"}
	err = s.Database.AddInboundEvent(ctx, &e)
	c.Assert(err, qt.IsNil)
	c.Check(e.ReceivedAt.IsZero(), qt.IsFalse)

	e2 := dbmodel.InboundEvent{EventID: "e-1"}
	err = s.Database.GetInboundEvent(ctx, &e2)
	c.Assert(err, qt.IsNil)
	c.Check(e2.Kind, qt.Equals, "token.used")

	e3 := dbmodel.InboundEvent{EventID: "e-2"}
	err = s.Database.GetInboundEvent(ctx, &e3)
	c.Check(errors.ErrorCode(err), qt.Equals, errors.CodeNotFound)
}
