// Copyright 2026 Mandatevault Ltd.

// Package vault coordinates the authorization lifecycle: verification,
// persistence, audit and webhook notification.
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
	"github.com/mandatevault/mvault/internal/truststore"
	"github.com/mandatevault/mvault/internal/verifier"
	"github.com/mandatevault/mvault/internal/webhook"
)

// MaxRetentionDays is the largest permitted retention window.
const MaxRetentionDays = 365

// A Vault holds the shared handles the lifecycle operations need. A
// single instance spans the process.
type Vault struct {
	Database   *db.Database
	Dispatcher *verifier.Dispatcher
	Trust      *truststore.Store
	Webhooks   *webhook.Engine

	// DelegatedTokensEnabled gates creation of DelegatedToken
	// authorizations.
	DelegatedTokensEnabled bool

	// PSPAllowlist, when non-empty, restricts DelegatedToken creation
	// to the listed PSP ids.
	PSPAllowlist []string
}

// CreateAuthorizationArgs are the arguments to CreateAuthorization.
type CreateAuthorizationArgs struct {
	TenantID      string
	Protocol      string
	Payload       json.RawMessage
	RetentionDays int
	ExpectedScope string
}

// CreateAuthorization verifies the presented credential and, if it
// verifies, persists it as a new authorization. The verification
// outcome is audited whether or not a row is created, so rejected
// credentials leave a trail with a null authorization id.
func (v *Vault) CreateAuthorization(ctx context.Context, id *auth.Identity, args CreateAuthorizationArgs) (*dbmodel.Authorization, error) {
	const op = errors.Op("vault.CreateAuthorization")

	if args.TenantID == "" {
		v.audit(ctx, "", args.TenantID, dbmodel.EventTenantNotFound, map[string]interface{}{
			"actor": id.Subject,
		})
		return nil, errors.E(op, errors.CodeNotFound, "tenant not found")
	}
	if !id.AllowedTenant(args.TenantID) {
		return nil, errors.E(op, errors.CodeForbidden, "tenant mismatch")
	}
	if args.Protocol == dbmodel.ProtocolDelegatedToken && !v.DelegatedTokensEnabled {
		return nil, errors.E(op, errors.CodeForbidden, "delegated tokens are disabled")
	}
	if args.RetentionDays < 0 || args.RetentionDays > MaxRetentionDays {
		return nil, errors.E(op, errors.CodeBadRequest, "retention days out of range")
	}

	result := v.Dispatcher.Verify(ctx, args.Protocol, args.Payload, verifier.Options{
		ExpectedScope: args.ExpectedScope,
	})
	v.audit(ctx, "", args.TenantID, dbmodel.EventVerified, map[string]interface{}{
		"actor":  id.Subject,
		"result": result,
	})
	if !result.Valid() {
		return nil, errors.E(op, errors.CodeVerificationFailed, result.Reason)
	}
	if args.Protocol == dbmodel.ProtocolDelegatedToken && len(v.PSPAllowlist) > 0 {
		if !contains(v.PSPAllowlist, result.Issuer) {
			return nil, errors.E(op, errors.CodeForbidden, "issuer not allow-listed")
		}
	}

	now := db.Now().Time
	a := dbmodel.Authorization{
		TenantID:           args.TenantID,
		Protocol:           args.Protocol,
		Issuer:             result.Issuer,
		Subject:            result.Subject,
		TokenRef:           result.TokenRef,
		Scope:              dbmodel.Map(result.Scope),
		AmountLimit:        result.AmountLimit,
		Currency:           result.Currency,
		ExpiresAt:          result.ExpiresAt,
		Status:             dbmodel.StatusValid,
		RawPayload:         dbmodel.JSON(args.Payload),
		VerificationStatus: string(result.Status),
		VerificationReason: result.Reason,
		RetentionDays:      args.RetentionDays,
		CreatedBy:          id.Subject,
	}
	a.VerifiedAt.Time, a.VerifiedAt.Valid = now, true
	if result.Details != nil {
		a.VerificationDetails = dbmodel.Map(result.Details)
	}
	a.ScopeMerchant, a.ScopeCategory, a.ScopeItem = scopeColumns(result.Scope)

	if err := v.Database.AddAuthorization(ctx, &a); err != nil {
		return nil, errors.E(op, err)
	}
	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventCreated, map[string]interface{}{
		"actor":  id.Subject,
		"status": a.Status,
	})
	if err := v.Webhooks.SendEvent(ctx, webhook.EventMandateCreated, &a, nil); err != nil {
		zapctx.Error(ctx, "failed to emit creation webhooks", zap.Error(err))
	}
	return &a, nil
}

// GetAuthorization returns the authorization with the given id in the
// given tenant, recording a READ audit event. The returned status is
// the effective status at the time of the call.
func (v *Vault) GetAuthorization(ctx context.Context, id *auth.Identity, tenantID, authorizationID string) (*dbmodel.Authorization, error) {
	const op = errors.Op("vault.GetAuthorization")

	a, err := v.loadAuthorization(ctx, id, tenantID, authorizationID, false)
	if err != nil {
		return nil, errors.E(op, err)
	}
	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventRead, map[string]interface{}{
		"actor": id.Subject,
	})
	a.Status = a.EffectiveStatus(db.Now().Time)
	return a, nil
}

// SearchAuthorizations returns the page of authorizations matching the
// given filter. Non-administrators are restricted to their own tenant;
// searches are not individually audited.
func (v *Vault) SearchAuthorizations(ctx context.Context, id *auth.Identity, filter db.AuthorizationFilter) ([]dbmodel.Authorization, error) {
	const op = errors.Op("vault.SearchAuthorizations")

	if !id.Admin {
		if filter.TenantID != "" && !id.AllowedTenant(filter.TenantID) {
			return nil, errors.E(op, errors.CodeForbidden, "tenant mismatch")
		}
		filter.TenantID = id.TenantID
	}
	as, err := v.Database.SearchAuthorizations(ctx, filter)
	if err != nil {
		return nil, errors.E(op, err)
	}
	now := db.Now().Time
	for i := range as {
		as[i].Status = as[i].EffectiveStatus(now)
	}
	return as, nil
}

// loadAuthorization fetches a tenant-checked authorization row.
func (v *Vault) loadAuthorization(ctx context.Context, id *auth.Identity, tenantID, authorizationID string, includeSoftDeleted bool) (*dbmodel.Authorization, error) {
	if !id.AllowedTenant(tenantID) {
		return nil, errors.E(errors.CodeForbidden, "tenant mismatch")
	}
	a := dbmodel.Authorization{ID: authorizationID}
	if !id.Admin {
		a.TenantID = tenantID
	}
	if err := v.Database.GetAuthorization(ctx, &a, includeSoftDeleted); err != nil {
		return nil, err
	}
	return &a, nil
}

// scopeColumns extracts the searchable constraint values from a
// protocol scope map.
func scopeColumns(scope map[string]interface{}) (merchant, category, item string) {
	constraints, ok := scope["constraints"].(map[string]interface{})
	if !ok {
		return "", "", ""
	}
	merchant, _ = constraints["merchant"].(string)
	category, _ = constraints["category"].(string)
	item, _ = constraints["item"].(string)
	return merchant, category, item
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
