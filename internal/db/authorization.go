// Copyright 2026 Mandatevault Ltd.

package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// AddAuthorization stores a new authorization. If the authorization does
// not have an ID one is assigned.
func (d *Database) AddAuthorization(ctx context.Context, a *dbmodel.Authorization) error {
	const op = errors.Op("db.AddAuthorization")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if a.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.E(op, err)
		}
		a.ID = id.String()
	}
	if err := d.DB.WithContext(ctx).Create(a).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// GetAuthorization fills in the given authorization from the database.
// The authorization is matched on its ID and, if set, its TenantID.
// Soft-deleted authorizations are not found unless includeSoftDeleted is
// set. GetAuthorization returns an error with a code of
// errors.CodeNotFound if there is no matching authorization.
func (d *Database) GetAuthorization(ctx context.Context, a *dbmodel.Authorization, includeSoftDeleted bool) error {
	const op = errors.Op("db.GetAuthorization")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if a.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing authorization id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	db := d.DB.WithContext(ctx).Where("id = ?", a.ID)
	if a.TenantID != "" {
		db = db.Where("tenant_id = ?", a.TenantID)
	}
	if !includeSoftDeleted {
		db = db.Where("soft_deleted_at IS NULL")
	}
	if err := db.First(a).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// GetAuthorizationByTokenRef fills in the given authorization matching
// on its TokenRef. Inbound webhook signals identify authorizations by
// the token reference carried in the external event.
func (d *Database) GetAuthorizationByTokenRef(ctx context.Context, a *dbmodel.Authorization) error {
	const op = errors.Op("db.GetAuthorizationByTokenRef")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if a.TokenRef == "" {
		return errors.E(op, errors.CodeBadRequest, "missing token reference")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	db := d.DB.WithContext(ctx).Where("token_ref = ?", a.TokenRef).Where("soft_deleted_at IS NULL")
	if err := db.First(a).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// UpdateAuthorization stores the changed fields of the given
// authorization.
func (d *Database) UpdateAuthorization(ctx context.Context, a *dbmodel.Authorization) error {
	const op = errors.Op("db.UpdateAuthorization")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if a.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing authorization id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if err := d.DB.WithContext(ctx).Save(a).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// DeleteAuthorization permanently removes the given authorization from
// the database. Audit events referencing the authorization are kept.
func (d *Database) DeleteAuthorization(ctx context.Context, a *dbmodel.Authorization) error {
	const op = errors.Op("db.DeleteAuthorization")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	if a.ID == "" {
		return errors.E(op, errors.CodeBadRequest, "missing authorization id")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	if err := d.DB.WithContext(ctx).Delete(a).Error; err != nil {
		return errors.E(op, dbError(err))
	}
	return nil
}

// An AuthorizationFilter defines a filter for authorization searches.
// All string fields match exactly and are ignored when empty.
type AuthorizationFilter struct {
	// TenantID restricts the search to a single tenant. It is required
	// unless the caller is an administrator.
	TenantID string

	Protocol string
	Issuer   string
	Subject  string

	// Status matches the effective status of the authorization: rows
	// whose stored status is VALID or ACTIVE but whose expiry has
	// passed match EXPIRED, not their stored status.
	Status string

	ExpiresBefore time.Time
	ExpiresAfter  time.Time
	CreatedAfter  time.Time

	MinAmount decimal.NullDecimal
	MaxAmount decimal.NullDecimal
	Currency  string

	ScopeMerchant string
	ScopeCategory string
	ScopeItem     string

	// IncludeSoftDeleted includes soft-deleted rows in the results.
	IncludeSoftDeleted bool

	// Limit is the maximum number of rows to return. A zero limit
	// applies the default of 100.
	Limit  int
	Offset int

	// SortField selects the column to order by; it must be one of the
	// sortable columns. SortDesc reverses the order.
	SortField string
	SortDesc  bool
}

// MaxSearchLimit is the largest page a search will return.
const MaxSearchLimit = 1000

const defaultSearchLimit = 100

var sortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"expires_at": true,
	"issuer":     true,
	"subject":    true,
	"status":     true,
}

// SearchAuthorizations returns the page of authorizations matching the
// given filter.
func (d *Database) SearchAuthorizations(ctx context.Context, filter AuthorizationFilter) ([]dbmodel.Authorization, error) {
	const op = errors.Op("db.SearchAuthorizations")
	if err := d.ready(); err != nil {
		return nil, errors.E(op, err)
	}
	if filter.Limit < 0 || filter.Limit > MaxSearchLimit {
		return nil, errors.E(op, errors.CodeBadRequest, "search limit out of range")
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	now := time.Now().UTC()
	db := d.DB.WithContext(ctx).Model(&dbmodel.Authorization{})
	if filter.TenantID != "" {
		db = db.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Protocol != "" {
		db = db.Where("protocol = ?", filter.Protocol)
	}
	if filter.Issuer != "" {
		db = db.Where("issuer = ?", filter.Issuer)
	}
	if filter.Subject != "" {
		db = db.Where("subject = ?", filter.Subject)
	}
	switch filter.Status {
	case "":
	case dbmodel.StatusExpired:
		db = db.Where("status = ? OR (status IN ? AND expires_at <= ?)",
			dbmodel.StatusExpired, []string{dbmodel.StatusValid, dbmodel.StatusActive}, now)
	case dbmodel.StatusValid, dbmodel.StatusActive:
		db = db.Where("status = ? AND expires_at > ?", filter.Status, now)
	default:
		db = db.Where("status = ?", filter.Status)
	}
	if !filter.ExpiresBefore.IsZero() {
		db = db.Where("expires_at < ?", filter.ExpiresBefore)
	}
	if !filter.ExpiresAfter.IsZero() {
		db = db.Where("expires_at > ?", filter.ExpiresAfter)
	}
	if !filter.CreatedAfter.IsZero() {
		db = db.Where("created_at > ?", filter.CreatedAfter)
	}
	if filter.MinAmount.Valid {
		db = db.Where("amount_limit >= ?", filter.MinAmount.Decimal)
	}
	if filter.MaxAmount.Valid {
		db = db.Where("amount_limit <= ?", filter.MaxAmount.Decimal)
	}
	if filter.Currency != "" {
		db = db.Where("currency = ?", filter.Currency)
	}
	if filter.ScopeMerchant != "" {
		db = db.Where("scope_merchant = ?", filter.ScopeMerchant)
	}
	if filter.ScopeCategory != "" {
		db = db.Where("scope_category = ?", filter.ScopeCategory)
	}
	if filter.ScopeItem != "" {
		db = db.Where("scope_item = ?", filter.ScopeItem)
	}
	if !filter.IncludeSoftDeleted {
		db = db.Where("soft_deleted_at IS NULL")
	}

	sortField := filter.SortField
	if sortField == "" {
		sortField = "created_at"
	}
	if !sortableColumns[sortField] {
		return nil, errors.E(op, errors.CodeBadRequest, "unsupported sort field")
	}
	order := sortField
	if filter.SortDesc {
		order += " DESC"
	}
	limit := filter.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	db = db.Order(order).Limit(limit).Offset(filter.Offset)

	var authorizations []dbmodel.Authorization
	if err := db.Find(&authorizations).Error; err != nil {
		return nil, errors.E(op, dbError(err))
	}
	return authorizations, nil
}

// ForEachPurgeableAuthorization iterates through all soft-deleted
// authorizations whose retention period has elapsed at the given cutoff
// time, calling f for each. If f returns an error iteration stops
// immediately and the error is returned unmodified.
//
// The retention arithmetic is performed here rather than in SQL so that
// the query is identical on every supported dialect.
func (d *Database) ForEachPurgeableAuthorization(ctx context.Context, cutoff time.Time, f func(*dbmodel.Authorization) error) error {
	const op = errors.Op("db.ForEachPurgeableAuthorization")
	if err := d.ready(); err != nil {
		return errors.E(op, err)
	}
	defer servermon.DurationObserver(servermon.DBQueryDurationHistogram, string(op))()

	db := d.DB.WithContext(ctx).Model(&dbmodel.Authorization{}).Where("soft_deleted_at IS NOT NULL")
	rows, err := db.Rows()
	if err != nil {
		return errors.E(op, dbError(err))
	}
	defer rows.Close()
	for rows.Next() {
		var a dbmodel.Authorization
		if err := db.ScanRows(rows, &a); err != nil {
			return errors.E(op, err)
		}
		boundary, ok := a.PurgeableAfter()
		if !ok || boundary.After(cutoff) {
			continue
		}
		if err := f(&a); err != nil {
			return err
		}
	}
	if rows.Err() != nil {
		return errors.E(op, rows.Err())
	}
	return nil
}
