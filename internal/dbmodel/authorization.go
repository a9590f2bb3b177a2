// Copyright 2026 Mandatevault Ltd.

package dbmodel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Protocol values identify the wire format an authorization was
// presented in.
const (
	ProtocolJWTVC          = "JWT-VC"
	ProtocolDelegatedToken = "DelegatedToken"
)

// Status values for an authorization. REVOKED and DELETED are terminal,
// except that a soft-deleted (not revoked) authorization may be restored.
const (
	StatusValid   = "VALID"
	StatusActive  = "ACTIVE"
	StatusExpired = "EXPIRED"
	StatusRevoked = "REVOKED"
	StatusDeleted = "DELETED"
)

// An Authorization is a delegated payment authorization held in the
// vault. The raw credential is preserved verbatim so that it can be
// re-verified and exported after creation.
type Authorization struct {
	// Note this cannot use the standard gorm.Model as the ID is a
	// caller-visible UUID rather than an autoincrementing integer.
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// TenantID is the customer boundary the authorization belongs to.
	// Every query in the store is scoped by tenant.
	TenantID string `gorm:"index"`

	// Protocol is the wire format of the credential, one of the
	// Protocol* constants.
	Protocol string `gorm:"index"`

	// Issuer identifies the party that minted the credential. Its
	// semantics differ by protocol: a DID for JWT-VC, a PSP id for
	// delegated tokens.
	Issuer string `gorm:"index"`

	// Subject identifies the party the authority was delegated to.
	Subject string `gorm:"index"`

	// TokenRef is the external reference for the credential; the
	// token_id of a delegated token or the jti of a JWT-VC. Inbound
	// token.used / token.revoked signals resolve authorizations by it.
	TokenRef string `gorm:"index"`

	// Scope holds the protocol-specific constraint map.
	Scope Map

	// ScopeMerchant, ScopeCategory and ScopeItem are copies of the
	// corresponding scope constraint values, extracted at creation so
	// that searches on them do not depend on dialect-specific JSON
	// operators.
	ScopeMerchant string `gorm:"index"`
	ScopeCategory string `gorm:"index"`
	ScopeItem     string `gorm:"index"`

	// AmountLimit is the maximum amount the authorization permits,
	// fixed-point with two fractional digits. Not all protocols carry
	// a limit.
	AmountLimit decimal.NullDecimal

	// Currency is the ISO-4217 code for AmountLimit.
	Currency string

	// ExpiresAt is the instant the credential expires. Queries report
	// an effective status of EXPIRED once this has passed, regardless
	// of the stored status.
	ExpiresAt time.Time `gorm:"index"`

	// Status is the stored lifecycle status, one of the Status*
	// constants.
	Status string `gorm:"index"`

	// RawPayload is the original credential exactly as presented. It
	// is never mutated after creation.
	RawPayload JSON

	// VerificationStatus, VerificationReason and VerificationDetails
	// record the outcome of the most recent verification.
	VerificationStatus  string
	VerificationReason  string
	VerificationDetails Map

	// VerifiedAt is the time of the most recent verification.
	VerifiedAt sql.NullTime

	// RetentionDays is the number of days a soft-deleted authorization
	// is kept before it becomes purgeable. 0 to 365.
	RetentionDays int

	// SoftDeletedAt is the time the authorization was soft-deleted, if
	// it has been.
	SoftDeletedAt sql.NullTime

	// CreatedBy identifies the principal that created the
	// authorization.
	CreatedBy string

	// RevokedAt and RevocationReason record an operator or external
	// revocation.
	RevokedAt        sql.NullTime
	RevocationReason string
}

// TableName overrides the table name gorm will use to find
// Authorization records.
func (Authorization) TableName() string {
	return "authorizations"
}

// EffectiveStatus returns the status the authorization has at the given
// time. A stored VALID or ACTIVE status becomes EXPIRED once ExpiresAt
// has passed; terminal statuses are reported unchanged.
func (a *Authorization) EffectiveStatus(now time.Time) string {
	switch a.Status {
	case StatusValid, StatusActive:
		if !a.ExpiresAt.After(now) {
			return StatusExpired
		}
	}
	return a.Status
}

// PurgeableAfter returns the instant at which the authorization becomes
// eligible for permanent deletion. The second return value is false if
// the authorization has not been soft-deleted.
func (a *Authorization) PurgeableAfter() (time.Time, bool) {
	if !a.SoftDeletedAt.Valid {
		return time.Time{}, false
	}
	return a.SoftDeletedAt.Time.AddDate(0, 0, a.RetentionDays), true
}
