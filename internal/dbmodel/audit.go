// Copyright 2026 Mandatevault Ltd.

package dbmodel

import (
	"database/sql"
	"time"
)

// Audit event kinds. The set is exhaustive; events are only ever
// appended, never modified or deleted.
const (
	EventCreated              = "CREATED"
	EventVerified             = "VERIFIED"
	EventUpdated              = "UPDATED"
	EventSoftDeleted          = "SOFT_DELETED"
	EventRestored             = "RESTORED"
	EventRevoked              = "REVOKED"
	EventRead                 = "READ"
	EventExported             = "EXPORTED"
	EventPurged               = "PURGED"
	EventTokenUsed            = "TOKEN_USED"
	EventTokenRevokedExternal = "TOKEN_REVOKED_EXTERNAL"
	EventTenantNotFound       = "TENANT_NOT_FOUND"
)

// An AuditEvent is an entry in the append-only audit log. The
// AuthorizationID is nullable so that events recorded before a
// successful create, and events that outlive a purged authorization,
// remain valid rows.
type AuditEvent struct {
	// ID contains the ID of the entry.
	ID uint `gorm:"primarykey"`

	// Time holds the server-assigned time of event creation.
	Time time.Time `gorm:"index"`

	// AuthorizationID is the authorization the event relates to, if
	// any.
	AuthorizationID sql.NullString `gorm:"index"`

	// TenantID is the tenant in whose scope the event occurred.
	TenantID string `gorm:"index"`

	// Kind is the event kind, one of the Event* constants.
	Kind string `gorm:"index"`

	// Details contains a JSON blob with event-specific detail: actor
	// id, verification results, prior and next status and similar.
	Details JSON
}

// TableName overrides the table name gorm will use to find AuditEvent
// records.
func (AuditEvent) TableName() string {
	return "audit_events"
}
