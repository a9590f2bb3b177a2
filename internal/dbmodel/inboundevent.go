// Copyright 2026 Mandatevault Ltd.

package dbmodel

import "time"

// An InboundEvent records the externally-supplied id of a processed
// inbound webhook event. The table exists solely for idempotency
// deduplication: replays of an already-recorded event id are
// acknowledged without effect.
type InboundEvent struct {
	// EventID is the id supplied by the external sender.
	EventID string `gorm:"primarykey"`

	// Kind is the event type that was processed.
	Kind string

	// ReceivedAt is the time the event was first processed.
	ReceivedAt time.Time
}

// TableName overrides the table name gorm will use to find InboundEvent
// records.
func (InboundEvent) TableName() string {
	return "inbound_events"
}
