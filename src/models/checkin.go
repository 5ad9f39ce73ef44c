package models

import (
	"eventverse/src/types"
	"time"

	"github.com/google/uuid"
)

// CheckIn existence is equivalent to the ticket being CHECKED_IN; the unique
// index on ticket_id is what settles a race between two concurrent scans.
type CheckIn struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	TicketID    uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"ticket_id"`
	EventID     uint      `json:"event_id"`
	ScannerID   uint      `json:"scanner_id"`
	CheckedInAt time.Time `gorm:"autoCreateTime" json:"checked_in_at"`

	Ticket Ticket `json:"-"`

	types.Timestamps
}
