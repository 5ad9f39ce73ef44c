package models

import (
	"eventverse/src/types"
)

type User struct {
	ID    uint           `gorm:"primarykey" json:"id"`
	Name  string         `json:"name,omitempty"`
	Email string         `gorm:"uniqueIndex" json:"email,omitempty"`
	Role  types.UserRole `gorm:"default:'ATTENDEE'" json:"role,omitempty"`

	Tickets []Ticket `gorm:"foreignKey:user_id" json:"tickets,omitempty"`
	Events  []Event  `gorm:"foreignKey:organizer_id" json:"events,omitempty"`

	types.Timestamps
}
