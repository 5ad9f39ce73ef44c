package models

import (
	"eventverse/src/types"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	Title       string            `json:"title"`
	Slug        string            `gorm:"index" json:"slug,omitempty"`
	Description *string           `json:"description,omitempty"`
	Location    string            `json:"location,omitempty"`
	DateTime    time.Time         `json:"date_time,omitempty"`
	BasePrice   decimal.Decimal   `gorm:"type:numeric(12,2)" json:"base_price"`
	Currency    string            `gorm:"default:'USD'" json:"currency"`
	Seats       uint              `json:"seats,omitempty"`
	Status      types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	OrganizerID uint              `json:"organizer_id,omitempty"`

	Organizer User     `gorm:"foreignKey:organizer_id" json:"-"`
	Tickets   []Ticket `json:"tickets,omitempty"`

	types.Timestamps
}
