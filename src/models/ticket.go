package models

import (
	"eventverse/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ticket is one admission unit. Status only ever moves
// PENDING → CONFIRMED/CANCELLED → CHECKED_IN (from CONFIRMED); every
// mutation goes through a conditional update guarded by the current status.
type Ticket struct {
	ID      uuid.UUID          `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	EventID uint               `json:"event_id"`
	UserID  uint               `json:"user_id"`
	Status  types.TicketStatus `gorm:"default:'PENDING';index:idx_tickets_event_status" json:"status"`

	Price    decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Currency string          `gorm:"default:'USD'" json:"currency"`

	PaymentMethod *types.PaymentMethod `json:"payment_method,omitempty"`

	StripeSessionId        *string `gorm:"index" json:"-"`
	StripePaymentId        *string `json:"-"`
	MpesaCheckoutRequestId *string `gorm:"index" json:"-"`
	MpesaMerchantRequestId *string `json:"-"`
	MpesaPhoneNumber       *string `json:"-"`
	MpesaReceiptNumber     *string `json:"mpesa_receipt_number,omitempty"`

	QRCodeData  string  `gorm:"uniqueIndex" json:"qr_code_data"`
	QRCodeImage *string `json:"qr_code_image,omitempty"`

	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`

	Event   Event    `json:"event,omitempty"`
	User    User     `json:"user,omitempty"`
	CheckIn *CheckIn `gorm:"foreignKey:ticket_id" json:"check_in,omitempty"`

	types.Timestamps
}
