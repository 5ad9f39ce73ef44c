package types

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type TicketStatus string

const (
	TICKET_PENDING    TicketStatus = "PENDING"
	TICKET_CONFIRMED  TicketStatus = "CONFIRMED"
	TICKET_CANCELLED  TicketStatus = "CANCELLED"
	TICKET_CHECKED_IN TicketStatus = "CHECKED_IN"
)

type PaymentMethod string

const (
	PAYMENT_METHOD_CARD  PaymentMethod = "CARD"
	PAYMENT_METHOD_MPESA PaymentMethod = "MPESA"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_PUBLISHED EventStatus = "published"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_CANCELED  EventStatus = "canceled"
)

type UserRole string

const (
	ROLE_ORGANIZER UserRole = "ORGANIZER"
	ROLE_ATTENDEE  UserRole = "ATTENDEE"
)

// PaymentOutcomeKind classifies a provider notification once it has been
// normalized at the adapter boundary. The reconciliation engine only ever
// branches on this value, never on provider identity.
type PaymentOutcomeKind string

const (
	PAYMENT_SUCCEEDED PaymentOutcomeKind = "succeeded"
	PAYMENT_FAILED    PaymentOutcomeKind = "failed"
	PAYMENT_PENDING   PaymentOutcomeKind = "pending"
)

type PaymentOutcome struct {
	Kind        PaymentOutcomeKind `json:"kind"`
	ReceiptID   string             `json:"receipt_id,omitempty"`
	Amount      float64            `json:"amount,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	PaidAt      string             `json:"paid_at,omitempty"`
	Code        string             `json:"code,omitempty"`
	Description string             `json:"description,omitempty"`
}

func SucceededOutcome(receiptId string, amount float64, phone, paidAt string) PaymentOutcome {
	return PaymentOutcome{
		Kind:      PAYMENT_SUCCEEDED,
		ReceiptID: receiptId,
		Amount:    amount,
		Phone:     phone,
		PaidAt:    paidAt,
	}
}

func FailedOutcome(code, description string) PaymentOutcome {
	return PaymentOutcome{
		Kind:        PAYMENT_FAILED,
		Code:        code,
		Description: description,
	}
}

func PendingOutcome(code, description string) PaymentOutcome {
	return PaymentOutcome{
		Kind:        PAYMENT_PENDING,
		Code:        code,
		Description: description,
	}
}

type CreateEventRequestBody struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location" binding:"required"`
	DateTime    string  `json:"date_time" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	BasePrice   float64 `json:"base_price" binding:"required,gt=0"`
	Currency    string  `json:"currency,omitempty"`
	Seats       uint    `json:"seats,omitempty"`
}

type CreateTicketsRequestBody struct {
	EventID    uint   `json:"event_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestEmail string `json:"guest_email,omitempty" binding:"omitempty,email"`
}

type CheckoutRequestBody struct {
	TicketIDs []string `json:"ticket_ids" binding:"required,min=1"`
}

type MpesaCheckoutRequestBody struct {
	TicketIDs   []string `json:"ticket_ids" binding:"required,min=1"`
	PhoneNumber string   `json:"phone_number" binding:"required,msisdn"`
}

type MpesaStatusRequestBody struct {
	CheckoutRequestID string `json:"checkout_request_id" binding:"required"`
}

type ScanTicketRequestBody struct {
	QRCodeData string `json:"qr_code_data" binding:"required"`
}

type VerifyAllPendingRequestBody struct {
	UserID uint `json:"user_id,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type TicketURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type SessionURIParams struct {
	SessionID string `uri:"sessionId" binding:"required"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
