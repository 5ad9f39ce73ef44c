package common

import (
	"context"
	"eventverse/src/config"
	"eventverse/src/db"
	"eventverse/src/lib"
	"eventverse/src/models"
	"eventverse/src/types"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// loadPendingGroup fetches the purchaser's PENDING tickets for the given
// ids. Initiation is all-or-nothing: a missing id, a ticket owned by someone
// else, or one no longer PENDING rejects the whole group.
func loadPendingGroup(conn *gorm.DB, userId uint, ticketIds []string) ([]models.Ticket, error) {
	ids := make([]uuid.UUID, 0, len(ticketIds))
	for _, raw := range ticketIds {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, ErrInvalidTickets
		}
		ids = append(ids, id)
	}
	var tickets []models.Ticket
	err := conn.Preload("Event").
		Where("id IN ?", ids).
		Where("user_id = ?", userId).
		Where("status = ?", types.TICKET_PENDING).
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	if len(tickets) != len(ids) {
		return nil, ErrInvalidTickets
	}
	return tickets, nil
}

func ticketIdsOf(tickets []models.Ticket) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return ids
}

type CheckoutSessionInfo struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateStripeCheckout opens a hosted checkout session for a ticket group
// and stamps the session id onto every ticket in it. That stamp is the
// correlation key the webhook and the verify endpoints reconcile against.
func CreateStripeCheckout(ctx context.Context, userId uint, ticketIds []string) (*CheckoutSessionInfo, error) {
	conn := db.GetDb()
	tickets, err := loadPendingGroup(conn, userId, ticketIds)
	if err != nil {
		return nil, err
	}

	items := make([]lib.CheckoutLineItem, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, lib.CheckoutLineItem{
			Name:      fmt.Sprintf("%s - Ticket", t.Event.Title),
			UnitCents: t.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
			Currency:  strings.ToLower(t.Currency),
		})
	}
	base := config.AppBaseURL()
	cs, err := lib.CreateCheckoutSession(ctx, items,
		fmt.Sprintf("%s/tickets/success?session_id={CHECKOUT_SESSION_ID}", base),
		fmt.Sprintf("%s/tickets/cancelled", base),
		map[string]string{
			"userId":      fmt.Sprint(userId),
			"eventId":     fmt.Sprint(tickets[0].EventID),
			"ticketCount": fmt.Sprint(len(tickets)),
		})
	if err != nil {
		return nil, err
	}

	method := types.PAYMENT_METHOD_CARD
	err = conn.Model(&models.Ticket{}).
		Where("id IN ?", ticketIdsOf(tickets)).
		Where("status = ?", types.TICKET_PENDING).
		Updates(models.Ticket{StripeSessionId: &cs.ID, PaymentMethod: &method}).Error
	if err != nil {
		return nil, err
	}
	return &CheckoutSessionInfo{SessionID: cs.ID, URL: cs.URL}, nil
}

type MpesaCheckoutInfo struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CustomerMessage   string `json:"customer_message"`
	AmountKES         int64  `json:"amount_kes"`
}

// InitiateMpesaCheckout pushes an STK prompt for a ticket group. Tickets are
// only tagged with the checkout request id after the provider accepts the
// push, so a failed push leaves the group untouched and retryable.
func InitiateMpesaCheckout(ctx context.Context, userId uint, body *types.MpesaCheckoutRequestBody) (*MpesaCheckoutInfo, error) {
	conn := db.GetDb()
	tickets, err := loadPendingGroup(conn, userId, body.TicketIDs)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, t := range tickets {
		total = total.Add(t.Price)
	}
	amount := MpesaAmountKES(total, tickets[0].Currency)

	event := tickets[0].Event
	res, err := lib.GetMpesaClient().InitiateSTKPush(ctx, amount, body.PhoneNumber,
		fmt.Sprintf("EVT%dU%d", event.ID, userId),
		fmt.Sprintf("%s x%d", event.Title, len(tickets)))
	if err != nil {
		return nil, err
	}

	method := types.PAYMENT_METHOD_MPESA
	err = conn.Model(&models.Ticket{}).
		Where("id IN ?", ticketIdsOf(tickets)).
		Where("status = ?", types.TICKET_PENDING).
		Updates(models.Ticket{
			PaymentMethod:          &method,
			MpesaCheckoutRequestId: &res.CheckoutRequestID,
			MpesaMerchantRequestId: &res.MerchantRequestID,
			MpesaPhoneNumber:       &body.PhoneNumber,
		}).Error
	if err != nil {
		return nil, err
	}
	return &MpesaCheckoutInfo{
		CheckoutRequestID: res.CheckoutRequestID,
		MerchantRequestID: res.MerchantRequestID,
		CustomerMessage:   res.CustomerMessage,
		AmountKES:         amount,
	}, nil
}

// OwnsMpesaCheckout reports whether the caller holds tickets under the
// given checkout request id. Status polling is scoped to the purchaser so
// a guessed correlation id does not reveal someone else's payment state.
func OwnsMpesaCheckout(userId uint, checkoutRequestId string) (bool, error) {
	var count int64
	err := db.GetDb().Model(&models.Ticket{}).
		Where("mpesa_checkout_request_id = ?", checkoutRequestId).
		Where("user_id = ?", userId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MpesaAmountKES converts a ticket total into whole shillings. Non-KES
// totals go through the configured exchange rate, and fractional shillings
// round up so the charge never undercuts the ticket price. Daraja rejects
// zero, so the floor is 1 KES.
func MpesaAmountKES(total decimal.Decimal, currency string) int64 {
	if !strings.EqualFold(currency, "KES") {
		total = total.Mul(decimal.NewFromFloat(config.UsdToKesRate()))
	}
	amount := total.Ceil().IntPart()
	if amount < 1 {
		amount = 1
	}
	return amount
}
