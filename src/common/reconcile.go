package common

import (
	"context"
	"eventverse/src/db"
	"eventverse/src/lib"
	"eventverse/src/models"
	"eventverse/src/monitoring"
	"eventverse/src/types"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// CorrelationKey names the ticket column a provider notification correlates
// on. Its value doubles as the SQL column name in the conditional update.
type CorrelationKey string

const (
	CorrelationStripeSession CorrelationKey = "stripe_session_id"
	CorrelationMpesaCheckout CorrelationKey = "mpesa_checkout_request_id"
)

func (k CorrelationKey) Provider() string {
	if k == CorrelationMpesaCheckout {
		return "mpesa"
	}
	return "stripe"
}

func (k CorrelationKey) receiptColumn() string {
	if k == CorrelationMpesaCheckout {
		return "mpesa_receipt_number"
	}
	return "stripe_payment_id"
}

// ApplyPaymentOutcome settles a provider outcome against the ticket group
// stored under correlationId. The conditional update is the only concurrency
// control: whichever of the webhook, callback, and polling paths lands first
// flips the rows, and everyone after matches zero rows and no-ops. Failed
// outcomes leave the tickets PENDING so the purchaser can pay again.
func ApplyPaymentOutcome(key CorrelationKey, correlationId string, outcome types.PaymentOutcome) (int64, error) {
	if correlationId == "" {
		return 0, ErrMissingCorrelation
	}
	switch outcome.Kind {
	case types.PAYMENT_PENDING:
		return 0, nil
	case types.PAYMENT_FAILED:
		log.Printf("[reconcile] %s %s reported failure [%s] %s, tickets stay pending\n", key.Provider(), correlationId, outcome.Code, outcome.Description)
		return 0, nil
	}

	updates := map[string]any{"status": types.TICKET_CONFIRMED}
	if outcome.ReceiptID != "" {
		updates[key.receiptColumn()] = outcome.ReceiptID
	}
	res := db.GetDb().Model(&models.Ticket{}).
		Where(fmt.Sprintf("%s = ?", key), correlationId).
		Where("status = ?", types.TICKET_PENDING).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// Already settled by another delivery, or an id we never issued.
		// Either way the delivery is acknowledged without side effects.
		return 0, nil
	}

	log.Printf("[reconcile] %s %s confirmed %d ticket(s)\n", key.Provider(), correlationId, res.RowsAffected)
	monitoring.TrackConfirmation(key.Provider(), res.RowsAffected)
	notifyTicketCount(key, correlationId)
	return res.RowsAffected, nil
}

// notifyTicketCount fans the fresh confirmed count out to the event room.
// Best effort: a lookup failure never unwinds a settled payment.
func notifyTicketCount(key CorrelationKey, correlationId string) {
	var ticket models.Ticket
	err := db.GetDb().Select("event_id").
		Where(fmt.Sprintf("%s = ?", key), correlationId).
		First(&ticket).Error
	if err != nil {
		log.Printf("[reconcile] ticket count fan-out for %s skipped: %s\n", correlationId, err.Error())
		return
	}
	lib.EmitTicketCountUpdate(ticket.EventID, ConfirmedTicketCount(ticket.EventID))
}

type VerifyResult struct {
	PaymentStatus string `json:"payment_status"`
	Confirmed     int64  `json:"confirmed"`
}

// VerifyStripeSession re-checks one checkout session against Stripe. Used by
// the success-page poll as a fallback for lost webhooks; safe to call any
// number of times.
func VerifyStripeSession(ctx context.Context, sessionId string) (*VerifyResult, error) {
	cs, err := lib.RetrieveCheckoutSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	out := &VerifyResult{PaymentStatus: string(cs.PaymentStatus)}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return out, nil
	}
	confirmed, err := ApplyPaymentOutcome(CorrelationStripeSession, sessionId,
		types.SucceededOutcome(lib.SessionPaymentIntentID(cs), float64(cs.AmountTotal)/100, "", ""))
	if err != nil {
		return nil, err
	}
	out.Confirmed = confirmed
	return out, nil
}

type SweepSummary struct {
	Checked   int   `json:"checked"`
	Confirmed int64 `json:"confirmed"`
	Failed    int   `json:"failed"`
}

// VerifyAllPending re-queries the provider for every PENDING ticket group
// that has a correlation id. userId 0 sweeps everyone. Per-group failures
// are counted and skipped so one bad group cannot stall the sweep.
func VerifyAllPending(ctx context.Context, userId uint) (*SweepSummary, error) {
	conn := db.GetDb()
	summary := &SweepSummary{}

	var sessions []string
	q := conn.Model(&models.Ticket{}).
		Where("status = ? AND stripe_session_id IS NOT NULL", types.TICKET_PENDING)
	if userId > 0 {
		q = q.Where("user_id = ?", userId)
	}
	if err := q.Distinct().Pluck("stripe_session_id", &sessions).Error; err != nil {
		return nil, err
	}
	for _, sid := range sessions {
		summary.Checked++
		res, err := VerifyStripeSession(ctx, sid)
		if err != nil {
			summary.Failed++
			log.Printf("[reconcile] verifying session %s: %s\n", sid, err.Error())
			continue
		}
		summary.Confirmed += res.Confirmed
	}

	var checkouts []string
	q = conn.Model(&models.Ticket{}).
		Where("status = ? AND mpesa_checkout_request_id IS NOT NULL", types.TICKET_PENDING)
	if userId > 0 {
		q = q.Where("user_id = ?", userId)
	}
	if err := q.Distinct().Pluck("mpesa_checkout_request_id", &checkouts).Error; err != nil {
		return nil, err
	}
	mpesa := lib.GetMpesaClient()
	for _, cid := range checkouts {
		summary.Checked++
		res, err := mpesa.QuerySTKStatus(ctx, cid)
		if err != nil {
			summary.Failed++
			log.Printf("[reconcile] querying STK push %s: %s\n", cid, err.Error())
			continue
		}
		confirmed, err := ApplyPaymentOutcome(CorrelationMpesaCheckout, cid, res.Outcome())
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Confirmed += confirmed
	}
	return summary, nil
}

// ExpireStalePendingTickets cancels PENDING tickets older than the given
// age. Runs on a schedule when TICKET_EXPIRY_HOURS is set; tickets already
// confirmed are untouched by the status guard.
func ExpireStalePendingTickets(olderThan time.Duration) (int64, error) {
	res := db.GetDb().Model(&models.Ticket{}).
		Where("status = ?", types.TICKET_PENDING).
		Where("created_at < ?", time.Now().Add(-olderThan)).
		Update("status", types.TICKET_CANCELLED)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[reconcile] expired %d stale pending ticket(s)\n", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
