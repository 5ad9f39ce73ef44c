package main

import (
	"encoding/json"
	"eventverse/src/common"
	"eventverse/src/config"
	"eventverse/src/lib"
	"eventverse/src/monitoring"
	"eventverse/src/types"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			monitoring.TrackWebhookDelivery("stripe", "bad_signature")
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "checkout.session.completed", "checkout.session.async_payment_succeeded":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				monitoring.TrackWebhookDelivery("stripe", "bad_payload")
				break
			}
			if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
				// completed fires for delayed methods before the money moves;
				// the async_payment_succeeded event will come back around.
				log.Printf("[Stripe] session %s completed but payment is %s\n", cs.ID, cs.PaymentStatus)
				monitoring.TrackWebhookDelivery("stripe", "unpaid")
				break
			}
			outcome := types.SucceededOutcome(lib.SessionPaymentIntentID(&cs), float64(cs.AmountTotal)/100, "", "")
			confirmed, err := common.ApplyPaymentOutcome(common.CorrelationStripeSession, cs.ID, outcome)
			if err != nil {
				log.Printf("[Stripe] Error reconciling session %s: %s\n", cs.ID, err.Error())
				monitoring.TrackWebhookDelivery("stripe", "error")
				if config.WebhookStrictErrors() {
					ctx.Status(http.StatusInternalServerError)
					return
				}
				break
			}
			monitoring.TrackWebhookDelivery("stripe", "ok")
			log.Printf("[Stripe] session %s reconciled, %d ticket(s) confirmed\n", cs.ID, confirmed)
		case "checkout.session.async_payment_failed", "checkout.session.expired":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				monitoring.TrackWebhookDelivery("stripe", "bad_payload")
				break
			}
			// Failure keeps the group PENDING so the buyer can try again.
			if _, err := common.ApplyPaymentOutcome(common.CorrelationStripeSession, cs.ID,
				types.FailedOutcome(string(event.Type), "checkout did not complete")); err != nil {
				log.Printf("[Stripe] Error recording failed session %s: %s\n", cs.ID, err.Error())
			}
			monitoring.TrackWebhookDelivery("stripe", "failed_payment")
		default:
			monitoring.TrackWebhookDelivery("stripe", "ignored")
		}
		ctx.JSON(http.StatusOK, gin.H{"received": true})
	})
	return apiv1
}
