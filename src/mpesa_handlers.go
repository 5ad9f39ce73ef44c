package main

import (
	"errors"
	"eventverse/src/common"
	"eventverse/src/config"
	"eventverse/src/lib"
	"eventverse/src/monitoring"
	"eventverse/src/types"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// mpesaCallbackRoutes are the provider-facing endpoints. Daraja retries
// deliveries that do not get its {ResultCode: 0} acknowledgement, so the
// callback acks everything it can parse, even outcomes it cannot apply.
func mpesaCallbackRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/mpesa/callback", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "active"})
		}).
		POST("/mpesa/callback", func(ctx *gin.Context) {
			payload, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				log.Printf("Error reading request body: %s\n", err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			callback, err := lib.ParseSTKCallback(payload)
			if err != nil {
				log.Printf("[Mpesa] Error parsing callback: %s\n", err.Error())
				monitoring.TrackWebhookDelivery("mpesa", "bad_payload")
				ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
			log.Printf("[MpesaCallback] %s result=%d\n", callback.CheckoutRequestID, callback.ResultCode)
			confirmed, err := common.ApplyPaymentOutcome(common.CorrelationMpesaCheckout, callback.CheckoutRequestID, callback.Outcome())
			if err != nil {
				log.Printf("[Mpesa] Error reconciling %s: %s\n", callback.CheckoutRequestID, err.Error())
				monitoring.TrackWebhookDelivery("mpesa", "error")
				if config.WebhookStrictErrors() {
					ctx.Status(http.StatusInternalServerError)
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
			monitoring.TrackWebhookDelivery("mpesa", "ok")
			if confirmed > 0 {
				log.Printf("[Mpesa] %s reconciled, %d ticket(s) confirmed\n", callback.CheckoutRequestID, confirmed)
			}
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		})
	return apiv1
}

func mpesaHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/mpesa/checkout", func(ctx *gin.Context) {
			var body types.MpesaCheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			info, err := common.InitiateMpesaCheckout(ctx.Copy(), userId, &body)
			if err != nil {
				log.Printf("Error initiating STK push: %s\n", err.Error())
				var merr *lib.MpesaError
				if errors.As(err, &merr) && merr.RateLimited() {
					ctx.JSON(http.StatusTooManyRequests, gin.H{"error": merr.Description})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": info})
		}).
		POST("/mpesa/status", func(ctx *gin.Context) {
			var body types.MpesaStatusRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			owned, err := common.OwnsMpesaCheckout(userId, body.CheckoutRequestID)
			if err != nil {
				log.Printf("Error verifying checkout ownership: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if !owned {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
				return
			}
			res, err := lib.GetMpesaClient().QuerySTKStatus(ctx.Copy(), body.CheckoutRequestID)
			if err != nil {
				log.Printf("Error querying STK status: %s\n", err.Error())
				var merr *lib.MpesaError
				if errors.As(err, &merr) && merr.RateLimited() {
					// The poller is faster than Daraja allows. Tell the
					// client to slow down instead of surfacing a failure.
					ctx.JSON(http.StatusTooManyRequests, gin.H{"error": merr.Description})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			outcome := res.Outcome()
			confirmed, err := common.ApplyPaymentOutcome(common.CorrelationMpesaCheckout, body.CheckoutRequestID, outcome)
			if err != nil {
				log.Printf("Error reconciling %s: %s\n", body.CheckoutRequestID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"outcome":   outcome.Kind,
				"confirmed": confirmed,
				"code":      outcome.Code,
				"desc":      outcome.Description,
			}})
		})
	return g
}
