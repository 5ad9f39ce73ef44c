package main

import (
	"errors"
	"eventverse/src/common"
	"eventverse/src/db"
	"eventverse/src/middlewares"
	"eventverse/src/models"
	"eventverse/src/types"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// purchaseRoutes are reachable without a login so walk-up guests can buy.
// A valid bearer token still attaches the tickets to the caller's account.
func purchaseRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		POST("/tickets", middlewares.OptionalAuth, func(ctx *gin.Context) {
			var body types.CreateTicketsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			tickets, err := common.CreateTickets(userId, &body)
			if err != nil {
				log.Printf("Error creating tickets: %s\n", err.Error())
				if errors.Is(err, common.ErrEventNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": tickets})
		}).
		GET("/tickets/session/:sessionId", func(ctx *gin.Context) {
			var params types.SessionURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var tickets []models.Ticket
			db := db.GetDb()
			if err := db.
				Where("stripe_session_id = ?", params.SessionID).
				Order("created_at ASC").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving Tickets for session [%s]: %s\n", params.SessionID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if len(tickets) == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/tickets/verify-payment", func(ctx *gin.Context) {
			var query struct {
				SessionID string `form:"session_id" binding:"required"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := common.VerifyStripeSession(ctx.Copy(), query.SessionID)
			if err != nil {
				log.Printf("Error verifying session [%s]: %s\n", query.SessionID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return apiv1
}

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets/my", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var tickets []models.Ticket
			db := db.GetDb()
			if err := db.
				Where(&models.Ticket{UserID: userId}).
				Preload("Event").
				Order("created_at DESC").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving Tickets for user [%d]: %s\n", userId, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.TicketURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			var ticket models.Ticket
			db := db.GetDb()
			if err := db.
				Where("id = ?", params.ID).
				Preload("Event").
				Preload("CheckIn").
				First(&ticket).Error; err != nil {
				log.Printf("Error retrieving Ticket [%s]: %s\n", params.ID, err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			if ticket.UserID != userId && ticket.Event.OrganizerID != userId {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		POST("/tickets/checkout", func(ctx *gin.Context) {
			var body types.CheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			session, err := common.CreateStripeCheckout(ctx.Copy(), userId, body.TicketIDs)
			if err != nil {
				log.Printf("Error creating checkout session: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": session})
		}).
		POST("/tickets/verify-all-pending", func(ctx *gin.Context) {
			var body types.VerifyAllPendingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			// Organizers may sweep everyone; everyone else sweeps their own.
			if ctx.GetString("role") == string(types.ROLE_ORGANIZER) && body.UserID > 0 {
				userId = body.UserID
			}
			summary, err := common.VerifyAllPending(ctx.Copy(), userId)
			if err != nil {
				log.Printf("Error verifying pending tickets: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": summary})
		}).
		POST("/tickets/scan", middlewares.OrganizerOnly, func(ctx *gin.Context) {
			var body types.ScanTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scannerId := ctx.GetUint("id")
			result, err := common.ScanTicket(body.QRCodeData, scannerId)
			if err != nil {
				log.Printf("Error scanning ticket: %s\n", err.Error())
				if errors.Is(err, common.ErrInvalidQRFormat) {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			status := http.StatusOK
			switch result.Outcome {
			case common.SCAN_NOT_FOUND:
				status = http.StatusNotFound
			case common.SCAN_FORBIDDEN:
				status = http.StatusForbidden
			case common.SCAN_ALREADY_CHECKED_IN, common.SCAN_WRONG_STATUS:
				status = http.StatusConflict
			}
			ctx.JSON(status, gin.H{"data": result})
		})
	return g
}
