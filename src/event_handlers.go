package main

import (
	"errors"
	"eventverse/src/common"
	"eventverse/src/config"
	"eventverse/src/db"
	"eventverse/src/middlewares"
	"eventverse/src/models"
	"eventverse/src/types"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// eventBrowseRoutes serve the public event listing pages.
func eventBrowseRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			db := db.GetDb()
			if err := db.
				Where(&models.Event{Status: types.EVENT_PUBLISHED}).
				Order("date_time ASC").
				Find(&events).Error; err != nil {
				log.Printf("Error retrieving Events: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var event models.Event
			db := db.GetDb()
			if err := db.First(&event, params.ID).Error; err != nil {
				log.Printf("Error retrieving Event [%d]: %s\n", params.ID, err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		GET("/events/:id/ticket-count", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			count := common.ConfirmedTicketCount(params.ID)
			ctx.JSON(http.StatusOK, gin.H{"eventId": params.ID, "ticketCount": count})
		})
	return apiv1
}

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events", middlewares.OrganizerOnly, func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			datetime, err := time.Parse(config.TIME_PARSE_FORMAT, body.DateTime)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetUint("id")
			currency := body.Currency
			if currency == "" {
				currency = "USD"
			}
			event := models.Event{
				Title:       body.Title,
				Slug:        slug.Make(body.Title),
				Location:    body.Location,
				DateTime:    datetime,
				BasePrice:   decimal.NewFromFloat(body.BasePrice),
				Currency:    currency,
				Seats:       body.Seats,
				OrganizerID: organizerId,
			}
			if body.Description != "" {
				event.Description = &body.Description
			}
			db := db.GetDb()
			if err := db.Create(&event).Error; err != nil {
				log.Printf("Error creating Event: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": event})
		}).
		GET("/events/mine", middlewares.OrganizerOnly, func(ctx *gin.Context) {
			organizerId := ctx.GetUint("id")
			var events []models.Event
			db := db.GetDb()
			if err := db.
				Where(&models.Event{OrganizerID: organizerId}).
				Order("created_at DESC").
				Find(&events).Error; err != nil {
				log.Printf("Error retrieving Events for organizer [%d]: %s\n", organizerId, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		PATCH("/events/:id/publish", middlewares.OrganizerOnly, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetUint("id")
			db := db.GetDb()
			res := db.Model(&models.Event{}).
				Where("id = ? AND organizer_id = ?", params.ID, organizerId).
				Where("status = ?", types.EVENT_DRAFT).
				Update("status", types.EVENT_PUBLISHED)
			if res.Error != nil {
				log.Printf("Error publishing Event [%d]: %s\n", params.ID, res.Error.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found or not a draft"})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		GET("/events/:id/attendance", middlewares.OrganizerOnly, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			organizerId := ctx.GetUint("id")
			checkIns, err := common.EventAttendance(params.ID, organizerId)
			if err != nil {
				log.Printf("Error retrieving attendance for Event [%d]: %s\n", params.ID, err.Error())
				if errors.Is(err, common.ErrEventNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				if errors.Is(err, common.ErrForbidden) {
					ctx.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data":      checkIns,
				"attended":  len(checkIns),
				"confirmed": common.ConfirmedTicketCount(params.ID),
			})
		})
	return g
}
