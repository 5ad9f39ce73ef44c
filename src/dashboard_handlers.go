package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"eventverse/src/db"
	"eventverse/src/lib"
	"eventverse/src/middlewares"
	"eventverse/src/models"
	"eventverse/src/types"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type DashboardStats struct {
	Events     int64           `json:"events"`
	Sold       int64           `json:"sold"`
	Pending    int64           `json:"pending"`
	CheckedIn  int64           `json:"checked_in"`
	Revenue    decimal.Decimal `json:"revenue"`
	ComputedAt time.Time       `json:"computed_at"`
}

func dashboardHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/dashboard/stats", middlewares.OrganizerOnly, func(ctx *gin.Context) {
			organizerId := ctx.GetUint("id")
			cacheKey := fmt.Sprintf("%d:dashboard:stats", organizerId)
			rd := lib.GetRedisClient()
			cached, err := rd.Get(context.Background(), cacheKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("Error reading stats cache: %s\n", err.Error())
			}
			if cached != "" {
				var stats DashboardStats
				if err := json.Unmarshal([]byte(cached), &stats); err == nil {
					ctx.JSON(http.StatusOK, gin.H{"data": stats, "cached": true})
					return
				}
			}

			stats, err := computeDashboardStats(organizerId)
			if err != nil {
				log.Printf("Error computing stats for organizer [%d]: %s\n", organizerId, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			go func() {
				b, err := json.Marshal(stats)
				if err != nil {
					return
				}
				rd.SetEx(context.Background(), cacheKey, string(b), time.Minute)
			}()
			ctx.JSON(http.StatusOK, gin.H{"data": stats})
		})
	return g
}

func computeDashboardStats(organizerId uint) (*DashboardStats, error) {
	conn := db.GetDb()
	stats := &DashboardStats{Revenue: decimal.Zero, ComputedAt: time.Now().UTC()}

	if err := conn.Model(&models.Event{}).
		Where("organizer_id = ?", organizerId).
		Count(&stats.Events).Error; err != nil {
		return nil, err
	}

	sold := conn.Model(&models.Ticket{}).
		Joins("JOIN events ON events.id = tickets.event_id").
		Where("events.organizer_id = ?", organizerId)
	if err := sold.
		Where("tickets.status IN ?", []types.TicketStatus{types.TICKET_CONFIRMED, types.TICKET_CHECKED_IN}).
		Count(&stats.Sold).Error; err != nil {
		return nil, err
	}

	if err := conn.Model(&models.Ticket{}).
		Joins("JOIN events ON events.id = tickets.event_id").
		Where("events.organizer_id = ?", organizerId).
		Where("tickets.status = ?", types.TICKET_PENDING).
		Count(&stats.Pending).Error; err != nil {
		return nil, err
	}

	if err := conn.Model(&models.CheckIn{}).
		Joins("JOIN events ON events.id = check_ins.event_id").
		Where("events.organizer_id = ?", organizerId).
		Count(&stats.CheckedIn).Error; err != nil {
		return nil, err
	}

	var revenue sql.NullString
	if err := conn.Model(&models.Ticket{}).
		Joins("JOIN events ON events.id = tickets.event_id").
		Where("events.organizer_id = ?", organizerId).
		Where("tickets.status IN ?", []types.TicketStatus{types.TICKET_CONFIRMED, types.TICKET_CHECKED_IN}).
		Select("COALESCE(SUM(tickets.price), 0)::text").
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	if revenue.Valid {
		total, err := decimal.NewFromString(revenue.String)
		if err == nil {
			stats.Revenue = total
		}
	}
	return stats, nil
}
