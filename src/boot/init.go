package boot

import (
	"eventverse/src/common"
	"eventverse/src/config"
	"eventverse/src/db"
	"eventverse/src/lib"
	"eventverse/src/models"
	"log"
	"time"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Ticket{},
		&models.CheckIn{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Fatalf("error initializing scheduler: %s", err.Error())
	}
	sched.Start()
}

// InitExpirySweep schedules the hourly sweep that cancels PENDING tickets
// older than TICKET_EXPIRY_HOURS. Zero hours means no sweep and unpaid
// tickets stay retryable forever.
func InitExpirySweep() {
	hours := config.TicketExpiryHours()
	if hours == 0 {
		log.Println("[boot] ticket expiry sweep disabled")
		return
	}
	ttl := time.Duration(hours) * time.Hour
	jobId, err := lib.CreateCronJob(func() {
		if _, err := common.ExpireStalePendingTickets(ttl); err != nil {
			log.Printf("[boot] expiry sweep failed: %s\n", err.Error())
		}
	}, time.Hour)
	if err != nil {
		log.Printf("[boot] could not schedule expiry sweep: %s\n", err.Error())
		return
	}
	log.Printf("[boot] expiry sweep scheduled (job %s, ttl %s)\n", *jobId, ttl)
}
