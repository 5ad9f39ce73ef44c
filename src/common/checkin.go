package common

import (
	"errors"
	"eventverse/src/db"
	"eventverse/src/models"
	"eventverse/src/monitoring"
	"eventverse/src/types"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScanOutcome string

const (
	SCAN_SUCCESS            ScanOutcome = "success"
	SCAN_ALREADY_CHECKED_IN ScanOutcome = "already_checked_in"
	SCAN_WRONG_STATUS       ScanOutcome = "wrong_status"
	SCAN_NOT_FOUND          ScanOutcome = "not_found"
	SCAN_FORBIDDEN          ScanOutcome = "forbidden"
)

type ScanResult struct {
	Outcome     ScanOutcome    `json:"outcome"`
	Message     string         `json:"message"`
	Ticket      *models.Ticket `json:"ticket,omitempty"`
	CheckedInAt *time.Time     `json:"checked_in_at,omitempty"`
}

var ticketURLPattern = regexp.MustCompile(`/tickets/([0-9a-fA-F-]{36})`)

// resolveTicketQuery maps a scanned payload onto a ticket lookup. Two shapes
// are accepted: the public ticket URL printed inside current QR images, and
// the legacy colon-separated token stored as qr_code_data.
func resolveTicketQuery(conn *gorm.DB, qrData string) *gorm.DB {
	if m := ticketURLPattern.FindStringSubmatch(qrData); m != nil {
		if id, err := uuid.Parse(m[1]); err == nil {
			return conn.Where("id = ?", id)
		}
	}
	if parts := strings.Split(qrData, ":"); len(parts) == 3 {
		return conn.Where("qr_code_data = ?", qrData)
	}
	return nil
}

// ScanTicket admits the holder of a scanned QR code. Only the organizer of
// the ticket's event may scan it, and only a CONFIRMED ticket admits. The
// unique index on check_ins.ticket_id settles concurrent scans: the loser's
// insert collides, and the collision is reported as already checked in
// rather than an error.
func ScanTicket(qrData string, scannerId uint) (*ScanResult, error) {
	conn := db.GetDb()
	query := resolveTicketQuery(conn, qrData)
	if query == nil {
		return nil, ErrInvalidQRFormat
	}

	var ticket models.Ticket
	err := query.Preload("Event").Preload("User").Preload("CheckIn").First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			monitoring.TrackCheckIn(string(SCAN_NOT_FOUND))
			return &ScanResult{Outcome: SCAN_NOT_FOUND, Message: "Ticket not found"}, nil
		}
		return nil, err
	}

	if ticket.Event.OrganizerID != scannerId {
		monitoring.TrackCheckIn(string(SCAN_FORBIDDEN))
		return &ScanResult{Outcome: SCAN_FORBIDDEN, Message: "Only the event organizer can scan this ticket"}, nil
	}
	if ticket.CheckIn != nil {
		monitoring.TrackCheckIn(string(SCAN_ALREADY_CHECKED_IN))
		at := ticket.CheckIn.CheckedInAt
		return &ScanResult{Outcome: SCAN_ALREADY_CHECKED_IN, Message: "Ticket already checked in", Ticket: &ticket, CheckedInAt: &at}, nil
	}
	if ticket.Status != types.TICKET_CONFIRMED {
		monitoring.TrackCheckIn(string(SCAN_WRONG_STATUS))
		return &ScanResult{Outcome: SCAN_WRONG_STATUS, Message: fmt.Sprintf("Ticket is %s and cannot be checked in", ticket.Status), Ticket: &ticket}, nil
	}

	now := time.Now().UTC()
	err = conn.Transaction(func(tx *gorm.DB) error {
		checkIn := models.CheckIn{TicketID: ticket.ID, EventID: ticket.EventID, ScannerID: scannerId}
		if err := tx.Create(&checkIn).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Ticket{}).
			Where("id = ?", ticket.ID).
			Where("status = ?", types.TICKET_CONFIRMED).
			Updates(map[string]any{"status": types.TICKET_CHECKED_IN, "checked_in_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrDuplicatedKey
		}
		return nil
	})
	if err != nil {
		if isDuplicateCheckIn(err) {
			// A concurrent scan won the race. Re-read and report theirs.
			var existing models.CheckIn
			if lookupErr := conn.Where("ticket_id = ?", ticket.ID).First(&existing).Error; lookupErr == nil {
				monitoring.TrackCheckIn(string(SCAN_ALREADY_CHECKED_IN))
				return &ScanResult{Outcome: SCAN_ALREADY_CHECKED_IN, Message: "Ticket already checked in", Ticket: &ticket, CheckedInAt: &existing.CheckedInAt}, nil
			}
		}
		return nil, err
	}

	ticket.Status = types.TICKET_CHECKED_IN
	ticket.CheckedInAt = &now
	monitoring.TrackCheckIn(string(SCAN_SUCCESS))
	log.Printf("[checkin] ticket %s checked in by scanner %d\n", ticket.ID, scannerId)
	return &ScanResult{Outcome: SCAN_SUCCESS, Message: "Check-in successful", Ticket: &ticket, CheckedInAt: &now}, nil
}

func isDuplicateCheckIn(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key value")
}

// EventAttendance lists the check-ins for an event, newest first. Only the
// event's organizer may read it.
func EventAttendance(eventId, organizerId uint) ([]models.CheckIn, error) {
	conn := db.GetDb()
	var event models.Event
	if err := conn.First(&event, eventId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.OrganizerID != organizerId {
		return nil, ErrForbidden
	}
	var checkIns []models.CheckIn
	err := conn.Preload("Ticket").Preload("Ticket.User").
		Where("event_id = ?", eventId).
		Order("checked_in_at DESC").
		Find(&checkIns).Error
	return checkIns, err
}
