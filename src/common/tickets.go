package common

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"eventverse/src/config"
	"eventverse/src/db"
	"eventverse/src/lib"
	"eventverse/src/models"
	"eventverse/src/types"
	"fmt"
	"log"

	"gorm.io/gorm"
)

// guestAccountEmail is the shared account that anonymous purchases land on
// when the buyer gives no e-mail address.
const guestAccountEmail = "guest@eventverse.local"

func generateTicketToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating ticket token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func resolvePurchaser(conn *gorm.DB, userId uint, body *types.CreateTicketsRequestBody) (models.User, error) {
	var user models.User
	if userId > 0 {
		err := conn.First(&user, userId).Error
		return user, err
	}
	email := body.GuestEmail
	name := body.GuestName
	if email == "" {
		email = guestAccountEmail
	}
	if name == "" {
		name = "Guest"
	}
	err := conn.Where(&models.User{Email: email}).
		Attrs(models.User{Name: name, Role: types.ROLE_ATTENDEE}).
		FirstOrCreate(&user).Error
	return user, err
}

// CreateTickets creates quantity PENDING tickets for one event in a single
// transaction. Each ticket gets a unique colon-separated token as its
// qr_code_data and a rendered QR image of its public URL. userId 0 means an
// unauthenticated purchase; the buyer is then resolved from the guest fields
// or the shared guest account.
func CreateTickets(userId uint, body *types.CreateTicketsRequestBody) ([]models.Ticket, error) {
	conn := db.GetDb()

	var event models.Event
	if err := conn.First(&event, body.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	user, err := resolvePurchaser(conn, userId, body)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, body.Quantity)
	err = conn.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < body.Quantity; i++ {
			token, err := generateTicketToken()
			if err != nil {
				return err
			}
			ticket := models.Ticket{
				EventID:    event.ID,
				UserID:     user.ID,
				Status:     types.TICKET_PENDING,
				Price:      event.BasePrice,
				Currency:   event.Currency,
				QRCodeData: fmt.Sprintf("%d:%s:%d", event.ID, token, user.ID),
			}
			if err := tx.Create(&ticket).Error; err != nil {
				return err
			}
			image, err := lib.RenderQRCodeDataURL(fmt.Sprintf("%s/tickets/%s", config.AppBaseURL(), ticket.ID))
			if err != nil {
				// The token alone is scannable; a missing image is cosmetic.
				log.Printf("[tickets] rendering QR image for %s: %s\n", ticket.ID, err.Error())
			} else if err := tx.Model(&ticket).Update("qr_code_image", image).Error; err != nil {
				return err
			} else {
				ticket.QRCodeImage = &image
			}
			tickets = append(tickets, ticket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lib.EmitTicketCountUpdate(event.ID, ConfirmedTicketCount(event.ID))
	return tickets, nil
}

// ConfirmedTicketCount is the number shown on event pages: tickets paid for,
// whether or not their holder has walked in yet.
func ConfirmedTicketCount(eventId uint) int64 {
	var count int64
	err := db.GetDb().Model(&models.Ticket{}).
		Where("event_id = ?", eventId).
		Where("status IN ?", []types.TicketStatus{types.TICKET_CONFIRMED, types.TICKET_CHECKED_IN}).
		Count(&count).Error
	if err != nil {
		log.Printf("[tickets] counting confirmed tickets for event %d: %s\n", eventId, err.Error())
	}
	return count
}
