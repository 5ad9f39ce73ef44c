package lib

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	engineiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

var socketServer *socket.Server

func eventRoom(eventId uint) socket.Room {
	return socket.Room(fmt.Sprintf("event:%d", eventId))
}

// SetupSocketServer mounts the socket.io endpoint used for live ticket-count
// updates. Viewers join a per-event room and receive ticket-count-update
// events whenever a reconciliation confirms tickets.
func SetupSocketServer(r *gin.Engine) *socket.Server {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	c.SetPingInterval(25 * time.Second)
	c.SetPingTimeout(20 * time.Second)
	c.SetMaxHttpBufferSize(1_000_000)
	c.SetConnectTimeout(45 * time.Second)
	c.SetCors(&engineiotypes.Cors{
		Origin:      "*",
		Credentials: true,
	})

	wss := socket.NewServer(nil, nil)
	wss.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		log.Printf("[socket] client connected: %s\n", string(client.Id()))
		client.On("join-event", func(args ...any) {
			if len(args) < 1 {
				return
			}
			eventId, ok := toUint(args[0])
			if !ok {
				return
			}
			client.Join(eventRoom(eventId))
			log.Printf("[socket] %s joined event:%d\n", string(client.Id()), eventId)
		})
		client.On("leave-event", func(args ...any) {
			if len(args) < 1 {
				return
			}
			eventId, ok := toUint(args[0])
			if !ok {
				return
			}
			client.Leave(eventRoom(eventId))
			log.Printf("[socket] %s left event:%d\n", string(client.Id()), eventId)
		})
		client.On("disconnect", func(...any) {
			log.Printf("[socket] client disconnected: %s\n", string(client.Id()))
		})
	})

	r.GET("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	r.POST("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	socketServer = wss
	return wss
}

func toUint(v any) (uint, bool) {
	switch n := v.(type) {
	case float64:
		return uint(n), true
	case int:
		return uint(n), true
	case uint:
		return n, true
	default:
		return 0, false
	}
}

// EmitTicketCountUpdate pushes the latest CONFIRMED+CHECKED_IN count for an
// event to its room. Best effort: a missing server is only logged.
func EmitTicketCountUpdate(eventId uint, ticketCount int64) {
	if socketServer == nil {
		log.Println("[socket] server not initialized, skipping ticket count update")
		return
	}
	socketServer.To(eventRoom(eventId)).Emit("ticket-count-update", map[string]any{
		"eventId":     eventId,
		"ticketCount": ticketCount,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	log.Printf("[socket] emitted ticket count update for event:%d count=%d\n", eventId, ticketCount)
}
