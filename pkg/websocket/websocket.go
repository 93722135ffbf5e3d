package websocket

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event is pushed to every connected cashier dashboard, mirroring the
// payment-created / payment-settled broadcasts the POS frontend listens for.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type IHub interface {
	Handler() fiber.Handler
	Broadcast(event Event)
}

type client struct {
	id   string
	conn *websocket.Conn
}

type hub struct {
	mu      sync.Mutex
	clients map[string]*client
	log     *logrus.Logger
}

func NewHub(log *logrus.Logger) IHub {
	return &hub{
		clients: make(map[string]*client),
		log:     log,
	}
}

func (h *hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		cl := &client{id: uuid.NewString(), conn: c}

		h.mu.Lock()
		h.clients[cl.id] = cl
		h.mu.Unlock()

		h.log.WithFields(logrus.Fields{
			"client_id": cl.id,
		}).Debug("Dashboard connected")

		defer func() {
			h.mu.Lock()
			delete(h.clients, cl.id)
			h.mu.Unlock()
			c.Close()
		}()

		// Dashboards only listen; the read loop exists to notice the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func (h *hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, cl := range h.clients {
		if err := cl.conn.WriteJSON(event); err != nil {
			h.log.WithFields(logrus.Fields{
				"client_id": id,
				"error":     err.Error(),
				"event":     event.Type,
			}).Warn("Dropping broken websocket connection")
			cl.conn.Close()
			delete(h.clients, id)
		}
	}
}
