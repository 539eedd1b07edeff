package chatws

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/beyondthefold777/Barber-World-sub001/internal/services"
)

// Hub fans server-side messaging events out to every connected device of a
// user. It is notify-only: sends and read receipts travel over the REST API,
// the socket exists so open screens learn about new messages and badge
// changes without per-screen polling.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     chan targetedEvent
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Event is the wire shape pushed to display surfaces.
type Event struct {
	Type           string `json:"type"` // "message" or "badge"
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	Text           string `json:"text,omitempty"`
	UnreadTotal    int    `json:"unread_total,omitempty"`
	Timestamp      string `json:"timestamp"`
}

type targetedEvent struct {
	userIDs []string
	event   *Event
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan targetedEvent, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case targeted := <-h.events:
			h.deliver(targeted)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyMessage pushes a new-message event to both participants.
func (h *Hub) NotifyMessage(delivery *services.MessageDelivery) {
	event := &Event{
		Type:           "message",
		ConversationID: strconv.FormatInt(delivery.Message.ConversationID, 10),
		SenderID:       strconv.FormatInt(delivery.Message.SenderID, 10),
		Text:           delivery.Message.Text,
		Timestamp:      services.FormatMessageTimestamp(delivery.Message.CreatedAt),
	}
	h.enqueue(targetedEvent{
		userIDs: []string{
			strconv.FormatInt(delivery.Message.SenderID, 10),
			strconv.FormatInt(delivery.RecipientID, 10),
		},
		event: event,
	})
}

// NotifyBadge pushes a fresh unread total to every device of one user.
func (h *Hub) NotifyBadge(userID int64, unreadTotal int) {
	h.enqueue(targetedEvent{
		userIDs: []string{strconv.FormatInt(userID, 10)},
		event: &Event{
			Type:        "badge",
			UnreadTotal: unreadTotal,
			Timestamp:   services.FormatMessageTimestamp(time.Now().UTC()),
		},
	})
}

func (h *Hub) enqueue(targeted targetedEvent) {
	select {
	case h.events <- targeted:
	default:
		log.Printf("chat hub: event queue full, dropping %s event", targeted.event.Type)
	}
}

func (h *Hub) deliver(targeted targetedEvent) {
	encoded, err := json.Marshal(targeted.event)
	if err != nil {
		log.Printf("chat hub encode event: %v", err)
		return
	}

	seen := make(map[string]struct{}, len(targeted.userIDs))
	for _, userID := range targeted.userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		h.sendToUser(userID, encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ReadPump drains the connection until the peer goes away. Clients do not
// send over the socket; anything that arrives is discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
