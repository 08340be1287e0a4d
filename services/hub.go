package services

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"smart-splitter-backend/models"
)

// Event is the payload fanned out to live group listeners.
type Event struct {
	Event   string      `json:"event"`
	Message interface{} `json:"message"`
}

// BotMessage is the wire form of a persisted ledger event.
type BotMessage struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conn is one live listener attached to a group. WriteEvent may be called
// from multiple goroutines; implementations serialize their own writes.
type Conn interface {
	WriteEvent(event Event) error
}

// MessageStore persists ledger events as bot chat messages so offline
// members can read them later.
type MessageStore interface {
	SaveBotMessage(groupID uuid.UUID, content string) (*models.ChatMessage, error)
}

// Hub is the per-group connection registry and best-effort fanout.
//
// Delivery is at-most-once and fire-and-forget: each dispatch runs in its
// own goroutine, a failing connection is dropped without affecting the
// others, and nobody waits for completion. Connections registered while a
// broadcast is in flight may or may not receive it.
type Hub struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[Conn]struct{}
	store MessageStore
}

func NewHub(store MessageStore) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[Conn]struct{}),
		store: store,
	}
}

var hub *Hub

func GetHub() *Hub {
	return hub
}

func (h *Hub) Register(groupID uuid.UUID, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[Conn]struct{})
		h.rooms[groupID] = room
	}
	room[conn] = struct{}{}
}

func (h *Hub) Unregister(groupID uuid.UUID, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[groupID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
}

// snapshot copies the current listener set so dispatch never holds the lock.
func (h *Hub) snapshot(groupID uuid.UUID) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[groupID]
	conns := make([]Conn, 0, len(room))
	for conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast dispatches an event to every listener currently registered for
// the group. Each delivery is attempted independently; a write failure
// drops that one connection.
func (h *Hub) Broadcast(groupID uuid.UUID, event Event) {
	for _, conn := range h.snapshot(groupID) {
		conn := conn
		go func() {
			if err := conn.WriteEvent(event); err != nil {
				log.Printf("⚠️  Dropping listener for group %s: %v", groupID, err)
				h.Unregister(groupID, conn)
			}
		}()
	}
}

// Announce records a ledger event as a durable bot message and then fans it
// out. Persistence happens regardless of whether anyone is connected; a
// storage failure is logged and fanout still proceeds so live listeners are
// not starved.
func (h *Hub) Announce(groupID uuid.UUID, content string) {
	bot := BotMessage{Content: content, CreatedAt: time.Now().UTC()}

	msg, err := h.store.SaveBotMessage(groupID, content)
	if err != nil {
		log.Printf("❌ Failed to persist event for group %s: %v", groupID, err)
	} else {
		bot.ID = msg.ID
		bot.CreatedAt = msg.CreatedAt
	}

	h.Broadcast(groupID, Event{Event: "bot_message", Message: bot})
}
