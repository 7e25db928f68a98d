package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"devconnect/backend/internal/models"
	"devconnect/backend/internal/storage"
)

// Inbound pairs a client with a frame it produced.
type Inbound struct {
	Client Client
	Frame  models.Envelope
}

// Hub routes joinRoom/leaveRoom/chatMessage traffic between connected
// clients. All client and room state is owned by the Run goroutine; other
// goroutines talk to the hub only through its channels.
//
// With a Storage backend the hub publishes messages through it and fans out
// what the subscription delivers, so several relay nodes share rooms. With
// a nil Storage it fans out locally.
type Hub struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound
	PubSubCh     chan models.UserMessagePayload

	store storage.Storage
}

func NewHub(store storage.Storage) *Hub {
	return &Hub{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan Inbound, 64),
		PubSubCh:     make(chan models.UserMessagePayload, 64),
		store:        store,
	}
}

// Run is the hub's main loop. It never returns.
func (h *Hub) Run() {
	if h.store != nil {
		go h.runPubSubListener()
	}

	for {
		select {
		case c := <-h.RegisterCh:
			h.Clients[c.GetUserID()] = c
			log.Printf("relay: client %s connected", c.GetUserID())

		case c := <-h.UnregisterCh:
			if _, ok := h.Clients[c.GetUserID()]; !ok {
				continue
			}
			delete(h.Clients, c.GetUserID())
			if room := c.GetRoomID(); room != "" {
				h.removeMember(room, c.GetUserID())
				h.broadcastSystem(room, fmt.Sprintf("%s left the room", c.GetUserID()))
			}
			c.Close()
			log.Printf("relay: client %s disconnected", c.GetUserID())

		case in := <-h.IncomingCh:
			h.handleFrame(in)

		case msg := <-h.PubSubCh:
			h.deliver(msg)
		}
	}
}

func (h *Hub) handleFrame(in Inbound) {
	c := in.Client
	switch in.Frame.Event {
	case models.EventJoinRoom:
		var room string
		if err := json.Unmarshal(in.Frame.Data, &room); err != nil || room == "" {
			h.sendError(c, "joinRoom: missing room id")
			return
		}
		h.join(c, room)

	case models.EventLeaveRoom:
		var room string
		if err := json.Unmarshal(in.Frame.Data, &room); err != nil || room == "" {
			h.sendError(c, "leaveRoom: missing room id")
			return
		}
		h.leave(c, room)

	case models.EventChatMessage:
		var p models.ChatPayload
		if err := json.Unmarshal(in.Frame.Data, &p); err != nil {
			h.sendError(c, "chatMessage: malformed payload")
			return
		}
		if p.RoomID == "" || p.RoomID != c.GetRoomID() {
			h.sendError(c, fmt.Sprintf("chatMessage: not joined to room %q", p.RoomID))
			return
		}
		if strings.TrimSpace(p.Message) == "" {
			return
		}
		h.publish(models.UserMessagePayload{
			RoomID:    p.RoomID,
			UserID:    c.GetUserID(),
			Message:   p.Message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})

	default:
		log.Printf("relay: ignoring unknown event %q from %s", in.Frame.Event, c.GetUserID())
	}
}

func (h *Hub) join(c Client, room string) {
	if c.GetRoomID() == room {
		return
	}
	if old := c.GetRoomID(); old != "" {
		// Drop the old membership first so the mover does not see its own
		// leave notice.
		c.SetRoomID("")
		h.removeMember(old, c.GetUserID())
		h.broadcastSystem(old, fmt.Sprintf("%s left the room", c.GetUserID()))
	}
	c.SetRoomID(room)
	h.addMember(room, c.GetUserID())
	h.broadcastSystem(room, fmt.Sprintf("%s joined the room", c.GetUserID()))
}

func (h *Hub) leave(c Client, room string) {
	if c.GetRoomID() != room {
		return
	}
	c.SetRoomID("")
	h.removeMember(room, c.GetUserID())
	h.broadcastSystem(room, fmt.Sprintf("%s left the room", c.GetUserID()))
}

// publish routes a room message through the storage backend when present,
// so every relay node (this one included) receives it via the
// subscription. Without a backend it delivers locally.
func (h *Hub) publish(msg models.UserMessagePayload) {
	if h.store != nil {
		if err := h.store.PublishMessage(msg.RoomID, msg); err != nil {
			log.Printf("relay: publish to room %s failed, delivering locally: %v", msg.RoomID, err)
			h.deliver(msg)
		}
		return
	}
	h.deliver(msg)
}

// deliver fans a room message out to every local client joined to its room,
// the sender included; clients record their own messages only through this
// inbound path.
func (h *Hub) deliver(msg models.UserMessagePayload) {
	env, err := messageEnvelope(msg)
	if err != nil {
		log.Printf("relay: encoding message for room %s: %v", msg.RoomID, err)
		return
	}

	for id, c := range h.Clients {
		if c.GetRoomID() != msg.RoomID {
			continue
		}
		select {
		case c.GetSendChannel() <- env:
		default:
			// Slow client; drop it rather than stall the hub.
			delete(h.Clients, id)
			c.Close()
		}
	}
}

func (h *Hub) broadcastSystem(room, notice string) {
	h.publish(models.UserMessagePayload{
		RoomID:    room,
		UserID:    models.SystemSenderID,
		Message:   notice,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) sendError(c Client, cause string) {
	data, err := json.Marshal(cause)
	if err != nil {
		return
	}
	select {
	case c.GetSendChannel() <- models.Envelope{Event: models.EventError, Data: data}:
	default:
	}
}

func (h *Hub) addMember(room, userID string) {
	if h.store == nil {
		return
	}
	if err := h.store.AddRoomMember(room, userID); err != nil {
		log.Printf("relay: recording %s in room %s: %v", userID, room, err)
	}
}

func (h *Hub) removeMember(room, userID string) {
	if h.store == nil {
		return
	}
	if err := h.store.RemoveRoomMember(room, userID); err != nil {
		log.Printf("relay: removing %s from room %s: %v", userID, room, err)
	}
}

func (h *Hub) runPubSubListener() {
	err := h.store.Subscribe(context.Background(), func(msg models.UserMessagePayload) {
		h.PubSubCh <- msg
	})
	if err != nil {
		log.Printf("relay: pub/sub subscription ended: %v", err)
	}
}

// messageEnvelope renders a room message in its wire form: system notices
// as a bare string, user messages as the payload object.
func messageEnvelope(msg models.UserMessagePayload) (models.Envelope, error) {
	var (
		data []byte
		err  error
	)
	if msg.UserID == models.SystemSenderID {
		data, err = json.Marshal(msg.Message)
	} else {
		data, err = json.Marshal(msg)
	}
	if err != nil {
		return models.Envelope{}, err
	}
	return models.Envelope{Event: models.EventMessage, Data: data}, nil
}
