package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"devconnect/backend/internal/models"
	"devconnect/backend/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const handshakeWait = 10 * time.Second

// ServeWebSocket upgrades the HTTP connection and performs the connect
// handshake: the first frame must be a connect envelope carrying the auth
// token, the reply is either connect or connect_error followed by close.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("handler: upgrade failed: %v", err)
		return
	}

	anonID, err := h.handshake(conn)
	if err != nil {
		rejectHandshake(conn, err)
		return
	}

	client := &relay.WebSocketClient{
		UserID: anonID,
		Conn:   conn,
		Hub:    h.Hub,
		Send:   make(chan models.Envelope, 256),
	}

	// Ack before the pumps start so connect is the first frame the client
	// sees.
	conn.SetWriteDeadline(time.Now().Add(handshakeWait))
	if err := conn.WriteJSON(models.Envelope{Event: models.EventConnect}); err != nil {
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Time{})

	h.Hub.RegisterCh <- client
	client.Run()
}

func (h *Handler) handshake(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	defer conn.SetReadDeadline(time.Time{})

	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return "", fmt.Errorf("reading handshake: %w", err)
	}
	if env.Event != models.EventConnect {
		return "", fmt.Errorf("expected %s frame, got %q", models.EventConnect, env.Event)
	}

	var payload models.ConnectPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return "", fmt.Errorf("decoding handshake: %w", err)
	}
	if payload.Auth.Token == "" {
		return "", errors.New("authorization token missing")
	}

	anonID, err := h.validateAndGetAnonID(payload.Auth.Token)
	if err != nil {
		return "", errors.New("invalid token or expired")
	}
	return anonID, nil
}

func rejectHandshake(conn *websocket.Conn, cause error) {
	data, err := json.Marshal(models.ConnectErrorPayload{Message: cause.Error()})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(handshakeWait))
		conn.WriteJSON(models.Envelope{Event: models.EventConnectError, Data: data})
	}
	conn.Close()
}
