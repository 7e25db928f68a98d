package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devconnect/backend/internal/relay"
)

// Handler wires the relay hub into the HTTP layer.
type Handler struct {
	Hub       *relay.Hub
	jwtSecret []byte
}

func NewHandler(hub *relay.Hub, jwtSecret string) *Handler {
	return &Handler{Hub: hub, jwtSecret: []byte(jwtSecret)}
}

// Routes registers the chat endpoints.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)
}
