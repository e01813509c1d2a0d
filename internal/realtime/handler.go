package realtime

import (
	"net/http"
	"strings"
	"time"

	"callcenter-platform/internal/auth"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Agent consoles connect cross-origin; tighten per deployment.
		return true
	},
}

// Handler upgrades authenticated agent connections and registers them with
// the hub.
type Handler struct {
	Hub  *Hub
	Auth *auth.Manager
}

// HandleConnection authenticates via bearer token (query param or header,
// since browser websocket clients cannot always set headers) and upgrades.
func (h *Handler) HandleConnection(c *gin.Context) {
	log := logger.FromGin(c)

	token := extractToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	claims, err := h.Auth.Verify(token, auth.TokenTypeAccess, time.Now())
	if err != nil {
		log.Warn("websocket auth failed", "err", err, "ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "err", err, "ip", c.ClientIP())
		return
	}

	client := NewClient(h.Hub, conn, claims.ProfileID, claims.BusinessID)
	client.Register()
}

func extractToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimPrefix(raw, "Bearer ")
	}
	return ""
}
