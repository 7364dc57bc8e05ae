package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/logger"
	"spendlens/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// wsConn applies a write deadline to every frame.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) WriteMessage(messageType int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}

// Handler upgrades authenticated requests and registers them with a hub.
type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	log          *zap.SugaredLogger
}

// NewHandler creates a WebSocket handler. An allowed origin of "*" accepts
// any origin; requests without an Origin header are always accepted.
func NewHandler(hub *Hub, allowedOrigins []string, pingInterval time.Duration) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingInterval: pingInterval,
		log:          logger.Named("realtime.ws"),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// requestToken reads the JWT from ?token= or the Authorization header.
// Browsers cannot set headers on a WebSocket handshake.
func requestToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	return token
}

// Serve godoc
// @Summary      Subscribe to analytics updates
// @Description  Upgrades to a WebSocket that receives the caller's home analytics after every transaction they create
// @Tags         realtime
// @Param        token  query  string  false  "JWT access token"
// @Success      101
// @Failure      401  {object}  map[string]interface{}
// @Router       /ws [get]
func (h *Handler) Serve(c *gin.Context) {
	token := requestToken(c)
	if token == "" {
		abortUnauthorized(c, "Access token is required")
		return
	}
	claims, err := middleware.ParseAccessToken(token)
	if err != nil {
		abortUnauthorized(c, "Invalid or expired token")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debugw("websocket upgrade failed", "error", err, "user_id", claims.UserID)
		return
	}

	conn := wsConn{ws}
	sub := h.hub.Register(conn, claims.UserID)

	done := make(chan struct{})
	go h.pingLoop(ws, conn, done)
	h.readLoop(ws, conn)
	close(done)

	h.log.Debugw("websocket closed", "subscriber_id", sub.ID, "user_id", sub.UserID)
}

// readLoop discards client frames and keeps the read deadline alive on pongs.
// It returns once the peer goes away.
func (h *Handler) readLoop(ws *websocket.Conn, conn Conn) {
	defer h.hub.Unregister(conn)

	pongWait := h.pingInterval * 10 / 9
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("websocket read failed", "error", err)
			}
			return
		}
	}
}

func (h *Handler) pingLoop(ws *websocket.Conn, conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// WriteControl may run concurrently with WriteMessage.
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.hub.Unregister(conn)
				return
			}
		}
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	appErr := apperrors.WithMessage(apperrors.ErrUnauthorized, message)
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
