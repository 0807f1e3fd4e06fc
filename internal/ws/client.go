package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mesaqr/api/internal/auth"
	"github.com/mesaqr/api/internal/permission"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10 // below pongWait

	// Consoles only send control frames.
	maxMessageSize = 512

	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // authenticated by JWT, not by origin
	},
}

// Client is a single console connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tenantID uuid.UUID
	sector   string
	send     chan []byte
	logger   *zap.Logger
}

// wants reports whether an event for sector should reach this client.
func (c *Client) wants(sector string) bool {
	return c.sector == "" || sector == "" || c.sector == sector
}

// ReadPump only watches for disconnects; consoles never send data.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.Warn("console disconnected unexpectedly", zap.Error(err))
		}
		return
	}
}

// WritePump sends each queued event as its own text frame and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel: tenant room shut down.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades a staff connection and joins it to its tenant's room.
// Endpoint: WS /ws/tenants/me/events?token=JWT[&sector=KITCHEN]
func ServeWS(hub *Hub, jwtSecret string, logger *zap.Logger, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sector := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("sector")))
	if sector == "" {
		// Cooks and bartenders only ever see their own station.
		sector = permission.HomeSector(claims.Role)
	}
	if sector != "" && !permission.SectorAccess(claims.Role, sector) {
		http.Error(w, "sector access denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		tenantID: claims.TenantID,
		sector:   sector,
		send:     make(chan []byte, sendBuffer),
		logger:   logger.With(zap.String("tenant_id", claims.TenantID.String()), zap.String("sector", sector)),
	}
	if !hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	client.logger.Debug("console connected")

	go client.WritePump()
	go client.ReadPump()
}
