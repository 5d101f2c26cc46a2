package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evergreen-webinar/backend/internal/models"
	"github.com/evergreen-webinar/backend/internal/sessions"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SyncService is the slice of the session service the push channel needs.
type SyncService interface {
	Session(ctx context.Context, token string) (*models.WebinarSession, error)
	Sync(ctx context.Context, token string, req sessions.SyncRequest, now time.Time) (*sessions.SyncResponse, error)
}

// positionFrame is what clients send: their playback position (advisory in
// LIVE, authoritative in REPLAY) and an optional offer click.
type positionFrame struct {
	Position       int        `json:"position"`
	OfferClickedID *uuid.UUID `json:"offer_clicked_id,omitempty"`
}

// Client represents a single viewer WebSocket connection.
type Client struct {
	ID        string
	WebinarID uuid.UUID
	token     string

	mu           sync.Mutex
	position     int
	pendingClick *uuid.UUID

	hub    *Hub
	syncer SyncService
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the viewer push loop. The
// server pushes a sync snapshot every syncInterval; the client only reports
// positions and clicks.
func ServeWs(hub *Hub, syncer SyncService, syncInterval time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if syncInterval <= 0 {
		syncInterval = 5 * time.Second
	}
	return func(c *gin.Context) {
		token := c.Query("session_token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_token required"})
			return
		}
		session, err := syncer.Session(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			WebinarID: session.WebinarID,
			token:     token,
			position:  session.LastSyncedPosition,
			hub:       hub,
			syncer:    syncer,
			conn:      conn,
			send:      make(chan WSMessage, 256),
			logger:    logger,
		}
		hub.Register(client)

		ctx, cancel := context.WithCancel(context.Background())
		go client.writePump()
		go client.syncLoop(ctx, syncInterval)
		client.readPump(cancel)
	}
}

func (c *Client) readPump(cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "position":
			var frame positionFrame
			if err := json.Unmarshal(msg.Data, &frame); err != nil {
				continue
			}
			c.mu.Lock()
			c.position = frame.Position
			if frame.OfferClickedID != nil {
				c.pendingClick = frame.OfferClickedID
			}
			c.mu.Unlock()
		default:
			// ignore
		}
	}
}

func (c *Client) syncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pushSnapshot(ctx)
		}
	}
}

func (c *Client) pushSnapshot(ctx context.Context) {
	c.mu.Lock()
	req := sessions.SyncRequest{ClientPosition: c.position, OfferClickedID: c.pendingClick}
	c.pendingClick = nil
	c.mu.Unlock()

	snapshot, err := c.syncer.Sync(ctx, c.token, req, time.Now())
	if err != nil {
		c.logger.Warn("push sync failed", zap.String("client_id", c.ID), zap.Error(err))
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	// server clock wins in LIVE; track it so the next heartbeat reports
	// a position near the canonical one
	if snapshot.Mode == models.ModeLive {
		c.mu.Lock()
		c.position = snapshot.Position
		c.mu.Unlock()
	}
	select {
	case c.send <- WSMessage{Event: "sync", Data: data}:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
