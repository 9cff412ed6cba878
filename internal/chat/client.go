package chat

import (
	"context"
	"net/http"
	"time"

	"chat-hub/internal/middleware"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 10 * time.Second
	readLimit  = 4096

	limiterBurst  = 5
	limiterRefill = 500 * time.Millisecond
)

// Client binds one websocket connection to its session and runs the two
// pumps. The reader feeds frames to the hub; the writer drains the
// session's send queue.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	session     *Session
	limiter     *middleware.RateLimiter
	lastWarning time.Time
	log         *zap.SugaredLogger
}

// ServeWS upgrades the request and starts the connection's pumps. The
// session stays unauthenticated until a valid authenticate frame arrives.
func ServeWS(hub *Hub, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("websocket upgrade failed", "error", err)
			return
		}

		client := &Client{
			hub:     hub,
			conn:    conn,
			session: NewSession(),
			limiter: middleware.NewRateLimiter(limiterBurst, limiterRefill),
			log:     log,
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.session)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnw("unexpected close", "session", c.session.ID, "error", err)
			}
			break
		}

		if !c.limiter.Allow() {
			if time.Since(c.lastWarning) > 3*time.Second {
				c.session.enqueue(encodeFrame(EvtError, ErrorPayload{
					Code:    CodeRateLimited,
					Message: "rate limit exceeded",
				}))
				c.lastWarning = time.Now()
			}
			continue
		}

		c.hub.HandleFrame(context.Background(), c.session, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Disconnect(c.session)
		c.conn.Close()
	}()

	for {
		select {
		case <-c.session.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.session.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Drain whatever else is already queued into the same write.
			n := len(c.session.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.session.send)
			}

			if err := w.Close(); err != nil {
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
