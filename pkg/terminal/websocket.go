package terminal

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/session"
	"github.com/antibyte/cpcrun/pkg/shared"
)

// Hilfsfunktionen für WebSocket-Konfigurationswerte, siehe [Server]
func getWriteWait() time.Duration {
	return configuration.GetDuration("Server", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Server", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Server", "max_message_size_kb", 64) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Server", "max_channel_buffer", 1024)
}

var newline = []byte{'\n'}

// readPump decodes requests and hands them to the session.
func (c *Client) readPump() {
	defer c.handler.cleanupClient(c)

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("Unexpected close error for client %s: %v", c.ipAddress, err)
			} else {
				logger.WebSocketDebug("Normal close for client %s: %v", c.ipAddress, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		req, err := c.handler.validator.Decode(message)
		if err != nil {
			logger.WebSocketDebug("rejected request from %s: %v", c.ipAddress, err)
			c.Send(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
			continue
		}
		if req.Action == ActionKeepalive {
			continue
		}

		if err := c.handler.sessions.Touch(c.session.ID); err != nil {
			c.Send(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
			if errors.Is(err, session.ErrRateLimited) {
				continue
			}
			return
		}
		if err := c.session.Handle(req); err != nil {
			logger.WebSocketWarn("session %s gone: %v", c.session.ID, err)
			return
		}
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// gepufferte Nachrichten gleich mitschicken
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketDebug("Failed to send ping to client %s: %v", c.ipAddress, err)
				return
			}
		case <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
