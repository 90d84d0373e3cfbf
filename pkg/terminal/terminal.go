// Package terminal is the browser side of a session: a websocket that
// carries requests in and machine messages out.
package terminal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/cpcrun/pkg/auth"
	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/logger"
	"github.com/antibyte/cpcrun/pkg/session"
	"github.com/antibyte/cpcrun/pkg/shared"
	"github.com/antibyte/cpcrun/pkg/virtualfs"
)

// Handler verwaltet WebSocket-Verbindungen und ihre Sessions
type Handler struct {
	sessions  *session.Manager
	fs        *virtualfs.VFS // nil without file access
	upgrader  websocket.Upgrader
	validator *RequestValidator

	// NewSession builds the session of a connection; tests replace it.
	NewSession func(ctx context.Context, opts session.Options) (*session.Session, error)
}

// Client repräsentiert einen verbundenen WebSocket-Client
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	handler   *Handler
	ipAddress string
	session   *session.Session
	shutdown  chan struct{}
	closeOnce sync.Once
}

// NewHandler creates the websocket handler. fs may be nil.
func NewHandler(sessions *session.Manager, fs *virtualfs.VFS) *Handler {
	return &Handler{
		sessions:   sessions,
		fs:         fs,
		validator:  NewRequestValidator(),
		NewSession: session.New,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  configuration.GetInt("Server", "read_buffer_size", 1024),
			WriteBufferSize: configuration.GetInt("Server", "write_buffer_size", 1024),
			CheckOrigin:     checkOrigin,
		},
	}
}

// checkOrigin accepts requests without Origin (non-browser clients) and
// browser requests from the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := configuration.GetString("Server", "allowed_origins", "http://localhost:8080")
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o == "*" || o == origin {
			return true
		}
	}
	logger.WebSocketWarn("WebSocket request from disallowed origin rejected: %s", origin)
	return false
}

// HandleWebSocket upgrades the request and starts a session for it. The
// request must carry a valid token, see auth.RequireToken.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := auth.ClientIDFromContext(r.Context())
	if clientID == "" {
		http.Error(w, "Unbefugt: Token fehlt", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocketWarn("upgrade failed: %v", err)
		return
	}

	c := &Client{
		conn:      conn,
		send:      make(chan []byte, getMaxChannelBuffer()),
		handler:   h,
		ipAddress: auth.GetClientIP(r),
		shutdown:  make(chan struct{}),
	}

	opts := session.OptionsFromConfig()
	opts.Owner = clientID
	opts.FS = h.fs
	opts.Send = c.Send
	s, err := h.NewSession(context.Background(), opts)
	if err != nil {
		logger.WebSocketError("session for %s: %v", clientID, err)
		conn.Close()
		return
	}
	if err := h.sessions.Register(s, c.ipAddress); err != nil {
		logger.WebSocketWarn("session refused for %s: %v", c.ipAddress, err)
		c.writeNow(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
		s.Close()
		conn.Close()
		return
	}
	c.session = s

	go c.writePump()
	go c.readPump()
}

// Send queues msg for the write pump. It is called on the session's loop
// goroutine and never blocks it; a client that does not keep up is
// disconnected.
func (c *Client) Send(msg shared.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WebSocketError("marshal message type %d: %v", msg.Type, err)
		return
	}
	select {
	case <-c.shutdown:
	case c.send <- data:
	default:
		logger.WebSocketWarn("Send channel blocked for client %s, closing", c.ipAddress)
		c.close()
	}
}

// writeNow writes msg directly, before the pumps are running.
func (c *Client) writeNow(msg shared.Message) {
	c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.WebSocketDebug("write to %s: %v", c.ipAddress, err)
	}
}

// close stops the pumps; the session is removed by the read pump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		c.conn.Close()
	})
}

func (h *Handler) cleanupClient(c *Client) {
	c.close()
	if c.session == nil {
		return
	}
	if err := h.sessions.Remove(c.session.ID); err != nil {
		logger.WebSocketDebug("cleanup: %v", err)
	}
}
