package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client serializes writes to one connection; gorilla connections allow a
// single concurrent writer.
type client struct {
	userID uint
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close sends a close frame with reason and drops the connection. The
// serving goroutine sees the read error and exits.
func (c *client) close(code int, reason string) {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.mu.Unlock()

	c.conn.Close()
}

// Hub fans project events out to the websocket clients watching each
// project.
type Hub struct {
	mu       sync.RWMutex
	projects map[uint]map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Hub{
		projects: make(map[uint]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *Hub) add(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projects[projectID] == nil {
		h.projects[projectID] = make(map[*client]struct{})
	}
	h.projects[projectID][c] = struct{}{}
}

func (h *Hub) remove(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.projects[projectID]; exists {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.projects, projectID)
		}
	}
}

// Clients returns how many connections watch the project.
func (h *Hub) Clients(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.projects[projectID])
}

// detach unregisters and returns every client for which match holds.
func (h *Hub) detach(match func(projectID uint, c *client) bool) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()

	var detached []*client
	for projectID, clients := range h.projects {
		for c := range clients {
			if match(projectID, c) {
				delete(clients, c)
				detached = append(detached, c)
			}
		}
		if len(clients) == 0 {
			delete(h.projects, projectID)
		}
	}
	return detached
}

// Disconnect closes the user's connections to the project.
func (h *Hub) Disconnect(projectID, userID uint) {
	if h == nil {
		return
	}

	for _, c := range h.detach(func(p uint, c *client) bool {
		return p == projectID && c.userID == userID
	}) {
		c.close(websocket.ClosePolicyViolation, "access revoked")
	}
}

// DisconnectUser closes every connection the user holds.
func (h *Hub) DisconnectUser(userID uint) {
	if h == nil {
		return
	}

	for _, c := range h.detach(func(_ uint, c *client) bool {
		return c.userID == userID
	}) {
		c.close(websocket.ClosePolicyViolation, "account deactivated")
	}
}

// CloseProject closes every connection watching the project.
func (h *Hub) CloseProject(projectID uint) {
	if h == nil {
		return
	}

	for _, c := range h.detach(func(p uint, _ *client) bool {
		return p == projectID
	}) {
		c.close(websocket.CloseGoingAway, "project deleted")
	}
}

// Broadcast sends event to every client of its project that allow accepts;
// a nil allow accepts all. Rejected clients are disconnected, and clients
// that fail to receive the event are dropped. A nil hub discards events.
func (h *Hub) Broadcast(event types.Event, allow func(userID uint) bool) {
	if h == nil {
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.projects[event.ProjectID]))
	for c := range h.projects[event.ProjectID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if allow != nil && !allow(c.userID) {
			log.Debug().Uint("project_id", event.ProjectID).Uint("user_id", c.userID).Msg("closing websocket of user without access")
			h.remove(event.ProjectID, c)
			c.close(websocket.ClosePolicyViolation, "access revoked")
			continue
		}

		if err := c.write(event); err != nil {
			log.Debug().Err(err).Uint("project_id", event.ProjectID).Msg("dropping websocket client")
			h.remove(event.ProjectID, c)
			c.conn.Close()
		}
	}
}

// WebSocket subscribes the caller to events of a project they can view.
func (h *Handler) WebSocket(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	conn, err := h.hub.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Uint("project_id", project.ID).Msg("websocket upgrade failed")
		return
	}

	h.hub.serve(project.ID, &client{userID: user.ID, conn: conn})
}

func (h *Hub) serve(projectID uint, c *client) {
	conn := c.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.add(projectID, c)

	done := make(chan struct{})
	defer func() {
		close(done)
		h.remove(projectID, c)
		conn.Close()
		log.Debug().Uint("project_id", projectID).Msg("websocket connection closed")
	}()

	err := c.write(types.Event{
		Type:      types.EventConnected,
		ProjectID: projectID,
		Message:   "WebSocket connection established",
	})
	if err != nil {
		log.Debug().Err(err).Msg("failed to send welcome message")
		return
	}

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	// Clients only listen; reading keeps pongs and close frames flowing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Uint("project_id", projectID).Msg("websocket read error")
			}
			return
		}
	}
}
