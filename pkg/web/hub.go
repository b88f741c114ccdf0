package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/alerts"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 50 * time.Second
	clientBuffer = 16
)

// AlertHub streams admin alerts to connected dashboards. It is an alerts.Sink.
type AlertHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewAlertHub creates an empty hub. Browsers may connect from the request's
// own host or from a host matching allowedHosts, the same regexp the server
// applies to the Host header.
func NewAlertHub(allowedHosts string) *AlertHub {
	var allowed *regexp.Regexp
	if allowedHosts != "" {
		allowed = regexp.MustCompile(allowedHosts)
	}
	return &AlertHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 12,
			CheckOrigin:     originChecker(allowed),
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// originChecker accepts clients without an Origin header (non-browser tools),
// same-origin browsers and origins whose host matches allowed
func originChecker(allowed *regexp.Regexp) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		if allowed != nil && allowed.MatchString(u.Host) {
			return true
		}
		logger.Warn(fmt.Sprintf("Origen WebSocket rechazado: %s", origin), "AlertHub")
		return false
	}
}

// Name implements alerts.Sink
func (h *AlertHub) Name() string { return "websocket" }

// Send implements alerts.Sink. Slow clients drop the alert instead of blocking.
func (h *AlertHub) Send(ctx context.Context, a alerts.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logger.Warn("Cliente WebSocket lento, alerta descartada", "AlertHub")
		}
	}
	return nil
}

// Clients returns the number of connected dashboards
func (h *AlertHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle upgrades the request and keeps the connection until it closes
func (h *AlertHub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(fmt.Sprintf("Fallo al actualizar a WebSocket: %v", err), "AlertHub")
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.readLoop(client, done)
	h.writeLoop(client, done)
}

func (h *AlertHub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// readLoop only handles control frames; dashboards never send data
func (h *AlertHub) readLoop(c *hubClient, done chan struct{}) {
	defer close(done)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertHub) writeLoop(c *hubClient, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
