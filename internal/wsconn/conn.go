// Package wsconn is the connection layer: per-connection read/write pumps
// built on gorilla/websocket (which already implements the RFC 6455 frame
// codec and handshake that the protocol calls for), plus a listener that
// mints connection IDs and a bounded outbound queue with a close grace
// period.
package wsconn

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// outboundQueueSize is the per-connection bounded outbound queue depth.
const outboundQueueSize = 256

// writeQueueGrace is how long a full outbound queue is tolerated before
// the connection is closed for policy violation.
const writeQueueGrace = 2 * time.Second

// Handler receives decoded inbound frames and close notifications for a
// connection. Implementations must not block: C5/C4 access goes through
// their own exclusion region, never through the pump goroutines directly.
type Handler interface {
	HandleOpen(c *Conn)
	HandleMessage(c *Conn, raw []byte)
	HandleClose(c *Conn)
}

// Conn is one accepted connection: a connId, the underlying websocket, and
// a bounded outbound queue served by its own writer goroutine.
type Conn struct {
	ID         uint64
	RemoteAddr string

	ws   *websocket.Conn
	send chan []byte
	log  *logrus.Entry

	closeOnce sync.Once
	closed    chan struct{}

	queueFullSince atomic.Value // time.Time, zero when queue isn't backed up
}

func newConn(id uint64, ws *websocket.Conn, log *logrus.Entry) *Conn {
	c := &Conn{
		ID:         id,
		RemoteAddr: ws.RemoteAddr().String(),
		ws:         ws,
		send:       make(chan []byte, outboundQueueSize),
		log:        log,
		closed:     make(chan struct{}),
	}
	c.queueFullSince.Store(time.Time{})
	return c
}

// ReadPump blocks reading frames off the socket and hands each one to h,
// until the socket errors or is closed. It always calls h.HandleClose
// exactly once before returning.
func (c *Conn) ReadPump(h Handler) {
	defer func() {
		h.HandleClose(c)
		c.Close()
	}()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithField("connId", c.ID).WithError(err).Debug("read pump closing on unexpected close")
			}
			return
		}
		h.HandleMessage(c, message)
	}
}

// WritePump drains the outbound queue to the socket until it is closed or
// shutdown is signaled. If the queue stays full past writeQueueGrace, the
// connection is closed for policy violation rather than blocking forever.
func (c *Conn) WritePump(shutdown <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.queueFullSince.Store(time.Time{})
			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			if since, ok := c.queueFullSince.Load().(time.Time); ok && !since.IsZero() && time.Since(since) > writeQueueGrace {
				c.log.WithField("connId", c.ID).Warn("outbound queue backed up past grace period, closing")
				c.CloseWithCode(websocket.ClosePolicyViolation)
				return
			}
		case <-c.closed:
			return
		case <-shutdown:
			c.CloseWithCode(websocket.CloseNormalClosure)
			return
		}
	}
}

// SendJSON enqueues msg for delivery. It never blocks: a full queue starts
// the grace-period countdown instead of stalling the caller.
func (c *Conn) SendJSON(msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.send <- payload:
	default:
		if since, ok := c.queueFullSince.Load().(time.Time); !ok || since.IsZero() {
			c.queueFullSince.Store(time.Now())
		}
	}
	return nil
}

// CloseWithCode sends a best-effort close frame with code, then hard
// closes the socket. Safe to call more than once.
func (c *Conn) CloseWithCode(code int) {
	c.closeOnce.Do(func() {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second))
		close(c.closed)
		c.ws.Close()
	})
}

// Close hard-closes the socket with a normal-closure close frame.
func (c *Conn) Close() {
	c.CloseWithCode(websocket.CloseNormalClosure)
}

// Listener accepts the upgraded HTTP connections for the game socket and
// mints connIds. It rides on net/http's server rather than a raw
// net.Listener accept loop, since gorilla/websocket performs the upgrade
// at the HTTP layer.
type Listener struct {
	upgrader websocket.Upgrader
	log      *logrus.Entry
	handler  Handler
	shutdown chan struct{}

	nextConnID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]*Conn

	httpServer *http.Server
}

// NewListener creates a listener bound to addr that upgrades every request
// to a game-socket connection and dispatches frames to h.
func NewListener(addr string, h Handler, log *logrus.Entry) *Listener {
	l := &Listener{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  65536,
			WriteBufferSize: 65536,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:      log,
		handler:  h,
		shutdown: make(chan struct{}),
		conns:    make(map[uint64]*Conn),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	l.httpServer = &http.Server{Addr: addr, Handler: mux}
	return l
}

// Serve blocks accepting and upgrading connections until Shutdown is
// called, at which point the underlying listener socket is closed so
// further connection attempts are refused.
func (l *Listener) Serve(ln net.Listener) error {
	err := l.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.shutdown:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	id := l.nextConnID.Add(1)
	c := newConn(id, ws, l.log)

	l.mu.Lock()
	l.conns[id] = c
	l.mu.Unlock()

	l.handler.HandleOpen(c)
	go c.ReadPump(l.handler)
	go c.WritePump(l.shutdown)
	go func() {
		<-c.closed
		l.Forget(id)
	}()
}

// Conn returns the connection for connId, if it is still tracked.
func (l *Listener) Conn(connID uint64) (*Conn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.conns[connID]
	return c, ok
}

// Forget drops connId from the tracked set, called once its pumps exit.
func (l *Listener) Forget(connID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, connID)
}

// Shutdown closes the listener socket (refusing new connections) within
// deadline, then sends every tracked connection a close frame and
// hard-closes its socket. It does not wait for the connections' read and
// write goroutines, which exit on their own once their sockets are closed.
func (l *Listener) Shutdown(deadline time.Duration) {
	close(l.shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	l.httpServer.Shutdown(ctx)

	l.mu.Lock()
	conns := make([]*Conn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		c.CloseWithCode(websocket.CloseNormalClosure)
	}
}
