package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrConnClosed is returned by writes on a connection that was closed.
var ErrConnClosed = errors.New("connection closed")

// Writer is the write side of a websocket connection. *websocket.Conn
// satisfies it.
type Writer interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type ConnOptions struct {
	// EventRate is the sustained number of inbound events per second.
	// Zero disables limiting.
	EventRate    float64
	EventBurst   int
	WriteTimeout time.Duration
}

// Conn is one authenticated client connection. Writes are serialised since
// the underlying websocket allows a single concurrent writer.
type Conn struct {
	id           string
	userId       string
	writer       Writer
	limiter      *rate.Limiter
	writeTimeout time.Duration
	closed       bool

	mu sync.Mutex
}

func NewConn(writer Writer, userId string, opts ConnOptions) *Conn {
	limit := rate.Inf
	if opts.EventRate > 0 {
		limit = rate.Limit(opts.EventRate)
	}
	burst := opts.EventBurst
	if burst <= 0 {
		burst = 1
	}
	return &Conn{
		id:           uuid.NewString(),
		userId:       userId,
		writer:       writer,
		limiter:      rate.NewLimiter(limit, burst),
		writeTimeout: opts.WriteTimeout,
	}
}

func (c *Conn) Id() string {
	return c.id
}

func (c *Conn) UserId() string {
	return c.userId
}

// Allow reports whether one more inbound event fits the rate limit.
func (c *Conn) Allow() bool {
	return c.limiter.Allow()
}

// Emit sends one event frame to this connection only.
func (c *Conn) Emit(event string, data interface{}) error {
	return c.writeJson(Outbound{Type: event, Data: data})
}

func (c *Conn) writeJson(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.writeTimeout > 0 {
		if err := c.writer.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.writer.WriteJSON(msg)
}

func (c *Conn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.writer.WriteControl(messageType, data, deadline)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.writer.Close()
}
