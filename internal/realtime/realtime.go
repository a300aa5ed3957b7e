// Package realtime pushes submission progress to the console's websocket
// endpoint so other dashboard sessions see publishes as they happen. The
// publisher is best effort: a dead socket never fails a submission.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/safliix/console-backend/internal/workflow"
	"github.com/safliix/console-backend/pkg/config"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/logger"
)

// Event is one progress frame on the wire.
type Event struct {
	EntityKind string    `json:"entityKind"`
	EntityID   string    `json:"entityId,omitempty"`
	Stage      string    `json:"stage"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Conn is an explicitly constructed, dependency-injected websocket
// connection. Connect before use; Publish is safe from any goroutine.
type Conn struct {
	cfg  config.RealtimeConfig
	logg *logger.Logger

	mu   sync.Mutex
	sock *websocket.Conn
}

func NewConn(cfg config.RealtimeConfig, logg *logger.Logger) *Conn {
	return &Conn{cfg: cfg, logg: logg}
}

// Connect dials the configured endpoint. A disabled config is not an error;
// Publish simply becomes a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	if !c.cfg.Enabled() {
		return nil
	}
	d := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	sock, resp, err := d.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dialing realtime endpoint")
	}
	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
	return nil
}

// Publish writes one event. Errors are logged and swallowed; the socket is
// dropped on write failure so later publishes stop hammering a dead peer.
func (c *Conn) Publish(ctx context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if c.cfg.WriteTimeout > 0 {
		_ = c.sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.sock.WriteJSON(ev); err != nil {
		if c.logg != nil {
			c.logg.Warn(ctx, "realtime publish failed")
		}
		_ = c.sock.Close()
		c.sock = nil
	}
}

// Disconnect sends a close frame and tears the socket down. Safe to call on
// a never-connected Conn.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := c.sock.Close()
	c.sock = nil
	return err
}

// ObserverFor adapts the connection into a workflow observer bound to one
// submission.
func (c *Conn) ObserverFor(ctx context.Context, kind, id string) workflow.Observer {
	return func(p workflow.Progress) {
		c.Publish(ctx, Event{
			EntityKind: kind,
			EntityID:   id,
			Stage:      string(p.State),
			Detail:     p.Detail,
		})
	}
}
